// Package relay defines the JSON frame protocol spoken between the server
// and terminal viewers, and the validation applied to client frames before
// they reach a session's process.
//
// Frames to the viewer: "data" (output chunk), "connected" (attach ack),
// "exit" (process ended, with code), "error" (per-viewer report).
// Frames from the viewer: "input" (keystrokes) and "resize" (geometry).
// Anything else is ignored so older or newer clients keep working.
package relay

import (
	"fmt"
	"log"
)

const (
	// MaxInputSize is the largest input payload, in bytes, accepted in a
	// single frame. Larger frames are rejected before touching the process.
	MaxInputSize = 10000

	// MinTermDim and MaxTermDim bound the terminal geometry a viewer may
	// request. Resize frames outside the range are dropped.
	MinTermDim = 1
	MaxTermDim = 1000
)

// Term is the write side of a terminal session as seen by the relay.
// Implemented by broker sessions.
type Term interface {
	// WriteInput delivers client input to the process.
	WriteInput(data string) error
	// Resize changes the terminal dimensions.
	Resize(cols, rows int) error
}

// Apply validates one client frame and dispatches it against term. Malformed
// and out-of-range frames are dropped here; oversized input additionally
// earns the sender an error frame. A non-nil return means the input write
// failed, so the process is gone and the caller should stop reading.
func Apply(term Term, v *Viewer, raw []byte) error {
	msg, err := ParseClientMessage(raw)
	if err != nil {
		log.Printf("[relay] dropping malformed frame from viewer %s: %v", v.ID(), err)
		return nil
	}

	switch msg.Type {
	case TypeInput:
		if len(msg.Data) > MaxInputSize {
			log.Printf("[relay] rejecting oversized input from viewer %s: size=%d limit=%d",
				v.ID(), len(msg.Data), MaxInputSize)
			v.Send(ErrorMessage("input exceeds maximum size"))
			return nil
		}
		if err := term.WriteInput(msg.Data); err != nil {
			return fmt.Errorf("write input: %w", err)
		}
	case TypeResize:
		if msg.Cols < MinTermDim || msg.Cols > MaxTermDim ||
			msg.Rows < MinTermDim || msg.Rows > MaxTermDim {
			log.Printf("[relay] dropping out-of-range resize from viewer %s: cols=%d rows=%d",
				v.ID(), msg.Cols, msg.Rows)
			return nil
		}
		if err := term.Resize(msg.Cols, msg.Rows); err != nil {
			log.Printf("[relay] resize failed for viewer %s: %v", v.ID(), err)
		}
	default:
		// Unrecognized frame types are ignored.
	}
	return nil
}
