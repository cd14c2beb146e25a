package relay

import (
	"encoding/json"
	"fmt"
)

// Message types sent to viewers.
const (
	// TypeData carries a chunk of terminal output.
	TypeData = "data"
	// TypeConnected acknowledges a successful attach.
	TypeConnected = "connected"
	// TypeExit announces that the session's process has ended.
	TypeExit = "exit"
	// TypeError reports a per-viewer problem, such as a rejected frame.
	TypeError = "error"
)

// Message types accepted from viewers.
const (
	// TypeInput carries keystrokes or pasted text for the process.
	TypeInput = "input"
	// TypeResize requests new terminal dimensions.
	TypeResize = "resize"
)

// ServerMessage is a single frame sent to a connected viewer. Only the
// fields relevant to the frame's type are populated.
type ServerMessage struct {
	Type    string `json:"type"`
	Data    string `json:"data,omitempty"`
	Code    *int   `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// ClientMessage is a single frame received from a viewer.
type ClientMessage struct {
	Type string `json:"type"`
	Data string `json:"data,omitempty"`
	Cols int    `json:"cols,omitempty"`
	Rows int    `json:"rows,omitempty"`
}

// DataMessage encodes a terminal output chunk.
func DataMessage(data string) []byte {
	return encode(ServerMessage{Type: TypeData, Data: data})
}

// ConnectedMessage encodes the attach acknowledgement.
func ConnectedMessage() []byte {
	return encode(ServerMessage{Type: TypeConnected})
}

// ExitMessage encodes a process exit notification. The code field is always
// present, including for exit code zero.
func ExitMessage(code int) []byte {
	return encode(ServerMessage{Type: TypeExit, Code: &code})
}

// ErrorMessage encodes a per-viewer error report.
func ErrorMessage(msg string) []byte {
	return encode(ServerMessage{Type: TypeError, Message: msg})
}

func encode(m ServerMessage) []byte {
	b, _ := json.Marshal(m)
	return b
}

// ParseClientMessage decodes a frame received from a viewer. Frames that are
// not valid JSON, or whose cols/rows are not integers, fail to parse and
// should be dropped by the caller.
func ParseClientMessage(raw []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return ClientMessage{}, fmt.Errorf("parse client frame: %w", err)
	}
	return msg, nil
}
