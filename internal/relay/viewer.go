package relay

import (
	"sync"

	"github.com/google/uuid"
)

// viewerBufferSize is how many frames a viewer may fall behind before new
// frames are dropped for it. A slow WebSocket never stalls the output pump.
const viewerBufferSize = 256

// Viewer is one attached consumer of a session's output. Frames are queued
// on a buffered channel that the transport's write pump drains.
type Viewer struct {
	id string

	mu     sync.Mutex
	ch     chan []byte
	closed bool
}

// NewViewer creates a viewer with a fresh unique ID.
func NewViewer() *Viewer {
	return &Viewer{
		id: uuid.New().String(),
		ch: make(chan []byte, viewerBufferSize),
	}
}

// ID returns the viewer's unique identifier.
func (v *Viewer) ID() string {
	return v.id
}

// Send queues a frame without blocking. It reports false when the viewer is
// closed or its buffer is full; in either case the frame is dropped.
func (v *Viewer) Send(frame []byte) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return false
	}
	select {
	case v.ch <- frame:
		return true
	default:
		return false
	}
}

// Close shuts the viewer's channel so its write pump terminates. Safe to
// call more than once; later Sends report false.
func (v *Viewer) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.closed = true
	close(v.ch)
}

// Messages returns the frame channel for the write pump. The channel is
// closed when the viewer is closed.
func (v *Viewer) Messages() <-chan []byte {
	return v.ch
}
