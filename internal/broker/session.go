package broker

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/skychatorg/skychat-xterm/internal/relay"
	"github.com/skychatorg/skychat-xterm/internal/runner"
)

// ErrSessionClosed is returned for writes and resizes against a session
// whose process has ended or been torn down.
var ErrSessionClosed = errors.New("session closed")

// Session is one user's live terminal: a spawned process plus the set of
// viewers currently watching it. All viewers share the same process; input
// from any of them lands on the same stdin, and output fans out to all.
type Session struct {
	// Identity is the normalized identity that owns this session.
	Identity string
	// CreatedAt is when the process was spawned.
	CreatedAt time.Time

	proc runner.Process

	mu           sync.Mutex
	viewers      map[string]*relay.Viewer
	lastActivity time.Time
	destroyed    bool
}

func newSession(identity string, proc runner.Process) *Session {
	now := time.Now()
	return &Session{
		Identity:     identity,
		CreatedAt:    now,
		proc:         proc,
		viewers:      make(map[string]*relay.Viewer),
		lastActivity: now,
	}
}

// Alive reports whether the session still has a usable process.
func (s *Session) Alive() bool {
	select {
	case <-s.proc.Done():
		return false
	default:
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.destroyed
}

// Touch refreshes the idle clock.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = time.Now()
}

// LastActivity returns the time of the most recent user interaction.
// Process output alone does not count as activity, so a shell stuck in a
// print loop still ages out.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// ViewerCount returns the number of currently attached viewers.
func (s *Session) ViewerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.viewers)
}

// WriteInput delivers validated client input to the process and counts as
// activity. Implements the relay's terminal surface.
func (s *Session) WriteInput(data string) error {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.lastActivity = time.Now()
	s.mu.Unlock()

	if _, err := s.proc.Write([]byte(data)); err != nil {
		return fmt.Errorf("write to process: %w", err)
	}
	return nil
}

// Resize changes the terminal geometry. The relay has already bounded
// cols and rows, so the uint16 conversion is safe.
func (s *Session) Resize(cols, rows int) error {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.mu.Unlock()
	return s.proc.Resize(uint16(cols), uint16(rows))
}

// attach adds a viewer to the fan-out set. Attaching the same viewer twice
// keeps a single entry. Reports false once the session is torn down.
func (s *Session) attach(v *relay.Viewer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return false
	}
	s.viewers[v.ID()] = v
	s.lastActivity = time.Now()
	return true
}

// detach removes a viewer. Unknown viewer IDs are a no-op. The idle clock
// restarts here so an abandoned session ages from the moment the last
// viewer left.
func (s *Session) detach(viewerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return
	}
	delete(s.viewers, viewerID)
	s.lastActivity = time.Now()
}

// pump streams process output to every attached viewer until the process
// ends. Runs as a goroutine for the session's lifetime.
func (s *Session) pump() {
	buf := make([]byte, 32*1024)
	out := s.proc.Output()
	for {
		n, err := out.Read(buf)
		if n > 0 {
			s.broadcast(relay.DataMessage(string(buf[:n])))
		}
		if err != nil {
			return
		}
	}
}

// broadcast fans a frame out to all viewers. Sends never block; a viewer
// that has fallen viewerBufferSize frames behind loses this one.
func (s *Session) broadcast(frame []byte) {
	s.mu.Lock()
	targets := make([]*relay.Viewer, 0, len(s.viewers))
	for _, v := range s.viewers {
		targets = append(targets, v)
	}
	s.mu.Unlock()

	for _, v := range targets {
		v.Send(frame)
	}
}

// teardown ends the session: every viewer gets exactly one exit frame and
// a closed channel, then the process is killed if still running. Only the
// first call does anything; the registry entry is the caller's problem.
func (s *Session) teardown(code int) bool {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return false
	}
	s.destroyed = true
	viewers := s.viewers
	s.viewers = nil
	s.mu.Unlock()

	for _, v := range viewers {
		v.Send(relay.ExitMessage(code))
		v.Close()
	}

	select {
	case <-s.proc.Done():
	default:
		if err := s.proc.Kill(); err != nil {
			log.Printf("[broker] kill failed for session %s: %v", s.Identity, err)
		}
	}
	return true
}
