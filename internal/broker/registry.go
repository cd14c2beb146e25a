package broker

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/skychatorg/skychat-xterm/internal/identity"
	"github.com/skychatorg/skychat-xterm/internal/relay"
	"github.com/skychatorg/skychat-xterm/internal/runner"
)

// ForcedExitCode is reported to viewers when the server ends a session
// (revoke, replacement, idle sweep, shutdown) rather than the process
// exiting on its own.
const ForcedExitCode = -1

// Session lifecycle events passed to the registry's EventRecorder.
const (
	EventCreated  = "created"
	EventReplaced = "replaced"
	EventRevoked  = "revoked"
	EventReaped   = "reaped"
	EventExited   = "exited"
	EventShutdown = "shutdown"
)

// EventRecorder receives session lifecycle events for auditing. A nil
// recorder disables auditing.
type EventRecorder interface {
	Record(identity, event, detail string)
}

// Registry owns every live session, keyed by normalized identity. It
// enforces the one-process-per-identity rule: all session creation,
// replacement, and teardown runs under the registry lock, so two requests
// for the same identity can never race into two processes.
type Registry struct {
	run      runner.Runner
	dataDir  string
	cols     uint16
	rows     uint16
	recorder EventRecorder

	mu       sync.RWMutex
	sessions map[string]*Session
}

// Options configures a Registry.
type Options struct {
	// Runner spawns session processes.
	Runner runner.Runner
	// DataDir is the root under which per-identity home directories are
	// created (DataDir/users/<identity>).
	DataDir string
	// Cols and Rows are the initial terminal geometry. Zero means 80x24.
	Cols uint16
	Rows uint16
	// Recorder receives lifecycle events. May be nil.
	Recorder EventRecorder
}

// NewRegistry creates an empty registry.
func NewRegistry(opts Options) *Registry {
	if opts.Cols == 0 {
		opts.Cols = 80
	}
	if opts.Rows == 0 {
		opts.Rows = 24
	}
	return &Registry{
		run:      opts.Runner,
		dataDir:  opts.DataDir,
		cols:     opts.Cols,
		rows:     opts.Rows,
		recorder: opts.Recorder,
		sessions: make(map[string]*Session),
	}
}

// GetOrCreate returns the identity's live session, spawning one if needed.
// With forceNew the existing session is torn down first, so its viewers get
// an exit frame and the identity continues with a fresh process. The raw
// identity is normalized before lookup; a spawn failure leaves no session
// behind.
func (r *Registry) GetOrCreate(ctx context.Context, rawIdentity string, forceNew bool) (*Session, error) {
	id, err := identity.Normalize(rawIdentity)
	if err != nil {
		return nil, fmt.Errorf("normalize identity: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.sessions[id]; ok {
		alive := existing.Alive()
		if alive && !forceNew {
			existing.Touch()
			return existing, nil
		}
		delete(r.sessions, id)
		if alive {
			existing.teardown(ForcedExitCode)
			r.record(id, EventReplaced, "")
		} else {
			// Process already exited but the watcher hasn't swept
			// the entry yet. Finish its teardown with the real code.
			code := existing.proc.ExitCode()
			existing.teardown(code)
			r.record(id, EventExited, fmt.Sprintf("code=%d", code))
		}
	}

	sess, err := r.spawnLocked(ctx, id)
	if err != nil {
		return nil, err
	}
	r.sessions[id] = sess
	r.record(id, EventCreated, "")
	log.Printf("[broker] session created: identity=%s", id)
	return sess, nil
}

// spawnLocked starts a process for id and wires up its output pump and
// exit watcher. Caller holds r.mu.
func (r *Registry) spawnLocked(ctx context.Context, id string) (*Session, error) {
	home := filepath.Join(r.dataDir, "users", id)
	if err := os.MkdirAll(home, 0o700); err != nil {
		return nil, fmt.Errorf("create home dir for %s: %w", id, err)
	}

	proc, err := r.run.Start(ctx, runner.Spec{
		Identity: id,
		HomeDir:  home,
		Cols:     r.cols,
		Rows:     r.rows,
	})
	if err != nil {
		return nil, fmt.Errorf("start process for %s: %w", id, err)
	}

	sess := newSession(id, proc)
	go sess.pump()
	go r.watch(sess)
	return sess, nil
}

// watch waits for the session's process to end, then removes the registry
// entry and finishes teardown with the real exit code. If another path
// already replaced or destroyed the session, the entry is someone else's
// and only the idempotent teardown remains.
func (r *Registry) watch(s *Session) {
	<-s.proc.Done()
	code := s.proc.ExitCode()

	r.mu.Lock()
	if cur, ok := r.sessions[s.Identity]; ok && cur == s {
		delete(r.sessions, s.Identity)
		r.record(s.Identity, EventExited, fmt.Sprintf("code=%d", code))
	}
	r.mu.Unlock()

	if s.teardown(code) {
		log.Printf("[broker] session exited: identity=%s code=%d", s.Identity, code)
	}
}

// Has reports whether a live session exists for the identity.
func (r *Registry) Has(rawIdentity string) bool {
	id, err := identity.Normalize(rawIdentity)
	if err != nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return ok && s.Alive()
}

// Get returns the identity's session without creating one.
func (r *Registry) Get(rawIdentity string) (*Session, bool) {
	id, err := identity.Normalize(rawIdentity)
	if err != nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Attach adds a viewer to the session's fan-out set. Attaching an already
// attached viewer keeps a single entry. Fails once the session is closed.
func (r *Registry) Attach(s *Session, v *relay.Viewer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !s.attach(v) {
		return ErrSessionClosed
	}
	return nil
}

// Detach removes a viewer from the session. Unknown viewers are a no-op,
// so Detach is always safe to defer.
func (r *Registry) Detach(s *Session, viewerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.detach(viewerID)
}

// Destroy tears down the identity's session, if any, and reports whether
// one existed. Viewers see a forced exit.
func (r *Registry) Destroy(rawIdentity string) bool {
	id, err := identity.Normalize(rawIdentity)
	if err != nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[id]
	if !ok {
		return false
	}
	delete(r.sessions, id)
	sess.teardown(ForcedExitCode)
	r.record(id, EventRevoked, "")
	log.Printf("[broker] session revoked: identity=%s", id)
	return true
}

// SweepIdle tears down sessions with no viewers and no activity for at
// least timeout, returning how many were removed. A timeout of zero
// disables sweeping.
func (r *Registry) SweepIdle(timeout time.Duration) int {
	if timeout <= 0 {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-timeout)
	n := 0
	for id, sess := range r.sessions {
		if sess.ViewerCount() > 0 {
			continue
		}
		last := sess.LastActivity()
		if last.After(cutoff) {
			continue
		}
		delete(r.sessions, id)
		sess.teardown(ForcedExitCode)
		r.record(id, EventReaped, fmt.Sprintf("idle_since=%s", last.UTC().Format(time.RFC3339)))
		log.Printf("[broker] session reaped: identity=%s idle_since=%s", id, last.UTC().Format(time.RFC3339))
		n++
	}
	return n
}

// ShutdownAll tears down every session. Called once on server shutdown.
func (r *Registry) ShutdownAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, sess := range r.sessions {
		delete(r.sessions, id)
		sess.teardown(ForcedExitCode)
		r.record(id, EventShutdown, "")
	}
}

// SessionStats is a point-in-time snapshot of one session.
type SessionStats struct {
	Identity     string    `json:"identity"`
	Created      time.Time `json:"created"`
	LastActivity time.Time `json:"lastActivity"`
	ViewerCount  int       `json:"viewerCount"`
}

// RegistryStats summarizes all live sessions for monitoring.
type RegistryStats struct {
	TotalSessions int            `json:"totalSessions"`
	Sessions      []SessionStats `json:"sessions"`
}

// Stats returns a snapshot of every tracked session, ordered by identity.
func (r *Registry) Stats() RegistryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := RegistryStats{
		TotalSessions: len(r.sessions),
		Sessions:      make([]SessionStats, 0, len(r.sessions)),
	}
	for _, s := range r.sessions {
		stats.Sessions = append(stats.Sessions, SessionStats{
			Identity:     s.Identity,
			Created:      s.CreatedAt,
			LastActivity: s.LastActivity(),
			ViewerCount:  s.ViewerCount(),
		})
	}
	sort.Slice(stats.Sessions, func(i, j int) bool {
		return stats.Sessions[i].Identity < stats.Sessions[j].Identity
	})
	return stats
}

func (r *Registry) record(identity, event, detail string) {
	if r.recorder == nil {
		return
	}
	r.recorder.Record(identity, event, detail)
}
