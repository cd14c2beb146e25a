package main

import (
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/skychatorg/skychat-xterm/internal/auth"
	"github.com/skychatorg/skychat-xterm/internal/broker"
)

// reaperJob periodically destroys viewer-less terminal sessions that have
// been idle past the timeout, and expires stale login sessions on the same
// schedule.
type reaperJob struct {
	registry    *broker.Registry
	store       *auth.SessionStore
	idleTimeout time.Duration
	cron        *cron.Cron
}

func newReaperJob(registry *broker.Registry, store *auth.SessionStore, idleTimeout time.Duration) *reaperJob {
	return &reaperJob{
		registry:    registry,
		store:       store,
		idleTimeout: idleTimeout,
		cron:        cron.New(),
	}
}

// start schedules the sweep every interval.
func (j *reaperJob) start(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("sweep interval must be positive, got %s", interval)
	}
	if _, err := j.cron.AddFunc(fmt.Sprintf("@every %s", interval), j.run); err != nil {
		return fmt.Errorf("schedule idle sweep: %w", err)
	}
	j.cron.Start()
	log.Printf("Idle reaper scheduled (every %s, timeout %s)", interval, j.idleTimeout)
	return nil
}

func (j *reaperJob) run() {
	if n := j.registry.SweepIdle(j.idleTimeout); n > 0 {
		log.Printf("Idle sweep reaped %d session(s)", n)
	}
	j.store.Cleanup()
}

// stop halts the schedule and waits for an in-flight sweep to finish.
func (j *reaperJob) stop() {
	<-j.cron.Stop().Done()
}
