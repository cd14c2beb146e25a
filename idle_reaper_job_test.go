package main

import (
	"context"
	"testing"
	"time"

	"github.com/skychatorg/skychat-xterm/internal/auth"
	"github.com/skychatorg/skychat-xterm/internal/broker"
	"github.com/skychatorg/skychat-xterm/internal/relay"
	"github.com/skychatorg/skychat-xterm/internal/runner"
)

func testRegistry(t *testing.T) (*broker.Registry, *runner.FakeRunner) {
	t.Helper()
	fake := &runner.FakeRunner{}
	reg := broker.NewRegistry(broker.Options{
		Runner:  fake,
		DataDir: t.TempDir(),
	})
	t.Cleanup(reg.ShutdownAll)
	return reg, fake
}

func TestReaperJob_ReapsIdleSessions(t *testing.T) {
	reg, _ := testRegistry(t)
	store := auth.NewSessionStore(time.Hour)
	j := newReaperJob(reg, store, 10*time.Millisecond)

	if _, err := reg.GetOrCreate(context.Background(), "alice", false); err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	time.Sleep(30 * time.Millisecond)
	j.run()

	if n := reg.Stats().TotalSessions; n != 0 {
		t.Errorf("TotalSessions = %d after sweep, want 0", n)
	}
}

func TestReaperJob_SparesActiveSessions(t *testing.T) {
	reg, _ := testRegistry(t)
	store := auth.NewSessionStore(time.Hour)
	j := newReaperJob(reg, store, 10*time.Millisecond)

	sess, err := reg.GetOrCreate(context.Background(), "alice", false)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	viewer := relay.NewViewer()
	if err := reg.Attach(sess, viewer); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	defer viewer.Close()

	time.Sleep(30 * time.Millisecond)
	j.run()

	if n := reg.Stats().TotalSessions; n != 1 {
		t.Errorf("TotalSessions = %d, want 1: attached viewer must block reaping", n)
	}

	// A fresh session is also spared, viewers or not.
	if _, err := reg.GetOrCreate(context.Background(), "bob", false); err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	j.run()
	if n := reg.Stats().TotalSessions; n != 2 {
		t.Errorf("TotalSessions = %d, want 2: fresh session reaped too early", n)
	}
}

func TestReaperJob_CleansExpiredLoginSessions(t *testing.T) {
	reg, _ := testRegistry(t)
	store := auth.NewSessionStore(time.Nanosecond)
	j := newReaperJob(reg, store, time.Hour)

	id, err := store.Create(1)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	time.Sleep(time.Millisecond)
	j.run()

	if _, ok := store.Get(id); ok {
		t.Error("expired login session survived sweep")
	}
}

func TestReaperJob_StartStop(t *testing.T) {
	reg, _ := testRegistry(t)
	store := auth.NewSessionStore(time.Hour)
	j := newReaperJob(reg, store, time.Hour)

	if err := j.start(0); err == nil {
		t.Error("expected error for zero interval")
	}
	if err := j.start(time.Minute); err != nil {
		t.Fatalf("start: %v", err)
	}
	j.stop()
}
