// Package broker owns the mapping from user identities to live terminal
// sessions. Each identity gets at most one process at a time; any number of
// viewers may watch and drive that process concurrently.
//
// # Core Components
//
//   - [Registry]: identity-keyed session table enforcing one process per
//     identity. All creation, replacement, and teardown is serialized under
//     its lock, including the spawn itself.
//   - [Session]: one spawned process plus its attached viewers. Output fans
//     out to every viewer; input from any viewer reaches the same stdin.
//
// # Session Lifecycle
//
//  1. [Registry.GetOrCreate] normalizes the identity, then returns the
//     existing live session or spawns a new process via the configured
//     runner. With forceNew the old session is torn down first.
//
//  2. Viewers come and go with [Registry.Attach] and [Registry.Detach].
//     The session outlives its viewers; a fully detached session keeps
//     running until the idle sweep collects it.
//
//  3. Teardown, from whatever trigger (self-exit, replacement, revoke,
//     sweep, shutdown), always runs the same way: every viewer receives
//     exactly one exit frame and a closed channel, the process is killed
//     if still running, and the registry entry disappears. Teardown is
//     idempotent, so racing triggers are harmless.
//
// # Idle Sweep
//
// [Registry.SweepIdle] collects sessions that have had no viewers and no
// user interaction for the configured timeout. Process output does not
// count as interaction. The server runs the sweep on a fixed schedule.
//
// # Auditing
//
// Lifecycle transitions are reported to an optional [EventRecorder]
// (created, replaced, revoked, reaped, exited, shutdown). The server
// persists these as terminal events.
//
// Broker operations log at the [broker] prefix.
package broker
