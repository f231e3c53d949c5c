// Package manager owns live generation sessions: provider selection, search
// kick-off, admission and NDJSON streaming. It is structured into small files
// by concern:
//
//   - manager.go: Manager type, constructor, simple getters, Close.
//   - config.go: ManagerConfig and package defaults.
//   - errors.go: error types and helpers (IsTooBusy, IsSessionNotFound, IsProviderNotFound).
//   - admission.go: bounded concurrent sessions with a wait queue.
//   - session.go: Start, Session, Interrupt and the background run.
//   - stream.go: NDJSON streaming of session snapshots (Stream, Generate).
//   - evict.go: retention of finished sessions.
//   - status_report.go: Status reporting.
//
// External packages should use public methods only; internal types are
// subject to change.
package manager
