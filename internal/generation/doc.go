// Package generation is the orchestration core for producing one answer. It is
// structured into small files by concern:
//
//   - state.go: State enum and terminal-state helpers.
//   - tracker.go: Tracker, the per-session state container read by UIs.
//   - provider.go: Provider/Generator contract, Message and Params.
//   - gate.go: Gate, the search-dependency synchronization point.
//   - throttle.go: Throttle, last-value rate limiting of partial output.
//   - session.go: Session, the state machine tying the pieces together.
//   - errors.go: cancellation and provider failure taxonomy.
//   - events.go, eventpub_memory.go: lifecycle event publishing.
//   - metrics.go: prometheus collectors.
//
// Every Session owns its own Tracker; nothing in this package is process-wide
// mutable state apart from the metrics collectors.
package generation
