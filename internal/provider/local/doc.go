// Package local runs generation on the host. It is structured into small
// files by concern:
//
//   - provider.go: Provider, model resolution and the accelerated to CPU fallback chain.
//   - engine.go: Runtime and Engine interfaces shared by both variants.
//   - admission.go: single in-flight engine per device with a bounded wait queue.
//   - errors.go: error types and helpers (IsTooBusy, IsDependencyUnavailable).
//   - cpu_server.go: CPU variant, a llama-server subprocess with GPU offload disabled.
//   - sse.go: OpenAI-compatible chat stream parsing for the CPU variant.
//   - sanity.go: dependency checks for the doctor command.
//   - metrics.go: fallback counter.
//
// Build tags:
//
//   - In-process llama (accelerated): go-llama.cpp with GPU layers, enabled with
//     `-tags=llama`. Files: accelerated_llama.go, llama_cgo.go.
//     Without the tag accelerated_stub.go fails fast with a dependency error
//     and the provider falls back to the CPU variant.
package local
