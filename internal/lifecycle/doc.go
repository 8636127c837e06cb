// Package lifecycle owns the language service lifecycle of one editor.
//
// A Manager drives a generation through service creation, readiness
// polling and client adapter bootstrap. Restarting supersedes the current
// generation: its channel pair is closed, the shared bundle is reset in
// place and a new generation begins with a fresh pair.
//
// Key concepts:
//   - Generation: a monotonically increasing counter. Every state change
//     and every published handle is checked against it, so stale work
//     from a superseded generation is discarded rather than observed.
//   - Bundle: the per-editor set of callback slots, never reallocated.
//   - Pair: the per-generation lanes that feed the bundle.
//   - Readiness: a service never announces itself. The manager polls
//     the bundle's service slot on a fixed interval instead.
package lifecycle
