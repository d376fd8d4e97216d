// Package backend wraps the two inference library families behind one
// Backend contract. Files are split by concern:
//
//   - types.go: Kind, Params, LoadOptions, Progress and the Backend interface.
//   - runtime.go: the native contracts each inference library exposes, plus
//     the unavailable stub used when no runtime is configured.
//   - scheduler.go: mapping from the shared Scheduler choice to each
//     family's native enum.
//   - standard.go / extended.go: the two adapters.
//   - factory.go: the single selection point from model to backend kind.
//
// A Backend owns at most one loaded pipeline. Cancellation is cooperative:
// the ProgressFunc is consulted after every diffusion step and a false
// return ends generation with ErrCancelled.
package backend
