// Package orchestrator drives generation batches. It owns the single loaded
// backend slot, the model catalog snapshot, admission, cancellation and the
// published progress state. It is structured into small files by concern:
//
//   - orchestrator.go: core Orchestrator type and simple getters.
//   - config.go: Config and package defaults; New applies defaults.
//   - types.go: Request, PreviewMode, BatchResult.
//   - errors.go: error types and helpers (IsTooBusy, IsInvalidRequest).
//   - fingerprint.go: pipeline reuse key.
//   - admission.go: one batch at a time.
//   - ensure.go: backend slot reuse and reload.
//   - generate.go: the batch loop.
//   - deliver.go: upscale, autosave and sink hand-off for finished images.
//   - ops.go: background submission and cancellation.
//   - eventpub_log.go: EventPublisher that writes debug log lines.
//   - status_report.go: Snapshot/Status reporting and catalog refresh.
//
// External packages should use the public methods only (New, Run, Submit,
// Cancel, Status, ListModels, RefreshModels).
package orchestrator
