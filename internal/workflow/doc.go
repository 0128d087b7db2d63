// Package workflow runs queued assets through the external operations.
//
// The Manager owns a single worker goroutine. It claims the globally oldest
// Queued asset, runs the operation for its kind (separation for the
// original, transcription for midi, rendering for pdf), persists the outcome
// with compare-and-set writes, and asks the planner to enqueue the next step
// toward the file's target stage. Only one job runs at a time across all
// files.
//
// Cancellation is state based: a cancel command flips the asset to Cancelled
// while the operation keeps running, and the worker drops the late result
// when its write finds the asset no longer Processing. Daemon shutdown
// cancels the run context instead, leaving the asset Processing for Recover
// to reset on the next start.
package workflow
