// Package services defines shared utilities consumed by the worker loop, the
// command surface and the external tool clients.
//
// Key responsibilities:
//   - Context helpers that stamp file IDs, asset IDs, stage names, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper so callers can classify
//     failures (validation, not found, conflict, external tool) with errors.Is.
//
// Subpackages hold the thin clients for separation, transcription and
// rendering, and the command executor they share.
package services
