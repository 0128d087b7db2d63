// Package api is the command surface shared by the HTTP server, the inbox
// watcher and the CLI client.
//
// Service validates input, delegates lifecycle changes to the planner, and
// returns transport-friendly DTOs. Errors carry the services markers
// (ErrValidation, ErrNotFound, ErrConflict) so transports can map them to
// status codes without inspecting messages.
//
// DTOs use snake_case JSON tags; enums are exposed as lowercase strings and
// timestamps as RFC3339 with milliseconds.
package api
