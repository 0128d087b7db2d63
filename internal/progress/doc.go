// Package progress carries per-job progress events from the worker to
// anything that wants to watch them, such as the websocket stream.
//
// Delivery is best effort: a subscriber that cannot keep up loses events
// rather than slowing the worker.
package progress
