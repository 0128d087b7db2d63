// Package daemon coordinates the long-running lala process.
//
// It wires configuration, the artifact store, the planner, the worker loop,
// the HTTP command surface and the inbox watcher into a single lifecycle with
// flock-based locking to prevent multiple instances. Interrupted jobs are
// recovered before the worker starts and before any command is served.
//
// Keep orchestration logic here: pipeline rules live in planner and workflow
// while the daemon focuses on startup, shutdown, and transport.
package daemon
