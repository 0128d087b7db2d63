// Package main hosts the lala CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into HTTP
// calls against the daemon: uploading recordings, requesting pipeline stages,
// cancelling and deleting work, exporting artifacts, and watching progress.
// It centralizes configuration resolution and API address discovery so
// subcommands can focus on presentation.
//
// Keep this package lean: add new functionality to the internal packages
// first, then surface it through dedicated commands or flags here.
package main
