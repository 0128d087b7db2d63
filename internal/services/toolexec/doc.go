// Package toolexec runs the external command-line tools behind separation,
// transcription and rendering, and parses the progress lines they print.
package toolexec
