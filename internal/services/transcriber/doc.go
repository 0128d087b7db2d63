// Package transcriber turns a piano stem into a MIDI file by running the
// configured transcription tool.
package transcriber
