// Package renderer engraves a MIDI file into a PDF score by running the
// configured rendering tool.
package renderer
