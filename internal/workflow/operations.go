package workflow

import (
	"context"

	"lala/internal/services/toolexec"
)

// Separator splits a recording into named stems.
type Separator interface {
	Separate(ctx context.Context, inputPath, outputDir string, onProgress toolexec.ProgressFunc) (map[string]string, error)
}

// Transcriber converts a piano stem to MIDI.
type Transcriber interface {
	Transcribe(ctx context.Context, inputPath, outputPath string, onProgress toolexec.ProgressFunc) error
}

// Renderer converts MIDI to a PDF score.
type Renderer interface {
	Render(ctx context.Context, inputPath, outputPath string, onProgress toolexec.ProgressFunc) error
}

// Operations bundles the external operations the worker dispatches to.
type Operations struct {
	Separator   Separator
	Transcriber Transcriber
	Renderer    Renderer
}
