package transcriber

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"lala/internal/config"
	"lala/internal/services"
	"lala/internal/services/toolexec"
)

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec toolexec.Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// Client wraps the transcription tool.
type Client struct {
	tool *toolexec.Tool
	exec toolexec.Executor
}

// New constructs a transcription client from tool configuration.
func New(cfg config.Tool, opts ...Option) (*Client, error) {
	client := &Client{exec: toolexec.CommandExecutor{}}
	for _, opt := range opts {
		opt(client)
	}
	tool, err := toolexec.NewTool("transcriber", cfg, client.exec)
	if err != nil {
		return nil, err
	}
	client.tool = tool
	return client, nil
}

// Transcribe writes a MIDI transcription of inputPath to outputPath.
func (c *Client) Transcribe(ctx context.Context, inputPath, outputPath string, onProgress toolexec.ProgressFunc) error {
	if inputPath == "" || outputPath == "" {
		return services.Wrap(services.ErrValidation, "transcriber", "transcribe", "input and output paths required", nil)
	}
	if _, err := os.Stat(inputPath); err != nil {
		return services.Wrap(services.ErrExternalTool, "transcriber", "transcribe", "input stem unavailable", err)
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	vars := map[string]string{
		toolexec.VarInput:     inputPath,
		toolexec.VarOutput:    outputPath,
		toolexec.VarOutputDir: filepath.Dir(outputPath),
	}
	if err := c.tool.Run(ctx, vars, onProgress); err != nil {
		return err
	}
	return c.tool.RequireOutput(outputPath)
}
