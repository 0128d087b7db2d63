package separator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"lala/internal/config"
	"lala/internal/services"
	"lala/internal/services/toolexec"
)

var stemExtensions = map[string]struct{}{
	".wav":  {},
	".flac": {},
	".mp3":  {},
}

// Option configures the client.
type Option func(*options)

type options struct {
	exec toolexec.Executor
}

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec toolexec.Executor) Option {
	return func(o *options) {
		if exec != nil {
			o.exec = exec
		}
	}
}

// Client wraps the separation tool.
type Client struct {
	tool *toolexec.Tool
}

// New constructs a separation client from tool configuration.
func New(cfg config.Tool, opts ...Option) (*Client, error) {
	o := options{exec: toolexec.CommandExecutor{}}
	for _, opt := range opts {
		opt(&o)
	}
	tool, err := toolexec.NewTool("separator", cfg, o.exec)
	if err != nil {
		return nil, err
	}
	return &Client{tool: tool}, nil
}

// Separate runs the tool on inputPath, writing stems into outputDir, and
// returns stem name to file path. outputDir is emptied first.
func (c *Client) Separate(ctx context.Context, inputPath, outputDir string, onProgress toolexec.ProgressFunc) (map[string]string, error) {
	if strings.TrimSpace(inputPath) == "" || strings.TrimSpace(outputDir) == "" {
		return nil, services.Wrap(services.ErrValidation, "separator", "separate", "input and output directory required", nil)
	}
	if err := os.RemoveAll(outputDir); err != nil {
		return nil, fmt.Errorf("prepare output directory: %w", err)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	vars := map[string]string{
		toolexec.VarInput:     inputPath,
		toolexec.VarOutputDir: outputDir,
	}
	if err := c.tool.Run(ctx, vars, onProgress); err != nil {
		return nil, err
	}

	stems, err := collectStems(outputDir)
	if err != nil {
		return nil, err
	}
	if len(stems) == 0 {
		return nil, services.Wrap(services.ErrExternalTool, "separator", "separate", "no stems produced in "+outputDir, nil)
	}
	return stems, nil
}

// collectStems walks dir (tools commonly nest output under a model or track
// directory) and keys every audio file by its lower-cased base name.
func collectStems(dir string) (map[string]string, error) {
	stems := make(map[string]string)
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if _, ok := stemExtensions[ext]; !ok {
			return nil
		}
		name := strings.ToLower(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
		if _, seen := stems[name]; !seen {
			stems[name] = path
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan stems: %w", err)
	}
	return stems, nil
}
