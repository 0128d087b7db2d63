package toolexec

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"lala/internal/config"
	"lala/internal/services"
)

// Placeholder names available in tool argument templates.
const (
	VarInput     = "input"
	VarOutput    = "output"
	VarOutputDir = "output_dir"
	VarModel     = "model"
)

// ProgressFunc receives a fraction in [0,1] and an optional message.
type ProgressFunc func(fraction float64, message string)

// Tool is one configured external command.
type Tool struct {
	name    string
	command string
	args    []string
	model   string
	timeout time.Duration
	exec    Executor
}

// NewTool validates cfg and binds it to an executor. name labels errors.
func NewTool(name string, cfg config.Tool, exec Executor) (*Tool, error) {
	command := strings.TrimSpace(cfg.Command)
	if command == "" {
		return nil, services.Wrap(services.ErrConfiguration, name, "init", "command required", nil)
	}
	if exec == nil {
		exec = CommandExecutor{}
	}
	return &Tool{
		name:    name,
		command: command,
		args:    append([]string(nil), cfg.Args...),
		model:   strings.TrimSpace(cfg.ModelPath),
		timeout: cfg.Timeout(),
		exec:    exec,
	}, nil
}

// Name returns the label the tool was created with.
func (t *Tool) Name() string { return t.name }

// Command returns the configured binary.
func (t *Tool) Command() string { return t.command }

// Run executes the tool with vars substituted into its arguments. Progress
// lines are forwarded to onProgress; other output is discarded. Cancellation
// of ctx is returned as-is so callers can tell shutdown from failure.
func (t *Tool) Run(ctx context.Context, vars map[string]string, onProgress ProgressFunc) error {
	merged := map[string]string{VarModel: t.model}
	for key, value := range vars {
		merged[key] = value
	}
	args := ExpandArgs(t.args, merged)

	runCtx := ctx
	if t.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	err := t.exec.Run(runCtx, t.command, args, func(line string) {
		fraction, message, ok := ParseProgress(line)
		if ok && onProgress != nil {
			onProgress(fraction, message)
		}
	})
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, t.name, "run", fmt.Sprintf("%s exceeded %s", t.command, t.timeout), err)
	}
	return services.Wrap(services.ErrExternalTool, t.name, "run", t.command+" failed", err)
}

// RequireOutput confirms the tool left a non-empty file at path.
func (t *Tool) RequireOutput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, t.name, "verify output", "expected output missing", err)
	}
	if info.IsDir() || info.Size() == 0 {
		return services.Wrap(services.ErrExternalTool, t.name, "verify output", path+" is empty", nil)
	}
	return nil
}
