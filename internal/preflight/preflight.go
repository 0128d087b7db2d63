package preflight

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sys/unix"

	"lala/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll checks every directory the daemon writes to. The inbox is checked
// only when enabled.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Files directory", cfg.FilesDir()),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
	if cfg.Inbox.Enabled {
		results = append(results, CheckDirectoryAccess("Inbox directory", cfg.Paths.InboxDir))
	}
	return results
}

// Failures joins the failed results into one error, or nil when all passed.
func Failures(results []Result) error {
	var errs []error
	for _, r := range results {
		if !r.Passed {
			errs = append(errs, fmt.Errorf("%s: %s", r.Name, r.Detail))
		}
	}
	return errors.Join(errs...)
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// ToolStatus reports the availability of an external tool.
type ToolStatus struct {
	Name      string
	Command   string
	Available bool
	Detail    string
}

// CheckTools resolves each configured tool command on PATH. Model paths, when
// set, must exist too.
func CheckTools(cfg *config.Config) []ToolStatus {
	if cfg == nil {
		return nil
	}
	tools := []struct {
		name string
		tool config.Tool
	}{
		{"separator", cfg.Tools.Separator},
		{"transcriber", cfg.Tools.Transcriber},
		{"renderer", cfg.Tools.Renderer},
	}
	results := make([]ToolStatus, 0, len(tools))
	for _, t := range tools {
		results = append(results, checkTool(t.name, t.tool))
	}
	return results
}

func checkTool(name string, tool config.Tool) ToolStatus {
	cmd := strings.TrimSpace(tool.Command)
	status := ToolStatus{Name: name, Command: cmd}
	if cmd == "" {
		status.Detail = "command not configured"
		return status
	}
	resolved, err := exec.LookPath(cmd)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", cmd)
		return status
	}
	if model := strings.TrimSpace(tool.ModelPath); model != "" {
		if _, err := os.Stat(model); err != nil {
			status.Detail = fmt.Sprintf("model %s unavailable", model)
			return status
		}
	}
	status.Available = true
	status.Detail = resolved
	return status
}
