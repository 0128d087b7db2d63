package toolexec_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"lala/internal/config"
	"lala/internal/services"
	"lala/internal/services/toolexec"
)

type recordingExecutor struct {
	binary string
	args   []string
	lines  []string
	err    error
	block  bool
}

func (r *recordingExecutor) Run(ctx context.Context, binary string, args []string, onLine func(string)) error {
	r.binary = binary
	r.args = args
	for _, line := range r.lines {
		onLine(line)
	}
	if r.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return r.err
}

func TestToolRunExpandsArgsAndForwardsProgress(t *testing.T) {
	exec := &recordingExecutor{lines: []string{"loading", "PROGRESS:1/2 half"}}
	tool, err := toolexec.NewTool("separator", config.Tool{
		Command:   "sep",
		Args:      []string{"-m", "{model}", "-o", "{output_dir}", "{input}"},
		ModelPath: "/models/htdemucs",
	}, exec)
	if err != nil {
		t.Fatalf("NewTool: %v", err)
	}

	var got []float64
	err = tool.Run(context.Background(), map[string]string{"input": "/in.flac", "output_dir": "/out"}, func(f float64, msg string) {
		got = append(got, f)
		if msg != "half" {
			t.Fatalf("unexpected message %q", msg)
		}
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{"-m", "/models/htdemucs", "-o", "/out", "/in.flac"}
	if exec.binary != "sep" || len(exec.args) != len(want) {
		t.Fatalf("unexpected invocation %s %v", exec.binary, exec.args)
	}
	for i := range want {
		if exec.args[i] != want[i] {
			t.Fatalf("arg %d = %q, want %q", i, exec.args[i], want[i])
		}
	}
	if len(got) != 1 || got[0] != 0.5 {
		t.Fatalf("unexpected progress %v", got)
	}
}

func TestToolRunClassifiesErrors(t *testing.T) {
	failing := &recordingExecutor{err: errors.New("exit status 1")}
	tool, _ := toolexec.NewTool("renderer", config.Tool{Command: "render"}, failing)
	if err := tool.Run(context.Background(), nil, nil); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}

	slow := &recordingExecutor{block: true}
	tool, _ = toolexec.NewTool("renderer", config.Tool{Command: "render", TimeoutSeconds: 1}, slow)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	if err := tool.Run(ctx, nil, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation to pass through, got %v", err)
	}
}

func TestNewToolRequiresCommand(t *testing.T) {
	if _, err := toolexec.NewTool("transcriber", config.Tool{}, nil); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
