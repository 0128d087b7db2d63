package workflow_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"lala/internal/config"
	"lala/internal/logging"
	"lala/internal/planner"
	"lala/internal/progress"
	"lala/internal/services/toolexec"
	"lala/internal/store"
	"lala/internal/testsupport"
	"lala/internal/workflow"
)

type stubSeparator struct {
	mu     sync.Mutex
	names  []string
	err    error
	during func(ctx context.Context)
	calls  int
}

func (s *stubSeparator) Separate(ctx context.Context, inputPath, outputDir string, onProgress toolexec.ProgressFunc) (map[string]string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if _, err := os.Stat(inputPath); err != nil {
		return nil, err
	}
	if onProgress != nil {
		onProgress(0.5, "splitting")
	}
	if s.during != nil {
		s.during(ctx)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if s.err != nil {
		return nil, s.err
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(s.names))
	for _, name := range s.names {
		path := filepath.Join(outputDir, name+".wav")
		if err := os.WriteFile(path, []byte(name), 0o644); err != nil {
			return nil, err
		}
		out[name] = path
	}
	return out, nil
}

func (s *stubSeparator) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// stubConverter stands in for both transcription and rendering.
type stubConverter struct {
	err    error
	during func(ctx context.Context)
	inputs []string
}

func (s *stubConverter) run(ctx context.Context, inputPath, outputPath string, onProgress toolexec.ProgressFunc) error {
	s.inputs = append(s.inputs, inputPath)
	if onProgress != nil {
		onProgress(1, "")
	}
	if s.during != nil {
		s.during(ctx)
	}
	if s.err != nil {
		return s.err
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(outputPath, []byte("out"), 0o644)
}

func (s *stubConverter) Transcribe(ctx context.Context, in, out string, onProgress toolexec.ProgressFunc) error {
	return s.run(ctx, in, out, onProgress)
}

func (s *stubConverter) Render(ctx context.Context, in, out string, onProgress toolexec.ProgressFunc) error {
	return s.run(ctx, in, out, onProgress)
}

type harness struct {
	cfg         *config.Config
	store       *store.Store
	planner     *planner.Planner
	hub         *progress.Hub
	separator   *stubSeparator
	transcriber *stubConverter
	renderer    *stubConverter
	manager     *workflow.Manager
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	h := &harness{
		cfg:         cfg,
		store:       st,
		planner:     planner.New(st, cfg.FilesDir(), logging.NewNop()),
		hub:         progress.NewHub(256),
		separator:   &stubSeparator{names: []string{"vocals", "drums", "bass", "other"}},
		transcriber: &stubConverter{},
		renderer:    &stubConverter{},
	}
	h.manager = workflow.NewManager(cfg, st, h.planner, workflow.Operations{
		Separator:   h.separator,
		Transcriber: h.transcriber,
		Renderer:    h.renderer,
	}, h.hub, logging.NewNop())
	return h
}

// drain runs jobs until the queue is empty.
func (h *harness) drain(t *testing.T) int {
	t.Helper()
	ran := 0
	for i := 0; i < 20; i++ {
		ok, err := h.manager.RunOnce(context.Background())
		if err != nil {
			t.Fatalf("RunOnce: %v", err)
		}
		if !ok {
			return ran
		}
		ran++
		testsupport.AssertSingleInFlight(t, h.store)
	}
	t.Fatal("queue did not drain")
	return ran
}

func (h *harness) asset(t *testing.T, id string) *store.Asset {
	t.Helper()
	asset, err := h.store.GetAsset(context.Background(), id)
	if err != nil {
		t.Fatalf("GetAsset: %v", err)
	}
	if asset == nil {
		t.Fatalf("asset %s missing", id)
	}
	return asset
}

func (h *harness) target(t *testing.T, fileID string) *store.Stage {
	t.Helper()
	target, err := h.store.TargetStage(context.Background(), fileID)
	if err != nil {
		t.Fatalf("TargetStage: %v", err)
	}
	return target
}

var errToolCrashed = errors.New("tool crashed: exit status 3")
