package inbox_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"lala/internal/api"
	"lala/internal/inbox"
	"lala/internal/logging"
	"lala/internal/services"
	"lala/internal/testsupport"
)

type recordingCommands struct {
	mu      sync.Mutex
	uploads []string
	stages  []string
	reject  bool
}

func (r *recordingCommands) Upload(_ context.Context, sourcePath, filename string) (api.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reject {
		return api.File{}, services.Wrap(services.ErrValidation, "api", "upload", "bad file", nil)
	}
	if _, err := os.Stat(sourcePath); err != nil {
		return api.File{}, err
	}
	r.uploads = append(r.uploads, filename)
	return api.File{ID: "file-" + filename}, nil
}

func (r *recordingCommands) RequestStage(_ context.Context, fileID, stage string) (api.StageResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, fileID+":"+stage)
	return api.StageResult{FileID: fileID, Stage: stage}, nil
}

func (r *recordingCommands) snapshot() ([]string, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.uploads...), append([]string(nil), r.stages...)
}

func runWatcher(t *testing.T, w *inbox.Watcher) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	return func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Run: %v", err)
		}
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestWatcherImportsExistingAndNewFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithInbox("midi"))
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.InboxDir, "early.wav"), 128)
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.InboxDir, "notes.txt"), 8)

	commands := &recordingCommands{}
	stop := runWatcher(t, inbox.New(cfg, commands, logging.NewNop()))
	defer stop()

	time.Sleep(50 * time.Millisecond)
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.InboxDir, "late.flac"), 256)

	waitFor(t, func() bool {
		uploads, _ := commands.snapshot()
		return len(uploads) == 2
	})
	uploads, stages := commands.snapshot()
	if len(stages) != 2 || stages[0] != "file-"+uploads[0]+":midi" {
		t.Fatalf("expected auto stage per upload, got %v", stages)
	}
	waitFor(t, func() bool {
		_, err := os.Stat(filepath.Join(cfg.Paths.InboxDir, "imported", "late.flac"))
		return err == nil
	})
	if _, err := os.Stat(filepath.Join(cfg.Paths.InboxDir, "notes.txt")); err != nil {
		t.Fatalf("unsupported files should be left alone: %v", err)
	}
}

func TestWatcherParksRejectedFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithInbox(""))
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.InboxDir, "broken.wav"), 16)

	commands := &recordingCommands{reject: true}
	stop := runWatcher(t, inbox.New(cfg, commands, logging.NewNop()))
	defer stop()

	waitFor(t, func() bool {
		_, err := os.Stat(filepath.Join(cfg.Paths.InboxDir, "rejected", "broken.wav"))
		return err == nil
	})
	_, stages := commands.snapshot()
	if len(stages) != 0 {
		t.Fatalf("rejected uploads must not request stages, got %v", stages)
	}
}
