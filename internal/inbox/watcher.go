package inbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"lala/internal/api"
	"lala/internal/config"
	"lala/internal/fileutil"
	"lala/internal/logging"
	"lala/internal/services"
)

const (
	importedDir = "imported"
	rejectedDir = "rejected"
)

// Commands is the part of the command surface the watcher drives.
type Commands interface {
	Upload(ctx context.Context, sourcePath, filename string) (api.File, error)
	RequestStage(ctx context.Context, fileID, stage string) (api.StageResult, error)
}

// Watcher imports recordings dropped into the inbox directory.
type Watcher struct {
	dir       string
	autoStage string
	settle    time.Duration
	commands  Commands
	permitted func(ext string) bool
	logger    *slog.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
	sizes   map[string]int64
	wg      sync.WaitGroup
}

// New builds a watcher from the inbox configuration.
func New(cfg *config.Config, commands Commands, logger *slog.Logger) *Watcher {
	settle := time.Duration(cfg.Inbox.SettleMs) * time.Millisecond
	if settle <= 0 {
		settle = time.Second
	}
	return &Watcher{
		dir:       cfg.Paths.InboxDir,
		autoStage: strings.TrimSpace(cfg.Inbox.AutoStage),
		settle:    settle,
		commands:  commands,
		permitted: cfg.ExtensionPermitted,
		logger:    logging.NewComponentLogger(logger, "inbox"),
		pending:   make(map[string]*time.Timer),
		sizes:     make(map[string]int64),
	}
}

// Run watches until ctx is cancelled. Files already present are imported
// first.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create inbox: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watch inbox: %w", err)
	}
	w.logger.Info("inbox watching", logging.String(logging.FieldEventType, "inbox_started"), logging.String("dir", w.dir))

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("scan inbox: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			w.schedule(ctx, filepath.Join(w.dir, entry.Name()))
		}
	}

	defer w.stopPending()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.schedule(ctx, event.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.WarnWithContext(w.logger, "inbox watcher error", "inbox_watch_error",
				logging.Error(err),
				logging.String(logging.FieldImpact, "some drops may be missed until restart"),
			)
		}
	}
}

func (w *Watcher) schedule(ctx context.Context, path string) {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") || filepath.Dir(path) != filepath.Clean(w.dir) {
		return
	}
	if !w.permitted(strings.TrimPrefix(filepath.Ext(name), ".")) {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.pending[path]; ok {
		timer.Reset(w.settle)
		return
	}
	w.pending[path] = time.AfterFunc(w.settle, func() {
		w.settled(ctx, path)
	})
}

// settled fires after a quiet period. A file still growing is rescheduled.
func (w *Watcher) settled(ctx context.Context, path string) {
	info, err := os.Stat(path)
	w.mu.Lock()
	if _, ok := w.pending[path]; !ok {
		w.mu.Unlock()
		return
	}
	if err != nil {
		delete(w.pending, path)
		delete(w.sizes, path)
		w.mu.Unlock()
		return
	}
	if last, seen := w.sizes[path]; !seen || last != info.Size() {
		w.sizes[path] = info.Size()
		if timer, ok := w.pending[path]; ok {
			timer.Reset(w.settle)
		}
		w.mu.Unlock()
		return
	}
	delete(w.pending, path)
	delete(w.sizes, path)
	w.wg.Add(1)
	w.mu.Unlock()

	defer w.wg.Done()
	if ctx.Err() != nil {
		return
	}
	w.importFile(ctx, path)
}

func (w *Watcher) importFile(ctx context.Context, path string) {
	name := filepath.Base(path)
	logger := w.logger.With(logging.String("filename", name))

	file, err := w.commands.Upload(ctx, path, name)
	if err != nil {
		if services.IsClientError(err) {
			logging.WarnWithContext(logger, "inbox file rejected", "inbox_rejected",
				logging.Error(err),
				logging.String(logging.FieldImpact, "file moved to rejected/"),
				logging.String(logging.FieldErrorHint, services.ErrorHint(err)),
			)
			w.park(logger, path, rejectedDir)
			return
		}
		logging.ErrorWithContext(logger, "inbox import failed", "inbox_import_failed", logging.Error(err))
		return
	}
	w.park(logger, path, importedDir)

	ctx = services.WithFileID(ctx, file.ID)
	logger = logging.WithContext(ctx, logger)
	logger.Info("inbox file imported", logging.String(logging.FieldEventType, "inbox_imported"))
	if w.autoStage == "" {
		return
	}
	if _, err := w.commands.RequestStage(ctx, file.ID, w.autoStage); err != nil {
		logging.WarnWithContext(logger, "auto stage request failed", "inbox_auto_stage_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "file uploaded but not queued"),
		)
	}
}

func (w *Watcher) park(logger *slog.Logger, path, sub string) {
	dest := filepath.Join(w.dir, sub, filepath.Base(path))
	if _, err := os.Stat(dest); err == nil {
		dest = filepath.Join(w.dir, sub, fmt.Sprintf("%d-%s", time.Now().UnixNano(), filepath.Base(path)))
	}
	if err := fileutil.MoveFile(path, dest); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("move inbox file failed", logging.Error(err), logging.String("destination", dest))
	}
}

func (w *Watcher) stopPending() {
	w.mu.Lock()
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()
	w.wg.Wait()
}
