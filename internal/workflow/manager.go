package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"lala/internal/config"
	"lala/internal/logging"
	"lala/internal/planner"
	"lala/internal/progress"
	"lala/internal/store"
)

// Manager runs the single worker loop.
type Manager struct {
	store      *store.Store
	planner    *planner.Planner
	ops        Operations
	publisher  progress.Publisher
	logger     *slog.Logger
	filesDir   string
	poll       time.Duration
	errorRetry time.Duration

	mu        sync.RWMutex
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	lastErr   error
	current   *Job
	lastJob   *Job
	processed int
}

// Job describes the asset the worker is running.
type Job struct {
	AssetID   string          `json:"asset_id"`
	FileID    string          `json:"file_id"`
	Kind      store.AssetKind `json:"asset_type"`
	StartedAt time.Time       `json:"started_at"`
	Progress  float64         `json:"progress"`
	Message   string          `json:"message,omitempty"`
	Outcome   string          `json:"outcome,omitempty"`
}

// NewManager constructs a worker. A nil publisher discards progress events.
func NewManager(cfg *config.Config, st *store.Store, pl *planner.Planner, ops Operations, publisher progress.Publisher, logger *slog.Logger) *Manager {
	if publisher == nil {
		publisher = progress.Discard{}
	}
	return &Manager{
		store:      st,
		planner:    pl,
		ops:        ops,
		publisher:  publisher,
		logger:     logging.NewComponentLogger(logger, "workflow"),
		filesDir:   cfg.FilesDir(),
		poll:       cfg.PollInterval(),
		errorRetry: cfg.ErrorRetryInterval(),
	}
}

// Start launches the worker goroutine.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if m.ops.Separator == nil || m.ops.Transcriber == nil || m.ops.Renderer == nil {
		m.mu.Unlock()
		return errors.New("workflow operations not configured")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	m.mu.Unlock()

	go m.run(runCtx)
	m.logger.Info("worker started",
		logging.String(logging.FieldEventType, "worker_started"),
		logging.Duration("poll_interval", m.poll),
	)
	return nil
}

// Stop cancels the worker and waits for it to exit. A running operation is
// interrupted and its asset stays Processing.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("worker stopped", logging.String(logging.FieldEventType, "worker_stopped"))
}

func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		ran, err := m.RunOnce(ctx)
		switch {
		case err != nil && ctx.Err() != nil:
			return
		case err != nil:
			m.handleLoopError(ctx, err)
		case !ran:
			m.wait(ctx, m.poll)
		}
	}
}

func (m *Manager) handleLoopError(ctx context.Context, err error) {
	m.setLastError(err)
	m.logger.Error("worker iteration failed",
		logging.Error(err),
		logging.String(logging.FieldEventType, "worker_store_error"),
		logging.String(logging.FieldErrorHint, "check database access; retrying"),
	)
	m.wait(ctx, m.errorRetry)
}

func (m *Manager) wait(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
