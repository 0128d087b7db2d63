package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"lala/internal/api"
	"lala/internal/config"
	"lala/internal/inbox"
	"lala/internal/logging"
	"lala/internal/notifications"
	"lala/internal/preflight"
	"lala/internal/progress"
	"lala/internal/store"
	"lala/internal/workflow"
)

// Version is reported by the status endpoint. Overridden at build time.
var Version = "dev"

// Components are the collaborators the daemon runs.
type Components struct {
	Store    *store.Store
	Workflow *workflow.Manager
	Service  *api.Service
	Hub      *progress.Hub
}

// Daemon coordinates the background processing services and enforces
// single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	workflow *workflow.Manager
	service  *api.Service
	hub      *progress.Hub
	api      *apiServer

	lockPath string
	lock     *flock.Flock

	mu      sync.Mutex
	running atomic.Bool
	cancel  context.CancelFunc
	group   *errgroup.Group

	infoMu    sync.RWMutex
	startedAt time.Time
	recovered int64
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, logger *slog.Logger, c Components) (*Daemon, error) {
	if cfg == nil || logger == nil || c.Store == nil || c.Workflow == nil || c.Service == nil {
		return nil, errors.New("daemon requires config, logger, store, workflow manager, and service")
	}
	if c.Hub == nil {
		c.Hub = progress.NewHub(0)
	}
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    c.Store,
		workflow: c.Workflow,
		service:  c.Service,
		hub:      c.Hub,
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, recovers interrupted jobs, and launches the
// worker, the API server and the inbox watcher.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := preflight.Failures(preflight.RunAll(d.cfg)); err != nil {
		return fmt.Errorf("preflight: %w", err)
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another lala daemon instance is already running")
	}

	recovered, err := workflow.Recover(ctx, d.store, d.logger)
	if err != nil {
		_ = d.lock.Unlock()
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.workflow.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}

	group, groupCtx := errgroup.WithContext(runCtx)
	if err := d.api.start(groupCtx, group); err != nil {
		cancel()
		d.workflow.Stop()
		_ = d.lock.Unlock()
		return err
	}
	if d.cfg.Inbox.Enabled {
		watcher := inbox.New(d.cfg, d.service, d.logger)
		group.Go(func() error {
			return watcher.Run(groupCtx)
		})
	}
	if notifier := notifications.NewNotifier(d.cfg); notifications.Enabled(notifier) {
		relay := notifications.NewRelay(d.hub, d.store, notifier, d.logger)
		group.Go(func() error {
			return relay.Run(groupCtx)
		})
	}

	d.cancel = cancel
	d.group = group
	d.infoMu.Lock()
	d.recovered = recovered
	d.startedAt = time.Now()
	d.infoMu.Unlock()
	d.running.Store(true)
	d.logger.Info("lala daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api", d.api.address()),
		logging.Int64("recovered", recovered),
	)
	return nil
}

// Wait blocks until a supervised goroutine fails or the daemon stops.
func (d *Daemon) Wait() error {
	d.mu.Lock()
	group := d.group
	d.mu.Unlock()
	if group == nil {
		return nil
	}
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.workflow.Stop()
	if d.group != nil {
		if err := d.group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Warn("supervised task ended with error", logging.Error(err))
		}
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("lala daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Addr returns the address the API server listens on.
func (d *Daemon) Addr() string {
	return d.api.address()
}

// Running reports whether Start succeeded and Stop has not been called.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) api.DaemonStatus {
	d.infoMu.RLock()
	startedAt := d.startedAt
	recovered := d.recovered
	d.infoMu.RUnlock()

	tools := preflight.CheckTools(d.cfg)
	deps := make([]api.DependencyStatus, 0, len(tools))
	for _, tool := range tools {
		deps = append(deps, api.DependencyStatus{
			Name:      tool.Name,
			Command:   tool.Command,
			Available: tool.Available,
			Detail:    tool.Detail,
		})
	}
	status := api.DaemonStatus{
		PID:          os.Getpid(),
		Version:      Version,
		DatabasePath: d.cfg.DatabasePath(),
		Recovered:    recovered,
		Worker:       api.FromWorkerStatus(d.workflow.Status(ctx)),
		Dependencies: api.SortDependencies(deps),
		Subscribers:  d.hub.Subscribers(),
	}
	if !startedAt.IsZero() {
		status.StartedAt = startedAt.UTC().Format(time.RFC3339)
	}
	if health, err := d.store.CheckHealth(ctx); err != nil {
		d.logger.Warn("database health check failed", logging.Error(err))
	} else {
		status.Health = &api.DatabaseHealth{
			SizeBytes:    health.DatabaseBytes,
			Files:        health.Files,
			Integrity:    health.Integrity,
			MissingFiles: health.MissingFiles,
		}
	}
	return status
}
