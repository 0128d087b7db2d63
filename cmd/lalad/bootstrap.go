package main

import (
	"fmt"
	"log/slog"

	"lala/internal/api"
	"lala/internal/config"
	"lala/internal/daemon"
	"lala/internal/export"
	"lala/internal/planner"
	"lala/internal/progress"
	"lala/internal/services/renderer"
	"lala/internal/services/separator"
	"lala/internal/services/transcriber"
	"lala/internal/store"
	"lala/internal/workflow"
)

// progressBuffer is the per-subscriber event buffer of the progress hub.
const progressBuffer = 256

func buildOperations(cfg *config.Config) (workflow.Operations, error) {
	sep, err := separator.New(cfg.Tools.Separator)
	if err != nil {
		return workflow.Operations{}, fmt.Errorf("separator: %w", err)
	}
	trans, err := transcriber.New(cfg.Tools.Transcriber)
	if err != nil {
		return workflow.Operations{}, fmt.Errorf("transcriber: %w", err)
	}
	rend, err := renderer.New(cfg.Tools.Renderer)
	if err != nil {
		return workflow.Operations{}, fmt.Errorf("renderer: %w", err)
	}
	return workflow.Operations{Separator: sep, Transcriber: trans, Renderer: rend}, nil
}

func buildDaemon(cfg *config.Config, logger *slog.Logger) (*daemon.Daemon, error) {
	ops, err := buildOperations(cfg)
	if err != nil {
		return nil, err
	}
	exporter, err := export.New(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}

	st, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	hub := progress.NewHub(progressBuffer)
	pl := planner.New(st, cfg.FilesDir(), logger)
	mgr := workflow.NewManager(cfg, st, pl, ops, hub, logger)
	svc := api.NewService(cfg, st, pl, logger,
		api.WithExporter(exporter),
		api.WithJobReporter(mgr),
	)

	d, err := daemon.New(cfg, logger, daemon.Components{
		Store:    st,
		Workflow: mgr,
		Service:  svc,
		Hub:      hub,
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return d, nil
}
