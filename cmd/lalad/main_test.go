package main

import (
	"context"
	"net/http"
	"testing"

	"lala/internal/logging"
	"lala/internal/testsupport"
)

func TestBuildOperationsRequiresCommands(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Tools.Renderer.Command = ""
	if _, err := buildOperations(cfg); err == nil {
		t.Fatal("expected error for missing renderer command")
	}
}

func TestBuildDaemonStartsAndServesStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	d, err := buildDaemon(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("buildDaemon: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	resp, err := http.Get("http://" + d.Addr() + "/api/status")
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
