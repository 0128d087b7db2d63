package services_test

import (
	"context"
	"testing"

	"lala/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithFileID(ctx, "file-1")
	ctx = services.WithAssetID(ctx, "asset-9")
	ctx = services.WithStage(ctx, "midi")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.FileIDFromContext(ctx); !ok || id != "file-1" {
		t.Fatalf("unexpected file id: %v %v", id, ok)
	}
	if id, ok := services.AssetIDFromContext(ctx); !ok || id != "asset-9" {
		t.Fatalf("unexpected asset id: %v %v", id, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "midi" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	ctx = services.WithFileID(ctx, "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
	if _, ok := services.FileIDFromContext(ctx); ok {
		t.Fatal("expected no file id value")
	}
}
