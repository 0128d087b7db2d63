package testsupport

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"lala/internal/config"
	"lala/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewUploadedFile creates a file with a Completed original asset whose
// recording exists on disk, mirroring what an upload leaves behind.
func NewUploadedFile(t testing.TB, cfg *config.Config, st *store.Store, filename string) (*store.File, *store.Asset) {
	t.Helper()

	ctx := context.Background()
	id := uuid.NewString()
	file, err := st.CreateFile(ctx, id, filename)
	if err != nil {
		t.Fatalf("store.CreateFile: %v", err)
	}
	path := filepath.Join(cfg.FilesDir(), id, store.KindOriginal.FileName(filepath.Ext(filename)))
	WriteFile(t, path, 1024)
	original, err := st.CreateAsset(ctx, store.NewAsset{
		FileID: id,
		Kind:   store.KindOriginal,
		Path:   path,
		Status: store.StatusCompleted,
	})
	if err != nil {
		t.Fatalf("store.CreateAsset: %v", err)
	}
	return file, original
}

// MustCreateAsset inserts an asset or fails the test.
func MustCreateAsset(t testing.TB, st *store.Store, spec store.NewAsset) *store.Asset {
	t.Helper()

	asset, err := st.CreateAsset(context.Background(), spec)
	if err != nil {
		t.Fatalf("store.CreateAsset(%s): %v", spec.Kind, err)
	}
	return asset
}

// AssetsByKind lists a file's assets grouped by kind, oldest first.
func AssetsByKind(t testing.TB, st *store.Store, fileID string) map[store.AssetKind][]*store.Asset {
	t.Helper()

	assets, err := st.ListAssets(context.Background(), fileID)
	if err != nil {
		t.Fatalf("store.ListAssets: %v", err)
	}
	grouped := make(map[store.AssetKind][]*store.Asset)
	for _, asset := range assets {
		grouped[asset.Kind] = append(grouped[asset.Kind], asset)
	}
	return grouped
}

// AssertSingleInFlight fails the test when any file has more than one
// Queued or Processing asset.
func AssertSingleInFlight(t testing.TB, st *store.Store) {
	t.Helper()

	ctx := context.Background()
	files, err := st.ListFiles(ctx)
	if err != nil {
		t.Fatalf("store.ListFiles: %v", err)
	}
	for _, file := range files {
		assets, err := st.ListAssets(ctx, file.ID)
		if err != nil {
			t.Fatalf("store.ListAssets: %v", err)
		}
		inFlight := 0
		for _, asset := range assets {
			if asset.Status.InFlight() {
				inFlight++
			}
		}
		if inFlight > 1 {
			t.Fatalf("file %s has %d in-flight assets", file.ID, inFlight)
		}
	}
}
