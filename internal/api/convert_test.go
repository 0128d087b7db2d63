package api

import (
	"testing"
	"time"

	"lala/internal/store"
	"lala/internal/workflow"
)

func TestSummarizeFailedAndProgress(t *testing.T) {
	stage := store.StagePdf
	file := &store.File{ID: "f", OriginalFilename: "song.wav", CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 6_000_000, time.UTC), TargetStage: &stage}
	assets := []*store.Asset{
		{ID: "o", FileID: "f", Kind: store.KindOriginal, Status: store.StatusCompleted},
		{ID: "p", FileID: "f", Kind: store.KindStemPiano, Status: store.StatusCompleted},
		{ID: "m", FileID: "f", Kind: store.KindMidi, Status: store.StatusFailed, ErrorMessage: "boom"},
	}

	failed := Summarize(file, assets, nil)
	if failed.CurrentStatus != "failed" || failed.CurrentAssetType != "midi" || failed.ErrorMessage != "boom" {
		t.Fatalf("unexpected failed summary %+v", failed)
	}
	if failed.CreatedAt != "2026-01-02T03:04:05.006Z" || failed.TargetStage != "pdf" {
		t.Fatalf("unexpected file fields %+v", failed.File)
	}

	assets = append(assets, &store.Asset{ID: "x", FileID: "f", Kind: store.KindPdf, Status: store.StatusProcessing})
	running := Summarize(file, assets, &workflow.Job{AssetID: "x", Progress: 0.4})
	if running.CurrentStatus != "processing" || running.CurrentProgress != 0.4 || running.ErrorMessage != "" {
		t.Fatalf("active asset should win over failure, got %+v", running)
	}
	if !running.HasStems || running.HasMidi || running.HasPdf {
		t.Fatalf("unexpected has flags %+v", running)
	}
}

func TestFromWorkerStatusFillsAllStatuses(t *testing.T) {
	status := FromWorkerStatus(workflow.StatusSummary{AssetStats: map[store.Status]int{store.StatusQueued: 2}})
	if len(status.AssetStats) != len(store.AllStatuses()) || status.AssetStats["queued"] != 2 || status.AssetStats["failed"] != 0 {
		t.Fatalf("unexpected stats %v", status.AssetStats)
	}
}
