package api

import (
	"sort"
	"time"

	"lala/internal/store"
	"lala/internal/workflow"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

// FromFile converts a store file into its DTO.
func FromFile(file *store.File) File {
	if file == nil {
		return File{}
	}
	dto := File{
		ID:               file.ID,
		OriginalFilename: file.OriginalFilename,
		CreatedAt:        formatTime(file.CreatedAt),
	}
	if file.TargetStage != nil {
		dto.TargetStage = string(*file.TargetStage)
	}
	return dto
}

// FromAsset converts a store asset into its DTO.
func FromAsset(asset *store.Asset) Asset {
	if asset == nil {
		return Asset{}
	}
	return Asset{
		ID:            asset.ID,
		FileID:        asset.FileID,
		ParentAssetID: asset.ParentAssetID,
		AssetType:     string(asset.Kind),
		FilePath:      asset.Path,
		Status:        string(asset.Status),
		ErrorMessage:  asset.ErrorMessage,
		CreatedAt:     formatTime(asset.CreatedAt),
		UpdatedAt:     formatTime(asset.UpdatedAt),
	}
}

// FromAssets converts a slice of assets, preserving order.
func FromAssets(assets []*store.Asset) []Asset {
	out := make([]Asset, 0, len(assets))
	for _, asset := range assets {
		out = append(out, FromAsset(asset))
	}
	return out
}

// Summarize derives the status row for a file from its assets. The active
// (Queued or Processing) asset wins over a failed one; progress is filled
// only when current is the job the worker is running.
func Summarize(file *store.File, assets []*store.Asset, current *workflow.Job) FileSummary {
	summary := FileSummary{File: FromFile(file), Assets: FromAssets(assets)}
	var active, failed *store.Asset
	for _, asset := range assets {
		completed := asset.Status == store.StatusCompleted
		switch {
		case asset.Kind == store.KindOriginal:
			summary.HasOriginal = true
		case asset.Kind == store.KindStemPiano && completed:
			summary.HasStems = true
		case asset.Kind == store.KindMidi && completed:
			summary.HasMidi = true
		case asset.Kind == store.KindPdf && completed:
			summary.HasPdf = true
		}
		if active == nil && asset.Status.InFlight() {
			active = asset
		}
		if failed == nil && asset.Status == store.StatusFailed {
			failed = asset
		}
	}
	switch {
	case active != nil:
		summary.CurrentStatus = string(active.Status)
		summary.CurrentAssetType = string(active.Kind)
		if active.Status == store.StatusProcessing && current != nil && current.AssetID == active.ID {
			summary.CurrentProgress = current.Progress
		}
	case failed != nil:
		summary.CurrentStatus = string(store.StatusFailed)
		summary.CurrentAssetType = string(failed.Kind)
		summary.ErrorMessage = failed.ErrorMessage
	}
	return summary
}

// FromJob converts a worker job into its DTO.
func FromJob(job *workflow.Job) *Job {
	if job == nil {
		return nil
	}
	return &Job{
		AssetID:   job.AssetID,
		FileID:    job.FileID,
		AssetType: string(job.Kind),
		StartedAt: formatTime(job.StartedAt),
		Progress:  job.Progress,
		Message:   job.Message,
		Outcome:   job.Outcome,
	}
}

// FromWorkerStatus converts the worker summary, listing every status.
func FromWorkerStatus(summary workflow.StatusSummary) WorkerStatus {
	stats := make(map[string]int, len(store.AllStatuses()))
	for _, status := range store.AllStatuses() {
		stats[string(status)] = summary.AssetStats[status]
	}
	return WorkerStatus{
		Running:    summary.Running,
		Processed:  summary.Processed,
		LastError:  summary.LastError,
		CurrentJob: FromJob(summary.CurrentJob),
		LastJob:    FromJob(summary.LastJob),
		AssetStats: stats,
	}
}

// SortDependencies orders dependency rows by name.
func SortDependencies(deps []DependencyStatus) []DependencyStatus {
	sort.Slice(deps, func(i, j int) bool { return deps[i].Name < deps[j].Name })
	return deps
}
