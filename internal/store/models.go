package store

import (
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle of an asset.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

var allStatuses = []Status{
	StatusQueued,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

// AllStatuses returns every known status in lifecycle order.
func AllStatuses() []Status {
	return append([]Status(nil), allStatuses...)
}

// ParseStatus converts a persisted or user supplied value into a Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// InFlight reports whether the status counts against the one-job-per-file rule.
func (s Status) InFlight() bool {
	return s == StatusQueued || s == StatusProcessing
}

// Rerunnable reports whether the planner may move the asset back to Queued.
func (s Status) Rerunnable() bool {
	return s == StatusFailed || s == StatusCancelled
}

// AssetKind enumerates the artifacts a file can own.
type AssetKind string

const (
	KindOriginal   AssetKind = "original"
	KindStemPiano  AssetKind = "stem_piano"
	KindStemVocals AssetKind = "stem_vocals"
	KindStemDrums  AssetKind = "stem_drums"
	KindStemBass   AssetKind = "stem_bass"
	KindMidi       AssetKind = "midi"
	KindPdf        AssetKind = "pdf"
)

var allKinds = []AssetKind{
	KindOriginal,
	KindStemPiano,
	KindStemVocals,
	KindStemDrums,
	KindStemBass,
	KindMidi,
	KindPdf,
}

// ParseAssetKind converts a persisted value into an AssetKind.
func ParseAssetKind(value string) (AssetKind, bool) {
	normalized := AssetKind(strings.ToLower(strings.TrimSpace(value)))
	for _, kind := range allKinds {
		if kind == normalized {
			return kind, true
		}
	}
	return "", false
}

// IsStem reports whether the kind is a separation output.
func (k AssetKind) IsStem() bool {
	switch k {
	case KindStemPiano, KindStemVocals, KindStemDrums, KindStemBass:
		return true
	default:
		return false
	}
}

// StemKinds lists the separation outputs in display order.
func StemKinds() []AssetKind {
	return []AssetKind{KindStemPiano, KindStemVocals, KindStemDrums, KindStemBass}
}

// FileName returns the on-disk name for an asset of this kind. The original
// keeps the extension of the uploaded recording.
func (k AssetKind) FileName(sourceExt string) string {
	switch k {
	case KindOriginal:
		ext := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(sourceExt), "."))
		if ext == "" {
			ext = "wav"
		}
		return "original." + ext
	case KindStemPiano, KindStemVocals, KindStemDrums, KindStemBass:
		return string(k) + ".wav"
	case KindMidi:
		return "midi.mid"
	case KindPdf:
		return "pdf.pdf"
	default:
		return string(k)
	}
}

// Stage is a user-requestable pipeline step.
type Stage string

const (
	StageStems Stage = "stems"
	StageMidi  Stage = "midi"
	StagePdf   Stage = "pdf"
)

var stageOrder = []Stage{StageStems, StageMidi, StagePdf}

// Stages returns every stage in pipeline order.
func Stages() []Stage {
	return append([]Stage(nil), stageOrder...)
}

// ParseStage validates a stage name.
func ParseStage(value string) (Stage, error) {
	normalized := Stage(strings.ToLower(strings.TrimSpace(value)))
	for _, stage := range stageOrder {
		if stage == normalized {
			return stage, nil
		}
	}
	return "", fmt.Errorf("unknown stage %q (want stems, midi or pdf)", value)
}

// Rank orders stages; unknown stages rank -1.
func (s Stage) Rank() int {
	for i, stage := range stageOrder {
		if stage == s {
			return i
		}
	}
	return -1
}

// OutputKind is the asset kind whose completion satisfies the stage.
func (s Stage) OutputKind() AssetKind {
	switch s {
	case StageStems:
		return KindStemPiano
	case StageMidi:
		return KindMidi
	case StagePdf:
		return KindPdf
	default:
		return ""
	}
}

// File is one uploaded source recording.
type File struct {
	ID               string    `json:"id"`
	OriginalFilename string    `json:"original_filename"`
	CreatedAt        time.Time `json:"created_at"`
	TargetStage      *Stage    `json:"target_stage,omitempty"`
}

// Asset is one artifact owned by a file.
type Asset struct {
	ID            string    `json:"id"`
	FileID        string    `json:"file_id"`
	ParentAssetID string    `json:"parent_asset_id,omitempty"`
	Kind          AssetKind `json:"asset_type"`
	Path          string    `json:"file_path"`
	Status        Status    `json:"status"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewAsset describes an asset to insert. ID is generated when empty.
type NewAsset struct {
	ID            string
	FileID        string
	ParentAssetID string
	Kind          AssetKind
	Path          string
	Status        Status
}

// CancelResult reports what CancelFileProcessing changed.
type CancelResult struct {
	Deleted   int64 `json:"deleted"`
	Cancelled int64 `json:"cancelled"`
}
