package progress

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"lala/internal/store"
)

// Event titles emitted by the worker.
const (
	TitleProcessing   = "processing"
	TitleSeparating   = "separating"
	TitleTranscribing = "transcribing"
	TitleConverting   = "converting"
	TitleCompleted    = "completed"
	TitleFailed       = "failed"
)

// Event reports the state of one running job.
type Event struct {
	FileID      string          `json:"file_id"`
	AssetID     string          `json:"asset_id"`
	AssetKind   store.AssetKind `json:"asset_type"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Progress    float64         `json:"progress"`
	// ReachedStage is set on the Completed event of the job that satisfied
	// the file's target stage.
	ReachedStage store.Stage `json:"reached_stage,omitempty"`
	Timestamp    time.Time   `json:"timestamp"`
}

// Terminal reports whether the event closes out its job.
func (e Event) Terminal() bool {
	return e.Title == TitleCompleted || e.Title == TitleFailed
}

// TitleForKind returns the running-phase title for a job of kind.
func TitleForKind(kind store.AssetKind) string {
	switch kind {
	case store.KindOriginal:
		return TitleSeparating
	case store.KindMidi:
		return TitleTranscribing
	case store.KindPdf:
		return TitleConverting
	default:
		return TitleProcessing
	}
}

// Label renders a title or stage name for display ("stem_piano" -> "Stem Piano").
func Label(value string) string {
	value = strings.TrimSpace(strings.ReplaceAll(value, "_", " "))
	if value == "" {
		return ""
	}
	// Casers carry state and must not be shared between goroutines.
	return cases.Title(language.English).String(value)
}

// Clamp bounds a fraction to [0,1].
func Clamp(fraction float64) float64 {
	switch {
	case fraction != fraction:
		return 0
	case fraction < 0:
		return 0
	case fraction > 1:
		return 1
	default:
		return fraction
	}
}
