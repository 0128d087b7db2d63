package planner

import (
	"fmt"

	"lala/internal/services"
	"lala/internal/store"
)

var (
	// ErrInvalidStage rejects an unknown target stage.
	ErrInvalidStage = fmt.Errorf("%w: invalid stage", services.ErrValidation)
	// ErrInFlight rejects a request while the file already has a Queued or Processing asset.
	ErrInFlight = fmt.Errorf("%w: file already has a job queued or processing", services.ErrConflict)
	// ErrMissingPrerequisite rejects a request when the original recording is absent.
	ErrMissingPrerequisite = fmt.Errorf("%w: original recording missing", services.ErrValidation)
)

// Action is the outcome of planning.
type Action int

const (
	// ActionSatisfied means the target's output already exists.
	ActionSatisfied Action = iota
	// ActionRequeue moves an existing asset back to Queued.
	ActionRequeue
	// ActionCreate inserts a new Queued asset.
	ActionCreate
)

func (a Action) String() string {
	switch a {
	case ActionSatisfied:
		return "satisfied"
	case ActionRequeue:
		return "requeue"
	case ActionCreate:
		return "create"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Decision describes the single enqueue needed to move toward a target.
type Decision struct {
	Action Action
	Kind   store.AssetKind
	// AssetID is the asset to re-queue (ActionRequeue).
	AssetID string
	// FromStatus is the status the re-queued asset is expected to hold.
	FromStatus store.Status
	// ParentID is the prerequisite the queued asset derives from. Empty for
	// the original.
	ParentID string
	// Target is the stage being worked toward. Set by RequestStage and
	// Continue.
	Target store.Stage
}

type assetIndex struct {
	assets []*store.Asset
}

func (idx assetIndex) first(kind store.AssetKind) *store.Asset {
	for _, asset := range idx.assets {
		if asset.Kind == kind {
			return asset
		}
	}
	return nil
}

func (idx assetIndex) firstCompleted(kind store.AssetKind) *store.Asset {
	for _, asset := range idx.assets {
		if asset.Kind == kind && asset.Status == store.StatusCompleted {
			return asset
		}
	}
	return nil
}

func (idx assetIndex) inFlight() *store.Asset {
	for _, asset := range idx.assets {
		if asset.Status.InFlight() {
			return asset
		}
	}
	return nil
}

// Plan computes the next enqueue for target given the file's assets ordered
// oldest first. The earliest missing prerequisite is always enqueued before
// anything downstream, and existing Failed or Cancelled assets are re-queued
// in place rather than duplicated.
func Plan(assets []*store.Asset, target store.Stage) (Decision, error) {
	if target.Rank() < 0 {
		return Decision{}, fmt.Errorf("%w %q", ErrInvalidStage, target)
	}
	idx := assetIndex{assets: assets}
	if busy := idx.inFlight(); busy != nil {
		return Decision{}, fmt.Errorf("%w (%s is %s)", ErrInFlight, busy.Kind, busy.Status)
	}

	original := idx.first(store.KindOriginal)
	if original == nil {
		return Decision{}, ErrMissingPrerequisite
	}

	piano := idx.firstCompleted(store.KindStemPiano)
	if piano == nil {
		return Decision{
			Action:     ActionRequeue,
			Kind:       store.KindOriginal,
			AssetID:    original.ID,
			FromStatus: original.Status,
		}, nil
	}
	if target == store.StageStems {
		return Decision{Action: ActionSatisfied, Kind: store.KindStemPiano}, nil
	}

	midi := idx.firstCompleted(store.KindMidi)
	if midi == nil {
		return next(idx, store.KindMidi, piano)
	}
	if target == store.StageMidi {
		return Decision{Action: ActionSatisfied, Kind: store.KindMidi}, nil
	}

	if idx.firstCompleted(store.KindPdf) == nil {
		return next(idx, store.KindPdf, midi)
	}
	return Decision{Action: ActionSatisfied, Kind: store.KindPdf}, nil
}

// next re-queues a failed or cancelled asset of kind, or creates one derived
// from parent.
func next(idx assetIndex, kind store.AssetKind, parent *store.Asset) (Decision, error) {
	existing := idx.first(kind)
	if existing == nil {
		return Decision{Action: ActionCreate, Kind: kind, ParentID: parent.ID}, nil
	}
	if !existing.Status.Rerunnable() {
		return Decision{}, fmt.Errorf("planner: %s asset %s in unexpected status %s", kind, existing.ID, existing.Status)
	}
	return Decision{
		Action:     ActionRequeue,
		Kind:       kind,
		AssetID:    existing.ID,
		FromStatus: existing.Status,
		ParentID:   parent.ID,
	}, nil
}
