package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"lala/internal/logging"
	"lala/internal/services"
	"lala/internal/store"
)

// Planner applies Plan decisions to the store.
type Planner struct {
	mu       sync.Mutex
	store    *store.Store
	filesDir string
	logger   *slog.Logger
}

// New constructs a planner. filesDir is the root of the per-file artifact
// directories; new assets get "<filesDir>/<file id>/<kind file name>".
func New(st *store.Store, filesDir string, logger *slog.Logger) *Planner {
	return &Planner{
		store:    st,
		filesDir: filesDir,
		logger:   logging.NewComponentLogger(logger, "planner"),
	}
}

// RequestStage records stage as the file's target and enqueues the next job
// toward it. Validation failures (unknown stage, unknown file, work already
// in flight, original missing) leave the store untouched.
func (p *Planner) RequestStage(ctx context.Context, fileID string, stageName string) (Decision, error) {
	stage, err := store.ParseStage(stageName)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrInvalidStage, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ctx = services.WithStage(services.WithFileID(ctx, fileID), string(stage))
	logger := logging.WithContext(ctx, p.logger)

	file, err := p.store.GetFile(ctx, fileID)
	if err != nil {
		return Decision{}, err
	}
	if file == nil {
		return Decision{}, services.Wrap(services.ErrNotFound, "planner", "request stage", "unknown file "+fileID, nil)
	}
	assets, err := p.store.ListAssets(ctx, fileID)
	if err != nil {
		return Decision{}, err
	}
	decision, err := Plan(assets, stage)
	if err != nil {
		logger.Info("stage request rejected", logging.Error(err), logging.String(logging.FieldEventType, "stage_rejected"))
		return Decision{}, err
	}
	decision.Target = stage

	if decision.Action == ActionSatisfied {
		if err := p.store.SetTargetStage(ctx, fileID, nil); err != nil {
			return Decision{}, err
		}
		logger.Info("stage already satisfied", logging.String(logging.FieldEventType, "stage_satisfied"))
		return decision, nil
	}

	if err := p.store.SetTargetStage(ctx, fileID, &stage); err != nil {
		return Decision{}, err
	}
	if err := p.apply(ctx, fileID, decision); err != nil {
		if restoreErr := p.store.SetTargetStage(ctx, fileID, file.TargetStage); restoreErr != nil {
			logger.Warn("restore target stage failed", logging.Error(restoreErr))
		}
		return Decision{}, err
	}
	logger.Info("stage requested",
		logging.String(logging.FieldEventType, "stage_requested"),
		logging.String("decision", decision.Action.String()),
		logging.String(logging.FieldAssetKind, string(decision.Kind)),
	)
	return decision, nil
}

// Continue runs after a job completes. With no stored target, or while the
// file still has work in flight, it does nothing. A satisfied target is
// cleared; otherwise the next job toward it is enqueued.
func (p *Planner) Continue(ctx context.Context, fileID string) (Decision, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ctx = services.WithFileID(ctx, fileID)
	logger := logging.WithContext(ctx, p.logger)

	target, err := p.store.TargetStage(ctx, fileID)
	if err != nil {
		return Decision{}, false, err
	}
	if target == nil {
		return Decision{}, false, nil
	}
	assets, err := p.store.ListAssets(ctx, fileID)
	if err != nil {
		return Decision{}, false, err
	}
	decision, err := Plan(assets, *target)
	decision.Target = *target
	switch {
	case err == nil:
	case errors.Is(err, ErrInFlight):
		return Decision{}, false, nil
	default:
		if clearErr := p.store.SetTargetStage(ctx, fileID, nil); clearErr != nil {
			logger.Warn("clear target stage failed", logging.Error(clearErr))
		}
		return Decision{}, false, err
	}

	if decision.Action == ActionSatisfied {
		if err := p.store.SetTargetStage(ctx, fileID, nil); err != nil {
			return Decision{}, false, err
		}
		logger.Info("target stage reached",
			logging.String(logging.FieldEventType, "target_reached"),
			logging.String(logging.FieldStage, string(*target)),
		)
		return decision, true, nil
	}
	if err := p.apply(ctx, fileID, decision); err != nil {
		return Decision{}, false, err
	}
	logger.Info("continuing toward target",
		logging.String(logging.FieldEventType, "stage_continued"),
		logging.String(logging.FieldStage, string(*target)),
		logging.String("decision", decision.Action.String()),
		logging.String(logging.FieldAssetKind, string(decision.Kind)),
	)
	return decision, true, nil
}

// Cancel drops the file's target and stops its queued and running work.
func (p *Planner) Cancel(ctx context.Context, fileID string) (store.CancelResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	file, err := p.store.GetFile(ctx, fileID)
	if err != nil {
		return store.CancelResult{}, err
	}
	if file == nil {
		return store.CancelResult{}, services.Wrap(services.ErrNotFound, "planner", "cancel", "unknown file "+fileID, nil)
	}
	if err := p.store.SetTargetStage(ctx, fileID, nil); err != nil {
		return store.CancelResult{}, err
	}
	result, err := p.store.CancelFileProcessing(ctx, fileID)
	if err != nil {
		return store.CancelResult{}, err
	}
	logging.WithContext(services.WithFileID(ctx, fileID), p.logger).Info("file processing cancelled",
		logging.String(logging.FieldEventType, "file_cancelled"),
		logging.Int64("deleted", result.Deleted),
		logging.Int64("cancelled", result.Cancelled),
	)
	return result, nil
}

// RecordFailure marks a Processing asset Failed and drops the file's target
// under the planner lock, so a stage request cannot land between the two
// writes. It reports false, touching nothing, when the asset is no longer
// Processing.
func (p *Planner) RecordFailure(ctx context.Context, asset *store.Asset, message string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	failed, err := p.store.TransitionStatus(ctx, asset.ID, store.StatusProcessing, store.StatusFailed, message)
	if err != nil || !failed {
		return false, err
	}
	if err := p.store.SetTargetStage(ctx, asset.FileID, nil); err != nil {
		return true, fmt.Errorf("clear target after failure: %w", err)
	}
	return true, nil
}

func (p *Planner) apply(ctx context.Context, fileID string, decision Decision) error {
	switch decision.Action {
	case ActionSatisfied:
		return nil
	case ActionRequeue:
		ok, err := p.store.TransitionStatus(ctx, decision.AssetID, decision.FromStatus, store.StatusQueued, "")
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s asset %s changed while planning", services.ErrConflict, decision.Kind, decision.AssetID)
		}
		if decision.ParentID == "" {
			return nil
		}
		asset, err := p.store.GetAsset(ctx, decision.AssetID)
		if err != nil {
			return err
		}
		if asset != nil && asset.ParentAssetID != decision.ParentID {
			return p.store.UpdateAssetParent(ctx, asset.ID, decision.ParentID)
		}
		return nil
	case ActionCreate:
		_, err := p.store.CreateAsset(ctx, store.NewAsset{
			FileID:        fileID,
			ParentAssetID: decision.ParentID,
			Kind:          decision.Kind,
			Path:          filepath.Join(p.filesDir, fileID, decision.Kind.FileName("")),
			Status:        store.StatusQueued,
		})
		return err
	default:
		return fmt.Errorf("planner: unknown action %v", decision.Action)
	}
}
