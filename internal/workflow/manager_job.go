package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"lala/internal/logging"
	"lala/internal/planner"
	"lala/internal/progress"
	"lala/internal/services"
	"lala/internal/services/toolexec"
	"lala/internal/store"
)

// workDirName holds per-job scratch directories under the files root. Job
// outputs stay there until the result is recorded.
const workDirName = ".work"

// errFileGone reports that the file directory vanished before outputs could
// be installed, i.e. the file was deleted while its job ran.
var errFileGone = errors.New("file directory no longer exists")

// stagedOutput is a job output waiting in scratch for its final path.
type stagedOutput struct {
	src string
	dst string
}

// stemNames maps separator output names onto stem kinds. "other" is the
// accompaniment track of four-stem models and carries the piano.
var stemNames = map[string]store.AssetKind{
	"piano":  store.KindStemPiano,
	"other":  store.KindStemPiano,
	"vocals": store.KindStemVocals,
	"drums":  store.KindStemDrums,
	"bass":   store.KindStemBass,
}

// RunOnce claims and runs the oldest Queued asset. It reports whether an
// asset was found. Returned errors are store failures; operation failures are
// recorded on the asset instead.
func (m *Manager) RunOnce(ctx context.Context) (bool, error) {
	asset, err := m.store.NextQueuedAsset(ctx)
	if err != nil {
		return false, fmt.Errorf("next queued asset: %w", err)
	}
	if asset == nil {
		return false, nil
	}
	claimed, err := m.store.TransitionStatus(ctx, asset.ID, store.StatusQueued, store.StatusProcessing, "")
	if err != nil {
		return false, fmt.Errorf("claim asset: %w", err)
	}
	if !claimed {
		m.logger.Debug("asset changed before claim", logging.String(logging.FieldAssetID, asset.ID))
		return true, nil
	}
	asset.Status = store.StatusProcessing
	return true, m.process(ctx, asset)
}

func (m *Manager) process(ctx context.Context, asset *store.Asset) error {
	jobCtx := services.WithFileID(ctx, asset.FileID)
	jobCtx = services.WithAssetID(jobCtx, asset.ID)
	jobCtx = services.WithRequestID(jobCtx, uuid.NewString())
	logger := logging.WithContext(jobCtx, m.logger).With(logging.String(logging.FieldAssetKind, string(asset.Kind)))

	started := time.Now()
	m.beginJob(asset, started)
	defer m.endJob()

	logger.Info("job started", logging.String(logging.FieldEventType, "job_started"))
	m.publish(asset, progress.TitleProcessing, "", 0)

	sampler := logging.NewProgressSampler(0.1)
	title := progress.TitleForKind(asset.Kind)
	onProgress := toolexec.ProgressFunc(func(fraction float64, message string) {
		fraction = progress.Clamp(fraction)
		m.updateJob(fraction, message)
		m.publish(asset, title, message, fraction)
		if sampler.ShouldLog(fraction, title) {
			logger.Info("job progress",
				logging.String(logging.FieldEventType, "job_progress"),
				logging.Float64(logging.FieldProgress, fraction),
				logging.String("message", message),
			)
		}
	})

	scratch := filepath.Join(m.filesDir, workDirName, asset.ID)
	defer func() {
		_ = os.RemoveAll(scratch)
	}()

	var (
		stems  []store.NewAsset
		staged []stagedOutput
		opErr  error
	)
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		opErr = fmt.Errorf("create scratch directory: %w", err)
	} else {
		switch asset.Kind {
		case store.KindOriginal:
			stems, staged, opErr = m.separate(jobCtx, asset, scratch, onProgress)
		case store.KindMidi, store.KindPdf:
			staged, opErr = m.derive(jobCtx, asset, scratch, onProgress)
		case store.KindStemPiano, store.KindStemVocals, store.KindStemDrums, store.KindStemBass:
		default:
			opErr = fmt.Errorf("no operation for asset kind %q", asset.Kind)
		}
	}

	if opErr != nil {
		if ctx.Err() != nil {
			logger.Info("job interrupted by shutdown",
				logging.String(logging.FieldEventType, "job_interrupted"),
				logging.String(logging.FieldImpact, "asset stays processing until the next start"),
			)
			return ctx.Err()
		}
		return m.fail(jobCtx, logger, asset, opErr)
	}

	var (
		completed bool
		err       error
	)
	if asset.Kind == store.KindOriginal {
		completed, err = m.store.CompleteSeparation(jobCtx, asset.ID, stems)
	} else {
		completed, err = m.store.TransitionStatus(jobCtx, asset.ID, store.StatusProcessing, store.StatusCompleted, "")
	}
	if err != nil {
		return fmt.Errorf("persist job result: %w", err)
	}
	if !completed {
		m.dropLateResult(logger, "completed")
		return nil
	}
	if err := install(staged); err != nil {
		if errors.Is(err, errFileGone) {
			m.dropLateResult(logger, "completed")
			return nil
		}
		m.setLastError(err)
		logging.ErrorWithContext(logger, "job output install failed", "job_install_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "asset recorded completed but its artifact is missing"),
			logging.String(logging.FieldErrorHint, "delete the file and upload it again"),
			logging.Alert("job_install"),
		)
	}

	m.recordOutcome(string(store.StatusCompleted))
	logger.Info("job completed",
		logging.String(logging.FieldEventType, "job_completed"),
		logging.Duration("duration", time.Since(started)),
	)

	// Advance before announcing so watchers see the follow-up job or the
	// cleared target.
	var reached store.Stage
	decision, advanced, err := m.planner.Continue(jobCtx, asset.FileID)
	switch {
	case err != nil:
		logging.WarnWithContext(logger, "continue toward target failed", "continue_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, services.ErrorHint(err)),
			logging.String(logging.FieldImpact, "target stage cleared; request it again"),
		)
	case advanced && decision.Action == planner.ActionSatisfied:
		reached = decision.Target
	}
	m.publisher.Publish(progress.Event{
		FileID:       asset.FileID,
		AssetID:      asset.ID,
		AssetKind:    asset.Kind,
		Title:        progress.TitleCompleted,
		Progress:     1,
		ReachedStage: reached,
	})
	return nil
}

// install renames staged outputs to their final paths. Scratch lives under
// the files root, so a rename suffices; it never creates the file directory,
// so a file deleted mid-job is not resurrected.
func install(staged []stagedOutput) error {
	for _, out := range staged {
		err := os.Rename(out.src, out.dst)
		if err == nil {
			continue
		}
		if _, statErr := os.Stat(filepath.Dir(out.dst)); errors.Is(statErr, os.ErrNotExist) {
			return errFileGone
		}
		return fmt.Errorf("install %s: %w", filepath.Base(out.dst), err)
	}
	return nil
}

func (m *Manager) fail(ctx context.Context, logger *slog.Logger, asset *store.Asset, opErr error) error {
	message := strings.TrimSpace(opErr.Error())
	if message == "" {
		message = fmt.Sprintf("%s failed", asset.Kind)
	}
	failed, err := m.planner.RecordFailure(ctx, asset, message)
	if err != nil && !failed {
		return fmt.Errorf("persist job failure: %w", err)
	}
	if err != nil {
		logger.Warn("clear target stage failed", logging.Error(err))
	}
	if !failed {
		m.dropLateResult(logger, "failed")
		return nil
	}
	m.recordOutcome(string(store.StatusFailed))
	m.setLastError(opErr)
	m.publish(asset, progress.TitleFailed, message, 0)
	logging.ErrorWithContext(logger, "job failed", "job_failed",
		logging.Error(opErr),
		logging.String(logging.FieldErrorHint, services.ErrorHint(opErr)),
		logging.Alert("job_failure"),
	)
	return nil
}

func (m *Manager) dropLateResult(logger *slog.Logger, outcome string) {
	logger.Info("job result dropped; asset no longer processing",
		logging.String(logging.FieldEventType, "job_result_dropped"),
		logging.String("outcome", outcome),
	)
	m.recordOutcome("dropped")
}

// separate runs the separator into scratch and returns the stem rows to
// record together with the moves that put their files in place.
func (m *Manager) separate(ctx context.Context, original *store.Asset, scratch string, onProgress toolexec.ProgressFunc) ([]store.NewAsset, []stagedOutput, error) {
	if m.ops.Separator == nil {
		return nil, nil, errors.New("separator not configured")
	}
	fileDir := filepath.Dir(original.Path)

	outputs, err := m.ops.Separator.Separate(ctx, original.Path, scratch, onProgress)
	if err != nil {
		return nil, nil, err
	}

	sources := make(map[store.AssetKind]string, len(stemNames))
	for name, path := range outputs {
		kind, ok := stemNames[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			continue
		}
		// An explicit piano track wins over the accompaniment.
		if _, seen := sources[kind]; seen && strings.EqualFold(name, "other") {
			continue
		}
		sources[kind] = path
	}
	if _, ok := sources[store.KindStemPiano]; !ok {
		return nil, nil, services.Wrap(services.ErrExternalTool, "separator", "separate", "no piano stem produced", nil)
	}

	stems := make([]store.NewAsset, 0, len(sources))
	staged := make([]stagedOutput, 0, len(sources))
	for _, kind := range store.StemKinds() {
		src, ok := sources[kind]
		if !ok {
			continue
		}
		if _, err := os.Stat(src); err != nil {
			return nil, nil, services.Wrap(services.ErrExternalTool, "separator", "separate", fmt.Sprintf("%s output missing", kind), err)
		}
		dst := filepath.Join(fileDir, kind.FileName(""))
		staged = append(staged, stagedOutput{src: src, dst: dst})
		stems = append(stems, store.NewAsset{
			FileID:        original.FileID,
			ParentAssetID: original.ID,
			Kind:          kind,
			Path:          dst,
		})
	}
	return stems, staged, nil
}

// derive runs the single-input operation for midi (transcribe the piano
// stem) or pdf (render the midi), writing into scratch.
func (m *Manager) derive(ctx context.Context, asset *store.Asset, scratch string, onProgress toolexec.ProgressFunc) ([]stagedOutput, error) {
	parentKind := store.KindStemPiano
	if asset.Kind == store.KindPdf {
		parentKind = store.KindMidi
	}
	parent, err := m.resolveParent(ctx, asset, parentKind)
	if err != nil {
		return nil, err
	}
	dst := asset.Path
	if dst == "" {
		dst = filepath.Join(m.filesDir, asset.FileID, asset.Kind.FileName(""))
	}
	output := filepath.Join(scratch, filepath.Base(dst))
	switch {
	case asset.Kind == store.KindMidi && m.ops.Transcriber != nil:
		err = m.ops.Transcriber.Transcribe(ctx, parent.Path, output, onProgress)
	case asset.Kind == store.KindPdf && m.ops.Renderer != nil:
		err = m.ops.Renderer.Render(ctx, parent.Path, output, onProgress)
	default:
		return nil, fmt.Errorf("no operation configured for %s", asset.Kind)
	}
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(output); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "workflow", "derive", fmt.Sprintf("%s output missing", asset.Kind), err)
	}
	return []stagedOutput{{src: output, dst: dst}}, nil
}

func (m *Manager) resolveParent(ctx context.Context, asset *store.Asset, parentKind store.AssetKind) (*store.Asset, error) {
	if asset.ParentAssetID == "" {
		return nil, services.Wrap(services.ErrValidation, "workflow", "resolve input", fmt.Sprintf("%s has no parent asset", asset.Kind), nil)
	}
	parent, err := m.store.GetAsset(ctx, asset.ParentAssetID)
	if err != nil {
		return nil, err
	}
	switch {
	case parent == nil:
		return nil, services.Wrap(services.ErrNotFound, "workflow", "resolve input", "parent asset "+asset.ParentAssetID+" missing", nil)
	case parent.Kind != parentKind:
		return nil, services.Wrap(services.ErrValidation, "workflow", "resolve input", fmt.Sprintf("parent is %s, want %s", parent.Kind, parentKind), nil)
	case parent.Status != store.StatusCompleted:
		return nil, services.Wrap(services.ErrValidation, "workflow", "resolve input", fmt.Sprintf("parent %s is %s", parent.Kind, parent.Status), nil)
	case strings.TrimSpace(parent.Path) == "":
		return nil, services.Wrap(services.ErrValidation, "workflow", "resolve input", "parent has no file path", nil)
	}
	return parent, nil
}

func (m *Manager) publish(asset *store.Asset, title, description string, fraction float64) {
	m.publisher.Publish(progress.Event{
		FileID:      asset.FileID,
		AssetID:     asset.ID,
		AssetKind:   asset.Kind,
		Title:       title,
		Description: description,
		Progress:    fraction,
	})
}
