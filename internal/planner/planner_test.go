package planner_test

import (
	"context"
	"errors"
	"testing"

	"lala/internal/logging"
	"lala/internal/planner"
	"lala/internal/services"
	"lala/internal/store"
	"lala/internal/testsupport"
)

func newPlanner(t *testing.T) (*planner.Planner, *store.Store, func(string) (*store.File, *store.Asset)) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	p := planner.New(st, cfg.FilesDir(), logging.NewNop())
	upload := func(name string) (*store.File, *store.Asset) {
		return testsupport.NewUploadedFile(t, cfg, st, name)
	}
	return p, st, upload
}

// finish completes the single in-flight asset the way the worker would.
func finish(t *testing.T, st *store.Store, fileID string) {
	t.Helper()
	ctx := context.Background()
	assets, err := st.ListAssets(ctx, fileID)
	if err != nil {
		t.Fatalf("ListAssets: %v", err)
	}
	for _, a := range assets {
		if a.Status != store.StatusQueued {
			continue
		}
		if a.Kind == store.KindOriginal {
			stems := make([]store.NewAsset, 0, 4)
			for _, kind := range store.StemKinds() {
				stems = append(stems, store.NewAsset{FileID: fileID, ParentAssetID: a.ID, Kind: kind, Path: "/tmp/" + string(kind)})
			}
			if ok, err := st.TransitionStatus(ctx, a.ID, store.StatusQueued, store.StatusProcessing, ""); err != nil || !ok {
				t.Fatalf("claim original: ok=%v err=%v", ok, err)
			}
			if ok, err := st.CompleteSeparation(ctx, a.ID, stems); err != nil || !ok {
				t.Fatalf("CompleteSeparation: ok=%v err=%v", ok, err)
			}
			return
		}
		if err := st.UpdateAssetStatus(ctx, a.ID, store.StatusCompleted, ""); err != nil {
			t.Fatalf("UpdateAssetStatus: %v", err)
		}
		return
	}
	t.Fatalf("file %s has no queued asset", fileID)
}

func TestRequestStageDrivesPipelineToPdf(t *testing.T) {
	p, st, upload := newPlanner(t)
	ctx := context.Background()
	file, original := upload("song.flac")

	decision, err := p.RequestStage(ctx, file.ID, "pdf")
	if err != nil {
		t.Fatalf("RequestStage: %v", err)
	}
	if decision.Action != planner.ActionRequeue || decision.AssetID != original.ID {
		t.Fatalf("expected original requeue, got %+v", decision)
	}
	target, err := st.TargetStage(ctx, file.ID)
	if err != nil || target == nil || *target != store.StagePdf {
		t.Fatalf("expected pdf target, got %v err=%v", target, err)
	}

	wantKinds := []store.AssetKind{store.KindMidi, store.KindPdf}
	for _, want := range wantKinds {
		finish(t, st, file.ID)
		decision, advanced, err := p.Continue(ctx, file.ID)
		if err != nil || !advanced {
			t.Fatalf("Continue: advanced=%v err=%v", advanced, err)
		}
		if decision.Action != planner.ActionCreate || decision.Kind != want {
			t.Fatalf("expected create %s, got %+v", want, decision)
		}
		testsupport.AssertSingleInFlight(t, st)
	}

	finish(t, st, file.ID)
	decision, advanced, err := p.Continue(ctx, file.ID)
	if err != nil || !advanced || decision.Action != planner.ActionSatisfied || decision.Target != store.StagePdf {
		t.Fatalf("expected satisfied pdf target, got %+v advanced=%v err=%v", decision, advanced, err)
	}
	if target, _ := st.TargetStage(ctx, file.ID); target != nil {
		t.Fatalf("expected target cleared, got %v", *target)
	}

	byKind := testsupport.AssetsByKind(t, st, file.ID)
	pdf := byKind[store.KindPdf][0]
	midi := byKind[store.KindMidi][0]
	piano := byKind[store.KindStemPiano][0]
	if pdf.ParentAssetID != midi.ID || midi.ParentAssetID != piano.ID || piano.ParentAssetID != original.ID {
		t.Fatalf("unexpected lineage: pdf->%s midi->%s piano->%s", pdf.ParentAssetID, midi.ParentAssetID, piano.ParentAssetID)
	}
}

func TestRequestStageRejectsWhileInFlight(t *testing.T) {
	p, st, upload := newPlanner(t)
	ctx := context.Background()
	file, _ := upload("song.wav")

	if _, err := p.RequestStage(ctx, file.ID, "stems"); err != nil {
		t.Fatalf("RequestStage: %v", err)
	}
	_, err := p.RequestStage(ctx, file.ID, "pdf")
	if !errors.Is(err, planner.ErrInFlight) {
		t.Fatalf("expected ErrInFlight, got %v", err)
	}
	target, _ := st.TargetStage(ctx, file.ID)
	if target == nil || *target != store.StageStems {
		t.Fatalf("rejected request must not change the target, got %v", target)
	}
	testsupport.AssertSingleInFlight(t, st)
}

func TestRequestStageValidation(t *testing.T) {
	p, _, upload := newPlanner(t)
	ctx := context.Background()
	file, _ := upload("song.flac")

	if _, err := p.RequestStage(ctx, file.ID, "score"); !errors.Is(err, planner.ErrInvalidStage) {
		t.Fatalf("expected ErrInvalidStage, got %v", err)
	}
	if _, err := p.RequestStage(ctx, "missing", "stems"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRequestStageSatisfiedIsNoop(t *testing.T) {
	p, st, upload := newPlanner(t)
	ctx := context.Background()
	file, _ := upload("song.flac")

	if _, err := p.RequestStage(ctx, file.ID, "stems"); err != nil {
		t.Fatalf("RequestStage: %v", err)
	}
	finish(t, st, file.ID)
	before := testsupport.AssetsByKind(t, st, file.ID)

	decision, err := p.RequestStage(ctx, file.ID, "stems")
	if err != nil || decision.Action != planner.ActionSatisfied {
		t.Fatalf("expected satisfied, got %+v err=%v", decision, err)
	}
	after := testsupport.AssetsByKind(t, st, file.ID)
	if len(after[store.KindStemPiano]) != len(before[store.KindStemPiano]) {
		t.Fatalf("satisfied request must not create assets")
	}
	if target, _ := st.TargetStage(ctx, file.ID); target != nil {
		t.Fatalf("expected no target, got %v", *target)
	}
}

func TestRequeueFailedMidiKeepsSingleRow(t *testing.T) {
	p, st, upload := newPlanner(t)
	ctx := context.Background()
	file, original := upload("song.flac")

	piano := testsupport.MustCreateAsset(t, st, store.NewAsset{
		FileID: file.ID, ParentAssetID: original.ID, Kind: store.KindStemPiano, Path: "/tmp/p.wav", Status: store.StatusCompleted,
	})
	midi := testsupport.MustCreateAsset(t, st, store.NewAsset{
		FileID: file.ID, ParentAssetID: piano.ID, Kind: store.KindMidi, Path: "/tmp/m.mid", Status: store.StatusFailed,
	})

	decision, err := p.RequestStage(ctx, file.ID, "midi")
	if err != nil {
		t.Fatalf("RequestStage: %v", err)
	}
	if decision.Action != planner.ActionRequeue || decision.AssetID != midi.ID {
		t.Fatalf("expected midi requeue, got %+v", decision)
	}
	got, err := st.GetAsset(ctx, midi.ID)
	if err != nil || got.Status != store.StatusQueued || got.ErrorMessage != "" {
		t.Fatalf("expected queued midi without error, got %+v err=%v", got, err)
	}
	if n := len(testsupport.AssetsByKind(t, st, file.ID)[store.KindMidi]); n != 1 {
		t.Fatalf("expected one midi row, got %d", n)
	}
}

func TestContinueWithoutTargetIsNoop(t *testing.T) {
	p, st, upload := newPlanner(t)
	ctx := context.Background()
	file, _ := upload("song.flac")

	_, advanced, err := p.Continue(ctx, file.ID)
	if err != nil || advanced {
		t.Fatalf("expected no-op, advanced=%v err=%v", advanced, err)
	}
	assets, _ := st.ListAssets(ctx, file.ID)
	if len(assets) != 1 {
		t.Fatalf("expected only the original, got %d assets", len(assets))
	}
}

func TestCancelClearsTargetAndWork(t *testing.T) {
	p, st, upload := newPlanner(t)
	ctx := context.Background()
	file, original := upload("song.flac")

	if _, err := p.RequestStage(ctx, file.ID, "pdf"); err != nil {
		t.Fatalf("RequestStage: %v", err)
	}
	result, err := p.Cancel(ctx, file.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if result.Cancelled != 1 {
		t.Fatalf("expected original cancelled, got %+v", result)
	}
	if target, _ := st.TargetStage(ctx, file.ID); target != nil {
		t.Fatalf("expected target cleared, got %v", *target)
	}
	got, _ := st.GetAsset(ctx, original.ID)
	if got.Status != store.StatusCancelled {
		t.Fatalf("expected cancelled original, got %s", got.Status)
	}

	decision, err := p.RequestStage(ctx, file.ID, "stems")
	if err != nil || decision.Action != planner.ActionRequeue {
		t.Fatalf("expected cancelled original to be requeued, got %+v err=%v", decision, err)
	}
}

func TestRecordFailureClearsTargetOnlyForProcessingAsset(t *testing.T) {
	p, st, upload := newPlanner(t)
	ctx := context.Background()
	file, original := upload("song.flac")

	if _, err := p.RequestStage(ctx, file.ID, "pdf"); err != nil {
		t.Fatalf("RequestStage: %v", err)
	}
	if ok, err := st.TransitionStatus(ctx, original.ID, store.StatusQueued, store.StatusProcessing, ""); err != nil || !ok {
		t.Fatalf("claim original: ok=%v err=%v", ok, err)
	}
	failed, err := p.RecordFailure(ctx, original, "separator exited 1")
	if err != nil || !failed {
		t.Fatalf("RecordFailure: failed=%v err=%v", failed, err)
	}
	got, _ := st.GetAsset(ctx, original.ID)
	if got.Status != store.StatusFailed || got.ErrorMessage != "separator exited 1" {
		t.Fatalf("expected failed original, got %s %q", got.Status, got.ErrorMessage)
	}
	if target, _ := st.TargetStage(ctx, file.ID); target != nil {
		t.Fatalf("expected target cleared, got %v", *target)
	}

	// A fresh request after the failure owns the target; a stale failure
	// report for the requeued asset must leave it alone.
	if _, err := p.RequestStage(ctx, file.ID, "midi"); err != nil {
		t.Fatalf("RequestStage after failure: %v", err)
	}
	failed, err = p.RecordFailure(ctx, original, "late report")
	if err != nil || failed {
		t.Fatalf("expected stale failure ignored, failed=%v err=%v", failed, err)
	}
	target, _ := st.TargetStage(ctx, file.ID)
	if target == nil || *target != store.StageMidi {
		t.Fatalf("expected midi target kept, got %v", target)
	}
	if got, _ := st.GetAsset(ctx, original.ID); got.Status != store.StatusQueued {
		t.Fatalf("expected requeued original, got %s", got.Status)
	}
}
