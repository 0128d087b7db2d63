package daemon_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"lala/internal/api"
	"lala/internal/config"
	"lala/internal/daemon"
	"lala/internal/logging"
	"lala/internal/planner"
	"lala/internal/progress"
	"lala/internal/services/toolexec"
	"lala/internal/store"
	"lala/internal/testsupport"
	"lala/internal/workflow"
)

type fakeTools struct{}

func (fakeTools) Separate(_ context.Context, _ string, outputDir string, onProgress toolexec.ProgressFunc) (map[string]string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, err
	}
	onProgress(0.5, "")
	out := map[string]string{}
	for _, name := range []string{"vocals", "drums", "bass", "other"} {
		path := filepath.Join(outputDir, name+".wav")
		if err := os.WriteFile(path, []byte(name), 0o644); err != nil {
			return nil, err
		}
		out[name] = path
	}
	return out, nil
}

func (fakeTools) Transcribe(_ context.Context, _, out string, _ toolexec.ProgressFunc) error {
	return os.WriteFile(out, []byte("midi"), 0o644)
}

func (fakeTools) Render(_ context.Context, _, out string, _ toolexec.ProgressFunc) error {
	return os.WriteFile(out, []byte("pdf"), 0o644)
}

type testDaemon struct {
	cfg    *config.Config
	store  *store.Store
	daemon *daemon.Daemon
}

func newTestDaemon(t *testing.T, opts ...testsupport.ConfigOption) *testDaemon {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	st := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	hub := progress.NewHub(64)
	pl := planner.New(st, cfg.FilesDir(), logger)
	mgr := workflow.NewManager(cfg, st, pl, workflow.Operations{
		Separator:   fakeTools{},
		Transcriber: fakeTools{},
		Renderer:    fakeTools{},
	}, hub, logger)
	svc := api.NewService(cfg, st, pl, logger, api.WithJobReporter(mgr))
	d, err := daemon.New(cfg, logger, daemon.Components{Store: st, Workflow: mgr, Service: svc, Hub: hub})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(d.Stop)
	return &testDaemon{cfg: cfg, store: st, daemon: d}
}

func (td *testDaemon) url(path string) string {
	return "http://" + td.daemon.Addr() + path
}

func (td *testDaemon) upload(t *testing.T, name string, body []byte) (int, api.File) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = part.Write(body)
	_ = mw.Close()
	resp, err := http.Post(td.url("/api/files"), mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	defer resp.Body.Close()
	var file api.File
	if resp.StatusCode == http.StatusCreated {
		if err := json.NewDecoder(resp.Body).Decode(&file); err != nil {
			t.Fatalf("decode upload: %v", err)
		}
	}
	return resp.StatusCode, file
}

func (td *testDaemon) postJSON(t *testing.T, path string, payload any, out any) int {
	t.Helper()
	data, _ := json.Marshal(payload)
	resp, err := http.Post(td.url(path), "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		_ = json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode
}

func (td *testDaemon) getJSON(t *testing.T, path string, out any) int {
	t.Helper()
	resp, err := http.Get(td.url(path))
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		_ = json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode
}

func TestDaemonStartStop(t *testing.T) {
	td := newTestDaemon(t)
	ctx := context.Background()

	if err := td.daemon.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !td.daemon.Running() {
		t.Fatal("expected daemon to report running")
	}
	if err := td.daemon.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	td.daemon.Stop()
	if td.daemon.Running() {
		t.Fatal("expected daemon to be stopped")
	}
	if err := td.daemon.Wait(); err != nil {
		t.Fatalf("Wait after stop: %v", err)
	}
}

func TestDaemonRejectsSecondInstance(t *testing.T) {
	td := newTestDaemon(t)
	if err := td.daemon.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	st := testsupport.MustOpenStore(t, td.cfg)
	logger := logging.NewNop()
	pl := planner.New(st, td.cfg.FilesDir(), logger)
	mgr := workflow.NewManager(td.cfg, st, pl, workflow.Operations{
		Separator: fakeTools{}, Transcriber: fakeTools{}, Renderer: fakeTools{},
	}, nil, logger)
	other, err := daemon.New(td.cfg, logger, daemon.Components{
		Store: st, Workflow: mgr, Service: api.NewService(td.cfg, st, pl, logger),
	})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	err = other.Start(context.Background())
	if err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("expected lock contention error, got %v", err)
	}
}

func TestDaemonRecoversInterruptedJobsOnStart(t *testing.T) {
	td := newTestDaemon(t)
	ctx := context.Background()
	file, original := testsupport.NewUploadedFile(t, td.cfg, td.store, "song.wav")
	if _, err := td.store.TransitionStatus(ctx, original.ID, store.StatusCompleted, store.StatusProcessing, ""); err != nil {
		t.Fatalf("TransitionStatus: %v", err)
	}

	if err := td.daemon.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	var status api.DaemonStatus
	if code := td.getJSON(t, "/api/status", &status); code != http.StatusOK {
		t.Fatalf("status code %d", code)
	}
	if status.Recovered != 1 {
		t.Fatalf("expected 1 recovered job, got %d", status.Recovered)
	}
	if len(status.Dependencies) != 3 {
		t.Fatalf("expected 3 tool dependencies, got %d", len(status.Dependencies))
	}
	if status.Health == nil || status.Health.Integrity != "ok" || status.Health.Files != 1 {
		t.Fatalf("unexpected database health %+v", status.Health)
	}

	waitFor(t, func() bool {
		return len(testsupport.AssetsByKind(t, td.store, file.ID)[store.KindStemPiano]) == 1
	})
}

func TestAPIPipelineToPDF(t *testing.T) {
	td := newTestDaemon(t)
	if err := td.daemon.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	code, file := td.upload(t, "Song.WAV", []byte("RIFF0000WAVE"))
	if code != http.StatusCreated {
		t.Fatalf("upload status %d", code)
	}
	if file.OriginalFilename != "Song.WAV" {
		t.Fatalf("unexpected filename %q", file.OriginalFilename)
	}

	var result api.StageResult
	if code := td.postJSON(t, "/api/files/"+file.ID+"/stage", api.StageRequest{Stage: "pdf"}, &result); code != http.StatusAccepted {
		t.Fatalf("stage status %d", code)
	}
	if result.AssetType != string(store.KindOriginal) {
		t.Fatalf("expected separation to run first, got %+v", result)
	}

	waitFor(t, func() bool {
		var summaries []api.FileSummary
		td.getJSON(t, "/api/summaries", &summaries)
		return len(summaries) == 1 && summaries[0].HasPdf
	})

	var assets []api.Asset
	if code := td.getJSON(t, "/api/files/"+file.ID+"/assets", &assets); code != http.StatusOK {
		t.Fatalf("assets status %d", code)
	}
	kinds := map[string]int{}
	for _, asset := range assets {
		kinds[asset.AssetType]++
		if asset.Status != string(store.StatusCompleted) {
			t.Fatalf("asset %s not completed: %s", asset.AssetType, asset.Status)
		}
	}
	if kinds["stem_piano"] != 1 || kinds["midi"] != 1 || kinds["pdf"] != 1 {
		t.Fatalf("unexpected asset kinds: %v", kinds)
	}

	var got api.File
	td.getJSON(t, "/api/files/"+file.ID, &got)
	if got.TargetStage != "" {
		t.Fatalf("expected target cleared after completion, got %q", got.TargetStage)
	}
}

func TestAPIErrorMapping(t *testing.T) {
	td := newTestDaemon(t)
	if err := td.daemon.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if code, _ := td.upload(t, "notes.txt", []byte("hello")); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unsupported extension, got %d", code)
	}
	if code := td.getJSON(t, "/api/files/missing", nil); code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown file, got %d", code)
	}

	_, file := td.upload(t, "song.flac", []byte("fLaC"))
	var errResp api.ErrorResponse
	code := td.postJSON(t, "/api/files/"+file.ID+"/stage", api.StageRequest{Stage: "score"}, &errResp)
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid stage, got %d", code)
	}
	if errResp.Error == "" || errResp.Hint == "" {
		t.Fatalf("expected error body with hint, got %+v", errResp)
	}
	if code := td.postJSON(t, "/api/files/missing/cancel", nil, nil); code != http.StatusNotFound {
		t.Fatalf("expected 404 for cancel of unknown file, got %d", code)
	}

	req, _ := http.NewRequest(http.MethodDelete, td.url("/api/files/"+file.ID), nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 on delete, got %d", resp.StatusCode)
	}
	if code := td.getJSON(t, "/api/files/"+file.ID, nil); code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", code)
	}
}

func TestEventsWebsocketStreamsProgress(t *testing.T) {
	td := newTestDaemon(t)
	if err := td.daemon.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	_, file := td.upload(t, "song.wav", []byte("RIFF"))

	conn, _, err := websocket.DefaultDialer.Dial(fmt.Sprintf("ws://%s/api/events?file_id=%s", td.daemon.Addr(), file.ID), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitFor(t, func() bool {
		var status api.DaemonStatus
		td.getJSON(t, "/api/status", &status)
		return status.Subscribers == 1
	})

	td.postJSON(t, "/api/files/"+file.ID+"/stage", api.StageRequest{Stage: "stems"}, nil)

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var event progress.Event
		if err := conn.ReadJSON(&event); err != nil {
			t.Fatalf("read event: %v", err)
		}
		if event.FileID != file.ID {
			t.Fatalf("event for unexpected file %s", event.FileID)
		}
		if event.Terminal() {
			if event.Title != progress.TitleCompleted {
				t.Fatalf("expected completed event, got %+v", event)
			}
			return
		}
	}
}

func TestEventsRejectsUnknownOrigin(t *testing.T) {
	td := newTestDaemon(t)
	if err := td.daemon.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial("ws://"+td.daemon.Addr()+"/api/events", header)
	if err == nil {
		t.Fatal("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %+v", resp)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestDaemonImportsInboxDrops(t *testing.T) {
	td := newTestDaemon(t, testsupport.WithInbox("stems"))
	if err := td.daemon.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	testsupport.WriteFile(t, filepath.Join(td.cfg.Paths.InboxDir, "dropped.wav"), 256)

	waitFor(t, func() bool {
		var summaries []api.FileSummary
		td.getJSON(t, "/api/summaries", &summaries)
		return len(summaries) == 1 && summaries[0].HasStems
	})
}
