package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"lala/internal/config"
	"lala/internal/logging"
	"lala/internal/notifications"
	"lala/internal/progress"
	"lala/internal/store"
	"lala/internal/testsupport"
)

type captured struct {
	title, body, tags, priority string
}

func newNtfyServer(t *testing.T) (*httptest.Server, func() []captured) {
	t.Helper()
	var mu sync.Mutex
	var got []captured
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		got = append(got, captured{
			title:    r.Header.Get("Title"),
			body:     string(body),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
		})
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []captured {
		mu.Lock()
		defer mu.Unlock()
		return append([]captured(nil), got...)
	}
}

func TestNewNotifierNoopWithoutTopic(t *testing.T) {
	cfg := config.Default()
	n := notifications.NewNotifier(&cfg)
	if notifications.Enabled(n) {
		t.Fatal("expected disabled notifier without topic")
	}
	if err := n.Notify(context.Background(), notifications.Notification{Message: "x"}); err != nil {
		t.Fatalf("noop notify: %v", err)
	}
}

func TestNotifierPostsHeaders(t *testing.T) {
	srv, got := newNtfyServer(t)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	n := notifications.NewNotifier(&cfg)
	if !notifications.Enabled(n) {
		t.Fatal("expected enabled notifier")
	}
	err := n.Notify(context.Background(), notifications.Notification{
		Title: "T", Message: "M", Tags: []string{"a", "b"}, Priority: "high",
	})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	msgs := got()
	if len(msgs) != 1 || msgs[0].title != "T" || msgs[0].body != "M" || msgs[0].tags != "a,b" || msgs[0].priority != "high" {
		t.Fatalf("unexpected request %+v", msgs)
	}
}

func TestNotifierReportsServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "topic reserved", http.StatusForbidden)
	}))
	defer srv.Close()
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	if err := notifications.NewNotifier(&cfg).Notify(context.Background(), notifications.Notification{}); err == nil {
		t.Fatal("expected error for 403")
	}
}

func TestRelayNotifiesFailuresAndFinishedTargets(t *testing.T) {
	srv, got := newNtfyServer(t)
	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = srv.URL
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	done, _ := testsupport.NewUploadedFile(t, cfg, st, "finished.wav")
	pending, _ := testsupport.NewUploadedFile(t, cfg, st, "pending.wav")
	stalled, _ := testsupport.NewUploadedFile(t, cfg, st, "stalled.wav")
	pdf := store.StagePdf
	if err := st.SetTargetStage(ctx, pending.ID, &pdf); err != nil {
		t.Fatalf("SetTargetStage: %v", err)
	}

	hub := progress.NewHub(16)
	relay := notifications.NewRelay(hub, st, notifications.NewNotifier(cfg), logging.NewNop())
	runCtx, cancel := context.WithCancel(ctx)
	finished := make(chan struct{})
	go func() {
		_ = relay.Run(runCtx)
		close(finished)
	}()
	waitFor(t, func() bool { return hub.Subscribers() == 1 })

	hub.Publish(progress.Event{FileID: pending.ID, AssetKind: store.KindOriginal, Title: progress.TitleCompleted, Progress: 1})
	hub.Publish(progress.Event{FileID: pending.ID, AssetKind: store.KindMidi, Title: progress.TitleTranscribing, Progress: 0.5})
	hub.Publish(progress.Event{FileID: pending.ID, AssetKind: store.KindMidi, Title: progress.TitleFailed, Description: "exit status 2"})
	// The chain stopped short of its target: completed, no target left, but
	// nothing reached.
	hub.Publish(progress.Event{FileID: stalled.ID, AssetKind: store.KindMidi, Title: progress.TitleCompleted, Progress: 1})
	hub.Publish(progress.Event{FileID: done.ID, AssetKind: store.KindPdf, Title: progress.TitleCompleted, Progress: 1, ReachedStage: store.StagePdf})

	waitFor(t, func() bool { return len(got()) == 2 })
	cancel()
	<-finished

	msgs := got()
	if msgs[0].title != "lala - Job Failed" || msgs[0].body != "Midi failed for pending.wav: exit status 2" || msgs[0].priority != "high" {
		t.Fatalf("unexpected failure notification %+v", msgs[0])
	}
	if msgs[1].title != "lala - Ready" || msgs[1].body != "Pdf ready for finished.wav" {
		t.Fatalf("unexpected ready notification %+v", msgs[1])
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
