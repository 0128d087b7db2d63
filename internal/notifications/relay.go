package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"lala/internal/logging"
	"lala/internal/progress"
	"lala/internal/store"
)

// Files looks up the file an event belongs to.
type Files interface {
	GetFile(ctx context.Context, id string) (*store.File, error)
}

// Relay forwards terminal progress events to a Notifier.
type Relay struct {
	hub      *progress.Hub
	files    Files
	notifier Notifier
	logger   *slog.Logger
}

// NewRelay constructs a relay.
func NewRelay(hub *progress.Hub, files Files, notifier Notifier, logger *slog.Logger) *Relay {
	return &Relay{
		hub:      hub,
		files:    files,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "notifications"),
	}
}

// Run relays events until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	events, unsubscribe := r.hub.Subscribe()
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			r.handle(ctx, event)
		}
	}
}

func (r *Relay) handle(ctx context.Context, event progress.Event) {
	if !event.Terminal() || (event.Title == progress.TitleCompleted && event.ReachedStage == "") {
		return
	}
	file, err := r.files.GetFile(ctx, event.FileID)
	if err != nil {
		r.logger.Warn("notification lookup failed", logging.Error(err), logging.String(logging.FieldFileID, event.FileID))
		return
	}
	if file == nil {
		return
	}
	n, ok := build(event, file)
	if !ok {
		return
	}
	if err := r.notifier.Notify(ctx, n); err != nil {
		logging.WarnWithContext(r.logger, "notification failed", "notification_failed",
			logging.Error(err),
			logging.String(logging.FieldFileID, event.FileID),
			logging.String(logging.FieldImpact, "job outcome not delivered to ntfy"),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
		)
	}
}

// build returns the notification for a terminal event, if any. Completed
// events only notify when the job satisfied the file's target stage.
func build(event progress.Event, file *store.File) (Notification, bool) {
	name := strings.TrimSpace(file.OriginalFilename)
	kind := progress.Label(string(event.AssetKind))
	switch event.Title {
	case progress.TitleFailed:
		msg := fmt.Sprintf("%s failed for %s", kind, name)
		if desc := strings.TrimSpace(event.Description); desc != "" {
			msg += ": " + desc
		}
		return Notification{
			Title:    "lala - Job Failed",
			Message:  msg,
			Tags:     []string{"lala", "error", string(event.AssetKind)},
			Priority: "high",
		}, true
	case progress.TitleCompleted:
		if event.ReachedStage == "" {
			return Notification{}, false
		}
		return Notification{
			Title:   "lala - Ready",
			Message: fmt.Sprintf("%s ready for %s", progress.Label(string(event.ReachedStage)), name),
			Tags:    []string{"lala", "completed", string(event.ReachedStage)},
		}, true
	default:
		return Notification{}, false
	}
}
