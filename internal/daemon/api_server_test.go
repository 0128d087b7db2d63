package daemon

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"lala/internal/planner"
	"lala/internal/services"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", services.Wrap(services.ErrValidation, "api", "upload", "bad", nil), http.StatusBadRequest},
		{"invalid stage", fmt.Errorf("request: %w", planner.ErrInvalidStage), http.StatusBadRequest},
		{"not found", services.Wrap(services.ErrNotFound, "api", "lookup", "x", nil), http.StatusNotFound},
		{"in flight", planner.ErrInFlight, http.StatusConflict},
		{"tool", services.Wrap(services.ErrExternalTool, "separator", "run", "", nil), http.StatusInternalServerError},
		{"plain", errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Fatalf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestOriginPermitted(t *testing.T) {
	s := &apiServer{allowedOrigins: []string{"http://localhost:1420"}}
	if !s.originPermitted("http://LOCALHOST:1420") {
		t.Fatal("expected configured origin to be permitted")
	}
	if s.originPermitted("http://other:1420") {
		t.Fatal("expected unknown origin to be rejected")
	}
	wildcard := &apiServer{allowedOrigins: []string{"*"}}
	if !wildcard.originPermitted("http://anything") {
		t.Fatal("expected wildcard to permit any origin")
	}
}
