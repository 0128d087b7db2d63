package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	"lala/internal/api"
	"lala/internal/config"
	"lala/internal/logging"
	"lala/internal/services"
)

// uploadFormField names the multipart field carrying the recording.
const uploadFormField = "file"

type apiServer struct {
	bind    string
	logger  *slog.Logger
	daemon  *Daemon
	service *api.Service
	maxBody int64

	allowedOrigins []string

	listener net.Listener
	server   *http.Server
	done     chan struct{}
	once     sync.Once
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:    strings.TrimSpace(cfg.Paths.APIBind),
		logger:  logging.NewComponentLogger(logger, "api-server"),
		daemon:  d,
		service: d.service,
		maxBody: cfg.MaxUploadBytes(),

		allowedOrigins: cfg.API.AllowedOrigins,
		done:           make(chan struct{}),
	}
	srv.server = &http.Server{
		Handler:           srv.handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) handler() http.Handler {
	router := mux.NewRouter()
	router.Use(s.requestContext)

	r := router.PathPrefix("/api").Subrouter()
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/files", s.handleListFiles).Methods(http.MethodGet)
	r.HandleFunc("/files", s.handleUpload).Methods(http.MethodPost)
	r.HandleFunc("/files/{id}", s.handleGetFile).Methods(http.MethodGet)
	r.HandleFunc("/files/{id}", s.handleDelete).Methods(http.MethodDelete)
	r.HandleFunc("/files/{id}/assets", s.handleListAssets).Methods(http.MethodGet)
	r.HandleFunc("/files/{id}/stage", s.handleRequestStage).Methods(http.MethodPost)
	r.HandleFunc("/files/{id}/cancel", s.handleCancel).Methods(http.MethodPost)
	r.HandleFunc("/summaries", s.handleSummaries).Methods(http.MethodGet)
	r.HandleFunc("/assets/{id}/export", s.handleExport).Methods(http.MethodPost)
	r.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusNotFound, "route not found", "")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
	})

	c := cors.New(cors.Options{
		AllowOriginFunc: s.originPermitted,
		AllowedMethods:  []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:  []string{"Content-Type"},
	})
	return c.Handler(router)
}

// requestContext tags each request with a correlation id.
func (s *apiServer) requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := services.WithRequestID(r.Context(), uuid.NewString())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *apiServer) start(ctx context.Context, group *errgroup.Group) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	group.Go(func() error {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api serve: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		s.shutdown()
		return nil
	})

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	s.shutdown()
}

func (s *apiServer) shutdown() {
	// Hijacked websocket connections are not tracked by Shutdown.
	s.once.Do(func() { close(s.done) })
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

func (s *apiServer) address() string {
	if s.listener == nil {
		return s.bind
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.daemon.Status(r.Context()))
}

func (s *apiServer) handleListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.service.ListFiles(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, files)
}

func (s *apiServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	// Multipart framing adds a little on top of the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody+1<<20)
	reader, err := r.MultipartReader()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "multipart body required", "")
		return
	}
	for {
		part, err := reader.NextPart()
		if err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("missing %q form field", uploadFormField), "")
			return
		}
		if part.FormName() != uploadFormField {
			_ = part.Close()
			continue
		}
		file, err := s.service.UploadStream(r.Context(), part, part.FileName())
		_ = part.Close()
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				s.writeError(w, http.StatusRequestEntityTooLarge, "upload too large", "")
				return
			}
			s.writeServiceError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, file)
		return
	}
}

func (s *apiServer) handleGetFile(w http.ResponseWriter, r *http.Request) {
	file, err := s.service.GetFile(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, file)
}

func (s *apiServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) handleListAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := s.service.ListAssets(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, assets)
}

func (s *apiServer) handleRequestStage(w http.ResponseWriter, r *http.Request) {
	var req api.StageRequest
	if !s.decode(w, r, &req) {
		return
	}
	result, err := s.service.RequestStage(r.Context(), mux.Vars(r)["id"], req.Stage)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, result)
}

func (s *apiServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.Cancel(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *apiServer) handleSummaries(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.service.Summaries(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, summaries)
}

func (s *apiServer) handleExport(w http.ResponseWriter, r *http.Request) {
	var req api.ExportRequest
	if !s.decode(w, r, &req) {
		return
	}
	result, err := s.service.Export(r.Context(), mux.Vars(r)["id"], req.Destination)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *apiServer) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error(), "")
		return false
	}
	return true
}

// statusFor maps service error classes onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *apiServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logging.ErrorWithContext(logging.WithContext(r.Context(), s.logger), "request failed", "api_request_failed",
			logging.String("path", r.URL.Path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, services.ErrorHint(err)),
		)
	}
	s.writeError(w, status, err.Error(), services.ErrorHint(err))
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message, hint string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message, Hint: hint})
}
