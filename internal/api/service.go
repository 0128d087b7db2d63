package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"lala/internal/config"
	"lala/internal/export"
	"lala/internal/fileutil"
	"lala/internal/logging"
	"lala/internal/planner"
	"lala/internal/services"
	"lala/internal/store"
	"lala/internal/workflow"
)

// JobReporter exposes the job the worker is running.
type JobReporter interface {
	CurrentJob() *workflow.Job
}

// Service implements the command surface.
type Service struct {
	cfg      *config.Config
	store    *store.Store
	planner  *planner.Planner
	exporter export.Exporter
	jobs     JobReporter
	logger   *slog.Logger
}

// Option configures the service.
type Option func(*Service)

// WithExporter enables Export.
func WithExporter(exporter export.Exporter) Option {
	return func(s *Service) {
		s.exporter = exporter
	}
}

// WithJobReporter lets summaries include live progress.
func WithJobReporter(jobs JobReporter) Option {
	return func(s *Service) {
		s.jobs = jobs
	}
}

// NewService constructs the command surface.
func NewService(cfg *config.Config, st *store.Store, pl *planner.Planner, logger *slog.Logger, opts ...Option) *Service {
	svc := &Service{
		cfg:     cfg,
		store:   st,
		planner: pl,
		logger:  logging.NewComponentLogger(logger, "api"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Upload copies the recording at sourcePath into the data directory and
// registers it. filename defaults to the base name of sourcePath.
func (s *Service) Upload(ctx context.Context, sourcePath, filename string) (File, error) {
	if strings.TrimSpace(filename) == "" {
		filename = filepath.Base(sourcePath)
	}
	info, err := os.Stat(sourcePath)
	if err != nil {
		return File{}, services.Wrap(services.ErrValidation, "api", "upload", "source not readable", err)
	}
	if info.IsDir() {
		return File{}, services.Wrap(services.ErrValidation, "api", "upload", sourcePath+" is a directory", nil)
	}
	in, err := os.Open(sourcePath)
	if err != nil {
		return File{}, services.Wrap(services.ErrValidation, "api", "upload", "open source", err)
	}
	defer in.Close()
	return s.UploadStream(ctx, in, filename)
}

// UploadStream registers a recording read from r. The file and its
// Completed original asset are created only after the bytes are on disk.
func (s *Service) UploadStream(ctx context.Context, r io.Reader, filename string) (File, error) {
	filename = filepath.Base(strings.TrimSpace(filename))
	if filename == "" || filename == "." || filename == string(filepath.Separator) {
		return File{}, services.Wrap(services.ErrValidation, "api", "upload", "filename required", nil)
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if !s.cfg.ExtensionPermitted(ext) {
		return File{}, services.Wrap(services.ErrValidation, "api", "upload",
			fmt.Sprintf("unsupported file type %q (permitted: %s)", ext, strings.Join(s.cfg.Upload.PermittedExtensions, ", ")), nil)
	}

	id := uuid.NewString()
	ctx = services.WithFileID(ctx, id)
	logger := logging.WithContext(ctx, s.logger)
	fileDir := filepath.Join(s.cfg.FilesDir(), id)
	dest := filepath.Join(fileDir, store.KindOriginal.FileName(ext))

	written, err := fileutil.WriteStream(r, dest, s.cfg.MaxUploadBytes())
	if err != nil {
		_ = os.RemoveAll(fileDir)
		if errors.Is(err, fileutil.ErrTooLarge) {
			return File{}, services.Wrap(services.ErrValidation, "api", "upload",
				fmt.Sprintf("file exceeds %d MB limit", s.cfg.Upload.MaxFileSizeMB), nil)
		}
		return File{}, fmt.Errorf("store upload: %w", err)
	}
	if written == 0 {
		_ = os.RemoveAll(fileDir)
		return File{}, services.Wrap(services.ErrValidation, "api", "upload", "file is empty", nil)
	}

	file, err := s.store.CreateFile(ctx, id, filename)
	if err != nil {
		_ = os.RemoveAll(fileDir)
		return File{}, err
	}
	if _, err := s.store.CreateAsset(ctx, store.NewAsset{
		FileID: id,
		Kind:   store.KindOriginal,
		Path:   dest,
		Status: store.StatusCompleted,
	}); err != nil {
		if _, cleanupErr := s.store.DeleteFileAndAssets(ctx, id); cleanupErr != nil {
			logger.Warn("cleanup after failed upload", logging.Error(cleanupErr))
		}
		_ = os.RemoveAll(fileDir)
		return File{}, err
	}

	logger.Info("file uploaded",
		logging.String(logging.FieldEventType, "file_uploaded"),
		logging.String("filename", filename),
		logging.Int64("bytes", written),
	)
	return FromFile(file), nil
}

// ListFiles returns every file, newest first.
func (s *Service) ListFiles(ctx context.Context) ([]File, error) {
	files, err := s.store.ListFiles(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]File, 0, len(files))
	for _, file := range files {
		out = append(out, FromFile(file))
	}
	return out, nil
}

// GetFile returns one file.
func (s *Service) GetFile(ctx context.Context, fileID string) (File, error) {
	file, err := s.requireFile(ctx, fileID)
	if err != nil {
		return File{}, err
	}
	return FromFile(file), nil
}

// ListAssets returns a file's assets, oldest first.
func (s *Service) ListAssets(ctx context.Context, fileID string) ([]Asset, error) {
	if _, err := s.requireFile(ctx, fileID); err != nil {
		return nil, err
	}
	assets, err := s.store.ListAssets(ctx, fileID)
	if err != nil {
		return nil, err
	}
	return FromAssets(assets), nil
}

// RequestStage asks the planner to drive the file toward stage.
func (s *Service) RequestStage(ctx context.Context, fileID, stage string) (StageResult, error) {
	decision, err := s.planner.RequestStage(ctx, fileID, strings.ToLower(strings.TrimSpace(stage)))
	if err != nil {
		return StageResult{}, err
	}
	result := StageResult{
		FileID: fileID,
		Stage:  strings.ToLower(strings.TrimSpace(stage)),
		Action: decision.Action.String(),
	}
	if decision.Action != planner.ActionSatisfied {
		result.AssetType = string(decision.Kind)
		result.AssetID = decision.AssetID
	}
	return result, nil
}

// Cancel stops queued and running work for the file and clears its target.
func (s *Service) Cancel(ctx context.Context, fileID string) (CancelResult, error) {
	res, err := s.planner.Cancel(ctx, fileID)
	if err != nil {
		return CancelResult{}, err
	}
	return CancelResult{FileID: fileID, Deleted: res.Deleted, Cancelled: res.Cancelled}, nil
}

// Delete removes the file, its assets, and its artifact directory. A running
// job for the file finishes in the background and its result is dropped.
func (s *Service) Delete(ctx context.Context, fileID string) error {
	deleted, err := s.store.DeleteFileAndAssets(ctx, fileID)
	if err != nil {
		return err
	}
	if !deleted {
		return services.Wrap(services.ErrNotFound, "api", "delete", "unknown file "+fileID, nil)
	}
	ctx = services.WithFileID(ctx, fileID)
	logger := logging.WithContext(ctx, s.logger)
	if err := os.RemoveAll(filepath.Join(s.cfg.FilesDir(), fileID)); err != nil {
		logging.WarnWithContext(logger, "remove file directory failed", "file_dir_cleanup_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "artifact files remain on disk"),
			logging.String(logging.FieldErrorHint, "remove the directory manually"),
		)
	}
	logger.Info("file deleted", logging.String(logging.FieldEventType, "file_deleted"))
	return nil
}

// Export copies a completed asset to destination.
func (s *Service) Export(ctx context.Context, assetID, destination string) (ExportResult, error) {
	if s.exporter == nil {
		return ExportResult{}, services.Wrap(services.ErrConfiguration, "api", "export", "export unavailable", nil)
	}
	asset, err := s.store.GetAsset(ctx, assetID)
	if err != nil {
		return ExportResult{}, err
	}
	if asset == nil {
		return ExportResult{}, services.Wrap(services.ErrNotFound, "api", "export", "unknown asset "+assetID, nil)
	}
	file, err := s.store.GetFile(ctx, asset.FileID)
	if err != nil {
		return ExportResult{}, err
	}
	name := ""
	if file != nil {
		name = file.OriginalFilename
	}
	location, err := s.exporter.Export(ctx, asset, name, destination)
	if err != nil {
		return ExportResult{}, err
	}
	return ExportResult{AssetID: assetID, Location: location}, nil
}

// Summaries returns the status row for every file, newest first.
func (s *Service) Summaries(ctx context.Context) ([]FileSummary, error) {
	files, err := s.store.ListFiles(ctx)
	if err != nil {
		return nil, err
	}
	var current *workflow.Job
	if s.jobs != nil {
		current = s.jobs.CurrentJob()
	}
	out := make([]FileSummary, 0, len(files))
	for _, file := range files {
		assets, err := s.store.ListAssets(ctx, file.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, Summarize(file, assets, current))
	}
	return out, nil
}

func (s *Service) requireFile(ctx context.Context, fileID string) (*store.File, error) {
	file, err := s.store.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, services.Wrap(services.ErrNotFound, "api", "lookup", "unknown file "+fileID, nil)
	}
	return file, nil
}
