package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"lala/internal/config"
	"lala/internal/fileutil"
	"lala/internal/logging"
	"lala/internal/services"
	"lala/internal/store"
	"lala/internal/textutil"
)

const s3Scheme = "s3:"

// Exporter places a completed asset at destination and returns where it went.
type Exporter interface {
	Export(ctx context.Context, asset *store.Asset, originalFilename, destination string) (string, error)
}

// ObjectUploader stores a local file under key in the configured bucket.
type ObjectUploader interface {
	Upload(ctx context.Context, key, path, contentType string) (string, error)
}

// Service routes exports to the local filesystem or the bucket.
type Service struct {
	remote ObjectUploader
	prefix string
	logger *slog.Logger
}

// Option configures the service.
type Option func(*Service)

// WithUploader overrides the bucket uploader (primarily for tests).
func WithUploader(u ObjectUploader) Option {
	return func(s *Service) {
		s.remote = u
	}
}

// New builds an export service. Bucket uploads are available when
// export.enabled is set.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Service, error) {
	svc := &Service{
		prefix: strings.Trim(cfg.Export.Prefix, "/"),
		logger: logging.NewComponentLogger(logger, "export"),
	}
	if cfg.Export.Enabled {
		uploader, err := NewBucketUploader(cfg.Export)
		if err != nil {
			return nil, err
		}
		svc.remote = uploader
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Export implements Exporter.
func (s *Service) Export(ctx context.Context, asset *store.Asset, originalFilename, destination string) (string, error) {
	if asset == nil {
		return "", services.Wrap(services.ErrNotFound, "export", "export", "asset missing", nil)
	}
	if asset.Status != store.StatusCompleted {
		return "", services.Wrap(services.ErrValidation, "export", "export", fmt.Sprintf("%s asset is %s", asset.Kind, asset.Status), nil)
	}
	if _, err := os.Stat(asset.Path); err != nil {
		return "", services.Wrap(services.ErrNotFound, "export", "export", "asset file missing", err)
	}
	destination = strings.TrimSpace(destination)
	name := DownloadName(originalFilename, asset)
	logger := logging.WithContext(services.WithAssetID(services.WithFileID(ctx, asset.FileID), asset.ID), s.logger)

	if key, ok := strings.CutPrefix(destination, s3Scheme); ok {
		if s.remote == nil {
			return "", services.Wrap(services.ErrConfiguration, "export", "export", "bucket export disabled", nil)
		}
		key = strings.TrimLeft(key, "/")
		if key == "" {
			key = s.objectKey(asset, name)
		}
		location, err := s.remote.Upload(ctx, key, asset.Path, ContentType(asset.Kind))
		if err != nil {
			return "", services.Wrap(services.ErrTransient, "export", "upload", "bucket upload failed", err)
		}
		logger.Info("asset exported", logging.String(logging.FieldEventType, "asset_exported"), logging.String("location", location))
		return location, nil
	}

	if destination == "" {
		return "", services.Wrap(services.ErrValidation, "export", "export", "destination required", nil)
	}
	target := destination
	if info, err := os.Stat(destination); err == nil && info.IsDir() {
		target = filepath.Join(destination, name)
	}
	if err := fileutil.CopyFileVerified(asset.Path, target); err != nil {
		return "", fmt.Errorf("export %s: %w", asset.Kind, err)
	}
	logger.Info("asset exported", logging.String(logging.FieldEventType, "asset_exported"), logging.String("location", target))
	return target, nil
}

func (s *Service) objectKey(asset *store.Asset, name string) string {
	parts := []string{asset.FileID, textutil.SanitizeKeySegment(name, asset.ID)}
	if s.prefix != "" {
		parts = append([]string{s.prefix}, parts...)
	}
	return strings.Join(parts, "/")
}

// DownloadName derives a friendly file name: "<recording stem>-<kind>.<ext>".
func DownloadName(originalFilename string, asset *store.Asset) string {
	base := filepath.Base(strings.TrimSpace(originalFilename))
	base = textutil.SanitizeFileName(strings.TrimSuffix(base, filepath.Ext(base)))
	if base == "" {
		base = asset.FileID
	}
	ext := filepath.Ext(asset.Path)
	if asset.Kind == store.KindOriginal {
		return base + ext
	}
	return base + "-" + string(asset.Kind) + ext
}

// ContentType returns the MIME type for an asset kind.
func ContentType(kind store.AssetKind) string {
	switch kind {
	case store.KindMidi:
		return "audio/midi"
	case store.KindPdf:
		return "application/pdf"
	case store.KindOriginal:
		return "application/octet-stream"
	default:
		return "audio/wav"
	}
}
