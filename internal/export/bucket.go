package export

import (
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"lala/internal/config"
	"lala/internal/services"
)

// BucketUploader writes objects to an S3-compatible bucket with minio-go.
type BucketUploader struct {
	client *minio.Client
	bucket string
	region string
	ready  bool
}

// NewBucketUploader constructs an uploader. No network calls happen until
// the first upload.
func NewBucketUploader(cfg config.Export) (*BucketUploader, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" || strings.TrimSpace(cfg.Bucket) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "export", "init", "endpoint and bucket required", nil)
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "export", "init", "create bucket client", err)
	}
	return &BucketUploader{client: client, bucket: cfg.Bucket, region: cfg.Region}, nil
}

// Upload implements ObjectUploader. The bucket is created on first use.
func (u *BucketUploader) Upload(ctx context.Context, key, path, contentType string) (string, error) {
	if err := u.ensureBucket(ctx); err != nil {
		return "", err
	}
	info, err := u.client.FPutObject(ctx, u.bucket, key, path, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return fmt.Sprintf("s3://%s/%s", info.Bucket, info.Key), nil
}

func (u *BucketUploader) ensureBucket(ctx context.Context) error {
	if u.ready {
		return nil
	}
	exists, err := u.client.BucketExists(ctx, u.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := u.client.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{Region: u.region}); err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
	}
	u.ready = true
	return nil
}
