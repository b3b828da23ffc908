package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/exteriorai/exteriorai-backend/internal/logging"
	"github.com/exteriorai/exteriorai-backend/internal/metrics"
)

// presignExpiry is the longest lifetime S3-compatible stores accept.
const presignExpiry = 7 * 24 * time.Hour

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PublicURL string

	// Region skips the bucket location lookup when set.
	Region string
}

type MinIO struct {
	client    *minio.Client
	bucket    string
	publicURL string
	now       func() time.Time

	mu          sync.Mutex
	bucketReady bool
}

func NewMinIO(cfg MinIOConfig) (*MinIO, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &MinIO{client: client, bucket: cfg.Bucket, publicURL: cfg.PublicURL, now: time.Now}, nil
}

func (m *MinIO) Upload(ctx context.Context, dataURI, folder string) (*Result, error) {
	img, err := ValidateImage(dataURI)
	if err != nil {
		return nil, err
	}
	if err := m.ensureBucket(ctx); err != nil {
		return nil, err
	}

	key := objectName(m.now()) + extensionFor(img.MimeType)
	if f := cleanFolder(folder); f != "" {
		key = path.Join(f, key)
	}

	start := time.Now()
	_, err = m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(img.Data), int64(len(img.Data)), minio.PutObjectOptions{
		ContentType: img.MimeType,
	})
	metrics.RecordUpstreamCall(metrics.ServiceObjects, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("minio put %s: %w", key, err)
	}

	objectURL, err := m.objectURL(ctx, key)
	if err != nil {
		return nil, err
	}
	return &Result{URL: objectURL, PublicID: key}, nil
}

func (m *MinIO) objectURL(ctx context.Context, key string) (string, error) {
	if m.publicURL != "" {
		return m.publicURL + "/" + m.bucket + "/" + key, nil
	}
	u, err := m.client.PresignedGetObject(ctx, m.bucket, key, presignExpiry, make(url.Values))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return u.String(), nil
}

func (m *MinIO) ensureBucket(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.bucketReady {
		return nil
	}

	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", m.bucket, err)
	}
	if !exists {
		if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", m.bucket, err)
		}
		logging.FromContext(ctx).LogInfof("minio_bucket", "created bucket %s", m.bucket)
	}
	m.bucketReady = true
	return nil
}
