// internal/services/storage_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/printforge/marketplace-backend/internal/config"
)

// Bucket represents a logical storage zone; a named type keeps random strings
// out of storage calls.
type Bucket string

const (
	// BucketIncoming: private, 24h retention policy. Direct uploads land here.
	BucketIncoming Bucket = "incoming-files"

	// BucketPublic: public read. Validated images and thumbnails are hosted here.
	BucketPublic Bucket = "public-files"

	// BucketProduct: private. Validated models live here and are only reachable
	// through short-lived signed GETs.
	BucketProduct Bucket = "product-files"
)

var (
	ErrObjectNotFound = errors.New("storage: object not found")
	ErrAccessDenied   = errors.New("storage: access denied")
	ErrUploadFailed   = errors.New("storage: upload failed")
)

type UploadGrantConfig struct {
	Bucket      Bucket
	Key         string
	ContentType string
	MaxFileSize int64
	Expiry      time.Duration
}

// StorageProvider abstracts the object store (MinIO, S3, or anything
// S3-compatible).
type StorageProvider interface {
	// GenerateUploadURL returns a POST-policy URL plus the form fields the
	// client must send verbatim, with the file as the last field.
	GenerateUploadURL(ctx context.Context, cfg UploadGrantConfig) (string, map[string]string, error)

	// PresignGet generates a temporary download URL for a private bucket.
	PresignGet(ctx context.Context, bucket Bucket, key string, expiry time.Duration) (string, error)

	// Copy moves an object server-side (e.g. quarantine -> public).
	Copy(ctx context.Context, srcBucket Bucket, srcKey string, destBucket Bucket, destKey string) error

	Delete(ctx context.Context, bucket Bucket, key string) error

	// Get returns a stream so workers can scan large files without buffering
	// them in memory.
	Get(ctx context.Context, bucket Bucket, key string) (io.ReadCloser, error)

	Healthcheck(ctx context.Context) error
}

type MinioProvider struct {
	client *minio.Client
}

var _ StorageProvider = (*MinioProvider)(nil)

func NewMinioProvider(cfg config.StorageConfig) (*MinioProvider, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &MinioProvider{client: client}, nil
}

// GenerateUploadURL builds a POST policy that pins every dimension of the
// upload: bucket, exact key, expiry, size range and content type. The gateway
// never receives the bytes.
func (m *MinioProvider) GenerateUploadURL(ctx context.Context, cfg UploadGrantConfig) (string, map[string]string, error) {
	policy := minio.NewPostPolicy()

	if err := policy.SetBucket(string(cfg.Bucket)); err != nil {
		return "", nil, fmt.Errorf("failed to set bucket: %w", err)
	}
	if err := policy.SetKey(cfg.Key); err != nil {
		return "", nil, fmt.Errorf("failed to set key: %w", err)
	}
	if err := policy.SetExpires(time.Now().Add(cfg.Expiry).UTC()); err != nil {
		return "", nil, fmt.Errorf("failed to set expiry: %w", err)
	}

	// Min 1 KiB rejects empty-file spam; max is the per-kind limit.
	if err := policy.SetContentLengthRange(1024, cfg.MaxFileSize); err != nil {
		return "", nil, fmt.Errorf("failed to set size limit: %w", err)
	}
	if err := policy.SetContentType(cfg.ContentType); err != nil {
		return "", nil, fmt.Errorf("failed to set content type: %w", err)
	}

	url, formData, err := m.client.PresignedPostPolicy(ctx, policy)
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate post policy: %w", err)
	}

	return url.String(), formData, nil
}

func (m *MinioProvider) PresignGet(ctx context.Context, bucket Bucket, key string, expiry time.Duration) (string, error) {
	u, err := m.client.PresignedGetObject(ctx, string(bucket), key, expiry, nil)
	if err != nil {
		return "", mapMinioError(err)
	}
	return u.String(), nil
}

func (m *MinioProvider) Copy(ctx context.Context, srcBucket Bucket, srcKey string, destBucket Bucket, destKey string) error {
	srcOpts := minio.CopySrcOptions{
		Bucket: string(srcBucket),
		Object: srcKey,
	}
	destOpts := minio.CopyDestOptions{
		Bucket: string(destBucket),
		Object: destKey,
	}

	if _, err := m.client.CopyObject(ctx, destOpts, srcOpts); err != nil {
		return mapMinioError(err)
	}

	return nil
}

func (m *MinioProvider) Delete(ctx context.Context, bucket Bucket, key string) error {
	opts := minio.RemoveObjectOptions{
		GovernanceBypass: true,
	}

	if err := m.client.RemoveObject(ctx, string(bucket), key, opts); err != nil {
		return mapMinioError(err)
	}
	return nil
}

func (m *MinioProvider) Get(ctx context.Context, bucket Bucket, key string) (io.ReadCloser, error) {
	obj, err := m.client.GetObject(ctx, string(bucket), key, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapMinioError(err)
	}

	// GetObject is lazy; Stat confirms the object exists before the stream
	// is handed out.
	if _, err := obj.Stat(); err != nil {
		return nil, mapMinioError(err)
	}

	return obj, nil
}

func (m *MinioProvider) Healthcheck(ctx context.Context) error {
	if _, err := m.client.BucketExists(ctx, string(BucketIncoming)); err != nil {
		return mapMinioError(err)
	}
	return nil
}

// mapMinioError translates SDK errors into the domain error set.
func mapMinioError(err error) error {
	if err == nil {
		return nil
	}

	errResp := minio.ToErrorResponse(err)

	switch errResp.Code {
	case "NoSuchKey":
		return ErrObjectNotFound
	case "AccessDenied":
		return ErrAccessDenied
	}

	if errResp.StatusCode == http.StatusNotFound {
		return ErrObjectNotFound
	}
	if errResp.StatusCode == http.StatusForbidden {
		return ErrAccessDenied
	}

	return fmt.Errorf("storage provider error: %w", err)
}
