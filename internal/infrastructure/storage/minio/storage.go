// Package minio stores report attachments in an S3-compatible bucket.
package minio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/kirillkom/collateral-appraisal/internal/core/domain"
	"github.com/kirillkom/collateral-appraisal/internal/infrastructure/resilience"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type Storage struct {
	client   *minio.Client
	bucket   string
	executor *resilience.Executor
}

// New connects and creates the bucket when it does not exist yet.
func New(ctx context.Context, cfg Config, executor *resilience.Executor, logger *slog.Logger) (*Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
		logger.Info("storage_bucket_created", "bucket", cfg.Bucket)
	}
	return &Storage{client: client, bucket: cfg.Bucket, executor: executor}, nil
}

// Save streams the object with unknown size; minio-go switches to a
// multipart upload for large attachments.
func (s *Storage) Save(ctx context.Context, key string, data io.Reader) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, data, -1, minio.PutObjectOptions{})
	if err != nil {
		return resilience.WrapTemporary("put object", fmt.Errorf("put object %s: %w", key, err), classifyMinioError)
	}
	return nil
}

func (s *Storage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := resilience.Query(ctx, s.executor, "minio.stat", func(ctx context.Context) (*minio.Object, error) {
		obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
		if err != nil {
			return nil, err
		}
		// GetObject is lazy; Stat surfaces a missing key before streaming.
		if _, err := obj.Stat(); err != nil {
			_ = obj.Close()
			return nil, err
		}
		return obj, nil
	}, classifyMinioError)
	if err != nil {
		if isNoSuchKey(err) {
			return nil, domain.WrapError(domain.ErrNotFound, "open object", fmt.Errorf("key=%s", key))
		}
		return nil, resilience.WrapTemporary("get object", fmt.Errorf("get object %s: %w", key, err), classifyMinioError)
	}
	return obj, nil
}

// Delete is idempotent: S3 reports success for missing keys.
func (s *Storage) Delete(ctx context.Context, key string) error {
	err := resilience.Run(ctx, s.executor, "minio.remove", func(ctx context.Context) error {
		return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	}, classifyMinioError)
	if err != nil && !isNoSuchKey(err) {
		return resilience.WrapTemporary("remove object", fmt.Errorf("remove object %s: %w", key, err), classifyMinioError)
	}
	return nil
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}

func classifyMinioError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if resilience.IsContextDone(err) || isNoSuchKey(err) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.StatusCode >= http.StatusInternalServerError, resp.Code == "SlowDown", resp.Code == "RequestTimeout":
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	case resp.StatusCode >= http.StatusBadRequest:
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}
