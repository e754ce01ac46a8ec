package storage

import (
	"context"
	"fmt"
	"path"
	"time"

	"go.uber.org/zap"
)

// Storage persists archived media and hands out time-limited download links
type Storage interface {
	Upload(ctx context.Context, filePath, key, contentType string) error
	PresignedURL(ctx context.Context, key string) (url string, expiresAt time.Time, err error)
	Delete(ctx context.Context, key string) error
}

// Options selects and configures a backend
type Options struct {
	Type          string // s3 or local
	Region        string
	Bucket        string
	Endpoint      string // R2/MinIO
	UsePathStyle  bool
	PresignExpiry time.Duration
	LocalPath     string
	LocalBaseURL  string
}

// New builds the configured backend
func New(ctx context.Context, opts Options, logger *zap.Logger) (Storage, error) {
	switch opts.Type {
	case "s3":
		return NewS3Storage(ctx, opts, logger)
	case "local", "":
		return NewLocalStorage(opts.LocalPath, opts.LocalBaseURL, opts.PresignExpiry, logger)
	default:
		return nil, fmt.Errorf("unknown storage type %q", opts.Type)
	}
}

// ArchiveKey builds archive/{date}/{job_id}/{filename}
func ArchiveKey(jobID, filename string, now time.Time) string {
	return path.Join("archive", now.UTC().Format("2006-01-02"), jobID, filename)
}
