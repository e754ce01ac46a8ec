package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// LocalStorage keeps archived files on disk and serves them through the API
type LocalStorage struct {
	basePath string
	baseURL  string
	expiry   time.Duration
	logger   *zap.Logger
}

// NewLocalStorage creates the base directory if needed
func NewLocalStorage(basePath, baseURL string, expiry time.Duration, logger *zap.Logger) (*LocalStorage, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("invalid storage path: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &LocalStorage{
		basePath: abs,
		baseURL:  strings.TrimRight(baseURL, "/"),
		expiry:   expiry,
		logger:   logger,
	}, nil
}

// Path resolves key inside the base directory, rejecting traversal
func (ls *LocalStorage) Path(key string) (string, error) {
	full := filepath.Join(ls.basePath, filepath.FromSlash(key))
	if full != ls.basePath && !strings.HasPrefix(full, ls.basePath+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return full, nil
}

// Upload copies filePath under key
func (ls *LocalStorage) Upload(ctx context.Context, filePath, key, _ string) error {
	fullPath, err := ls.Path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	src, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(fullPath)
		return fmt.Errorf("failed to copy file: %w", err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("failed to close destination file: %w", err)
	}

	ls.logger.Info("File stored locally",
		zap.String("key", key),
		zap.String("path", fullPath),
	)
	return nil
}

// PresignedURL returns the API route serving key. Local links are not
// signed; expiresAt reports when the cleanup service may remove the file.
func (ls *LocalStorage) PresignedURL(_ context.Context, key string) (string, time.Time, error) {
	if _, err := ls.Path(key); err != nil {
		return "", time.Time{}, err
	}
	return ls.baseURL + "/" + key, time.Now().Add(ls.expiry), nil
}

// Open returns the stored file for streaming
func (ls *LocalStorage) Open(key string) (*os.File, error) {
	fullPath, err := ls.Path(key)
	if err != nil {
		return nil, err
	}
	return os.Open(fullPath)
}

// Delete removes a stored file; a missing file is not an error
func (ls *LocalStorage) Delete(_ context.Context, key string) error {
	fullPath, err := ls.Path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// BasePath is the directory holding stored files
func (ls *LocalStorage) BasePath() string {
	return ls.basePath
}
