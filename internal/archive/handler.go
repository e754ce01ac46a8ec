package archive

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/KeremKalyoncu/grabkit/internal/extractor"
	"github.com/KeremKalyoncu/grabkit/internal/pool"
	"github.com/KeremKalyoncu/grabkit/internal/retry"
	"github.com/KeremKalyoncu/grabkit/internal/types"
	"github.com/KeremKalyoncu/grabkit/pkg/storage"
)

// DefaultBitrate is used for every audio transcode
const DefaultBitrate = "192k"

// Handler downloads an extracted media URL, optionally transcodes it and
// stores the file in object storage
type Handler struct {
	client   *http.Client
	ffmpeg   *extractor.FFmpeg
	storage  storage.Storage
	tempDir  string
	maxBytes int64
	backoff  retry.Config
	logger   *zap.Logger
	now      func() time.Time
}

// Config wires the handler's collaborators
type Config struct {
	Client   *http.Client
	FFmpeg   *extractor.FFmpeg
	Storage  storage.Storage
	TempDir  string
	MaxBytes int64 // 0 means unlimited
	Backoff  retry.Config
	Logger   *zap.Logger
}

// NewHandler creates an archive handler
func NewHandler(cfg Config) *Handler {
	if cfg.Client == nil {
		cfg.Client = pool.NewHTTPClient(pool.NewTransport(), 0)
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Backoff.MaxAttempts == 0 {
		cfg.Backoff = retry.DefaultConfig()
	}
	if err := os.MkdirAll(cfg.TempDir, 0o755); err != nil {
		cfg.Logger.Warn("Failed to create temp dir", zap.String("dir", cfg.TempDir), zap.Error(err))
	}
	return &Handler{
		client:   cfg.Client,
		ffmpeg:   cfg.FFmpeg,
		storage:  cfg.Storage,
		tempDir:  cfg.TempDir,
		maxBytes: cfg.MaxBytes,
		backoff:  cfg.Backoff,
		logger:   cfg.Logger,
		now:      time.Now,
	}
}

// HandleArchive implements queue.Handler
func (h *Handler) HandleArchive(ctx context.Context, job *types.ArchiveJob) (*types.ArchiveResult, error) {
	log := h.logger.With(zap.String("job_id", job.ID))

	downloaded, err := h.download(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	defer removeTemp(downloaded, log)

	final := downloaded
	if job.Format != "" {
		if h.ffmpeg == nil {
			return nil, retry.Permanent(fmt.Errorf("transcoding to %s is not available", job.Format))
		}
		final, err = h.ffmpeg.TranscodeAudio(ctx, downloaded, job.Format, DefaultBitrate)
		if err != nil {
			return nil, retry.Permanent(err)
		}
		defer removeTemp(final, log)
	}

	info, err := os.Stat(final)
	if err != nil {
		return nil, err
	}

	ext := filepath.Ext(final)
	filename := fileName(job, ext)
	key := storage.ArchiveKey(job.ID, filename, h.now())
	contentType := mime.TypeByExtension(ext)

	err = h.retry(ctx, func(ctx context.Context) error {
		return h.storage.Upload(ctx, final, key, contentType)
	})
	if err != nil {
		return nil, fmt.Errorf("upload failed: %w", err)
	}

	url, expiresAt, err := h.storage.PresignedURL(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("presign failed: %w", err)
	}

	return &types.ArchiveResult{
		DownloadURL: url,
		Key:         key,
		SizeBytes:   info.Size(),
		Format:      strings.TrimPrefix(ext, "."),
		ExpiresAt:   expiresAt.UTC(),
	}, nil
}

// download fetches job.MediaURL into the temp dir. Client errors other
// than 408 and 429 are permanent; the signed link will not recover.
func (h *Handler) download(ctx context.Context, job *types.ArchiveJob) (string, error) {
	var target string

	err := h.retry(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, job.MediaURL, nil)
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("User-Agent", extractor.RandomUserAgent())

		resp, err := h.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			err := fmt.Errorf("media URL returned status %d", resp.StatusCode)
			if resp.StatusCode >= 400 && resp.StatusCode < 500 &&
				resp.StatusCode != http.StatusRequestTimeout && resp.StatusCode != http.StatusTooManyRequests {
				return retry.Permanent(err)
			}
			return err
		}

		dst := filepath.Join(h.tempDir, job.ID+extensionFor(job, resp.Header.Get("Content-Type")))
		if err := h.save(resp.Body, dst); err != nil {
			os.Remove(dst)
			return err
		}
		target = dst
		return nil
	})
	return target, err
}

// retry runs fn with the handler's backoff. retry.Retry strips the
// permanent mark, so it is restored here for the queue to see.
func (h *Handler) retry(ctx context.Context, fn func(ctx context.Context) error) error {
	var permanent bool
	err := retry.Retry(ctx, h.backoff, func(ctx context.Context) error {
		err := fn(ctx)
		permanent = retry.IsPermanent(err)
		return err
	})
	if err != nil && permanent {
		return retry.Permanent(err)
	}
	return err
}

func (h *Handler) save(body io.Reader, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return retry.Permanent(err)
	}
	defer file.Close()

	if h.maxBytes > 0 {
		body = io.LimitReader(body, h.maxBytes+1)
	}

	buffer := pool.Chunks.Get()
	defer pool.Chunks.Put(buffer)

	n, err := io.CopyBuffer(file, body, buffer)
	if err != nil {
		return err
	}
	if h.maxBytes > 0 && n > h.maxBytes {
		return retry.Permanent(fmt.Errorf("media exceeds %d bytes", h.maxBytes))
	}
	return nil
}

var knownExtensions = map[string]bool{
	".mp4": true, ".webm": true, ".m4a": true, ".mp3": true,
	".opus": true, ".ogg": true, ".mov": true, ".gif": true,
}

// extensionFor prefers the URL's extension, then the response type,
// then a default for the media kind
func extensionFor(job *types.ArchiveJob, contentType string) string {
	if u := job.MediaURL; u != "" {
		if i := strings.IndexAny(u, "?#"); i >= 0 {
			u = u[:i]
		}
		if ext := strings.ToLower(path.Ext(u)); knownExtensions[ext] {
			return ext
		}
	}

	switch mt, _, _ := mime.ParseMediaType(contentType); mt {
	case "video/mp4":
		return ".mp4"
	case "video/webm":
		return ".webm"
	case "audio/webm":
		return ".webm"
	case "audio/mp4", "audio/x-m4a":
		return ".m4a"
	case "audio/mpeg":
		return ".mp3"
	case "audio/ogg", "audio/opus":
		return ".opus"
	}

	if job.MediaKind == types.MediaAudio {
		return ".m4a"
	}
	return ".mp4"
}

func fileName(job *types.ArchiveJob, ext string) string {
	base := string(job.Platform)
	if base == "" {
		base = "media"
	}
	if job.MediaKind == types.MediaAudio {
		return base + "_audio" + ext
	}
	return base + "_video" + ext
}

func removeTemp(path string, logger *zap.Logger) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warn("Failed to remove temp file", zap.String("file", path), zap.Error(err))
	}
}
