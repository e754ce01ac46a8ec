package handlers

import (
	"context"
	"mime"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/KeremKalyoncu/grabkit/internal/auth"
	apperrors "github.com/KeremKalyoncu/grabkit/internal/errors"
	"github.com/KeremKalyoncu/grabkit/internal/extractor"
	"github.com/KeremKalyoncu/grabkit/internal/metrics"
	"github.com/KeremKalyoncu/grabkit/internal/middleware"
	"github.com/KeremKalyoncu/grabkit/internal/queue"
	"github.com/KeremKalyoncu/grabkit/internal/types"
	"github.com/KeremKalyoncu/grabkit/pkg/storage"
)

// ArchiveHandler accepts archive jobs and reports their status
type ArchiveHandler struct {
	svc     *extractor.Service
	gate    *auth.Gate
	queue   *queue.Client
	local   *storage.LocalStorage
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewArchiveHandler creates an archive handler. local is nil unless
// archives are kept on this host's filesystem.
func NewArchiveHandler(svc *extractor.Service, gate *auth.Gate, q *queue.Client, local *storage.LocalStorage, m *metrics.Metrics, logger *zap.Logger) *ArchiveHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArchiveHandler{svc: svc, gate: gate, queue: q, local: local, metrics: m, logger: logger}
}

type archiveRequest struct {
	URL    string `json:"url"`
	Format string `json:"format"`
}

// Create extracts the media and queues a copy to storage. POST /archive
func (h *ArchiveHandler) Create(c *fiber.Ctx) error {
	var req archiveRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.ErrInvalidRequest.WithCause(err)
	}
	req.URL = strings.TrimSpace(req.URL)
	req.Format = strings.ToLower(strings.TrimSpace(req.Format))

	if err := middleware.ValidateMediaURL(req.URL); err != nil {
		return err
	}
	if req.Format != "" {
		if _, ok := extractor.AudioFormats[req.Format]; !ok {
			return apperrors.ErrInvalidFormat.WithDetails(fiber.Map{
				"format":    req.Format,
				"supported": audioFormatNames(),
			})
		}
	}

	platform := detectPlatform(req.URL)
	if platform == types.PlatformUnknown {
		return apperrors.ErrInvalidURL.WithMessage("Unsupported platform. Supported: TikTok, Instagram, Twitter/X, YouTube")
	}

	var accepted *types.ArchiveJob
	err := authorizedUndo(c, h.gate, h.logger, func(ctx context.Context) (bool, error) {
		outcome, err := h.svc.Extract(ctx, platform, req.URL)
		if err != nil {
			return false, err
		}

		job, err := archiveJobFor(outcome.Result, req.URL, req.Format)
		if err != nil {
			return false, err
		}
		job.Platform = platform

		accepted, err = h.queue.EnqueueArchive(ctx, *job)
		if err != nil {
			return false, err
		}
		return true, nil
	}, func(ctx context.Context) {
		if accepted == nil {
			return
		}
		if err := h.queue.CancelArchive(ctx, accepted.ID, "insufficient credits"); err != nil {
			h.logger.Error("Failed to cancel unpaid archive job",
				zap.String("job_id", accepted.ID),
				zap.Error(err),
			)
		}
	})
	if err != nil {
		return err
	}

	if h.metrics != nil {
		h.metrics.ArchiveJobs.Add(1)
	}
	h.logger.Info("Archive job accepted",
		zap.String("job_id", accepted.ID),
		zap.String("platform", string(platform)),
		zap.String("format", req.Format),
	)

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"success": true,
		"job":     accepted,
	})
}

// Status returns one job. GET /archive/:id
func (h *ArchiveHandler) Status(c *fiber.Ctx) error {
	job, err := h.queue.GetJob(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"job":     job,
	})
}

// File serves an archive from local storage. GET /archive/files/*
func (h *ArchiveHandler) File(c *fiber.Ctx) error {
	if h.local == nil {
		return apperrors.ErrRouteNotFound
	}
	path, err := h.local.Path(c.Params("*"))
	if err != nil {
		return apperrors.ErrNotFound.WithMessage("File not found")
	}
	return middleware.StreamFile(c, path, filepath.Base(path), mime.TypeByExtension(filepath.Ext(path)))
}

// archiveJobFor picks the candidate to archive. Audio targets prefer an
// audio candidate but fall back to video; ffmpeg drops the picture.
func archiveJobFor(res *types.MediaResult, sourceURL, format string) (*types.ArchiveJob, error) {
	if res.MetadataOnly || !res.HasCandidates() {
		return nil, apperrors.ErrExtractionFailed.WithMessage("No downloadable media found to archive")
	}

	var (
		candidate types.DownloadCandidate
		ok        bool
	)
	if format != "" || res.MediaKind == types.MediaAudio {
		candidate, ok = res.Best(types.VariantAudio)
	}
	if !ok {
		candidate, ok = res.Best(types.VariantHDNoWatermark, types.VariantNoWatermark, types.VariantVideo, types.VariantWatermark)
	}
	if !ok {
		candidate, _ = res.Best()
	}

	kind := res.MediaKind
	if candidate.Variant == types.VariantAudio || format != "" {
		kind = types.MediaAudio
	}

	return &types.ArchiveJob{
		Platform:  res.Platform,
		SourceURL: sourceURL,
		MediaURL:  candidate.URL,
		MediaKind: kind,
		Format:    format,
		Title:     res.Caption,
	}, nil
}

func audioFormatNames() []string {
	names := make([]string, 0, len(extractor.AudioFormats))
	for name := range extractor.AudioFormats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
