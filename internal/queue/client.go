package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	apperrors "github.com/KeremKalyoncu/grabkit/internal/errors"
	"github.com/KeremKalyoncu/grabkit/internal/types"
)

// Task types
const (
	TypeArchive = "archive:media"
)

// Queues. Transcoding jobs go to their own queue so long ffmpeg runs do not
// starve plain copies.
const (
	QueueDefault   = "default"
	QueueTranscode = "transcode"
)

// Enqueuer is the part of *asynq.Client the client needs
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// ClientOptions bounds each archive task
type ClientOptions struct {
	MaxRetry  int
	Timeout   time.Duration
	Retention time.Duration
}

// Client enqueues archive jobs and reads their status
type Client struct {
	enqueuer Enqueuer
	jobs     JobStore
	opts     ClientOptions
	logger   *zap.Logger
}

// NewClient creates a queue client
func NewClient(enqueuer Enqueuer, jobs JobStore, opts ClientOptions, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxRetry < 0 {
		opts.MaxRetry = 0
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Minute
	}
	if opts.Retention <= 0 {
		opts.Retention = 24 * time.Hour
	}
	return &Client{enqueuer: enqueuer, jobs: jobs, opts: opts, logger: logger}
}

// NewAsynqClient connects an asynq client to redis
func NewAsynqClient(addr, password string, db int) *asynq.Client {
	return asynq.NewClient(asynq.RedisClientOpt{Addr: addr, Password: password, DB: db})
}

func queueFor(job *types.ArchiveJob) string {
	if job.Format != "" {
		return QueueTranscode
	}
	return QueueDefault
}

// EnqueueArchive stores a pending status record and enqueues the task.
// The job ID doubles as the asynq task ID.
func (c *Client) EnqueueArchive(ctx context.Context, job types.ArchiveJob) (*types.ArchiveJob, error) {
	now := time.Now().UTC()
	job.ID = uuid.NewString()
	job.Status = types.StatusPending
	job.CreatedAt = now
	job.UpdatedAt = now

	if err := c.jobs.Save(ctx, &job); err != nil {
		return nil, apperrors.ErrQueueFailed.WithCause(fmt.Errorf("failed to store job: %w", err))
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return nil, apperrors.ErrQueueFailed.WithCause(err)
	}

	task := asynq.NewTask(TypeArchive, payload)
	info, err := c.enqueuer.EnqueueContext(ctx, task,
		asynq.Queue(queueFor(&job)),
		asynq.MaxRetry(c.opts.MaxRetry),
		asynq.Timeout(c.opts.Timeout),
		asynq.Retention(c.opts.Retention),
		asynq.TaskID(job.ID),
	)
	if err != nil {
		if markErr := MarkFailed(ctx, c.jobs, job.ID, "failed to enqueue"); markErr != nil {
			c.logger.Warn("Failed to mark job failed", zap.String("job_id", job.ID), zap.Error(markErr))
		}
		return nil, apperrors.ErrQueueFailed.WithCause(err)
	}

	c.logger.Info("Archive job enqueued",
		zap.String("job_id", job.ID),
		zap.String("platform", string(job.Platform)),
		zap.String("queue", info.Queue),
	)
	return &job, nil
}

// CancelArchive marks an enqueued job failed. Workers skip jobs whose
// record is already failed when they pick them up.
func (c *Client) CancelArchive(ctx context.Context, id, reason string) error {
	if err := MarkFailed(ctx, c.jobs, id, reason); err != nil {
		return err
	}
	c.logger.Info("Archive job cancelled", zap.String("job_id", id), zap.String("reason", reason))
	return nil
}

// GetJob returns the status record of id
func (c *Client) GetJob(ctx context.Context, id string) (*types.ArchiveJob, error) {
	job, err := c.jobs.Get(ctx, id)
	if errors.Is(err, ErrJobNotFound) {
		return nil, apperrors.ErrJobNotFound
	}
	if err != nil {
		return nil, apperrors.ErrInternal.WithCause(err)
	}
	return job, nil
}

// Close closes the asynq connection
func (c *Client) Close() error {
	return c.enqueuer.Close()
}
