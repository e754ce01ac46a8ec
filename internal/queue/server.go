package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/KeremKalyoncu/grabkit/internal/retry"
	"github.com/KeremKalyoncu/grabkit/internal/types"
)

// Handler performs one archive job
type Handler interface {
	HandleArchive(ctx context.Context, job *types.ArchiveJob) (*types.ArchiveResult, error)
}

// ServerConfig holds worker configuration
type ServerConfig struct {
	Redis           asynq.RedisConnOpt
	Concurrency     int
	Queues          map[string]int
	ShutdownTimeout time.Duration
	Backoff         retry.Config
	Jobs            JobStore
	Handler         Handler
	Logger          *zap.Logger
}

// Server wraps the asynq server
type Server struct {
	asynq   *asynq.Server
	mux     *asynq.ServeMux
	jobs    JobStore
	handler Handler
	logger  *zap.Logger
}

// NewServer creates a worker server
func NewServer(cfg ServerConfig) *Server {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if len(cfg.Queues) == 0 {
		cfg.Queues = map[string]int{QueueDefault: 6, QueueTranscode: 4}
	}

	srv := &Server{
		mux:     asynq.NewServeMux(),
		jobs:    cfg.Jobs,
		handler: cfg.Handler,
		logger:  cfg.Logger,
	}

	if cfg.Redis != nil {
		srv.asynq = asynq.NewServer(cfg.Redis, asynq.Config{
			Concurrency:     cfg.Concurrency,
			Queues:          cfg.Queues,
			ShutdownTimeout: cfg.ShutdownTimeout,
			Logger:          NewAsynqLogger(cfg.Logger),
			RetryDelayFunc: func(n int, _ error, _ *asynq.Task) time.Duration {
				return retry.Backoff(cfg.Backoff, n)
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				cfg.Logger.Warn("Task attempt failed",
					zap.String("type", task.Type()),
					zap.Error(err),
				)
			}),
		})
	}

	srv.mux.HandleFunc(TypeArchive, srv.ProcessTask)
	return srv
}

// Start begins processing without blocking
func (s *Server) Start() error {
	s.logger.Info("Starting archive worker")
	return s.asynq.Start(s.mux)
}

// Shutdown waits for in-flight tasks up to the shutdown timeout
func (s *Server) Shutdown() {
	s.logger.Info("Shutting down archive worker")
	s.asynq.Shutdown()
}

// finalAttempt reports whether asynq will not retry a failure of this run
func finalAttempt(ctx context.Context) bool {
	retried, ok1 := asynq.GetRetryCount(ctx)
	limit, ok2 := asynq.GetMaxRetry(ctx)
	if !ok1 || !ok2 {
		return true
	}
	return retried >= limit
}

// ProcessTask runs the handler and keeps the status record current
func (s *Server) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var job types.ArchiveJob
	if err := json.Unmarshal(task.Payload(), &job); err != nil {
		return fmt.Errorf("failed to unmarshal job: %v: %w", err, asynq.SkipRetry)
	}

	log := s.logger.With(zap.String("job_id", job.ID))
	log.Info("Processing archive job",
		zap.String("platform", string(job.Platform)),
		zap.String("format", job.Format),
	)

	if rec, err := s.jobs.Get(ctx, job.ID); err == nil && rec.Status == types.StatusFailed {
		log.Info("Skipping cancelled archive job", zap.String("reason", rec.Error))
		return nil
	}

	if err := MarkProcessing(ctx, s.jobs, job.ID); err != nil {
		log.Warn("Failed to mark job processing", zap.Error(err))
	}

	result, err := s.handler.HandleArchive(ctx, &job)
	if err != nil {
		permanent := retry.IsPermanent(err)
		if permanent || finalAttempt(ctx) {
			if markErr := MarkFailed(context.WithoutCancel(ctx), s.jobs, job.ID, err.Error()); markErr != nil {
				log.Error("Failed to mark job failed", zap.Error(markErr))
			}
		}
		log.Error("Archive job failed", zap.Bool("permanent", permanent), zap.Error(err))
		if permanent {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}

	if err := MarkCompleted(ctx, s.jobs, job.ID, result); err != nil {
		return fmt.Errorf("failed to store result: %w", err)
	}

	log.Info("Archive job completed",
		zap.String("key", result.Key),
		zap.Int64("size", result.SizeBytes),
	)
	return nil
}

// AsynqLogger adapts zap.Logger to asynq.Logger interface
type AsynqLogger struct {
	logger *zap.Logger
}

func NewAsynqLogger(logger *zap.Logger) *AsynqLogger {
	return &AsynqLogger{logger: logger.WithOptions(zap.AddCallerSkip(1))}
}

func (l *AsynqLogger) Debug(args ...interface{}) {
	l.logger.Debug(fmt.Sprint(args...))
}

func (l *AsynqLogger) Info(args ...interface{}) {
	l.logger.Info(fmt.Sprint(args...))
}

func (l *AsynqLogger) Warn(args ...interface{}) {
	l.logger.Warn(fmt.Sprint(args...))
}

func (l *AsynqLogger) Error(args ...interface{}) {
	l.logger.Error(fmt.Sprint(args...))
}

func (l *AsynqLogger) Fatal(args ...interface{}) {
	l.logger.Fatal(fmt.Sprint(args...))
}
