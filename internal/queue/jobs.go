package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/KeremKalyoncu/grabkit/internal/types"
)

// ErrJobNotFound is returned for unknown or expired job IDs
var ErrJobNotFound = errors.New("job not found")

// JobStore keeps the client-visible status record of each archive job
type JobStore interface {
	Save(ctx context.Context, job *types.ArchiveJob) error
	Get(ctx context.Context, id string) (*types.ArchiveJob, error)
}

// RedisJobs stores jobs as JSON strings under archive:job:{id}
type RedisJobs struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisJobs creates a redis job store; records expire after ttl
func NewRedisJobs(client redis.UniversalClient, ttl time.Duration) *RedisJobs {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &RedisJobs{client: client, ttl: ttl}
}

func jobKey(id string) string {
	return "archive:job:" + id
}

func (r *RedisJobs) Save(ctx context.Context, job *types.ArchiveJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	return r.client.Set(ctx, jobKey(job.ID), data, r.ttl).Err()
}

func (r *RedisJobs) Get(ctx context.Context, id string) (*types.ArchiveJob, error) {
	data, err := r.client.Get(ctx, jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	var job types.ArchiveJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}

// MemoryJobs is a process-local JobStore for development and tests
type MemoryJobs struct {
	mu   sync.Mutex
	jobs map[string]types.ArchiveJob
}

func NewMemoryJobs() *MemoryJobs {
	return &MemoryJobs{jobs: make(map[string]types.ArchiveJob)}
}

func (m *MemoryJobs) Save(_ context.Context, job *types.ArchiveJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *job
	if job.Result != nil {
		r := *job.Result
		c.Result = &r
	}
	m.jobs[job.ID] = c
	return nil
}

func (m *MemoryJobs) Get(_ context.Context, id string) (*types.ArchiveJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	if job.Result != nil {
		r := *job.Result
		job.Result = &r
	}
	return &job, nil
}

// update applies fn to the stored job and saves it
func update(ctx context.Context, store JobStore, id string, fn func(job *types.ArchiveJob)) (*types.ArchiveJob, error) {
	job, err := store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	fn(job)
	job.UpdatedAt = time.Now().UTC()
	if err := store.Save(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// MarkProcessing records that a worker picked the job up
func MarkProcessing(ctx context.Context, store JobStore, id string) error {
	_, err := update(ctx, store, id, func(job *types.ArchiveJob) {
		job.Status = types.StatusProcessing
		job.Error = ""
	})
	return err
}

// MarkCompleted stores the archive result
func MarkCompleted(ctx context.Context, store JobStore, id string, result *types.ArchiveResult) error {
	_, err := update(ctx, store, id, func(job *types.ArchiveJob) {
		job.Status = types.StatusCompleted
		job.Result = result
		job.Error = ""
	})
	return err
}

// MarkFailed records the terminal failure reason
func MarkFailed(ctx context.Context, store JobStore, id string, reason string) error {
	_, err := update(ctx, store, id, func(job *types.ArchiveJob) {
		job.Status = types.StatusFailed
		job.Error = reason
	})
	return err
}
