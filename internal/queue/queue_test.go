package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/KeremKalyoncu/grabkit/internal/errors"
	"github.com/KeremKalyoncu/grabkit/internal/retry"
	"github.com/KeremKalyoncu/grabkit/internal/types"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{Queue: QueueDefault}, nil
}

func (f *fakeEnqueuer) Close() error { return nil }

type handlerFunc func(ctx context.Context, job *types.ArchiveJob) (*types.ArchiveResult, error)

func (f handlerFunc) HandleArchive(ctx context.Context, job *types.ArchiveJob) (*types.ArchiveResult, error) {
	return f(ctx, job)
}

func enqueue(t *testing.T, jobs JobStore) (*types.ArchiveJob, *asynq.Task) {
	t.Helper()
	enq := &fakeEnqueuer{}
	client := NewClient(enq, jobs, ClientOptions{MaxRetry: 3}, nil)

	job, err := client.EnqueueArchive(context.Background(), types.ArchiveJob{
		Platform:  types.PlatformYouTube,
		SourceURL: "https://youtu.be/dQw4w9WgXcQ",
		MediaURL:  "https://rr1.googlevideo.com/audio",
		Format:    "mp3",
	})
	require.NoError(t, err)
	require.Len(t, enq.tasks, 1)
	return job, enq.tasks[0]
}

func TestEnqueueArchiveStoresPendingRecord(t *testing.T) {
	jobs := NewMemoryJobs()
	job, task := enqueue(t, jobs)

	assert.NotEmpty(t, job.ID)
	assert.Equal(t, TypeArchive, task.Type())

	var payload types.ArchiveJob
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, job.ID, payload.ID)
	assert.Equal(t, "mp3", payload.Format)

	client := NewClient(&fakeEnqueuer{}, jobs, ClientOptions{}, nil)
	stored, err := client.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, stored.Status)

	_, err = client.GetJob(context.Background(), "missing")
	assert.Equal(t, "JOB_NOT_FOUND", apperrors.GetErrorCode(err))
}

func TestEnqueueFailureMarksJobFailed(t *testing.T) {
	jobs := NewMemoryJobs()
	client := NewClient(&fakeEnqueuer{err: errors.New("redis down")}, jobs, ClientOptions{}, nil)

	_, err := client.EnqueueArchive(context.Background(), types.ArchiveJob{MediaURL: "https://cdn/x.mp4"})
	require.Error(t, err)
	assert.Equal(t, "QUEUE_ERROR", apperrors.GetErrorCode(err))
}

func TestProcessTaskCompletesJob(t *testing.T) {
	jobs := NewMemoryJobs()
	job, task := enqueue(t, jobs)

	srv := NewServer(ServerConfig{
		Jobs: jobs,
		Handler: handlerFunc(func(ctx context.Context, j *types.ArchiveJob) (*types.ArchiveResult, error) {
			stored, err := jobs.Get(ctx, j.ID)
			require.NoError(t, err)
			assert.Equal(t, types.StatusProcessing, stored.Status)
			return &types.ArchiveResult{Key: "archive/k.mp3", DownloadURL: "https://signed", SizeBytes: 42, Format: "mp3"}, nil
		}),
	})

	require.NoError(t, srv.ProcessTask(context.Background(), task))

	stored, err := jobs.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, stored.Status)
	require.NotNil(t, stored.Result)
	assert.Equal(t, "https://signed", stored.Result.DownloadURL)
}

func TestProcessTaskPermanentFailureSkipsRetry(t *testing.T) {
	jobs := NewMemoryJobs()
	job, task := enqueue(t, jobs)

	srv := NewServer(ServerConfig{
		Jobs: jobs,
		Handler: handlerFunc(func(context.Context, *types.ArchiveJob) (*types.ArchiveResult, error) {
			return nil, retry.Permanent(errors.New("media URL returned 404"))
		}),
	})

	err := srv.ProcessTask(context.Background(), task)
	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)

	stored, _ := jobs.Get(context.Background(), job.ID)
	assert.Equal(t, types.StatusFailed, stored.Status)
	assert.Equal(t, "media URL returned 404", stored.Error)
}

func TestProcessTaskSkipsCancelledJob(t *testing.T) {
	jobs := NewMemoryJobs()
	job, task := enqueue(t, jobs)

	client := NewClient(&fakeEnqueuer{}, jobs, ClientOptions{}, nil)
	require.NoError(t, client.CancelArchive(context.Background(), job.ID, "insufficient credits"))

	var ran bool
	srv := NewServer(ServerConfig{
		Jobs: jobs,
		Handler: handlerFunc(func(context.Context, *types.ArchiveJob) (*types.ArchiveResult, error) {
			ran = true
			return &types.ArchiveResult{}, nil
		}),
	})

	require.NoError(t, srv.ProcessTask(context.Background(), task))
	assert.False(t, ran)

	stored, err := jobs.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, stored.Status)
	assert.Equal(t, "insufficient credits", stored.Error)
}

func TestProcessTaskRejectsBadPayload(t *testing.T) {
	srv := NewServer(ServerConfig{Jobs: NewMemoryJobs()})
	err := srv.ProcessTask(context.Background(), asynq.NewTask(TypeArchive, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}
