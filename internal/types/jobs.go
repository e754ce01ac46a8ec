package types

import "time"

// ArchiveRequest asks the worker to persist an extracted media file
type ArchiveRequest struct {
	URL    string `json:"url"`
	Format string `json:"format,omitempty"` // audio target: mp3, m4a, opus; empty keeps the original
}

// ArchiveJob represents an archive job in the queue
type ArchiveJob struct {
	ID        string         `json:"id"`
	Status    JobStatus      `json:"status"`
	Platform  Platform       `json:"platform"`
	SourceURL string         `json:"sourceUrl"`
	MediaURL  string         `json:"mediaUrl"`
	MediaKind MediaKind      `json:"mediaKind"`
	Format    string         `json:"format,omitempty"`
	Title     string         `json:"title,omitempty"`
	Error     string         `json:"error,omitempty"`
	Result    *ArchiveResult `json:"result,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// JobStatus represents the current state of a job
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// ArchiveResult is the stored copy of a media file
type ArchiveResult struct {
	DownloadURL string    `json:"downloadUrl"`
	Key         string    `json:"key"`
	SizeBytes   int64     `json:"sizeBytes"`
	Format      string    `json:"format"`
	ExpiresAt   time.Time `json:"expiresAt"`
}
