package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchiveKey(t *testing.T) {
	at := time.Date(2024, 5, 10, 23, 0, 0, 0, time.FixedZone("x", -3*3600))
	assert.Equal(t, "archive/2024-05-11/job-1/audio.mp3", ArchiveKey("job-1", "audio.mp3", at))
}

func TestLocalStorageRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ls, err := NewLocalStorage(filepath.Join(dir, "store"), "http://localhost:3000/archive/files/", time.Hour, nil)
	require.NoError(t, err)

	src := filepath.Join(dir, "in.mp4")
	require.NoError(t, os.WriteFile(src, []byte("media"), 0o644))

	key := ArchiveKey("job-1", "video.mp4", time.Now())
	require.NoError(t, ls.Upload(context.Background(), src, key, "video/mp4"))

	url, expires, err := ls.PresignedURL(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3000/archive/files/"+key, url)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, time.Minute)

	f, err := ls.Open(key)
	require.NoError(t, err)
	b, _ := io.ReadAll(f)
	f.Close()
	assert.Equal(t, "media", string(b))

	require.NoError(t, ls.Delete(context.Background(), key))
	require.NoError(t, ls.Delete(context.Background(), key))
	_, err = ls.Open(key)
	assert.Error(t, err)
}

func TestLocalStorageRejectsTraversal(t *testing.T) {
	ls, err := NewLocalStorage(t.TempDir(), "http://x", time.Hour, nil)
	require.NoError(t, err)

	_, err = ls.Path("../../etc/passwd")
	assert.Error(t, err)
	_, err = ls.Open("../secret")
	assert.Error(t, err)
}

func TestS3PresignedURL(t *testing.T) {
	cfg := aws.Config{
		Region: "us-east-1",
		Credentials: aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{AccessKeyID: "AKID", SecretAccessKey: "SECRET"}, nil
		}),
	}
	s := newS3FromConfig(cfg, Options{
		Bucket:        "grabkit-archive",
		Endpoint:      "http://minio:9000",
		UsePathStyle:  true,
		PresignExpiry: time.Hour,
	}, nil)

	url, expires, err := s.PresignedURL(context.Background(), "archive/2024-05-10/job/audio.mp3")
	require.NoError(t, err)
	assert.Contains(t, url, "http://minio:9000/grabkit-archive/archive/2024-05-10/job/audio.mp3")
	assert.Contains(t, url, "X-Amz-Expires=3600")
	assert.Contains(t, url, "X-Amz-Signature=")
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, time.Minute)
}
