package archive

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KeremKalyoncu/grabkit/internal/extractor"
	"github.com/KeremKalyoncu/grabkit/internal/retry"
	"github.com/KeremKalyoncu/grabkit/internal/types"
	"github.com/KeremKalyoncu/grabkit/pkg/storage"
)

// transcodeRunner writes a file at the argument carrying the target extension
type transcodeRunner struct {
	ext  string
	args []string
}

func (r *transcodeRunner) Run(_ context.Context, _ string, args ...string) ([]byte, error) {
	r.args = args
	for _, a := range args {
		if strings.HasSuffix(a, r.ext) {
			return nil, os.WriteFile(a, []byte("transcoded"), 0o644)
		}
	}
	return nil, nil
}

func fastBackoff() retry.Config {
	return retry.Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}
}

func newHandler(t *testing.T, runner extractor.Runner) (*Handler, *storage.LocalStorage) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir(), "http://localhost:3000/archive/files", time.Hour, nil)
	require.NoError(t, err)

	cfg := Config{Storage: store, TempDir: t.TempDir(), Backoff: fastBackoff()}
	if runner != nil {
		cfg.FFmpeg = extractor.NewFFmpeg("ffmpeg", time.Minute, runner, nil)
	}
	return NewHandler(cfg), store
}

func TestArchiveVideoWithRetry(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "video/mp4")
		w.Write([]byte("video-bytes"))
	}))
	defer srv.Close()

	h, store := newHandler(t, nil)
	res, err := h.HandleArchive(context.Background(), &types.ArchiveJob{
		ID:        "job-1",
		Platform:  types.PlatformTikTok,
		MediaURL:  srv.URL + "/video/media/hdplay/1.mp4",
		MediaKind: types.MediaVideo,
	})
	require.NoError(t, err)

	assert.EqualValues(t, 2, hits)
	assert.Equal(t, "mp4", res.Format)
	assert.EqualValues(t, len("video-bytes"), res.SizeBytes)
	assert.True(t, strings.HasSuffix(res.Key, "/job-1/tiktok_video.mp4"))
	assert.Equal(t, "http://localhost:3000/archive/files/"+res.Key, res.DownloadURL)

	f, err := store.Open(res.Key)
	require.NoError(t, err)
	f.Close()
}

func TestArchiveAudioTranscode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/webm")
		w.Write([]byte("opus"))
	}))
	defer srv.Close()

	runner := &transcodeRunner{ext: ".mp3"}
	h, _ := newHandler(t, runner)

	res, err := h.HandleArchive(context.Background(), &types.ArchiveJob{
		ID:        "job-2",
		Platform:  types.PlatformYouTube,
		MediaURL:  srv.URL + "/videoplayback?itag=251",
		MediaKind: types.MediaAudio,
		Format:    "mp3",
	})
	require.NoError(t, err)

	assert.Equal(t, "mp3", res.Format)
	assert.True(t, strings.HasSuffix(res.Key, "youtube_audio.mp3"))
	assert.Contains(t, runner.args, "libmp3lame")

	// temp files are gone
	left, _ := filepath.Glob(filepath.Join(h.tempDir, "job-2*"))
	assert.Empty(t, left)
}

func TestArchiveExpiredLinkIsPermanent(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	h, _ := newHandler(t, nil)
	_, err := h.HandleArchive(context.Background(), &types.ArchiveJob{ID: "job-3", MediaURL: srv.URL + "/x.mp4"})

	require.Error(t, err)
	assert.True(t, retry.IsPermanent(err))
	assert.EqualValues(t, 1, hits)
}

func TestExtensionFor(t *testing.T) {
	assert.Equal(t, ".webm", extensionFor(&types.ArchiveJob{MediaURL: "https://cdn/a.webm?sig=1"}, ""))
	assert.Equal(t, ".mp3", extensionFor(&types.ArchiveJob{MediaURL: "https://cdn/play"}, "audio/mpeg"))
	assert.Equal(t, ".m4a", extensionFor(&types.ArchiveJob{MediaURL: "https://cdn/play", MediaKind: types.MediaAudio}, ""))
	assert.Equal(t, ".mp4", extensionFor(&types.ArchiveJob{MediaURL: "https://cdn/play"}, "application/octet-stream"))
}
