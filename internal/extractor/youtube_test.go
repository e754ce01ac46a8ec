package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/KeremKalyoncu/grabkit/internal/errors"
	"github.com/KeremKalyoncu/grabkit/internal/types"
)

// fakeRunner answers yt-dlp invocations by flag
type fakeRunner struct {
	mu    sync.Mutex
	calls [][]string

	info    string
	infoErr error
	url     string
	urlErr  error
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, args)
	f.mu.Unlock()

	joined := strings.Join(args, " ")
	switch {
	case strings.Contains(joined, "--dump-single-json"):
		return []byte(f.info), f.infoErr
	case strings.Contains(joined, "-g"):
		return []byte(f.url), f.urlErr
	}
	return nil, errors.New("unexpected invocation")
}

const ytInfo = `WARNING: something noisy
{"id":"dQw4w9WgXcQ","title":"Never Gonna","uploader":"Rick","duration":212.4,"formats":[
 {"format_id":"18","url":"https://rr.googlevideo.com/18","ext":"mp4","acodec":"mp4a.40.2","vcodec":"avc1","tbr":600},
 {"format_id":"140","url":"https://rr.googlevideo.com/140","ext":"m4a","acodec":"mp4a.40.2","vcodec":"none","abr":129.5},
 {"format_id":"251","url":"https://rr.googlevideo.com/251","ext":"webm","acodec":"opus","vcodec":"none","abr":160.2}]}`

func TestYouTubePicksBestAudioFormat(t *testing.T) {
	runner := &fakeRunner{info: ytInfo}
	yt := NewYouTube(NewClient(ClientConfig{}), NewYtDlp("yt-dlp", time.Second, runner, nil), nil)

	res, err := yt.Extract(context.Background(), "https://youtu.be/dQw4w9WgXcQ?t=3")
	require.NoError(t, err)

	assert.Equal(t, "yt-dlp", res.Method)
	assert.Equal(t, types.MediaAudio, res.MediaKind)
	assert.Equal(t, 212, res.DurationSeconds)
	assert.Equal(t, "Rick", res.Author)
	assert.Equal(t, "https://img.youtube.com/vi/dQw4w9WgXcQ/maxresdefault.jpg", res.ThumbnailURL)
	assert.Equal(t, "https://img.youtube.com/vi/dQw4w9WgXcQ/hqdefault.jpg", res.ThumbnailHQURL)

	c := res.DownloadCandidates[0]
	assert.Equal(t, "https://rr.googlevideo.com/251", c.URL)
	assert.Equal(t, "160kbps", c.QualityLabel)
	assert.Equal(t, "opus", c.Codec)

	_, audio, _ := res.Views()
	require.NotNil(t, audio)
	assert.Equal(t, "yt-dlp", audio.Source)

	require.Len(t, runner.calls, 1)
	assert.Contains(t, runner.calls[0], "https://www.youtube.com/watch?v=dQw4w9WgXcQ")
}

func TestLastJSONObject(t *testing.T) {
	raw, err := lastJSONObject(ytInfo)
	require.NoError(t, err)
	var info VideoInfo
	require.NoError(t, json.Unmarshal(raw, &info))
	assert.Equal(t, "dQw4w9WgXcQ", info.ID)
	assert.Len(t, info.Formats, 3)

	raw, err = lastJSONObject("WARNING: a\n{\"id\":\"old\"}\n{\"id\":\"new\"}\n\n")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"new"}`, string(raw))

	raw, err = lastJSONObject("{\n  \"id\": \"pretty\",\n  \"title\": \"x\"\n}")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"pretty","title":"x"}`, string(raw))

	_, err = lastJSONObject("ERROR: Video unavailable\n{broken")
	assert.Error(t, err)
}

func TestYouTubeFallsBackToDirectURL(t *testing.T) {
	runner := &fakeRunner{
		infoErr: errors.New("yt-dlp failed: Sign in to confirm you're not a bot"),
		url:     "https://rr.googlevideo.com/best\n",
	}
	client := fakeUpstreams(t, map[string]http.Handler{
		"www.youtube.com": body("application/json", `{"title":"Never Gonna","author_name":"Rick"}`),
	})
	yt := NewYouTube(client, NewYtDlp("yt-dlp", time.Second, runner, nil), nil)

	res, err := yt.Extract(context.Background(), "dQw4w9WgXcQ")
	require.NoError(t, err)

	assert.Equal(t, "yt-dlp-url", res.Method)
	assert.Equal(t, "https://rr.googlevideo.com/best", res.DownloadCandidates[0].URL)
	assert.Equal(t, "Never Gonna", res.Caption)
}

func TestYouTubeFailure(t *testing.T) {
	runner := &fakeRunner{
		infoErr: errors.New("yt-dlp failed: Video unavailable"),
		urlErr:  errors.New("yt-dlp failed: Video unavailable"),
	}
	client := fakeUpstreams(t, map[string]http.Handler{"www.youtube.com": status(http.StatusNotFound)})
	yt := NewYouTube(client, NewYtDlp("yt-dlp", time.Second, runner, nil), nil)

	_, err := yt.Extract(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	require.Error(t, err)
	assert.Equal(t, "Failed to extract YouTube audio: yt-dlp failed: Video unavailable", apperrors.GetErrorMessage(err))
}

func TestYouTubeInvalidURL(t *testing.T) {
	yt := NewYouTube(NewClient(ClientConfig{}), NewYtDlp("yt-dlp", time.Second, &fakeRunner{}, nil), nil)
	_, err := yt.Extract(context.Background(), "https://www.youtube.com/channel/abc")
	require.Error(t, err)
	assert.Equal(t, 400, apperrors.GetStatusCode(err))
}

func TestBestAudioIgnoresMuxedFormats(t *testing.T) {
	_, ok := BestAudio([]Format{{URL: "u", ACodec: "mp4a", VCodec: "avc1"}})
	assert.False(t, ok)
}
