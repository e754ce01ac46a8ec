package extractor

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/KeremKalyoncu/grabkit/internal/errors"
	"github.com/KeremKalyoncu/grabkit/internal/types"
)

const syndicationVideo = `{"text":"look","user":{"screen_name":"jack","name":"Jack"},
"mediaDetails":[{"type":"video","media_url_https":"https://pbs.twimg.com/t.jpg",
"video_info":{"duration_millis":12600,"variants":[
 {"content_type":"application/x-mpegURL","url":"https://video.twimg.com/pl.m3u8"},
 {"bitrate":632000,"content_type":"video/mp4","url":"https://video.twimg.com/480.mp4"},
 {"bitrate":2176000,"content_type":"video/mp4","url":"https://video.twimg.com/1080.mp4"},
 {"bitrate":256000,"content_type":"video/mp4","url":"https://video.twimg.com/240.mp4"}]}}]}`

func TestTwitterSyndicationSortsVariantsByBitrate(t *testing.T) {
	client := fakeUpstreams(t, map[string]http.Handler{
		"cdn.syndication.twimg.com": http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("id") != "20" || r.URL.Query().Get("token") != "0" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			_, _ = w.Write([]byte(syndicationVideo))
		}),
	})

	res, err := NewTwitter(client, nil).Extract(context.Background(), "https://x.com/jack/status/20")
	require.NoError(t, err)

	assert.Equal(t, "syndication", res.Method)
	require.Len(t, res.DownloadCandidates, 3)
	assert.Equal(t, "https://video.twimg.com/1080.mp4", res.DownloadCandidates[0].URL)
	assert.Equal(t, "1080p", res.DownloadCandidates[0].QualityLabel)
	assert.Equal(t, "480p", res.DownloadCandidates[1].QualityLabel)
	assert.Equal(t, "360p", res.DownloadCandidates[2].QualityLabel)
	assert.Equal(t, 13, res.DurationSeconds)
	assert.Equal(t, "Jack", res.Author)

	video, _, urls := res.Views()
	require.NotNil(t, video)
	assert.Equal(t, "https://video.twimg.com/1080.mp4", video.Best)
	assert.Len(t, urls.All, 3)
}

func TestTwitterFallsBackToPage(t *testing.T) {
	client := fakeUpstreams(t, map[string]http.Handler{
		"cdn.syndication.twimg.com": body("application/json", `{"text":"no media"}`),
		"twitter.com": body("text/html",
			`<meta property="og:video:url" content="https://video.twimg.com/page.mp4">`),
	})

	res, err := NewTwitter(client, nil).Extract(context.Background(), "https://x.com/jack/status/20")
	require.NoError(t, err)

	assert.Equal(t, "page", res.Method)
	assert.Equal(t, "https://video.twimg.com/page.mp4", res.DownloadCandidates[0].URL)
	assert.Equal(t, "Unknown", res.DownloadCandidates[0].QualityLabel)
	assert.Equal(t, "jack", res.AuthorHandle)
}

func TestTwitterFailureCarriesLastReason(t *testing.T) {
	client := fakeUpstreams(t, map[string]http.Handler{
		"cdn.syndication.twimg.com": body("application/json", `{}`),
		"twitter.com":               body("text/html", `<html>text only</html>`),
	})

	_, err := NewTwitter(client, nil).Extract(context.Background(), "https://twitter.com/jack/status/20")
	require.Error(t, err)

	assert.Equal(t, "Failed to download Twitter video: Could not find video URL - tweet might not contain a video",
		apperrors.GetErrorMessage(err))
	assert.Equal(t, "EXTRACTION_FAILED", apperrors.GetErrorCode(err))
}

func TestTwitterPhotoTweet(t *testing.T) {
	client := fakeUpstreams(t, map[string]http.Handler{
		"cdn.syndication.twimg.com": body("application/json", `{"mediaDetails":[{"type":"photo"}]}`),
		"twitter.com":               status(http.StatusServiceUnavailable),
	})

	_, err := NewTwitter(client, nil).Extract(context.Background(), "https://twitter.com/jack/status/20")
	require.Error(t, err)
	// last method wins the message even though syndication knew more
	assert.Equal(t, "Failed to download Twitter video: upstream returned status 503", apperrors.GetErrorMessage(err))
	assert.Equal(t, 503, apperrors.GetStatusCode(err))
}

func TestTwitterAnimatedGIF(t *testing.T) {
	client := fakeUpstreams(t, map[string]http.Handler{
		"cdn.syndication.twimg.com": body("application/json", `{"mediaDetails":[{"type":"animated_gif",
			"video_info":{"variants":[{"bitrate":0,"content_type":"video/mp4","url":"https://video.twimg.com/tweet_video/g.mp4"}]}}]}`),
	})

	res, err := NewTwitter(client, nil).Extract(context.Background(), "https://twitter.com/jack/status/20")
	require.NoError(t, err)
	assert.Equal(t, types.MediaGIF, res.MediaKind)
	assert.Equal(t, "gif", res.ContentType)
	assert.Equal(t, "Unknown", res.DownloadCandidates[0].QualityLabel)
}

func TestNormalizeTwitterURL(t *testing.T) {
	assert.Equal(t, "https://twitter.com/a/status/1", normalizeTwitterURL("https://x.com/a/status/1"))
	assert.Equal(t, "https://mobile.twitter.com/a/status/1", normalizeTwitterURL("https://mobile.x.com/a/status/1"))
	assert.Equal(t, "https://twitter.com/a/status/1", normalizeTwitterURL("https://twitter.com/a/status/1"))
}

func TestQualityFromBitrate(t *testing.T) {
	assert.Equal(t, "Unknown", QualityFromBitrate(0))
	assert.Equal(t, "1080p", QualityFromBitrate(2_176_000))
	assert.Equal(t, "720p", QualityFromBitrate(1_000_000))
	assert.Equal(t, "480p", QualityFromBitrate(632_000))
	assert.Equal(t, "360p", QualityFromBitrate(256_000))
	assert.Equal(t, "240p", QualityFromBitrate(100_000))
}
