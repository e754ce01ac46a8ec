package extractor

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/KeremKalyoncu/grabkit/internal/errors"
)

func TestInstagramReel(t *testing.T) {
	var gotPath string
	client := fakeUpstreams(t, map[string]http.Handler{
		"www.instagram.com": http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.RequestURI()
			_, _ = w.Write([]byte(`<meta property="og:image" content="https://cdn/t.jpg" />
<script>{"owner":{"username":"surfer"},"video_url":"https:\/\/cdn\/reel.mp4","is_video":true}</script>`))
		}),
	})

	res, err := NewInstagram(client, nil).Extract(context.Background(), "https://www.instagram.com/reel/C1aB2x?igsh=abc")
	require.NoError(t, err)

	assert.Equal(t, "/reel/C1aB2x/", gotPath)
	assert.Equal(t, "https://cdn/reel.mp4", res.DownloadCandidates[0].URL)
	assert.Equal(t, "reel", res.ContentType)
	assert.Equal(t, "surfer", res.Author)
	assert.Equal(t, "C1aB2x", res.SourceID)
}

func TestInstagramPrivatePost(t *testing.T) {
	client := fakeUpstreams(t, map[string]http.Handler{
		"www.instagram.com": body("text/html", `<html>Login to continue</html>`),
	})

	_, err := NewInstagram(client, nil).Extract(context.Background(), "https://www.instagram.com/p/Cxyz/")
	require.Error(t, err)
	assert.Equal(t, "Failed to download Instagram video: Could not find video URL - post might be private or not a video",
		apperrors.GetErrorMessage(err))
}

func TestInstagramInvalidURL(t *testing.T) {
	_, err := NewInstagram(NewClient(ClientConfig{}), nil).Extract(context.Background(), "https://www.instagram.com/surfer/")
	require.Error(t, err)
	assert.Equal(t, "INVALID_URL", apperrors.GetErrorCode(err))
}
