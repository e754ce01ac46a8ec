package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KeremKalyoncu/grabkit/internal/types"
)

func TestKeyNormalizesTrailingSlash(t *testing.T) {
	a := Key(types.PlatformInstagram, "https://www.instagram.com/reel/abc/")
	b := Key(types.PlatformInstagram, " https://www.instagram.com/reel/abc ")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	assert.NotEqual(t, a, Key(types.PlatformTikTok, "https://www.instagram.com/reel/abc/"))
}

func TestMemoryRoundTripAndExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	m := NewMemory(time.Minute)
	m.now = func() time.Time { return now }

	_, err := m.Get(ctx, types.PlatformTwitter, "u")
	assert.ErrorIs(t, err, ErrCacheMiss)

	res := &types.MediaResult{
		Platform: types.PlatformTwitter,
		SourceID: "20",
		Method:   "syndication",
		DownloadCandidates: []types.DownloadCandidate{
			{URL: "https://video.twimg.com/a.mp4", QualityLabel: "720p", ApproxBitrate: 1_000_000, Variant: types.VariantVideo},
		},
	}
	require.NoError(t, m.Set(ctx, types.PlatformTwitter, "u", res))

	got, err := m.Get(ctx, types.PlatformTwitter, "u")
	require.NoError(t, err)
	assert.Equal(t, res.DownloadCandidates, got.DownloadCandidates)
	assert.Equal(t, "syndication", got.Method)

	now = now.Add(2 * time.Minute)
	_, err = m.Get(ctx, types.PlatformTwitter, "u")
	assert.ErrorIs(t, err, ErrCacheMiss)
}
