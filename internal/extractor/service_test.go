package extractor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KeremKalyoncu/grabkit/internal/cache"
	"github.com/KeremKalyoncu/grabkit/internal/dedup"
	"github.com/KeremKalyoncu/grabkit/internal/metrics"
	"github.com/KeremKalyoncu/grabkit/internal/types"
)

type stubExtractor struct {
	platform types.Platform
	calls    int32
	gate     chan struct{}
	res      *types.MediaResult
	err      error
}

func (s *stubExtractor) Platform() types.Platform { return s.platform }

func (s *stubExtractor) Extract(ctx context.Context, rawURL string) (*types.MediaResult, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.gate != nil {
		<-s.gate
	}
	if s.err != nil {
		return nil, s.err
	}
	cp := *s.res
	return &cp, nil
}

func TestServiceCachesSuccessfulResults(t *testing.T) {
	stub := &stubExtractor{platform: types.PlatformInstagram, res: resultWith("https://cdn/v.mp4")}
	m := metrics.New()
	svc := NewService(nil, stub).WithCache(cache.NewMemory(time.Minute)).WithMetrics(m)

	first, err := svc.Extract(context.Background(), types.PlatformInstagram, "https://www.instagram.com/p/x/")
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := svc.Extract(context.Background(), types.PlatformInstagram, "https://www.instagram.com/p/x/")
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, "https://cdn/v.mp4", second.Result.DownloadCandidates[0].URL)

	assert.Equal(t, int32(1), stub.calls)
	assert.Equal(t, uint64(1), m.CacheHits.Load())
	assert.Equal(t, uint64(1), m.Extractions.Load())
}

func TestServiceDoesNotCacheMetadataOnly(t *testing.T) {
	stub := &stubExtractor{platform: types.PlatformTikTok, res: &types.MediaResult{MetadataOnly: true}}
	svc := NewService(nil, stub).WithCache(cache.NewMemory(time.Minute))

	for i := 0; i < 2; i++ {
		out, err := svc.Extract(context.Background(), types.PlatformTikTok, "u")
		require.NoError(t, err)
		assert.False(t, out.Cached)
	}
	assert.Equal(t, int32(2), stub.calls)
}

func TestServiceCoalescesConcurrentRequests(t *testing.T) {
	stub := &stubExtractor{
		platform: types.PlatformTwitter,
		gate:     make(chan struct{}),
		res:      resultWith("https://video.twimg.com/a.mp4"),
	}
	sf := dedup.NewSingleflight(time.Minute)
	defer sf.Close()
	m := metrics.New()
	svc := NewService(nil, stub).WithDedup(sf).WithMetrics(m)

	var wg sync.WaitGroup
	outs := make([]*Outcome, 3)
	for i := range outs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := svc.Extract(context.Background(), types.PlatformTwitter, "https://twitter.com/a/status/1")
			assert.NoError(t, err)
			outs[i] = out
		}(i)
	}

	require.Eventually(t, func() bool {
		return sf.Stats()["waiting_callers"].(int) == 2
	}, time.Second, 5*time.Millisecond)
	close(stub.gate)
	wg.Wait()

	assert.Equal(t, int32(1), stub.calls)
	assert.Equal(t, uint64(2), m.Coalesced.Load())
	assert.NotSame(t, outs[0].Result, outs[1].Result)
}

func TestServiceUnknownPlatform(t *testing.T) {
	_, err := NewService(nil).Extract(context.Background(), types.PlatformTikTok, "u")
	assert.Error(t, err)
}

func TestServiceRecordsFailures(t *testing.T) {
	stub := &stubExtractor{platform: types.PlatformTikTok, err: errors.New("down")}
	m := metrics.New()
	svc := NewService(nil, stub).WithMetrics(m)

	_, err := svc.Extract(context.Background(), types.PlatformTikTok, "u")
	assert.EqualError(t, err, "down")
	assert.Equal(t, uint64(1), m.ExtractionFails.Load())
}
