package extractor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KeremKalyoncu/grabkit/internal/circuitbreaker"
	"github.com/KeremKalyoncu/grabkit/internal/metrics"
	"github.com/KeremKalyoncu/grabkit/internal/types"
)

func resultWith(url string) *types.MediaResult {
	return &types.MediaResult{
		SourceID:           "1",
		MediaKind:          types.MediaVideo,
		DownloadCandidates: []types.DownloadCandidate{{URL: url, Variant: types.VariantVideo}},
	}
}

func failing(reason string, calls *[]string) Method {
	return Method{Name: reason, Run: func(ctx context.Context, in *Input) (*types.MediaResult, error) {
		*calls = append(*calls, reason)
		return nil, errors.New(reason + " failed")
	}}
}

func TestChainFallsThroughToSecondMethod(t *testing.T) {
	var calls []string
	m := metrics.New()
	chain := NewChain(types.PlatformTikTok, nil,
		failing("first", &calls),
		Method{Name: "second", Run: func(ctx context.Context, in *Input) (*types.MediaResult, error) {
			calls = append(calls, "second")
			return resultWith("https://cdn.example/second.mp4"), nil
		}},
		failing("third", &calls),
	).WithMetrics(m)

	res, err := chain.Run(context.Background(), &Input{URL: "u"})
	require.NoError(t, err)

	assert.Equal(t, []string{"first", "second"}, calls)
	assert.Equal(t, "second", res.Method)
	assert.Equal(t, types.PlatformTikTok, res.Platform)
	assert.Equal(t, "https://cdn.example/second.mp4", res.DownloadCandidates[0].URL)
	assert.Empty(t, res.Note)
}

func TestChainExhaustionReportsLastReasonOnly(t *testing.T) {
	var calls []string
	chain := NewChain(types.PlatformTwitter, nil,
		failing("syndication", &calls),
		failing("page", &calls),
	)

	res, err := chain.Run(context.Background(), &Input{})
	assert.Nil(t, res)

	var exErr *ExtractionError
	require.ErrorAs(t, err, &exErr)
	assert.Equal(t, "page failed", exErr.Error())
	assert.Equal(t, "page", exErr.Method)
	assert.Equal(t, 2, exErr.Tried)
	assert.NotContains(t, err.Error(), "syndication")
}

func TestChainRejectsResultWithoutCandidates(t *testing.T) {
	chain := NewChain(types.PlatformInstagram, nil,
		Method{Name: "page", Run: func(ctx context.Context, in *Input) (*types.MediaResult, error) {
			return &types.MediaResult{SourceID: "x"}, nil
		}},
	)

	_, err := chain.Run(context.Background(), &Input{})
	require.Error(t, err)
	assert.Equal(t, errNoCandidates.Error(), err.Error())
}

func TestChainAcceptsMetadataOnlyWhenAllowed(t *testing.T) {
	chain := NewChain(types.PlatformTikTok, nil,
		Method{Name: "oembed", MetadataOnly: true, Run: func(ctx context.Context, in *Input) (*types.MediaResult, error) {
			return &types.MediaResult{MetadataOnly: true, Note: "no direct URL"}, nil
		}},
	)

	res, err := chain.Run(context.Background(), &Input{})
	require.NoError(t, err)
	assert.True(t, res.MetadataOnly)
}

func TestChainRecoversFromPanickingMethod(t *testing.T) {
	chain := NewChain(types.PlatformTikTok, nil,
		Method{Name: "broken", Run: func(ctx context.Context, in *Input) (*types.MediaResult, error) {
			var m map[string]string
			m["boom"] = "x"
			return nil, nil
		}},
		Method{Name: "ok", Run: func(ctx context.Context, in *Input) (*types.MediaResult, error) {
			return resultWith("https://cdn.example/ok.mp4"), nil
		}},
	)

	res, err := chain.Run(context.Background(), &Input{})
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Method)
}

func TestChainStopsWhenContextCancelled(t *testing.T) {
	var calls []string
	ctx, cancel := context.WithCancel(context.Background())
	chain := NewChain(types.PlatformTikTok, nil,
		Method{Name: "first", Run: func(ctx context.Context, in *Input) (*types.MediaResult, error) {
			calls = append(calls, "first")
			cancel()
			return nil, ctx.Err()
		}},
		failing("second", &calls),
	)

	_, err := chain.Run(ctx, &Input{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"first"}, calls)
}

func TestOpenBreakerSkipsUpstream(t *testing.T) {
	registry := circuitbreaker.NewRegistry(circuitbreaker.Config{
		Timeout:     time.Minute,
		ReadyToTrip: func(c circuitbreaker.Counts) bool { return c.ConsecutiveFailures >= 1 },
	}, nil)

	var tikwmCalls int
	chain := NewChain(types.PlatformTikTok, nil,
		Method{Name: "tikwm", Upstream: "tikwm", Run: func(ctx context.Context, in *Input) (*types.MediaResult, error) {
			tikwmCalls++
			return nil, &StatusError{StatusCode: 503}
		}},
		Method{Name: "ssstik", Upstream: "ssstik", Run: func(ctx context.Context, in *Input) (*types.MediaResult, error) {
			return resultWith("https://cdn.example/s.mp4"), nil
		}},
	).WithBreakers(registry)

	for i := 0; i < 3; i++ {
		res, err := chain.Run(context.Background(), &Input{})
		require.NoError(t, err)
		assert.Equal(t, "ssstik", res.Method)
	}
	assert.Equal(t, 1, tikwmCalls)
}

func TestContentErrorsDoNotTripBreaker(t *testing.T) {
	registry := circuitbreaker.NewRegistry(circuitbreaker.Config{
		ReadyToTrip: func(c circuitbreaker.Counts) bool { return c.ConsecutiveFailures >= 1 },
	}, nil)
	chain := NewChain(types.PlatformInstagram, nil,
		Method{Name: "page", Upstream: "instagram", Run: func(ctx context.Context, in *Input) (*types.MediaResult, error) {
			return nil, noMedia("post might be private")
		}},
	).WithBreakers(registry)

	for i := 0; i < 3; i++ {
		_, err := chain.Run(context.Background(), &Input{})
		assert.EqualError(t, err, "post might be private")
	}
	assert.Equal(t, circuitbreaker.StateClosed, registry.Get("instagram").State())
}
