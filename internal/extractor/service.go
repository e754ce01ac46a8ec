package extractor

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/KeremKalyoncu/grabkit/internal/cache"
	"github.com/KeremKalyoncu/grabkit/internal/circuitbreaker"
	"github.com/KeremKalyoncu/grabkit/internal/dedup"
	apperrors "github.com/KeremKalyoncu/grabkit/internal/errors"
	"github.com/KeremKalyoncu/grabkit/internal/metrics"
	"github.com/KeremKalyoncu/grabkit/internal/types"
)

// Extractor turns one platform URL into a MediaResult
type Extractor interface {
	Platform() types.Platform
	Extract(ctx context.Context, rawURL string) (*types.MediaResult, error)
}

// ResultCache stores successful results for a short time
type ResultCache interface {
	Get(ctx context.Context, platform types.Platform, rawURL string) (*types.MediaResult, error)
	Set(ctx context.Context, platform types.Platform, rawURL string, res *types.MediaResult) error
}

// Outcome is what Service.Extract hands to the HTTP layer
type Outcome struct {
	Result    *types.MediaResult
	Cached    bool
	Coalesced bool
}

// Service routes requests to the per-platform extractors and adds
// result caching and in-flight coalescing around them
type Service struct {
	extractors map[types.Platform]Extractor
	flight     *dedup.Singleflight
	cache      ResultCache
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// NewService creates a service over the given extractors
func NewService(logger *zap.Logger, extractors ...Extractor) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		extractors: make(map[types.Platform]Extractor, len(extractors)),
		logger:     logger,
	}
	for _, x := range extractors {
		s.extractors[x.Platform()] = x
	}
	return s
}

// WithDedup coalesces identical concurrent requests
func (s *Service) WithDedup(sf *dedup.Singleflight) *Service {
	s.flight = sf
	return s
}

// WithCache serves repeated URLs from c
func (s *Service) WithCache(c ResultCache) *Service {
	s.cache = c
	return s
}

// WithMetrics records terminal outcomes
func (s *Service) WithMetrics(m *metrics.Metrics) *Service {
	s.metrics = m
	return s
}

// Supports reports whether an extractor is registered for p
func (s *Service) Supports(p types.Platform) bool {
	_, ok := s.extractors[p]
	return ok
}

// Methods lists each platform's fallback order
func (s *Service) Methods() map[types.Platform][]string {
	out := make(map[types.Platform][]string, len(s.extractors))
	for p, x := range s.extractors {
		if c, ok := x.(interface{ Chain() *Chain }); ok {
			out[p] = c.Chain().Methods()
		}
	}
	return out
}

// Extract runs the platform's chain for rawURL
func (s *Service) Extract(ctx context.Context, platform types.Platform, rawURL string) (*Outcome, error) {
	x, ok := s.extractors[platform]
	if !ok {
		return nil, apperrors.ErrInvalidURL.WithMessage("Unsupported platform. Supported: TikTok, Instagram, Twitter/X")
	}

	if s.cache != nil {
		res, err := s.cache.Get(ctx, platform, rawURL)
		if err == nil {
			if s.metrics != nil {
				s.metrics.CacheHits.Add(1)
			}
			return &Outcome{Result: res, Cached: true}, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("Result cache unavailable", zap.Error(err))
		}
	}

	run := func(ctx context.Context) (interface{}, error) {
		start := time.Now()
		res, err := x.Extract(ctx, rawURL)
		if s.metrics != nil {
			s.metrics.RecordExtraction(string(platform), err == nil, time.Since(start))
		}
		if err != nil {
			return nil, err
		}
		// metadata-only answers are retried next time in case a mirror recovers
		if s.cache != nil && !res.MetadataOnly {
			if cerr := s.cache.Set(ctx, platform, rawURL, res); cerr != nil {
				s.logger.Warn("Failed to cache result", zap.Error(cerr))
			}
		}
		return res, nil
	}

	if s.flight == nil {
		v, err := run(ctx)
		if err != nil {
			return nil, err
		}
		return &Outcome{Result: v.(*types.MediaResult)}, nil
	}

	r := s.flight.Do(ctx, string(platform)+"|"+rawURL, run)
	if r.Err != nil {
		return nil, r.Err
	}
	if r.Shared && s.metrics != nil {
		s.metrics.Coalesced.Add(1)
	}

	// callers sharing one run must not alias each other's result
	res := *r.Val.(*types.MediaResult)
	res.DownloadCandidates = append([]types.DownloadCandidate(nil), res.DownloadCandidates...)
	return &Outcome{Result: &res, Coalesced: r.Shared}, nil
}

// Dependencies wires the extractors' shared collaborators
type Dependencies struct {
	Client   *Client
	YtDlp    *YtDlp
	Breakers *circuitbreaker.Registry
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

// NewDefault builds the four platform extractors with breakers and metrics attached
func NewDefault(deps Dependencies) *Service {
	tiktok := NewTikTok(deps.Client, deps.Logger)
	instagram := NewInstagram(deps.Client, deps.Logger)
	twitter := NewTwitter(deps.Client, deps.Logger)
	youtube := NewYouTube(deps.Client, deps.YtDlp, deps.Logger)

	for _, c := range []*Chain{tiktok.Chain(), instagram.Chain(), twitter.Chain(), youtube.Chain()} {
		c.WithBreakers(deps.Breakers).WithMetrics(deps.Metrics)
	}

	return NewService(deps.Logger, tiktok, instagram, twitter, youtube).WithMetrics(deps.Metrics)
}
