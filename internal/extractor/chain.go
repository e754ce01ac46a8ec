package extractor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/KeremKalyoncu/grabkit/internal/circuitbreaker"
	"github.com/KeremKalyoncu/grabkit/internal/metrics"
	"github.com/KeremKalyoncu/grabkit/internal/types"
)

// Input carries what every method of one chain run shares
type Input struct {
	URL      string // as submitted by the client
	Resolved string // after normalization and short-link resolution
	ID       string // platform-native identifier
}

// MethodFunc is one independent retrieval technique
type MethodFunc func(ctx context.Context, in *Input) (*types.MediaResult, error)

// Method is one step of a fallback chain
type Method struct {
	Name string
	// Upstream names the circuit breaker guarding the third party; empty means none
	Upstream string
	Run      MethodFunc
	// MetadataOnly lets the method succeed without download candidates
	MetadataOnly bool
}

// Attempt is the outcome of one method within one chain run
type Attempt struct {
	Method        string
	Succeeded     bool
	Result        *types.MediaResult
	FailureReason string
	Duration      time.Duration
}

// ExtractionError is the single terminal error of an exhausted chain.
// It carries the last attempted method's reason only.
type ExtractionError struct {
	Platform types.Platform
	Method   string
	Reason   string
	Tried    int
	Err      error
}

func (e *ExtractionError) Error() string {
	return e.Reason
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// contentError marks a failure caused by the content itself (no video, private post)
// rather than by the upstream being unhealthy
type contentError struct {
	reason string
}

func (e *contentError) Error() string {
	return e.reason
}

func noMedia(reason string) error {
	return &contentError{reason: reason}
}

var errNoCandidates = noMedia("response did not contain a download URL")

// Chain runs an ordered list of methods and stops at the first usable result.
// Methods run strictly one after another and each runs at most once.
type Chain struct {
	platform types.Platform
	methods  []Method
	breakers *circuitbreaker.Registry
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewChain creates a chain for platform
func NewChain(platform types.Platform, logger *zap.Logger, methods ...Method) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{
		platform: platform,
		methods:  methods,
		logger:   logger.With(zap.String("platform", string(platform))),
	}
}

// WithBreakers guards each method's upstream with a circuit breaker
func (c *Chain) WithBreakers(r *circuitbreaker.Registry) *Chain {
	c.breakers = r
	return c
}

// WithMetrics records per-method attempts
func (c *Chain) WithMetrics(m *metrics.Metrics) *Chain {
	c.metrics = m
	return c
}

// Methods lists the method names in execution order
func (c *Chain) Methods() []string {
	names := make([]string, len(c.methods))
	for i, m := range c.methods {
		names[i] = m.Name
	}
	return names
}

// Run executes the chain
func (c *Chain) Run(ctx context.Context, in *Input) (*types.MediaResult, error) {
	if len(c.methods) == 0 {
		return nil, &ExtractionError{Platform: c.platform, Reason: "no extraction methods configured"}
	}

	var (
		last    Attempt
		lastErr error
	)

	for i, m := range c.methods {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		attempt, err := c.try(ctx, m, in)
		if c.metrics != nil {
			c.metrics.RecordAttempt(string(c.platform), m.Name, attempt.Succeeded)
		}

		if attempt.Succeeded {
			c.logger.Debug("Extraction method succeeded",
				zap.String("method", m.Name),
				zap.Int("position", i+1),
				zap.Duration("took", attempt.Duration),
			)
			res := attempt.Result
			res.Platform = c.platform
			res.Method = m.Name
			return res, nil
		}

		c.logger.Warn("Extraction method failed",
			zap.String("method", m.Name),
			zap.String("reason", attempt.FailureReason),
			zap.Duration("took", attempt.Duration),
		)
		last, lastErr = attempt, err
	}

	c.logger.Error("All extraction methods exhausted",
		zap.String("last_method", last.Method),
		zap.String("reason", last.FailureReason),
	)

	return nil, &ExtractionError{
		Platform: c.platform,
		Method:   last.Method,
		Reason:   last.FailureReason,
		Tried:    len(c.methods),
		Err:      lastErr,
	}
}

func (c *Chain) try(ctx context.Context, m Method, in *Input) (Attempt, error) {
	start := time.Now()
	attempt := Attempt{Method: m.Name}

	var (
		res        *types.MediaResult
		contentErr error
	)

	call := func() error {
		var err error
		res, err = runSafely(ctx, m, in)
		var ce *contentError
		if errors.As(err, &ce) {
			// upstream answered; the content just isn't usable
			contentErr = err
			return nil
		}
		return err
	}

	var err error
	if m.Upstream != "" && c.breakers != nil {
		err = c.breakers.Execute(ctx, m.Upstream, call)
	} else {
		err = call()
	}
	if err == nil {
		err = contentErr
	}
	if err == nil && !usable(res, m) {
		err = errNoCandidates
	}

	attempt.Duration = time.Since(start)
	if err != nil {
		attempt.FailureReason = err.Error()
		return attempt, err
	}

	attempt.Succeeded = true
	attempt.Result = res
	return attempt, nil
}

func usable(res *types.MediaResult, m Method) bool {
	if res == nil {
		return false
	}
	if res.HasCandidates() {
		return true
	}
	return m.MetadataOnly && res.MetadataOnly
}

// runSafely turns a panic inside a scraper into an ordinary method failure
func runSafely(ctx context.Context, m Method, in *Input) (res *types.MediaResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("%s: unexpected failure: %v", m.Name, r)
		}
	}()
	return m.Run(ctx, in)
}
