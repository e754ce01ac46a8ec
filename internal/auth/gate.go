package auth

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/KeremKalyoncu/grabkit/internal/errors"
	"github.com/KeremKalyoncu/grabkit/internal/metrics"
)

// Quota describes an admin token's remaining capacity. Limits of 0 are unlimited.
type Quota struct {
	DailyLimit int64
	DailyUsed  int64
	TotalLimit int64
	TotalUsed  int64
}

func remaining(limit, used int64) string {
	if limit <= 0 {
		return "unlimited"
	}
	if used >= limit {
		return "0"
	}
	return strconv.FormatInt(limit-used, 10)
}

func limitHeader(limit int64) string {
	if limit <= 0 {
		return "unlimited"
	}
	return strconv.FormatInt(limit, 10)
}

// Decision is the outcome of one authorization check
type Decision struct {
	Principal Principal
	Allowed   bool
	Err       error

	// Quota is set for admin tokens, Credits for service keys
	Quota   *Quota
	Credits int64

	commit    func(ctx context.Context) error
	once      sync.Once
	commitErr error
	committed bool
	mu        sync.Mutex
}

// Commit charges the principal. It must be called only after the wrapped
// operation succeeded; repeated calls charge once.
func (d *Decision) Commit(ctx context.Context) error {
	if !d.Allowed || d.commit == nil {
		return nil
	}
	d.once.Do(func() {
		err := d.commit(ctx)
		d.mu.Lock()
		d.commitErr, d.committed = err, err == nil
		d.mu.Unlock()
	})
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.commitErr
}

// Committed reports whether a charge was recorded
func (d *Decision) Committed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.committed
}

// Headers returns the usage headers for the response
func (d *Decision) Headers() map[string]string {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch {
	case d.Quota != nil:
		q := d.Quota
		return map[string]string{
			"X-RateLimit-Limit-Daily":     limitHeader(q.DailyLimit),
			"X-RateLimit-Remaining-Daily": remaining(q.DailyLimit, q.DailyUsed),
			"X-RateLimit-Limit-Total":     limitHeader(q.TotalLimit),
			"X-RateLimit-Remaining-Total": remaining(q.TotalLimit, q.TotalUsed),
		}
	case d.Principal.Kind == KindServiceKey:
		return map[string]string{"X-Credits-Remaining": strconv.FormatInt(d.Credits, 10)}
	}
	return nil
}

// Credential is what the request presented
type Credential struct {
	Key string
	IP  string
}

// Gate resolves keys and decides whether a request may reach extraction
type Gate struct {
	users    UserStore
	tokens   TokenStore
	settings *Settings
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewGate creates an authorization gate
func NewGate(users UserStore, tokens TokenStore, settings *Settings, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		users:    users,
		tokens:   tokens,
		settings: settings,
		logger:   logger,
		now:      time.Now,
	}
}

// WithMetrics counts denials and charges
func (g *Gate) WithMetrics(m *metrics.Metrics) *Gate {
	g.metrics = m
	return g
}

// WithClock replaces the clock used for daily resets
func (g *Gate) WithClock(now func() time.Time) *Gate {
	g.now = now
	return g
}

// Settings exposes the runtime settings the gate reads
func (g *Gate) Settings() *Settings {
	return g.settings
}

// Authorize checks a credential without charging it
func (g *Gate) Authorize(ctx context.Context, cred Credential) *Decision {
	var d *Decision
	switch {
	case cred.Key == "":
		d = g.anonymous(cred)
	case ServiceOf(cred.Key) != "":
		d = g.serviceKey(ctx, cred)
	default:
		d = g.adminToken(ctx, cred)
	}

	if !d.Allowed {
		if g.metrics != nil {
			g.metrics.Denials.Add(1)
		}
		g.logger.Debug("Request denied",
			zap.String("principal", d.Principal.Kind.String()),
			zap.String("subject", d.Principal.Subject()),
			zap.String("code", apperrors.GetErrorCode(d.Err)),
		)
	}
	return d
}

func deny(p Principal, err error) *Decision {
	return &Decision{Principal: p, Err: err}
}

func (g *Gate) anonymous(cred Credential) *Decision {
	p := Principal{Kind: KindAnonymous, IP: cred.IP}
	if g.settings != nil && g.settings.RequireAPIKey() {
		return deny(p, apperrors.ErrUnauthorized)
	}
	return &Decision{Principal: p, Allowed: true}
}

func (g *Gate) serviceKey(ctx context.Context, cred Credential) *Decision {
	p := Principal{Kind: KindServiceKey, Service: ServiceOf(cred.Key), IP: cred.IP}
	if g.users == nil {
		return deny(p, apperrors.ErrInvalidKey)
	}

	user, err := g.users.ResolveByServiceKey(ctx, cred.Key)
	if errors.Is(err, ErrNotFound) {
		return deny(p, apperrors.ErrInvalidKey)
	}
	if err != nil {
		g.logger.Error("User store lookup failed", zap.Error(err))
		return deny(p, apperrors.ErrInternal.WithCause(err))
	}
	p.UserID = user.ID

	if user.Banned {
		return deny(p, apperrors.ErrForbidden.WithMessage("Account has been suspended"))
	}
	if user.Credits <= 0 {
		return &Decision{
			Principal: p,
			Credits:   user.Credits,
			Err: apperrors.ErrInsufficientCredits.WithDetails(map[string]interface{}{
				"credits": user.Credits,
			}),
		}
	}

	d := &Decision{Principal: p, Allowed: true, Credits: user.Credits}
	d.commit = func(ctx context.Context) error {
		balance, err := g.users.DeductCredit(ctx, user.ID)
		if err != nil {
			g.logger.Error("Failed to deduct credit",
				zap.String("user_id", user.ID),
				zap.Error(err),
			)
			return err
		}
		d.mu.Lock()
		d.Credits = balance
		d.mu.Unlock()
		if g.metrics != nil {
			g.metrics.CreditsCharged.Add(1)
		}
		g.logger.Debug("Credit deducted", zap.String("user_id", user.ID), zap.Int64("balance", balance))
		return nil
	}
	return d
}

func (g *Gate) adminToken(ctx context.Context, cred Credential) *Decision {
	p := Principal{Kind: KindAdminToken, Token: cred.Key, IP: cred.IP}
	if g.tokens == nil {
		return deny(p, apperrors.ErrInvalidKey)
	}

	tok, err := g.tokens.ResolveToken(ctx, cred.Key)
	if errors.Is(err, ErrNotFound) {
		return deny(p, apperrors.ErrInvalidKey)
	}
	if err != nil {
		g.logger.Error("Token store lookup failed", zap.Error(err))
		return deny(p, apperrors.ErrInternal.WithCause(err))
	}
	p.TokenName = tok.Name

	if !tok.Active {
		return deny(p, apperrors.ErrForbidden)
	}

	now := g.now()
	today := Day(now)
	if tok.LastReset != today {
		if err := g.tokens.ResetDaily(ctx, tok.Token, today); err != nil {
			g.logger.Error("Failed to reset daily usage", zap.Error(err))
			return deny(p, apperrors.ErrInternal.WithCause(err))
		}
		tok.UsageDaily = 0
		tok.LastReset = today
	}

	quota := &Quota{
		DailyLimit: tok.DailyLimit,
		DailyUsed:  tok.UsageDaily,
		TotalLimit: tok.TotalLimit,
		TotalUsed:  tok.UsageTotal,
	}

	if tok.DailyLimit > 0 && tok.UsageDaily >= tok.DailyLimit {
		midnight := time.Date(now.UTC().Year(), now.UTC().Month(), now.UTC().Day()+1, 0, 0, 0, 0, time.UTC)
		return &Decision{
			Principal: p,
			Quota:     quota,
			Err: apperrors.ErrLimitExceeded.WithMessage("Daily limit exceeded").WithDetails(map[string]interface{}{
				"remaining": 0,
				"resetAt":   midnight.Format(time.RFC3339),
			}),
		}
	}
	if tok.TotalLimit > 0 && tok.UsageTotal >= tok.TotalLimit {
		return &Decision{
			Principal: p,
			Quota:     quota,
			Err: apperrors.ErrLimitExceeded.WithMessage("Total usage limit exceeded").WithDetails(map[string]interface{}{
				"remaining": 0,
			}),
		}
	}

	d := &Decision{Principal: p, Allowed: true, Quota: quota}
	d.commit = func(ctx context.Context) error {
		updated, err := g.tokens.RecordUsage(ctx, tok.Token, g.now())
		if err != nil {
			g.logger.Error("Failed to record token usage", zap.String("token", MaskKey(tok.Token)), zap.Error(err))
			return err
		}
		d.mu.Lock()
		d.Quota.DailyUsed, d.Quota.TotalUsed = updated.UsageDaily, updated.UsageTotal
		d.mu.Unlock()
		if g.metrics != nil {
			g.metrics.CreditsCharged.Add(1)
		}
		g.logger.Debug("Token usage recorded", zap.String("token", MaskKey(tok.Token)))
		return nil
	}
	return d
}
