package auth

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by stores for unknown keys, users and tokens
	ErrNotFound = errors.New("not found")
	// ErrNoCredits is returned by DeductCredit when the balance is exhausted
	ErrNoCredits = errors.New("insufficient credits")
)

// User owns per-service keys and a credit balance
type User struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Email         string            `json:"email"`
	Credits       int64             `json:"credits"`
	TotalRequests int64             `json:"totalRequests"`
	Banned        bool              `json:"banned"`
	APIKeys       map[string]string `json:"apiKeys"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

// Token is an admin token with daily and lifetime counters.
// A limit of 0 means unlimited.
type Token struct {
	Token      string    `json:"token"`
	Name       string    `json:"name"`
	DailyLimit int64     `json:"dailyLimit"`
	TotalLimit int64     `json:"totalLimit"`
	UsageDaily int64     `json:"usageDaily"`
	UsageTotal int64     `json:"usageTotal"`
	LastReset  string    `json:"lastReset"` // YYYY-MM-DD, UTC
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"createdAt"`
	LastUsedAt time.Time `json:"lastUsedAt,omitempty"`
}

// UserStore is the credit ledger the gate consults for service keys
type UserStore interface {
	ResolveByServiceKey(ctx context.Context, key string) (*User, error)
	// DeductCredit removes one credit and counts one request, returning the new balance
	DeductCredit(ctx context.Context, userID string) (int64, error)
	GetBalance(ctx context.Context, userID string) (int64, error)
}

// TokenStore holds admin tokens
type TokenStore interface {
	ResolveToken(ctx context.Context, token string) (*Token, error)
	ResetDaily(ctx context.Context, token, day string) error
	// RecordUsage increments the daily and total counters and stamps LastUsedAt
	RecordUsage(ctx context.Context, token string, at time.Time) (*Token, error)
}

// Day formats t as the UTC calendar date used for daily resets
func Day(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
