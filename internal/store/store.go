// Package store holds the user/credit ledger and admin-token records behind
// the auth gate, with redis and in-memory implementations.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/KeremKalyoncu/grabkit/internal/auth"
)

// TokenSpec describes a new admin token
type TokenSpec struct {
	Name       string
	DailyLimit int64
	TotalLimit int64
}

// TokenUpdate changes the non-nil fields of a token
type TokenUpdate struct {
	Name       *string
	DailyLimit *int64
	TotalLimit *int64
	Active     *bool
}

// Admin is the administrative surface used by tokenctl
type Admin interface {
	CreateToken(ctx context.Context, spec TokenSpec) (*auth.Token, error)
	ListTokens(ctx context.Context) ([]*auth.Token, error)
	UpdateToken(ctx context.Context, token string, u TokenUpdate) (*auth.Token, error)
	DeleteToken(ctx context.Context, token string) error
	ResetUsage(ctx context.Context, token string, total bool) error

	CreateUser(ctx context.Context, name, email string) (*auth.User, error)
	GetUser(ctx context.Context, id string) (*auth.User, error)
	AddCredits(ctx context.Context, id string, n int64) (int64, error)
	SetBanned(ctx context.Context, id string, banned bool) error
	IssueServiceKey(ctx context.Context, id, service string) (string, error)
}

// Store is everything the gateway and the admin CLI need
type Store interface {
	auth.UserStore
	auth.TokenStore
	auth.SettingsStore
	Admin
}

var (
	_ Store = (*Memory)(nil)
	_ Store = (*Redis)(nil)
)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func newToken(spec TokenSpec, now time.Time) (*auth.Token, error) {
	key, err := auth.NewAdminToken()
	if err != nil {
		return nil, err
	}
	return &auth.Token{
		Token:      key,
		Name:       spec.Name,
		DailyLimit: spec.DailyLimit,
		TotalLimit: spec.TotalLimit,
		LastReset:  auth.Day(now),
		Active:     true,
		CreatedAt:  now.UTC(),
	}, nil
}
