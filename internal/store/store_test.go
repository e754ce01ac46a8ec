package store

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KeremKalyoncu/grabkit/internal/auth"
)

// exerciseStore runs the behaviour both implementations must share
func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "Ada", " Ada@Example.com ")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.Equal(t, int64(25), u.Credits)

	key, err := s.IssueServiceKey(ctx, u.ID, auth.ServiceTikTok)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "tiktok_"))
	assert.Len(t, key, len("tiktok_")+48)

	resolved, err := s.ResolveByServiceKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, u.ID, resolved.ID)
	assert.Equal(t, key, resolved.APIKeys[auth.ServiceTikTok])

	rotated, err := s.IssueServiceKey(ctx, u.ID, auth.ServiceTikTok)
	require.NoError(t, err)
	_, err = s.ResolveByServiceKey(ctx, key)
	assert.ErrorIs(t, err, auth.ErrNotFound)
	_, err = s.ResolveByServiceKey(ctx, rotated)
	assert.NoError(t, err)

	balance, err := s.AddCredits(ctx, u.ID, -24)
	require.NoError(t, err)
	assert.Equal(t, int64(1), balance)

	balance, err = s.DeductCredit(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
	_, err = s.DeductCredit(ctx, u.ID)
	assert.ErrorIs(t, err, auth.ErrNoCredits)

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.TotalRequests)

	require.NoError(t, s.SetBanned(ctx, u.ID, true))
	got, err = s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.Banned)

	tok, err := s.CreateToken(ctx, TokenSpec{Name: "ci", DailyLimit: 100})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(tok.Token, auth.AdminTokenPrefix))
	assert.Len(t, tok.Token, len(auth.AdminTokenPrefix)+48)
	assert.True(t, tok.Active)

	at := time.Now()
	updated, err := s.RecordUsage(ctx, tok.Token, at)
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated.UsageDaily)
	assert.Equal(t, int64(1), updated.UsageTotal)
	assert.Equal(t, auth.Day(at), updated.LastReset)

	off := false
	updated, err = s.UpdateToken(ctx, tok.Token, TokenUpdate{Active: &off})
	require.NoError(t, err)
	assert.False(t, updated.Active)
	assert.Equal(t, "ci", updated.Name)

	require.NoError(t, s.ResetUsage(ctx, tok.Token, true))
	resolvedTok, err := s.ResolveToken(ctx, tok.Token)
	require.NoError(t, err)
	assert.Zero(t, resolvedTok.UsageDaily)
	assert.Zero(t, resolvedTok.UsageTotal)

	list, err := s.ListTokens(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, list)

	require.NoError(t, s.DeleteToken(ctx, tok.Token))
	_, err = s.ResolveToken(ctx, tok.Token)
	assert.ErrorIs(t, err, auth.ErrNotFound)

	_, found, err := s.LoadRequireAPIKey(ctx)
	require.NoError(t, err)
	if !found {
		require.NoError(t, s.SaveRequireAPIKey(ctx, true))
		v, found, err := s.LoadRequireAPIKey(ctx)
		require.NoError(t, err)
		assert.True(t, found)
		assert.True(t, v)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory(25))
}

func TestMemoryRecordUsageRollsOverDay(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(25)
	m.PutToken(&auth.Token{Token: "sk_live_x", Active: true, UsageDaily: 7, UsageTotal: 9, LastReset: "2024-03-01"})

	tok, err := m.RecordUsage(ctx, "sk_live_x", time.Date(2024, 3, 2, 0, 0, 1, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(1), tok.UsageDaily)
	assert.Equal(t, int64(10), tok.UsageTotal)
	assert.Equal(t, "2024-03-02", tok.LastReset)
}

// TestRedisStore needs a disposable redis; it flushes the selected DB
func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.FlushDB(context.Background()).Err())

	exerciseStore(t, NewRedis(client, 25))
}
