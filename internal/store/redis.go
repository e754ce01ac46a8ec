package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/KeremKalyoncu/grabkit/internal/auth"
)

const (
	keyUser     = "user:"
	keyUsers    = "users"
	keyAPIKey   = "apikey:"
	keyToken    = "token:"
	keyTokens   = "tokens"
	keySettings = "settings"
)

// deductScript removes one credit only when at least one is left
var deductScript = redis.NewScript(`
local credits = tonumber(redis.call('HGET', KEYS[1], 'credits'))
if credits == nil then return -2 end
if credits < 1 then return -1 end
redis.call('HINCRBY', KEYS[1], 'total_requests', 1)
redis.call('HSET', KEYS[1], 'updated_at', ARGV[1])
return redis.call('HINCRBY', KEYS[1], 'credits', -1)
`)

// usageScript resets the daily counter on a new UTC day, then counts one request
var usageScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then return 0 end
if redis.call('HGET', KEYS[1], 'last_reset') ~= ARGV[1] then
  redis.call('HSET', KEYS[1], 'usage_daily', 0, 'last_reset', ARGV[1])
end
redis.call('HINCRBY', KEYS[1], 'usage_daily', 1)
redis.call('HINCRBY', KEYS[1], 'usage_total', 1)
redis.call('HSET', KEYS[1], 'last_used_at', ARGV[2])
return 1
`)

type userRecord struct {
	ID            string `redis:"id"`
	Name          string `redis:"name"`
	Email         string `redis:"email"`
	Credits       int64  `redis:"credits"`
	TotalRequests int64  `redis:"total_requests"`
	Banned        bool   `redis:"banned"`
	KeyTikTok     string `redis:"key_tiktok"`
	KeyYouTube    string `redis:"key_youtube"`
	CreatedAt     string `redis:"created_at"`
	UpdatedAt     string `redis:"updated_at"`
}

func (r userRecord) user() *auth.User {
	u := &auth.User{
		ID:            r.ID,
		Name:          r.Name,
		Email:         r.Email,
		Credits:       r.Credits,
		TotalRequests: r.TotalRequests,
		Banned:        r.Banned,
		APIKeys:       map[string]string{},
		CreatedAt:     parseTime(r.CreatedAt),
		UpdatedAt:     parseTime(r.UpdatedAt),
	}
	if r.KeyTikTok != "" {
		u.APIKeys[auth.ServiceTikTok] = r.KeyTikTok
	}
	if r.KeyYouTube != "" {
		u.APIKeys[auth.ServiceYouTube] = r.KeyYouTube
	}
	return u
}

type tokenRecord struct {
	Token      string `redis:"token"`
	Name       string `redis:"name"`
	DailyLimit int64  `redis:"daily_limit"`
	TotalLimit int64  `redis:"total_limit"`
	UsageDaily int64  `redis:"usage_daily"`
	UsageTotal int64  `redis:"usage_total"`
	LastReset  string `redis:"last_reset"`
	Active     bool   `redis:"active"`
	CreatedAt  string `redis:"created_at"`
	LastUsedAt string `redis:"last_used_at"`
}

func (r tokenRecord) token() *auth.Token {
	return &auth.Token{
		Token:      r.Token,
		Name:       r.Name,
		DailyLimit: r.DailyLimit,
		TotalLimit: r.TotalLimit,
		UsageDaily: r.UsageDaily,
		UsageTotal: r.UsageTotal,
		LastReset:  r.LastReset,
		Active:     r.Active,
		CreatedAt:  parseTime(r.CreatedAt),
		LastUsedAt: parseTime(r.LastUsedAt),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

// Redis keeps users, service keys, admin tokens and settings in redis hashes
type Redis struct {
	client      redis.UniversalClient
	freeCredits int64
	now         func() time.Time
}

// NewRedis creates a redis-backed store
func NewRedis(client redis.UniversalClient, freeCredits int64) *Redis {
	return &Redis{client: client, freeCredits: freeCredits, now: time.Now}
}

func (s *Redis) loadUser(ctx context.Context, id string) (*auth.User, error) {
	cmd := s.client.HGetAll(ctx, keyUser+id)
	vals, err := cmd.Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if len(vals) == 0 {
		return nil, auth.ErrNotFound
	}
	var rec userRecord
	if err := cmd.Scan(&rec); err != nil {
		return nil, fmt.Errorf("failed to decode user: %w", err)
	}
	return rec.user(), nil
}

func (s *Redis) loadToken(ctx context.Context, token string) (*auth.Token, error) {
	cmd := s.client.HGetAll(ctx, keyToken+token)
	vals, err := cmd.Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load token: %w", err)
	}
	if len(vals) == 0 {
		return nil, auth.ErrNotFound
	}
	var rec tokenRecord
	if err := cmd.Scan(&rec); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	return rec.token(), nil
}

func (s *Redis) ResolveByServiceKey(ctx context.Context, key string) (*auth.User, error) {
	id, err := s.client.Get(ctx, keyAPIKey+key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve key: %w", err)
	}
	return s.loadUser(ctx, id)
}

func (s *Redis) DeductCredit(ctx context.Context, userID string) (int64, error) {
	n, err := deductScript.Run(ctx, s.client, []string{keyUser + userID}, formatTime(s.now())).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to deduct credit: %w", err)
	}
	switch n {
	case -2:
		return 0, auth.ErrNotFound
	case -1:
		return 0, auth.ErrNoCredits
	}
	return n, nil
}

func (s *Redis) GetBalance(ctx context.Context, userID string) (int64, error) {
	n, err := s.client.HGet(ctx, keyUser+userID, "credits").Int64()
	if errors.Is(err, redis.Nil) {
		return 0, auth.ErrNotFound
	}
	return n, err
}

func (s *Redis) ResolveToken(ctx context.Context, token string) (*auth.Token, error) {
	return s.loadToken(ctx, token)
}

func (s *Redis) ResetDaily(ctx context.Context, token, day string) error {
	return s.client.HSet(ctx, keyToken+token, "usage_daily", 0, "last_reset", day).Err()
}

func (s *Redis) RecordUsage(ctx context.Context, token string, at time.Time) (*auth.Token, error) {
	ok, err := usageScript.Run(ctx, s.client, []string{keyToken + token}, auth.Day(at), formatTime(at)).Int()
	if err != nil {
		return nil, fmt.Errorf("failed to record usage: %w", err)
	}
	if ok == 0 {
		return nil, auth.ErrNotFound
	}
	return s.loadToken(ctx, token)
}

func (s *Redis) LoadRequireAPIKey(ctx context.Context) (bool, bool, error) {
	v, err := s.client.HGet(ctx, keySettings, "require_api_key").Bool()
	if errors.Is(err, redis.Nil) {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("failed to load settings: %w", err)
	}
	return v, true, nil
}

func (s *Redis) SaveRequireAPIKey(ctx context.Context, v bool) error {
	return s.client.HSet(ctx, keySettings, "require_api_key", v).Err()
}

func (s *Redis) CreateToken(ctx context.Context, spec TokenSpec) (*auth.Token, error) {
	t, err := newToken(spec, s.now())
	if err != nil {
		return nil, err
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, keyToken+t.Token,
		"token", t.Token,
		"name", t.Name,
		"daily_limit", t.DailyLimit,
		"total_limit", t.TotalLimit,
		"usage_daily", 0,
		"usage_total", 0,
		"last_reset", t.LastReset,
		"active", true,
		"created_at", formatTime(t.CreatedAt),
	)
	pipe.SAdd(ctx, keyTokens, t.Token)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to create token: %w", err)
	}
	return t, nil
}

func (s *Redis) ListTokens(ctx context.Context) ([]*auth.Token, error) {
	keys, err := s.client.SMembers(ctx, keyTokens).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(keys))
	for i, k := range keys {
		cmds[i] = pipe.HGetAll(ctx, keyToken+k)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to load tokens: %w", err)
	}

	out := make([]*auth.Token, 0, len(keys))
	for _, cmd := range cmds {
		if len(cmd.Val()) == 0 {
			continue
		}
		var rec tokenRecord
		if err := cmd.Scan(&rec); err != nil {
			return nil, fmt.Errorf("failed to decode token: %w", err)
		}
		out = append(out, rec.token())
	}
	return out, nil
}

func (s *Redis) UpdateToken(ctx context.Context, token string, u TokenUpdate) (*auth.Token, error) {
	if _, err := s.loadToken(ctx, token); err != nil {
		return nil, err
	}

	var fields []interface{}
	if u.Name != nil {
		fields = append(fields, "name", *u.Name)
	}
	if u.DailyLimit != nil {
		fields = append(fields, "daily_limit", *u.DailyLimit)
	}
	if u.TotalLimit != nil {
		fields = append(fields, "total_limit", *u.TotalLimit)
	}
	if u.Active != nil {
		fields = append(fields, "active", *u.Active)
	}
	if len(fields) > 0 {
		if err := s.client.HSet(ctx, keyToken+token, fields...).Err(); err != nil {
			return nil, fmt.Errorf("failed to update token: %w", err)
		}
	}
	return s.loadToken(ctx, token)
}

func (s *Redis) DeleteToken(ctx context.Context, token string) error {
	pipe := s.client.TxPipeline()
	del := pipe.Del(ctx, keyToken+token)
	pipe.SRem(ctx, keyTokens, token)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	if del.Val() == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (s *Redis) ResetUsage(ctx context.Context, token string, total bool) error {
	if _, err := s.loadToken(ctx, token); err != nil {
		return err
	}
	fields := []interface{}{"usage_daily", 0, "last_reset", auth.Day(s.now())}
	if total {
		fields = append(fields, "usage_total", 0)
	}
	return s.client.HSet(ctx, keyToken+token, fields...).Err()
}

func (s *Redis) CreateUser(ctx context.Context, name, email string) (*auth.User, error) {
	now := s.now().UTC()
	u := &auth.User{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     normalizeEmail(email),
		Credits:   s.freeCredits,
		APIKeys:   map[string]string{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, keyUser+u.ID,
		"id", u.ID,
		"name", u.Name,
		"email", u.Email,
		"credits", u.Credits,
		"total_requests", 0,
		"banned", false,
		"created_at", formatTime(now),
		"updated_at", formatTime(now),
	)
	pipe.SAdd(ctx, keyUsers, u.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return u, nil
}

func (s *Redis) GetUser(ctx context.Context, id string) (*auth.User, error) {
	return s.loadUser(ctx, id)
}

func (s *Redis) AddCredits(ctx context.Context, id string, n int64) (int64, error) {
	if _, err := s.loadUser(ctx, id); err != nil {
		return 0, err
	}
	pipe := s.client.TxPipeline()
	incr := pipe.HIncrBy(ctx, keyUser+id, "credits", n)
	pipe.HSet(ctx, keyUser+id, "updated_at", formatTime(s.now()))
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to add credits: %w", err)
	}
	return incr.Val(), nil
}

func (s *Redis) SetBanned(ctx context.Context, id string, banned bool) error {
	if _, err := s.loadUser(ctx, id); err != nil {
		return err
	}
	return s.client.HSet(ctx, keyUser+id, "banned", banned, "updated_at", formatTime(s.now())).Err()
}

func (s *Redis) IssueServiceKey(ctx context.Context, id, service string) (string, error) {
	u, err := s.loadUser(ctx, id)
	if err != nil {
		return "", err
	}
	key, err := auth.NewServiceKey(service)
	if err != nil {
		return "", err
	}

	pipe := s.client.TxPipeline()
	if old := u.APIKeys[service]; old != "" {
		pipe.Del(ctx, keyAPIKey+old)
	}
	pipe.Set(ctx, keyAPIKey+key, id, 0)
	pipe.HSet(ctx, keyUser+id, "key_"+service, key, "updated_at", formatTime(s.now()))
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to issue key: %w", err)
	}
	return key, nil
}
