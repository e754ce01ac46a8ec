package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/KeremKalyoncu/grabkit/internal/auth"
)

// Memory keeps every record in process memory. It backs development runs and tests.
type Memory struct {
	mu          sync.Mutex
	users       map[string]*auth.User
	keys        map[string]string // service key -> user id
	tokens      map[string]*auth.Token
	settings    map[string]bool
	freeCredits int64
	now         func() time.Time
}

// NewMemory creates an empty in-memory store
func NewMemory(freeCredits int64) *Memory {
	return &Memory{
		users:       make(map[string]*auth.User),
		keys:        make(map[string]string),
		tokens:      make(map[string]*auth.Token),
		settings:    make(map[string]bool),
		freeCredits: freeCredits,
		now:         time.Now,
	}
}

// SetClock replaces the clock used for timestamps
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

func copyUser(u *auth.User) *auth.User {
	c := *u
	c.APIKeys = make(map[string]string, len(u.APIKeys))
	for k, v := range u.APIKeys {
		c.APIKeys[k] = v
	}
	return &c
}

func copyToken(t *auth.Token) *auth.Token {
	c := *t
	return &c
}

func (m *Memory) ResolveByServiceKey(_ context.Context, key string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.keys[key]
	if !ok {
		return nil, auth.ErrNotFound
	}
	u, ok := m.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return copyUser(u), nil
}

func (m *Memory) DeductCredit(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return 0, auth.ErrNotFound
	}
	if u.Credits < 1 {
		return u.Credits, auth.ErrNoCredits
	}
	u.Credits--
	u.TotalRequests++
	u.UpdatedAt = m.now().UTC()
	return u.Credits, nil
}

func (m *Memory) GetBalance(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return 0, auth.ErrNotFound
	}
	return u.Credits, nil
}

func (m *Memory) ResolveToken(_ context.Context, token string) (*auth.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tokens[token]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return copyToken(t), nil
}

func (m *Memory) ResetDaily(_ context.Context, token, day string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tokens[token]
	if !ok {
		return auth.ErrNotFound
	}
	t.UsageDaily = 0
	t.LastReset = day
	return nil
}

func (m *Memory) RecordUsage(_ context.Context, token string, at time.Time) (*auth.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tokens[token]
	if !ok {
		return nil, auth.ErrNotFound
	}
	if day := auth.Day(at); t.LastReset != day {
		t.UsageDaily = 0
		t.LastReset = day
	}
	t.UsageDaily++
	t.UsageTotal++
	t.LastUsedAt = at.UTC()
	return copyToken(t), nil
}

func (m *Memory) LoadRequireAPIKey(_ context.Context) (bool, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.settings["require_api_key"]
	return v, ok, nil
}

func (m *Memory) SaveRequireAPIKey(_ context.Context, v bool) error {
	m.mu.Lock()
	m.settings["require_api_key"] = v
	m.mu.Unlock()
	return nil
}

func (m *Memory) CreateToken(_ context.Context, spec TokenSpec) (*auth.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := newToken(spec, m.now())
	if err != nil {
		return nil, err
	}
	m.tokens[t.Token] = t
	return copyToken(t), nil
}

// PutToken stores t as-is
func (m *Memory) PutToken(t *auth.Token) {
	m.mu.Lock()
	m.tokens[t.Token] = copyToken(t)
	m.mu.Unlock()
}

func (m *Memory) ListTokens(_ context.Context) ([]*auth.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*auth.Token, 0, len(m.tokens))
	for _, t := range m.tokens {
		out = append(out, copyToken(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) UpdateToken(_ context.Context, token string, u TokenUpdate) (*auth.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tokens[token]
	if !ok {
		return nil, auth.ErrNotFound
	}
	if u.Name != nil {
		t.Name = *u.Name
	}
	if u.DailyLimit != nil {
		t.DailyLimit = *u.DailyLimit
	}
	if u.TotalLimit != nil {
		t.TotalLimit = *u.TotalLimit
	}
	if u.Active != nil {
		t.Active = *u.Active
	}
	return copyToken(t), nil
}

func (m *Memory) DeleteToken(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tokens[token]; !ok {
		return auth.ErrNotFound
	}
	delete(m.tokens, token)
	return nil
}

func (m *Memory) ResetUsage(_ context.Context, token string, total bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tokens[token]
	if !ok {
		return auth.ErrNotFound
	}
	t.UsageDaily = 0
	t.LastReset = auth.Day(m.now())
	if total {
		t.UsageTotal = 0
	}
	return nil
}

func (m *Memory) CreateUser(_ context.Context, name, email string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	u := &auth.User{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     normalizeEmail(email),
		Credits:   m.freeCredits,
		APIKeys:   map[string]string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.users[u.ID] = u
	return copyUser(u), nil
}

func (m *Memory) GetUser(_ context.Context, id string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return copyUser(u), nil
}

func (m *Memory) AddCredits(_ context.Context, id string, n int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return 0, auth.ErrNotFound
	}
	u.Credits += n
	u.UpdatedAt = m.now().UTC()
	return u.Credits, nil
}

func (m *Memory) SetBanned(_ context.Context, id string, banned bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	u.Banned = banned
	u.UpdatedAt = m.now().UTC()
	return nil
}

// IssueServiceKey replaces the user's key for service
func (m *Memory) IssueServiceKey(_ context.Context, id, service string) (string, error) {
	key, err := auth.NewServiceKey(service)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return "", auth.ErrNotFound
	}
	if old := u.APIKeys[service]; old != "" {
		delete(m.keys, old)
	}
	u.APIKeys[service] = key
	u.UpdatedAt = m.now().UTC()
	m.keys[key] = id
	return key, nil
}
