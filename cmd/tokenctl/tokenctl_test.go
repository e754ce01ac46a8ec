package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KeremKalyoncu/grabkit/internal/auth"
	"github.com/KeremKalyoncu/grabkit/internal/store"
)

func run(t *testing.T, admin store.Admin, args ...string) (string, error) {
	t.Helper()
	released := false
	root := newRootCmd(func(ctx context.Context) (store.Admin, func(), error) {
		return admin, func() { released = true }, nil
	})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	if err == nil {
		assert.True(t, released, "store not released")
	}
	return out.String(), err
}

func TestTokenLifecycle(t *testing.T) {
	mem := store.NewMemory(10)

	out, err := run(t, mem, "token", "create", "--name", "partner", "--daily", "50", "--json")
	require.NoError(t, err)

	var created auth.Token
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	assert.Equal(t, "partner", created.Name)
	assert.EqualValues(t, 50, created.DailyLimit)
	assert.True(t, created.Active)

	out, err = run(t, mem, "token", "update", created.Token, "--active=false", "--total", "1000")
	require.NoError(t, err)
	assert.Contains(t, out, "active:  false")
	assert.Contains(t, out, "total:   0 / 1000")

	out, err = run(t, mem, "token", "list")
	require.NoError(t, err)
	assert.Contains(t, out, auth.MaskKey(created.Token))
	assert.Contains(t, out, "0/50")

	_, err = run(t, mem, "token", "reset", created.Token, "--total")
	require.NoError(t, err)

	_, err = run(t, mem, "token", "delete", created.Token)
	require.NoError(t, err)

	out, err = run(t, mem, "token", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No tokens found.")
}

func TestTokenUpdateRequiresAChange(t *testing.T) {
	_, err := run(t, store.NewMemory(10), "token", "update", "abc")
	assert.EqualError(t, err, "nothing to update")
}

func TestTokenCreateRequiresName(t *testing.T) {
	_, err := run(t, store.NewMemory(10), "token", "create")
	assert.EqualError(t, err, "--name is required")
}

func TestUserLifecycle(t *testing.T) {
	mem := store.NewMemory(10)

	out, err := run(t, mem, "user", "create", "--name", "Ada", "--email", "Ada@Example.com", "--json")
	require.NoError(t, err)
	var u auth.User
	require.NoError(t, json.Unmarshal([]byte(out), &u))
	assert.EqualValues(t, 10, u.Credits)

	out, err = run(t, mem, "user", "credits", u.ID, "15")
	require.NoError(t, err)
	assert.Equal(t, "Balance: 25\n", out)

	out, err = run(t, mem, "user", "key", u.ID, auth.ServiceTikTok)
	require.NoError(t, err)
	key := strings.TrimSpace(out)
	assert.True(t, strings.HasPrefix(key, "tiktok_"))

	_, err = run(t, mem, "user", "ban", u.ID)
	require.NoError(t, err)

	out, err = run(t, mem, "user", "show", u.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "banned:   true")
	assert.Contains(t, out, "key[tiktok]: "+auth.MaskKey(key))

	_, err = run(t, mem, "user", "unban", u.ID)
	require.NoError(t, err)
	got, err := mem.GetUser(context.Background(), u.ID)
	require.NoError(t, err)
	assert.False(t, got.Banned)
}

func TestUserKeyRejectsUnknownService(t *testing.T) {
	mem := store.NewMemory(10)
	u, err := mem.CreateUser(context.Background(), "x", "x@example.com")
	require.NoError(t, err)

	_, err = run(t, mem, "user", "key", u.ID, "vimeo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown service "vimeo"`)
}

func TestUnknownUser(t *testing.T) {
	_, err := run(t, store.NewMemory(10), "user", "credits", "missing", "5")
	assert.ErrorIs(t, err, auth.ErrNotFound)
}
