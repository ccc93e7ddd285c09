package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bierserv/api/internal/config"
)

type mockCmdable struct {
	data map[string]string
	ttls map[string]time.Duration
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *mockCmdable) Ping(ctx context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(ctx context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	m.data[key] = toString(value)
	m.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(ctx context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd {
	if _, ok := m.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = toString(value)
	m.ttls[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Exists(ctx context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := m.data[k]; ok {
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := m.data[k]; ok {
			delete(m.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	}
	return ""
}

func TestClient_SetGetDel(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	c := &Client{store: mock}

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
	assert.Equal(t, time.Minute, mock.ttls["k"])

	require.NoError(t, c.Del(ctx, "k"))
	_, err = c.Get(ctx, "k")
	assert.True(t, IsMiss(err))
}

func TestClient_SetNX(t *testing.T) {
	ctx := context.Background()
	c := &Client{store: newMockCmdable()}

	ok, err := c.SetNX(ctx, "lock", "a", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.SetNX(ctx, "lock", "b", time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	got, _ := c.Get(ctx, "lock")
	assert.Equal(t, "a", got)
}

func TestClient_Exists(t *testing.T) {
	ctx := context.Background()
	c := &Client{store: newMockCmdable()}

	ok, err := c.Exists(ctx, c.RevokedTokenKey("jti-1"))
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, c.RevokedTokenKey("jti-1"), "1", time.Hour))
	ok, err = c.Exists(ctx, c.RevokedTokenKey("jti-1"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestClient_Uninitialized(t *testing.T) {
	ctx := context.Background()
	var nilClient *Client
	empty := &Client{}

	for _, c := range []*Client{nilClient, empty} {
		assert.ErrorIs(t, c.Set(ctx, "k", "v", 0), ErrNotInitialized)
		_, err := c.Get(ctx, "k")
		assert.ErrorIs(t, err, ErrNotInitialized)
		assert.ErrorIs(t, c.Ping(ctx), ErrNotInitialized)
		assert.NoError(t, c.Close())
	}
}

func TestKeyBuilders(t *testing.T) {
	c := &Client{}
	assert.Equal(t, "bier:idempotency:close_table:abc", c.IdempotencyKey("close_table", "abc"))
	assert.Equal(t, "bier:settings:system", c.SettingsKey())
	assert.Equal(t, "bier:revoked:jti", c.RevokedTokenKey("jti"))
	assert.Equal(t, "bier:idempotency:x", c.IdempotencyKey("", " x "))
}

func TestOptionsFromConfig(t *testing.T) {
	_, err := optionsFromConfig(config.RedisConfig{})
	assert.Error(t, err)

	opts, err := optionsFromConfig(config.RedisConfig{
		URL:         "redis://localhost:6379/2",
		PoolSize:    7,
		DialTimeout: time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 7, opts.PoolSize)
	assert.Equal(t, time.Second, opts.DialTimeout)
}
