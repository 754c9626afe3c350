package local

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *LocalCache {
	c, err := NewCache(Config{GCInterval: time.Minute})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestSnapshotKV(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "weapon:w1", `{"version":1}`, 0))
	v, err := c.Get(ctx, "weapon:w1")
	require.NoError(t, err)
	assert.Equal(t, `{"version":1}`, v)

	ok, err := c.Exists(ctx, "weapon:w1")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, c.Del(ctx, "weapon:w1"))
	_, err = c.Get(ctx, "weapon:w1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTTLExpiry(t *testing.T) {
	now := time.Unix(1000, 0)
	c, err := NewCache(Config{GCInterval: time.Minute, Now: func() time.Time { return now }})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "weapon:w2", "x", 10*time.Second))
	_, err = c.Get(ctx, "weapon:w2")
	require.NoError(t, err)

	now = now.Add(11 * time.Second)
	_, err = c.Get(ctx, "weapon:w2")
	assert.ErrorIs(t, err, ErrNotFound)
	ok, _ := c.Exists(ctx, "weapon:w2")
	assert.False(t, ok)

	// An expired dedupe key can be claimed again.
	require.NoError(t, c.Set(ctx, "loot:kill:k9", "1", time.Second))
	now = now.Add(2 * time.Second)
	ok, err = c.SetNX(ctx, "loot:kill:k9", "1", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSetNX_KillDedupe(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	ok, err := c.SetNX(ctx, "loot:kill:k1", "1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.SetNX(ctx, "loot:kill:k1", "1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHash_Progress(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.HSet(ctx, "progress:p1", "xp", "40"))
	require.NoError(t, c.HSet(ctx, "progress:p1", "tokens", "2"))
	require.NoError(t, c.HSet(ctx, "progress:p1", "xp", "45"))

	all, err := c.HGetAll(ctx, "progress:p1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"xp": "45", "tokens": "2"}, all)

	empty, err := c.HGetAll(ctx, "progress:nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestZSet_Leaderboard(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.ZAdd(ctx, "progress:rank", 100, "alice"))
	require.NoError(t, c.ZAdd(ctx, "progress:rank", 200, "bob"))
	require.NoError(t, c.ZAdd(ctx, "progress:rank", 50, "carol"))
	require.NoError(t, c.ZAdd(ctx, "progress:rank", 300, "carol"))

	members, err := c.ZRevRange(ctx, "progress:rank", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"carol", "bob", "alice"}, members)

	top, err := c.ZRevRange(ctx, "progress:rank", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"carol"}, top)
}

func TestList_RecentDrops(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.LPush(ctx, "loot:recent", "d1"))
	require.NoError(t, c.LPush(ctx, "loot:recent", "d2"))
	require.NoError(t, c.LPush(ctx, "loot:recent", "d3"))
	require.NoError(t, c.LTrim(ctx, "loot:recent", 0, 1))

	items, err := c.LRange(ctx, "loot:recent", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"d3", "d2"}, items)
}

func TestHSetAll_AndDelAcrossTypes(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.HSetAll(ctx, "progress:p2", map[string]string{"xp": "10", "kills": "1"}))
	require.NoError(t, c.LPush(ctx, "loot:recent", "a", "b"))
	ok, err := c.Exists(ctx, "progress:p2")
	require.NoError(t, err)
	assert.True(t, ok)

	items, err := c.LRange(ctx, "loot:recent", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, items)

	require.NoError(t, c.Del(ctx, "progress:p2", "loot:recent"))
	all, err := c.HGetAll(ctx, "progress:p2")
	require.NoError(t, err)
	assert.Empty(t, all)
	items, err = c.LRange(ctx, "loot:recent", 0, -1)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestRangeBounds(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	require.NoError(t, c.LPush(ctx, "l", "e", "d", "c", "b", "a"))

	tests := []struct {
		name        string
		start, stop int64
		want        []string
	}{
		{"all", 0, -1, []string{"a", "b", "c", "d", "e"}},
		{"tail", -2, -1, []string{"d", "e"}},
		{"past end", 3, 100, []string{"d", "e"}},
		{"empty", 4, 2, nil},
		{"start beyond", 9, 10, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.LRange(ctx, "l", tt.start, tt.stop)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
