package action

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/kasuganosora/modforge/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBusHost_PublishesEffects(t *testing.T) {
	_, ps := testutil.SetupTestCache(t)
	ctx := context.Background()
	msgs, cancel, err := ps.Subscribe(ctx, "fx")
	require.NoError(t, err)
	defer cancel()

	r := NewRegistry(NewBusHost(ps, "fx", zap.NewNop()), nil, zap.NewNop())
	cb, err := r.Build("heal", "", Args{"amount": 4})
	require.NoError(t, err)
	require.NoError(t, cb.Call(ctx, "on_weapon_fire", owned("p1")))

	cb, err = r.Build("drop", "", Args{"item": "ammo"})
	require.NoError(t, err)
	require.NoError(t, cb.Call(ctx, "on_bullet_impact", owned("p1")))

	var got []Effect
	for len(got) < 2 {
		select {
		case m := <-msgs:
			var e Effect
			require.NoError(t, json.Unmarshal([]byte(m.Payload), &e))
			got = append(got, e)
		case <-time.After(time.Second):
			t.Fatal("effect not published")
		}
	}
	assert.Equal(t, Effect{Owner: "p1", Kind: "heal", Amount: 4}, got[0])
	assert.Equal(t, Effect{Owner: "p1", Kind: "drop", Item: "ammo"}, got[1])
}

func TestBusHost_DamageSink(t *testing.T) {
	_, ps := testutil.SetupTestCache(t)
	ctx := context.Background()
	msgs, cancel, err := ps.Subscribe(ctx, "fx")
	require.NoError(t, err)
	defer cancel()

	sink := NewBusHost(ps, "fx", zap.NewNop()).Damage(ctx, "enemy-7", "p1")
	sink.ApplyDamage(12.5)

	select {
	case m := <-msgs:
		var e Effect
		require.NoError(t, json.Unmarshal([]byte(m.Payload), &e))
		assert.Equal(t, Effect{Owner: "enemy-7", Kind: "damage", Amount: 12.5, Source: "p1"}, e)
	case <-time.After(time.Second):
		t.Fatal("damage not published")
	}
}
