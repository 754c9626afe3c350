package action

import (
	"context"
	"encoding/json"

	"github.com/kasuganosora/modforge/cache"
	"github.com/kasuganosora/modforge/game/battle"
	"go.uber.org/zap"
)

// Effect is published for every host action. The systems owning health,
// movement and item spawning consume it.
type Effect struct {
	Owner  string  `json:"owner"`
	Kind   string  `json:"kind"` // heal | phase | drop | damage
	Amount float64 `json:"amount,omitempty"`
	Item   string  `json:"item,omitempty"`
	Source string  `json:"source,omitempty"` // shooter of a damage effect
}

// BusHost is a Host that publishes effects on a pub/sub channel.
type BusHost struct {
	ps      cache.PubSub
	channel string
	logger  *zap.Logger
}

// NewBusHost creates a BusHost publishing on channel.
func NewBusHost(ps cache.PubSub, channel string, logger *zap.Logger) *BusHost {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BusHost{ps: ps, channel: channel, logger: logger}
}

func (h *BusHost) Heal(ctx context.Context, owner string, amount float64) error {
	return h.publish(ctx, Effect{Owner: owner, Kind: "heal", Amount: amount})
}

func (h *BusHost) Phase(ctx context.Context, owner string, distance float64) error {
	return h.publish(ctx, Effect{Owner: owner, Kind: "phase", Amount: distance})
}

func (h *BusHost) Drop(ctx context.Context, owner, item string) error {
	return h.publish(ctx, Effect{Owner: owner, Kind: "drop", Item: item})
}

// Damage returns a HealthSink that publishes resolved damage against target,
// dealt by source.
func (h *BusHost) Damage(ctx context.Context, target, source string) battle.HealthSink {
	return &damageSink{ctx: ctx, host: h, target: target, source: source}
}

type damageSink struct {
	ctx    context.Context
	host   *BusHost
	target string
	source string
}

func (s *damageSink) ApplyDamage(amount float64) {
	err := s.host.publish(s.ctx, Effect{Owner: s.target, Kind: "damage", Amount: amount, Source: s.source})
	if err != nil {
		s.host.logger.Warn("damage effect not published", zap.String("target", s.target), zap.Error(err))
	}
}

func (h *BusHost) publish(ctx context.Context, e Effect) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	h.logger.Debug("weapon effect", zap.String("owner", e.Owner), zap.String("kind", e.Kind))
	return h.ps.Publish(ctx, h.channel, string(b))
}
