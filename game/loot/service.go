// Package loot turns kill events into mod drops.
package loot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kasuganosora/modforge/audit"
	"github.com/kasuganosora/modforge/cache"
	"github.com/kasuganosora/modforge/game/battle"
	"github.com/kasuganosora/modforge/game/mod"
	"github.com/kasuganosora/modforge/game/player"
	"github.com/kasuganosora/modforge/resource"
	"go.uber.org/zap"
)

var (
	ErrDuplicateKill = errors.New("loot: kill already processed")
	ErrBadKill       = errors.New("loot: kill_id and player_id are required")
	ErrNoCatalog     = errors.New("loot: catalog not loaded")
)

const recentKey = "loot:recent"

// KillEvent is published on the kill channel when a player kills an enemy.
type KillEvent struct {
	KillID   string `json:"kill_id"`
	PlayerID string `json:"player_id"`
	EnemyID  string `json:"enemy_id"`
}

// Drop is the result of one kill. ModID is empty when nothing dropped.
type Drop struct {
	KillID   string     `json:"kill_id"`
	PlayerID string     `json:"player_id"`
	EnemyID  string     `json:"enemy_id"`
	Rarity   mod.Rarity `json:"rarity"`
	ModID    string     `json:"mod_id,omitempty"`
	ModName  string     `json:"mod_name,omitempty"`
	XP       int        `json:"xp"`
	Tokens   int        `json:"tokens_gained"`
	At       time.Time  `json:"at"`
}

// CatalogSource returns the current catalog, or nil before the first load.
type CatalogSource interface {
	Catalog() *resource.Catalog
}

// Config controls channels and cache retention.
type Config struct {
	KillChannel string
	DropChannel string
	DedupeTTL   time.Duration
	RecentSize  int
}

// Service rolls drops for kills and announces them.
type Service struct {
	cfg      Config
	catalog  CatalogSource
	selector *battle.Selector
	cache    cache.Cache
	pubsub   cache.PubSub
	progress *player.Tracker
	audit    audit.Logger
	logger   *zap.Logger
}

// NewService creates a Service. progress and auditLog may be nil.
func NewService(cfg Config, catalog CatalogSource, sel *battle.Selector, c cache.Cache, ps cache.PubSub,
	progress *player.Tracker, auditLog audit.Logger, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.KillChannel == "" {
		cfg.KillChannel = "kill"
	}
	if cfg.DropChannel == "" {
		cfg.DropChannel = "loot_drop"
	}
	if cfg.RecentSize <= 0 {
		cfg.RecentSize = 50
	}
	return &Service{
		cfg:      cfg,
		catalog:  catalog,
		selector: sel,
		cache:    c,
		pubsub:   ps,
		progress: progress,
		audit:    auditLog,
		logger:   logger,
	}
}

// Roll selects a rarity from table and a uniform-random mod of that rarity.
// The mod is nil when the rarity is none or its pool is empty.
func (s *Service) Roll(table []battle.RarityWeight) (mod.Rarity, *mod.Mod) {
	r := s.selector.Select(table)
	if r == mod.RarityNone {
		return r, nil
	}
	cat := s.catalog.Catalog()
	if cat == nil {
		return r, nil
	}
	pool := cat.Pool(r)
	i := s.selector.PickIndex(len(pool))
	if i < 0 {
		return r, nil
	}
	return r, pool[i]
}

// PublishKill announces a kill on the kill channel.
func (s *Service) PublishKill(ctx context.Context, ev KillEvent) error {
	if ev.KillID == "" || ev.PlayerID == "" {
		return ErrBadKill
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.pubsub.Publish(ctx, s.cfg.KillChannel, string(b))
}

// HandleKill processes ev once. A repeated kill ID returns ErrDuplicateKill.
func (s *Service) HandleKill(ctx context.Context, ev KillEvent) (*Drop, error) {
	start := time.Now()
	if ev.KillID == "" || ev.PlayerID == "" {
		return nil, ErrBadKill
	}
	cat := s.catalog.Catalog()
	if cat == nil {
		return nil, ErrNoCatalog
	}
	fresh, err := s.cache.SetNX(ctx, "loot:kill:"+ev.KillID, ev.PlayerID, s.cfg.DedupeTTL)
	if err != nil {
		return nil, fmt.Errorf("loot: dedupe: %w", err)
	}
	if !fresh {
		return nil, ErrDuplicateKill
	}

	d := &Drop{KillID: ev.KillID, PlayerID: ev.PlayerID, EnemyID: ev.EnemyID, At: time.Now()}
	var m *mod.Mod
	d.Rarity, m = s.Roll(cat.DropTableFor(ev.EnemyID))
	if m != nil {
		d.ModID = m.ID
		d.ModName = m.Name
	}

	if e, ok := cat.Enemy(ev.EnemyID); ok {
		d.XP = s.selector.IntRange(e.XPMin, e.XPMax)
	}
	if s.progress != nil {
		_, gained, err := s.progress.OnKill(ctx, ev.PlayerID, d.XP)
		if err != nil {
			s.logger.Warn("progress update failed", zap.String("player", ev.PlayerID), zap.Error(err))
		}
		d.Tokens = gained
	}

	b, err := json.Marshal(d)
	if err != nil {
		return d, err
	}
	if err := s.pubsub.Publish(ctx, s.cfg.DropChannel, string(b)); err != nil {
		s.logger.Warn("drop publish failed", zap.Error(err))
	}
	if err := s.cache.LPush(ctx, recentKey, string(b)); err != nil {
		s.logger.Warn("recent drops push failed", zap.Error(err))
	} else if err := s.cache.LTrim(ctx, recentKey, 0, int64(s.cfg.RecentSize-1)); err != nil {
		s.logger.Warn("recent drops trim failed", zap.Error(err))
	}
	if s.audit != nil {
		s.audit.Log(audit.AuditEntry{
			PlayerID:   ev.PlayerID,
			Action:     audit.ActionLootDrop,
			Request:    ev,
			Response:   d,
			DurationMs: int(time.Since(start).Milliseconds()),
		})
	}
	s.logger.Info("loot dropped",
		zap.String("kill", ev.KillID),
		zap.String("player", ev.PlayerID),
		zap.Stringer("rarity", d.Rarity),
		zap.String("mod", d.ModID))
	return d, nil
}

// Recent returns up to n of the latest drops, newest first.
func (s *Service) Recent(ctx context.Context, n int) ([]Drop, error) {
	if n <= 0 || n > s.cfg.RecentSize {
		n = s.cfg.RecentSize
	}
	raw, err := s.cache.LRange(ctx, recentKey, 0, int64(n-1))
	if err != nil {
		return nil, err
	}
	out := make([]Drop, 0, len(raw))
	for _, r := range raw {
		var d Drop
		if err := json.Unmarshal([]byte(r), &d); err != nil {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// Run consumes kill events until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	msgs, cancel, err := s.pubsub.Subscribe(ctx, s.cfg.KillChannel)
	if err != nil {
		return fmt.Errorf("loot: subscribe %s: %w", s.cfg.KillChannel, err)
	}
	defer cancel()
	s.logger.Info("loot service listening", zap.String("channel", s.cfg.KillChannel))
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			var ev KillEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				s.logger.Warn("bad kill event", zap.String("payload", msg.Payload), zap.Error(err))
				continue
			}
			if _, err := s.HandleKill(ctx, ev); err != nil && !errors.Is(err, ErrDuplicateKill) {
				s.logger.Warn("kill not processed", zap.String("kill", ev.KillID), zap.Error(err))
			}
		}
	}
}
