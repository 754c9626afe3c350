package player

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/kasuganosora/modforge/cache"
	"go.uber.org/zap"
)

// ErrNoTokens is returned when a player spends a token they do not have.
var ErrNoTokens = errors.New("player: no unlock tokens")

const rankKey = "progress:rank"

// Progress is a player's experience and unlock-token balance.
type Progress struct {
	PlayerID string `json:"player_id"`
	XP       int    `json:"xp"`
	Tokens   int    `json:"tokens"`
	TotalXP  int    `json:"total_xp"`
	Kills    int    `json:"kills"`
}

// Accrue adds xp and converts every full threshold of XP into a token.
// Returns the updated progress and the number of tokens gained.
func Accrue(p Progress, xp, threshold int) (Progress, int) {
	if xp < 0 {
		xp = 0
	}
	p.XP += xp
	p.TotalXP += xp
	if threshold <= 0 {
		return p, 0
	}
	gained := 0
	for p.XP >= threshold {
		p.XP -= threshold
		p.Tokens++
		gained++
	}
	return p, gained
}

// Tracker keeps player progress in the cache as one hash per player.
type Tracker struct {
	threshold int
	store     cache.Cache
	logger    *zap.Logger
	mu        sync.Mutex
}

// NewTracker creates a Tracker converting every threshold XP into a token.
func NewTracker(threshold int, store cache.Cache, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{threshold: threshold, store: store, logger: logger}
}

func progressKey(id string) string { return "progress:" + id }

// Get returns the stored progress of id. Unknown players have zero progress.
func (t *Tracker) Get(ctx context.Context, id string) (Progress, error) {
	fields, err := t.store.HGetAll(ctx, progressKey(id))
	if err != nil {
		return Progress{}, fmt.Errorf("player: load %s: %w", id, err)
	}
	p := Progress{PlayerID: id}
	p.XP = atoi(fields["xp"])
	p.Tokens = atoi(fields["tokens"])
	p.TotalXP = atoi(fields["total_xp"])
	p.Kills = atoi(fields["kills"])
	return p, nil
}

// OnKill credits a kill worth xp to id.
func (t *Tracker) OnKill(ctx context.Context, id string, xp int) (Progress, int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, err := t.Get(ctx, id)
	if err != nil {
		return p, 0, err
	}
	p.Kills++
	p, gained := Accrue(p, xp, t.threshold)
	if err := t.save(ctx, p); err != nil {
		return p, 0, err
	}
	if gained > 0 {
		t.logger.Info("unlock tokens gained",
			zap.String("player", id),
			zap.Int("gained", gained),
			zap.Int("tokens", p.Tokens))
	}
	return p, gained, nil
}

// Spend consumes one unlock token.
func (t *Tracker) Spend(ctx context.Context, id string) (Progress, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, err := t.Get(ctx, id)
	if err != nil {
		return p, err
	}
	if p.Tokens <= 0 {
		return p, ErrNoTokens
	}
	p.Tokens--
	return p, t.save(ctx, p)
}

// Top returns up to n player IDs ordered by total XP, highest first.
func (t *Tracker) Top(ctx context.Context, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	return t.store.ZRevRange(ctx, rankKey, 0, int64(n-1))
}

func (t *Tracker) save(ctx context.Context, p Progress) error {
	err := t.store.HSetAll(ctx, progressKey(p.PlayerID), map[string]string{
		"xp":       strconv.Itoa(p.XP),
		"tokens":   strconv.Itoa(p.Tokens),
		"total_xp": strconv.Itoa(p.TotalXP),
		"kills":    strconv.Itoa(p.Kills),
	})
	if err != nil {
		return fmt.Errorf("player: save %s: %w", p.PlayerID, err)
	}
	return t.store.ZAdd(ctx, rankKey, float64(p.TotalXP), p.PlayerID)
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
