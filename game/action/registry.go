// Package action builds hook callbacks from named actions referenced by
// authored mod data.
package action

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/kasuganosora/modforge/game/script"
	"github.com/kasuganosora/modforge/plugin/hook"
	"go.uber.org/zap"
)

var (
	ErrUnknownAction = errors.New("action: unknown action")
	ErrBadArgs       = errors.New("action: bad arguments")
	ErrNoOwner       = errors.New("action: event data has no owner")
)

// Host is the game world the actions act upon. Health and movement live outside the engine.
type Host interface {
	Heal(ctx context.Context, owner string, amount float64) error
	Phase(ctx context.Context, owner string, distance float64) error
	Drop(ctx context.Context, owner string, item string) error
}

// Owned is implemented by event data that belongs to an entity.
type Owned interface {
	OwnerID() string
}

// Args are the authored parameters of an action.
type Args map[string]interface{}

// Factory validates args and returns the callback body.
type Factory func(r *Registry, args Args) (hook.Func, error)

// Registry maps action names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	host      Host
	sandbox   *script.Sandbox
	logger    *zap.Logger
}

// NewRegistry creates a registry with the built-in actions. sandbox may be nil,
// in which case the script action is unavailable.
func NewRegistry(host Host, sandbox *script.Sandbox, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		factories: make(map[string]Factory),
		host:      host,
		sandbox:   sandbox,
		logger:    logger,
	}
	r.Register("debug_message", debugMessage)
	r.Register("heal", heal)
	r.Register("phase", phase)
	r.Register("drop", drop)
	if sandbox != nil {
		r.Register("script", runScript)
	}
	return r
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Names lists the registered action names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for name := range r.factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Build resolves name into a callback. label names the callback in logs and
// defaults to the action name.
func (r *Registry) Build(name, label string, args Args) (hook.Callback, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return hook.Callback{}, fmt.Errorf("%w: %q", ErrUnknownAction, name)
	}
	fn, err := f(r, args)
	if err != nil {
		return hook.Callback{}, fmt.Errorf("action %s: %w", name, err)
	}
	if label == "" {
		label = name
	}
	return hook.Callback{Name: label, Fn: fn}, nil
}

func ownerOf(data interface{}) (string, error) {
	o, ok := data.(Owned)
	if !ok || o.OwnerID() == "" {
		return "", ErrNoOwner
	}
	return o.OwnerID(), nil
}

func (r *Registry) needHost() error {
	if r.host == nil {
		return errors.New("no host configured")
	}
	return nil
}
