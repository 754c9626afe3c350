package hook

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ErrPanic wraps a panic raised by a callback.
var ErrPanic = errors.New("hook: callback panicked")

// Name identifies a weapon or projectile extension point.
type Name int

const (
	OnWeaponUpdate Name = iota
	OnWeaponFire
	OnWeaponReload
	OnBulletUpdate
	OnBulletImpact

	nameCount
)

var nameStrings = [nameCount]string{
	OnWeaponUpdate: "on_weapon_update",
	OnWeaponFire:   "on_weapon_fire",
	OnWeaponReload: "on_weapon_reload",
	OnBulletUpdate: "on_bullet_update",
	OnBulletImpact: "on_bullet_impact",
}

func (n Name) String() string {
	if !n.Valid() {
		return fmt.Sprintf("hook(%d)", int(n))
	}
	return nameStrings[n]
}

// Valid reports whether n is a declared hook.
func (n Name) Valid() bool { return n >= 0 && n < nameCount }

// ParseName resolves an authored hook name.
func ParseName(s string) (Name, bool) {
	for i, v := range nameStrings {
		if v == s {
			return Name(i), true
		}
	}
	return 0, false
}

// All returns every hook name in declaration order.
func All() []Name {
	out := make([]Name, nameCount)
	for i := range out {
		out[i] = Name(i)
	}
	return out
}

// Func is a callback body. event is the hook name, or "timer" when fired by a timer.
type Func func(ctx context.Context, event string, data interface{}) error

// Callback is an opaque handle stored in hook lists and timer bindings.
// Name is only used for logging.
type Callback struct {
	Name string
	Fn   Func
}

// Call runs the callback, converting a panic into an error wrapping ErrPanic.
func (cb Callback) Call(ctx context.Context, event string, data interface{}) (err error) {
	if cb.Fn == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return cb.Fn(ctx, event, data)
}

// Registry maps each hook to its callbacks in registration order.
// It is filled once by a modifier rebuild and only read afterwards.
type Registry struct {
	hooks map[Name][]Callback
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{hooks: make(map[Name][]Callback)}
}

// Attach appends cb to the list for name.
func (r *Registry) Attach(name Name, cb Callback) {
	r.hooks[name] = append(r.hooks[name], cb)
}

// Callbacks returns a copy of the callbacks registered for name.
func (r *Registry) Callbacks(name Name) []Callback {
	if r == nil {
		return nil
	}
	entries := make([]Callback, len(r.hooks[name]))
	copy(entries, r.hooks[name])
	return entries
}

// Len returns the number of callbacks registered for name.
func (r *Registry) Len(name Name) int {
	if r == nil {
		return 0
	}
	return len(r.hooks[name])
}

// CallbackNames lists the callback names registered for name, in order.
func (r *Registry) CallbackNames(name Name) []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.hooks[name]))
	for _, cb := range r.hooks[name] {
		out = append(out, cb.Name)
	}
	return out
}

// Counts returns the number of callbacks per non-empty hook, keyed by hook name.
func (r *Registry) Counts() map[string]int {
	out := make(map[string]int)
	if r == nil {
		return out
	}
	for name, entries := range r.hooks {
		if len(entries) > 0 {
			out[name.String()] = len(entries)
		}
	}
	return out
}

// Dispatch invokes every callback registered for name in registration order.
// It iterates a stable copy, so a rebuild started from inside a callback cannot
// change the list being walked. A failing or panicking callback is logged and
// the remaining callbacks still run. Returns the number of failed callbacks.
func (r *Registry) Dispatch(ctx context.Context, name Name, data interface{}, logger *zap.Logger) int {
	entries := r.Callbacks(name)
	if len(entries) == 0 {
		return 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	failed := 0
	event := name.String()
	for i, cb := range entries {
		if err := cb.Call(ctx, event, data); err != nil {
			failed++
			logger.Error("hook callback failed",
				zap.String("hook", event),
				zap.String("callback", cb.Name),
				zap.Int("index", i),
				zap.Error(err))
		}
	}
	return failed
}
