// Package script runs authored mod callbacks written in JavaScript inside a
// pool of restricted goja VMs.
package script

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// ErrTimeout is returned when a script exceeds the execution time limit.
var ErrTimeout = errors.New("script: execution timed out")

// ErrPanic is returned when the VM panics while running a script.
var ErrPanic = errors.New("script: vm panic")

// Env exposes the firing entity to a script. Nil accessors are left undefined.
type Env struct {
	Event string
	Owner string

	Stat   func(name string) (float64, bool)
	Damage func(element string) (float64, bool)
	Heal   func(amount float64)
	Phase  func(distance float64)
	Log    func(msg string)
}

// VMPool is a thread-safe pool of pre-initialised goja runtimes.
type VMPool struct {
	pool    chan *goja.Runtime
	timeout time.Duration
	logger  *zap.Logger
	size    int
}

// NewVMPool creates a VMPool with the given concurrency size and per-script timeout.
func NewVMPool(size int, timeout time.Duration, logger *zap.Logger) *VMPool {
	if size <= 0 {
		size = 4
	}
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	p := &VMPool{
		pool:    make(chan *goja.Runtime, size),
		timeout: timeout,
		logger:  logger,
		size:    size,
	}
	for i := 0; i < size; i++ {
		p.pool <- newSafeVM()
	}
	return p
}

// Size returns the number of VMs in the pool.
func (p *VMPool) Size() int { return p.size }

// Run executes src inside a pooled VM with env bound.
// Returns the value of the last expression evaluated, or an error.
func (p *VMPool) Run(ctx context.Context, src string, env *Env) (interface{}, error) {
	select {
	case vm := <-p.pool:
		// a VM interrupted by a timeout is replaced rather than returned
		returnToPool := true
		defer func() {
			if returnToPool {
				p.pool <- vm
			}
		}()
		return p.runVM(ctx, vm, src, env, &returnToPool)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *VMPool) runVM(ctx context.Context, vm *goja.Runtime, src string, env *Env, returnToPool *bool) (interface{}, error) {
	bindEnv(vm, env)

	timer := time.AfterFunc(p.timeout, func() {
		vm.Interrupt(ErrTimeout)
	})
	stop := context.AfterFunc(ctx, func() {
		vm.Interrupt(ctx.Err())
	})
	defer func() {
		timer.Stop()
		stop()
		if *returnToPool {
			vm.ClearInterrupt()
		}
	}()

	var result goja.Value
	var runErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				runErr = ErrPanic
			}
		}()
		result, runErr = vm.RunString(src)
	}()

	if runErr != nil {
		var interrupted *goja.InterruptedError
		if errors.As(runErr, &interrupted) {
			*returnToPool = false
			p.pool <- newSafeVM()
			if err, ok := interrupted.Value().(error); ok && err != ErrTimeout {
				return nil, err
			}
			return nil, ErrTimeout
		}
		var ex *goja.Exception
		if errors.As(runErr, &ex) {
			return nil, errors.New(ex.Error())
		}
		return nil, runErr
	}

	if result == nil || goja.IsUndefined(result) || goja.IsNull(result) {
		return nil, nil
	}
	return result.Export(), nil
}

// newSafeVM creates a goja Runtime with dangerous globals removed.
func newSafeVM() *goja.Runtime {
	vm := goja.New()
	for _, name := range []string{"require", "process", "fetch", "XMLHttpRequest", "eval", "Function"} {
		vm.Set(name, goja.Undefined())
	}
	mathObj := vm.NewObject()
	_ = mathObj.Set("floor", math.Floor)
	_ = mathObj.Set("ceil", math.Ceil)
	_ = mathObj.Set("round", func(v float64) float64 { return math.Floor(v + 0.5) })
	_ = mathObj.Set("abs", math.Abs)
	_ = mathObj.Set("max", math.Max)
	_ = mathObj.Set("min", math.Min)
	_ = mathObj.Set("sqrt", math.Sqrt)
	_ = mathObj.Set("random", func() float64 { return 0 }) // deterministic on the server
	vm.Set("Math", mathObj)
	return vm
}

// bindEnv replaces the per-run globals. Pooled VMs are reused, so every
// global is rebound even when env leaves it unset.
func bindEnv(vm *goja.Runtime, env *Env) {
	if env == nil {
		env = &Env{}
	}
	vm.Set("event", env.Event)
	vm.Set("owner", env.Owner)

	weapon := vm.NewObject()
	_ = weapon.Set("stat", lookup(env.Stat))
	_ = weapon.Set("damage", lookup(env.Damage))
	vm.Set("weapon", weapon)

	host := vm.NewObject()
	_ = host.Set("heal", func(v float64) {
		if env.Heal != nil {
			env.Heal(v)
		}
	})
	_ = host.Set("phase", func(v float64) {
		if env.Phase != nil {
			env.Phase(v)
		}
	})
	vm.Set("host", host)

	vm.Set("log", func(msg string) {
		if env.Log != nil {
			env.Log(msg)
		}
	})
}

func lookup(fn func(string) (float64, bool)) func(string) interface{} {
	return func(name string) interface{} {
		if fn == nil {
			return nil
		}
		v, ok := fn(name)
		if !ok {
			return nil
		}
		return v
	}
}

// Sandbox wraps a VMPool and logs failed scripts.
type Sandbox struct {
	pool   *VMPool
	logger *zap.Logger
}

// NewSandbox creates a Sandbox backed by a VMPool.
func NewSandbox(size int, timeout time.Duration, logger *zap.Logger) *Sandbox {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sandbox{
		pool:   NewVMPool(size, timeout, logger),
		logger: logger,
	}
}

// Eval executes src with env bound, returning the result.
func (sb *Sandbox) Eval(ctx context.Context, src string, env *Env) (interface{}, error) {
	result, err := sb.pool.Run(ctx, src, env)
	if err != nil {
		sb.logger.Warn("script execution error",
			zap.String("src_preview", truncate(src, 80)),
			zap.Error(err))
	}
	return result, err
}

// Compile parses src once so authoring errors surface at catalog load.
func Compile(name, src string) error {
	_, err := goja.Compile(name, src, true)
	return err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
