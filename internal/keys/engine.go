package keys

import (
	"sync"
	"time"
)

// DefaultThreshold is the debounce window used when none is configured.
const DefaultThreshold = time.Second

// Result describes what a Press or an expiry did.
type Result int

const (
	// ResultDiscarded means the buffer matched nothing and was cleared.
	ResultDiscarded Result = iota
	// ResultPending means the buffer is a prefix of a longer binding and a
	// debounce timer is armed.
	ResultPending
	// ResultFired means a bound action ran and the buffer was cleared.
	ResultFired
	// ResultStale means an expiry arrived after a newer key superseded it.
	ResultStale
)

// String returns the string representation of the result
func (r Result) String() string {
	switch r {
	case ResultDiscarded:
		return "discarded"
	case ResultPending:
		return "pending"
	case ResultFired:
		return "fired"
	case ResultStale:
		return "stale"
	default:
		return "unknown"
	}
}

// Timer is the part of *time.Timer the engine needs.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d, like time.AfterFunc.
type AfterFunc func(d time.Duration, f func()) Timer

// Scheduler runs a debounce expiry. The default runs it on the timer's own
// goroutine; the dispatch loop supplies one that queues it onto the loop.
type Scheduler func(expire func() Result)

// FireHook observes every fired binding.
type FireHook func(binding Binding, seq Sequence, timedOut bool)

// EngineConfig configures an Engine. Zero values select defaults.
type EngineConfig struct {
	Threshold time.Duration
	Schedule  Scheduler
	AfterFunc AfterFunc
	OnFire    FireHook
}

// Engine resolves pressed keys against a binding table.
//
// Press and debounce expiry are mutually exclusive: both take the step lock
// for the whole resolve-and-fire step, so actions never run concurrently and
// always run in key order.
type Engine struct {
	bindings  *Bindings
	threshold time.Duration
	schedule  Scheduler
	afterFunc AfterFunc
	onFire    FireHook

	step sync.Mutex

	mu     sync.Mutex
	buffer Sequence
	timer  Timer
	gen    uint64
}

// NewEngine creates an engine over bindings.
func NewEngine(bindings *Bindings, config EngineConfig) *Engine {
	e := &Engine{
		bindings:  bindings,
		threshold: config.Threshold,
		schedule:  config.Schedule,
		afterFunc: config.AfterFunc,
		onFire:    config.OnFire,
	}

	if e.threshold <= 0 {
		e.threshold = DefaultThreshold
	}
	if e.schedule == nil {
		e.schedule = func(expire func() Result) { expire() }
	}
	if e.afterFunc == nil {
		e.afterFunc = func(d time.Duration, f func()) Timer {
			return time.AfterFunc(d, f)
		}
	}

	return e
}

// Bindings returns the table the engine resolves against.
func (e *Engine) Bindings() *Bindings {
	return e.bindings
}

// Threshold returns the debounce window.
func (e *Engine) Threshold() time.Duration {
	return e.threshold
}

// Press feeds one key into the engine.
//
// If the buffer then exactly matches a binding with no longer continuation,
// the action fires immediately. If it is a strict prefix of some binding,
// with or without an exact match, a debounce timer is armed and the decision
// is deferred. Otherwise the buffer restarts from k alone and is resolved
// again, which may itself fire.
func (e *Engine) Press(k Key) Result {
	if k == "" {
		return ResultDiscarded
	}

	e.step.Lock()
	defer e.step.Unlock()

	e.mu.Lock()
	e.cancelLocked()
	e.buffer = append(e.buffer, k)
	n := len(e.buffer)

	binding, seq, result := e.resolveLocked()
	if result == ResultDiscarded && n > 1 {
		e.buffer = Sequence{k}
		binding, seq, result = e.resolveLocked()
	}
	e.mu.Unlock()

	if result == ResultFired {
		e.fire(binding, seq, false)
	}

	return result
}

// resolveLocked decides what the current buffer means. It clears the buffer
// unless the result is ResultPending.
func (e *Engine) resolveLocked() (Binding, Sequence, Result) {
	seq := e.buffer
	binding, exact := e.bindings.Lookup(seq)
	longer := e.bindings.HasContinuation(seq)

	switch {
	case longer:
		e.armLocked()
		return Binding{}, nil, ResultPending
	case exact:
		e.buffer = nil
		return binding, seq, ResultFired
	default:
		e.buffer = nil
		return Binding{}, nil, ResultDiscarded
	}
}

func (e *Engine) armLocked() {
	gen := e.gen
	e.timer = e.afterFunc(e.threshold, func() {
		e.schedule(func() Result {
			return e.expire(gen)
		})
	})
}

// cancelLocked stops any armed timer and invalidates expiries already in
// flight.
func (e *Engine) cancelLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.gen++
}

// expire resolves the buffer after the debounce window passed with no
// further key. The buffer is always cleared.
func (e *Engine) expire(gen uint64) Result {
	e.step.Lock()
	defer e.step.Unlock()

	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return ResultStale
	}
	e.timer = nil
	e.gen++

	seq := e.buffer
	e.buffer = nil
	binding, exact := e.bindings.Lookup(seq)
	e.mu.Unlock()

	if !exact {
		return ResultDiscarded
	}
	e.fire(binding, seq, true)

	return ResultFired
}

func (e *Engine) fire(binding Binding, seq Sequence, timedOut bool) {
	if e.onFire != nil {
		e.onFire(binding, seq, timedOut)
	}
	if binding.Action != nil {
		binding.Action()
	}
}

// Pending returns a copy of the pending buffer.
func (e *Engine) Pending() Sequence {
	e.mu.Lock()
	defer e.mu.Unlock()

	return append(Sequence(nil), e.buffer...)
}

// Reset clears the pending buffer and cancels any armed timer. It is safe to
// call from inside an action.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cancelLocked()
	e.buffer = nil
}
