// Package dispatch runs the control loop between the renderer and the
// application: receive a message, decode it, feed key events to the key
// engine, then send the application's current view back.
package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	fwerrors "github.com/conneroisu/fwif/internal/errors"
	"github.com/conneroisu/fwif/internal/keys"
	"github.com/conneroisu/fwif/internal/logging"
	"github.com/conneroisu/fwif/internal/transport"
	"github.com/conneroisu/fwif/internal/view"
)

// QuitAction is the name of the always-present quit binding.
const QuitAction = "quit"

// DefaultQuitKey is bound to QuitAction unless the application binds it
// elsewhere.
const DefaultQuitKey = "q"

// App is the application driven by the loop. Both methods are only ever
// called on the loop goroutine, as are all bound actions.
type App interface {
	// BindKeys registers the application's bindings. quit ends the session;
	// it is already bound to DefaultQuitKey under QuitAction.
	BindKeys(bindings *keys.Bindings, quit keys.Action) error
	// Components returns the current view roots.
	Components() []*view.Component
}

// State is a dispatch loop state.
type State int32

const (
	StateAwaitingMessage State = iota
	StateDecoding
	StateDispatching
	StateEmitting
	StateStopped
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateAwaitingMessage:
		return "awaiting_message"
	case StateDecoding:
		return "decoding"
	case StateDispatching:
		return "dispatching"
	case StateEmitting:
		return "emitting"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Outcome says why Run returned.
type Outcome int

const (
	// OutcomeFailed accompanies a fatal error.
	OutcomeFailed Outcome = iota
	// OutcomeQuit means the quit action ran.
	OutcomeQuit
	// OutcomePeerClosed means the renderer closed its end of the channel.
	OutcomePeerClosed
	// OutcomeCancelled means the context was cancelled.
	OutcomeCancelled
)

// String returns the string representation of the outcome
func (o Outcome) String() string {
	switch o {
	case OutcomeQuit:
		return "quit"
	case OutcomePeerClosed:
		return "peer_closed"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "failed"
	}
}

// Config tunes the loop.
type Config struct {
	// Debounce is the key engine's ambiguity window.
	Debounce time.Duration
	// PushOnTimeout sends a view after an action fired by debounce expiry.
	// Lockstep renderers that read exactly one view per event need it off.
	PushOnTimeout bool
	// AfterFunc overrides the engine's timer source.
	AfterFunc keys.AfterFunc
}

// Loop is the dispatch loop. A Loop runs once.
type Loop struct {
	conduit  transport.Conduit
	app      App
	config   Config
	logger   logging.Logger
	bindings *keys.Bindings
	engine   *keys.Engine

	state   atomic.Int32
	tasks   chan func() keys.Result
	stopped chan struct{}
	stop    sync.Once

	quitRequested bool
}

// New binds the application's keys and prepares a loop over conduit.
func New(conduit transport.Conduit, app App, config Config, logger logging.Logger) (*Loop, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	l := &Loop{
		conduit:  conduit,
		app:      app,
		config:   config,
		logger:   logger.WithComponent("dispatch"),
		bindings: keys.NewBindings(),
		tasks:    make(chan func() keys.Result, 16),
		stopped:  make(chan struct{}),
	}

	l.engine = keys.NewEngine(l.bindings, keys.EngineConfig{
		Threshold: config.Debounce,
		Schedule:  l.schedule,
		AfterFunc: config.AfterFunc,
		OnFire:    l.onFire,
	})

	if err := l.bindings.Bind(QuitAction, "quit the application", l.Quit, DefaultQuitKey); err != nil {
		return nil, err
	}
	if err := app.BindKeys(l.bindings, l.Quit); err != nil {
		kerr := fwerrors.NewKeymapError(fwerrors.CodeKeymapInvalid, "application bindings rejected")
		kerr.Cause = err
		return nil, kerr
	}
	l.ensureQuit(context.Background())

	return l, nil
}

// ensureQuit rebinds the default quit key if the application left the quit
// action unreachable.
func (l *Loop) ensureQuit(ctx context.Context) {
	if quit, ok := l.bindings.Named(QuitAction); ok && len(quit.Keys) > 0 {
		return
	}

	l.logger.Warn(ctx, nil, "Quit action unreachable, restoring default key", "key", DefaultQuitKey)
	_ = l.bindings.Bind(QuitAction, "quit the application", l.Quit, DefaultQuitKey)
}

// Bindings returns the loop's binding table.
func (l *Loop) Bindings() *keys.Bindings {
	return l.bindings
}

// Engine returns the loop's key engine.
func (l *Loop) Engine() *keys.Engine {
	return l.engine
}

// State returns the current state. It is safe to call from any goroutine.
func (l *Loop) State() State {
	return State(l.state.Load())
}

func (l *Loop) setState(s State) {
	l.state.Store(int32(s))
}

// Quit ends the session after the current step. It must run on the loop
// goroutine, which is where bound actions run.
func (l *Loop) Quit() {
	l.quitRequested = true
}

// schedule queues a debounce expiry onto the loop goroutine.
func (l *Loop) schedule(expire func() keys.Result) {
	select {
	case l.tasks <- expire:
	case <-l.stopped:
	}
}

func (l *Loop) onFire(binding keys.Binding, seq keys.Sequence, timedOut bool) {
	l.logger.Debug(context.Background(), "Binding fired",
		"action", binding.Name,
		"sequence", seq.String(),
		"timed_out", timedOut,
	)
}

type received struct {
	data []byte
	err  error
}

// Run drives the loop until quit, peer close, cancellation or a fatal error.
// The caller owns teardown of the renderer and the conduit.
func (l *Loop) Run(ctx context.Context) (Outcome, error) {
	defer l.stop.Do(func() { close(l.stopped) })
	defer l.setState(StateStopped)
	defer l.engine.Reset()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	messages := make(chan received)
	go l.receive(ctx, messages)

	for {
		l.setState(StateAwaitingMessage)

		select {
		case <-ctx.Done():
			l.logger.Info(ctx, "Dispatch cancelled")
			return OutcomeCancelled, nil

		case expire := <-l.tasks:
			result := expire()
			if l.quitRequested {
				return l.quit(ctx)
			}
			if result == keys.ResultFired && l.config.PushOnTimeout {
				if err := l.emit(ctx); err != nil {
					return l.failed(ctx, err)
				}
			}

		case msg := <-messages:
			if msg.err != nil {
				if ctx.Err() != nil {
					return OutcomeCancelled, nil
				}
				l.logger.Error(ctx, msg.err, "Receive failed")
				return OutcomeFailed, msg.err
			}
			if len(msg.data) == 0 {
				l.logger.Info(ctx, "Renderer closed the channel")
				return OutcomePeerClosed, nil
			}

			l.handle(ctx, msg.data)
			if l.quitRequested {
				return l.quit(ctx)
			}

			if err := l.emit(ctx); err != nil {
				return l.failed(ctx, err)
			}
		}
	}
}

// failed maps an emit error to an outcome. A send interrupted by
// cancellation is a cancellation, not a write failure.
func (l *Loop) failed(ctx context.Context, err error) (Outcome, error) {
	if ctx.Err() != nil {
		return OutcomeCancelled, nil
	}

	return OutcomeFailed, err
}

func (l *Loop) quit(ctx context.Context) (Outcome, error) {
	l.logger.Info(ctx, "Quit requested")
	return OutcomeQuit, nil
}

// receive feeds messages to Run until the channel terminates.
func (l *Loop) receive(ctx context.Context, out chan<- received) {
	for {
		data, err := l.conduit.Receive(ctx)

		select {
		case out <- received{data: data, err: err}:
		case <-ctx.Done():
			return
		}

		if err != nil || len(data) == 0 {
			return
		}
	}
}

// handle decodes one chunk and dispatches its key events in order.
func (l *Loop) handle(ctx context.Context, chunk []byte) {
	l.setState(StateDecoding)
	events, err := Decode(chunk)
	if err != nil {
		fwerrors.Report(ctx, l.logger, err)
	}

	l.setState(StateDispatching)
	for _, event := range events {
		if event.Kind != EventKey {
			continue
		}

		result := l.engine.Press(event.Key)
		l.logger.Debug(ctx, "Key pressed", "key", string(event.Key), "result", result.String())

		if l.quitRequested {
			return
		}
	}
}

// emit serializes the application's view and sends it.
func (l *Loop) emit(ctx context.Context) error {
	l.setState(StateEmitting)

	data, err := view.Serialize(l.app.Components()...)
	if err != nil {
		return fwerrors.NewWriteError(fwerrors.CodeWriteFailed, "cannot serialize view", err)
	}

	if err := l.conduit.Send(ctx, data); err != nil {
		if ctx.Err() != nil {
			return err
		}
		var fe *fwerrors.Error
		if !errors.As(err, &fe) {
			err = fwerrors.NewWriteError(fwerrors.CodeWriteFailed, "cannot send view", err)
		}
		l.logger.Error(ctx, err, "Send failed", "size", len(data))
		return err
	}

	return nil
}
