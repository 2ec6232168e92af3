// Package session wires the transport, the renderer process and the
// dispatch loop into one run.
//
// Startup order is fixed: prepare the conduits, bind the application's keys
// and apply keymap overrides, spawn the renderer, then block until the
// renderer has connected. Teardown runs in reverse: the renderer is
// terminated and its diagnostic drains joined before the conduits close.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/conneroisu/fwif/internal/config"
	"github.com/conneroisu/fwif/internal/dispatch"
	fwerrors "github.com/conneroisu/fwif/internal/errors"
	"github.com/conneroisu/fwif/internal/keys"
	"github.com/conneroisu/fwif/internal/logging"
	"github.com/conneroisu/fwif/internal/supervisor"
	"github.com/conneroisu/fwif/internal/transport"
	"github.com/conneroisu/fwif/internal/watcher"
)

// keymapReloadDelay batches the burst of events an editor save produces.
const keymapReloadDelay = 100 * time.Millisecond

// Config describes one session.
type Config struct {
	Transport transport.Config
	Renderer  supervisor.Config
	Dispatch  dispatch.Config

	// Keymap is an optional override file applied after the application
	// binds its keys.
	Keymap string
	// WatchKeymap re-applies Keymap whenever it changes.
	WatchKeymap bool
}

// FromConfig maps loaded configuration onto a session configuration.
func FromConfig(c *config.Config) Config {
	return Config{
		Transport: c.TransportConfig(),
		Renderer: supervisor.Config{
			Path: c.Renderer.Path,
			Dir:  c.Renderer.Dir,
			Env:  c.Renderer.Env,
		},
		Dispatch: dispatch.Config{
			Debounce:      c.Keys.Debounce,
			PushOnTimeout: c.Dispatch.PushOnTimeout,
		},
		Keymap:      c.Keys.Keymap,
		WatchKeymap: c.Keys.Watch,
	}
}

// Session runs one application against one renderer.
type Session struct {
	id     string
	config Config
	app    dispatch.App
	logger logging.Logger
}

// New creates a session. Every log record it produces carries the session
// id.
func New(config Config, app dispatch.App, logger logging.Logger) *Session {
	if logger == nil {
		logger = logging.NewNop()
	}

	id := uuid.NewString()

	return &Session{
		id:     id,
		config: config,
		app:    app,
		logger: logger.With("session", id),
	}
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Run performs startup, drives the dispatch loop and tears everything down.
// It returns why the loop stopped; err is non-nil only for fatal failures.
func (s *Session) Run(ctx context.Context) (outcome dispatch.Outcome, err error) {
	logger := s.logger.WithComponent("session")
	perf := logging.StartOperation(logger, "session")
	defer func() {
		if err != nil {
			perf.EndWithError(ctx, err)
			return
		}
		perf.End(ctx)
	}()

	conduit, err := transport.New(s.config.Transport)
	if err != nil {
		var fe *fwerrors.Error
		if !errors.As(err, &fe) {
			cerr := fwerrors.NewConfigError("cannot build transport")
			cerr.Cause = err
			err = cerr
		}
		return dispatch.OutcomeFailed, err
	}
	defer func() {
		if cerr := conduit.Close(); cerr != nil {
			logger.Warn(ctx, cerr, "Closing conduits failed")
		}
	}()

	if err := conduit.Prepare(); err != nil {
		return dispatch.OutcomeFailed, err
	}

	loop, err := dispatch.New(conduit, s.app, s.config.Dispatch, s.logger)
	if err != nil {
		return dispatch.OutcomeFailed, err
	}
	if s.config.Keymap != "" {
		if err := ApplyKeymap(loop.Bindings(), s.config.Keymap); err != nil {
			return dispatch.OutcomeFailed, err
		}
		logger.Info(ctx, "Keymap applied", "path", s.config.Keymap)
	}

	proc, err := supervisor.New(s.config.Renderer, s.logger).Spawn(ctx, conduit.Env()...)
	if err != nil {
		return dispatch.OutcomeFailed, err
	}
	defer func() {
		if terr := proc.Terminate(); terr != nil {
			logger.Warn(ctx, terr, "Terminating renderer failed")
		}
	}()

	if err := s.open(ctx, conduit, proc); err != nil {
		if ctx.Err() != nil {
			return dispatch.OutcomeCancelled, nil
		}
		return dispatch.OutcomeFailed, err
	}
	logger.Info(ctx, "Renderer connected", "pid", proc.Pid())

	if s.config.WatchKeymap && s.config.Keymap != "" {
		stop, err := s.watchKeymap(ctx, loop.Bindings())
		if err != nil {
			logger.Warn(ctx, err, "Keymap hot reload disabled", "path", s.config.Keymap)
		} else {
			defer stop()
		}
	}

	outcome, err = loop.Run(ctx)
	if err != nil {
		fwerrors.Report(ctx, logger, err)
	}
	logger.Info(ctx, "Session finished", "outcome", outcome.String())

	return outcome, err
}

// open waits for the renderer to connect. A renderer that exits first
// aborts the wait.
func (s *Session) open(ctx context.Context, conduit transport.Conduit, proc *supervisor.Process) error {
	openCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-proc.Done():
			cancel()
		case <-openCtx.Done():
		}
	}()

	err := conduit.Open(openCtx)
	if err == nil {
		return nil
	}

	select {
	case <-proc.Done():
		if exitErr := proc.Err(); exitErr != nil {
			return exitErr
		}
		return fwerrors.NewSupervisorError(fwerrors.CodeRendererExited,
			"renderer exited before connecting", err)
	default:
		return err
	}
}

// watchKeymap re-applies the keymap file on change. A failed reload leaves
// the previous table in place.
func (s *Session) watchKeymap(ctx context.Context, bindings *keys.Bindings) (func(), error) {
	logger := s.logger.WithComponent("keymap")

	fw, err := watcher.NewFileWatcher(keymapReloadDelay, s.logger)
	if err != nil {
		return nil, err
	}
	if err := fw.AddFile(s.config.Keymap); err != nil {
		_ = fw.Stop()
		return nil, err
	}

	fw.AddHandler(func(events []watcher.ChangeEvent) error {
		for _, event := range events {
			if event.Type == watcher.EventTypeDeleted {
				logger.Warn(ctx, nil, "Keymap file removed, keeping current bindings", "path", event.Path)
				return nil
			}
		}

		if err := ApplyKeymap(bindings, s.config.Keymap); err != nil {
			return err
		}
		logger.Info(ctx, "Keymap reloaded", "path", s.config.Keymap)

		return nil
	})

	if err := fw.Start(ctx); err != nil {
		_ = fw.Stop()
		return nil, err
	}

	return func() { _ = fw.Stop() }, nil
}

// ApplyKeymap applies the keymap file at path to bindings. Failures are
// keymap errors; an override that gives one sequence to two actions is
// reported as a conflict.
func ApplyKeymap(bindings *keys.Bindings, path string) error {
	if err := keys.ApplyKeymapFile(bindings, path); err != nil {
		code := fwerrors.CodeKeymapInvalid
		if errors.Is(err, keys.ErrConflict) {
			code = fwerrors.CodeKeymapConflict
		}
		kerr := fwerrors.NewKeymapError(code, "cannot apply keymap")
		kerr.Cause = err
		return kerr.WithContext("path", path)
	}

	return nil
}
