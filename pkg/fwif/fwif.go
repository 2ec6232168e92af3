// Package fwif lets a Go program drive a floating-window renderer.
//
// An application implements App: it registers key bindings once and returns
// its current component tree whenever asked. Run starts the renderer,
// connects to it over a pair of named pipes (or a WebSocket), and then for
// every message from the renderer feeds its key events through the key
// engine and sends the resulting view back.
//
//	type counter struct{ n int }
//
//	func (c *counter) BindKeys(b *fwif.Bindings, quit fwif.Action) error {
//		return b.Bind("increment", "count one more", func() { c.n++ }, "j")
//	}
//
//	func (c *counter) Components() []*fwif.Component {
//		label := fwif.NewComponent(10, 10, 200, 50)
//		label.Text = strconv.Itoa(c.n)
//		return []*fwif.Component{label}
//	}
//
//	outcome, err := fwif.Run(ctx, &counter{}, fwif.DefaultOptions())
//
// Bindings are key sequences such as "gg" or "d<escape>". When one binding
// is a prefix of another, the shorter one fires after the debounce window
// passes without a further key. Actions and Components are only ever called
// from the dispatch goroutine.
package fwif

import (
	"context"
	"time"

	"github.com/conneroisu/fwif/internal/config"
	"github.com/conneroisu/fwif/internal/dispatch"
	"github.com/conneroisu/fwif/internal/keys"
	"github.com/conneroisu/fwif/internal/logging"
	"github.com/conneroisu/fwif/internal/session"
	"github.com/conneroisu/fwif/internal/supervisor"
	"github.com/conneroisu/fwif/internal/transport"
	"github.com/conneroisu/fwif/internal/view"
)

// View model.
type (
	Component = view.Component
	Color     = view.Color
)

// Key handling.
type (
	Key      = keys.Key
	Sequence = keys.Sequence
	Bindings = keys.Bindings
	Binding  = keys.Binding
	Action   = keys.Action
)

// App is the application driven by Run.
type App = dispatch.App

// Outcome says why Run returned.
type Outcome = dispatch.Outcome

const (
	OutcomeFailed     = dispatch.OutcomeFailed
	OutcomeQuit       = dispatch.OutcomeQuit
	OutcomePeerClosed = dispatch.OutcomePeerClosed
	OutcomeCancelled  = dispatch.OutcomeCancelled
)

var (
	NewComponent = view.NewComponent
	RGB          = view.RGB
	FontSize     = view.FontSize
	Black        = view.Black
	White        = view.White
)

// Options configure Run. Zero fields take the defaults of DefaultOptions.
type Options struct {
	// RendererPath is the renderer executable.
	RendererPath string
	// ReadConduit is the pipe the renderer reads; WriteConduit the one it
	// writes.
	ReadConduit  string
	WriteConduit string
	// Transport is "fifo" or "websocket".
	Transport string
	// Listen is the websocket listen address.
	Listen    string
	ChunkSize int

	// Debounce is how long an ambiguous key sequence waits for another key.
	Debounce      time.Duration
	PushOnTimeout bool

	// Keymap is an optional YAML file of binding overrides.
	Keymap      string
	WatchKeymap bool

	// LogLevel is one of debug, info, warn or error.
	LogLevel string
}

// DefaultOptions returns the options Run uses for unset fields.
func DefaultOptions() Options {
	return Options{
		RendererPath: config.DefaultRendererPath,
		ReadConduit:  config.DefaultReadConduit,
		WriteConduit: config.DefaultWriteConduit,
		Transport:    config.DefaultTransportKind,
		Listen:       transport.DefaultListen,
		ChunkSize:    transport.DefaultChunkSize,
		Debounce:     config.DefaultDebounce,
		LogLevel:     "info",
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.RendererPath == "" {
		o.RendererPath = d.RendererPath
	}
	if o.ReadConduit == "" {
		o.ReadConduit = d.ReadConduit
	}
	if o.WriteConduit == "" {
		o.WriteConduit = d.WriteConduit
	}
	if o.Transport == "" {
		o.Transport = d.Transport
	}
	if o.Listen == "" {
		o.Listen = d.Listen
	}
	if o.ChunkSize == 0 {
		o.ChunkSize = d.ChunkSize
	}
	if o.Debounce == 0 {
		o.Debounce = d.Debounce
	}
	if o.LogLevel == "" {
		o.LogLevel = d.LogLevel
	}
	return o
}

func (o Options) sessionConfig() session.Config {
	return session.Config{
		Transport: transport.Config{
			Kind:      transport.Kind(o.Transport),
			Outbound:  o.ReadConduit,
			Inbound:   o.WriteConduit,
			Listen:    o.Listen,
			ChunkSize: o.ChunkSize,
		},
		Renderer: supervisor.Config{Path: o.RendererPath},
		Dispatch: dispatch.Config{
			Debounce:      o.Debounce,
			PushOnTimeout: o.PushOnTimeout,
		},
		Keymap:      o.Keymap,
		WatchKeymap: o.WatchKeymap,
	}
}

// Run starts the renderer and drives app until the user quits, the renderer
// goes away, ctx is cancelled or a fatal error occurs. Logs go to stderr.
func Run(ctx context.Context, app App, opts Options) (Outcome, error) {
	opts = opts.withDefaults()

	level, err := logging.ParseLevel(opts.LogLevel)
	if err != nil {
		return OutcomeFailed, err
	}

	lc := logging.DefaultConfig()
	lc.Level = level
	logger, err := logging.NewLogger(lc)
	if err != nil {
		return OutcomeFailed, err
	}
	defer logger.Close()

	return session.New(opts.sessionConfig(), app, logger).Run(ctx)
}

// ParseSequence reads key sequence notation such as "gg" or "<ctrl+w>j".
func ParseSequence(text string) (Sequence, error) {
	return keys.ParseSequence(text)
}
