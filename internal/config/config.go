// Package config provides configuration management for fwif using Viper for
// loading from files, environment variables, and command-line flags.
//
// The configuration covers the renderer executable, the two conduits that
// connect it to the application, the key engine's debounce window and keymap
// overrides, dispatch options and logging. Environment variables use the
// FWIF_ prefix; the conduit paths additionally honour FWIF_READ_PIPE and
// FWIF_WRITE_PIPE, which is how a renderer and an application agree on them.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	fwerrors "github.com/conneroisu/fwif/internal/errors"
	"github.com/conneroisu/fwif/internal/logging"
	"github.com/conneroisu/fwif/internal/transport"
)

// Default values.
const (
	DefaultRendererPath  = "./fwif"
	DefaultReadConduit   = "/tmp/fwif-app-to-renderer"
	DefaultWriteConduit  = "/tmp/fwif-renderer-to-app"
	DefaultDebounce      = time.Second
	MaxDebounce          = 10 * time.Second
	DefaultTransportKind = string(transport.KindFIFO)
)

type Config struct {
	Renderer  RendererConfig  `mapstructure:"renderer"`
	Conduits  ConduitsConfig  `mapstructure:"conduits"`
	Transport TransportConfig `mapstructure:"transport"`
	Keys      KeysConfig      `mapstructure:"keys"`
	Dispatch  DispatchConfig  `mapstructure:"dispatch"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type RendererConfig struct {
	Path string   `mapstructure:"path"`
	Dir  string   `mapstructure:"dir"`
	Env  []string `mapstructure:"env"`
}

// ConduitsConfig names the two pipes from the renderer's point of view:
// the renderer reads Read and writes Write.
type ConduitsConfig struct {
	Read      string `mapstructure:"read"`
	Write     string `mapstructure:"write"`
	ChunkSize int    `mapstructure:"chunk_size"`
}

type TransportConfig struct {
	Kind   string `mapstructure:"kind"`
	Listen string `mapstructure:"listen"`
}

type KeysConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
	Keymap   string        `mapstructure:"keymap"`
	Watch    bool          `mapstructure:"watch"`
}

type DispatchConfig struct {
	PushOnTimeout bool `mapstructure:"push_on_timeout"`
}

type LoggingConfig struct {
	Level     string `mapstructure:"level"`
	Format    string `mapstructure:"format"`
	File      string `mapstructure:"file"`
	Journal   bool   `mapstructure:"journal"`
	AddSource bool   `mapstructure:"add_source"`
}

// SetDefaults registers default values and the conduit environment aliases
// on the global viper instance.
func SetDefaults() {
	viper.SetDefault("renderer.path", DefaultRendererPath)
	viper.SetDefault("conduits.read", DefaultReadConduit)
	viper.SetDefault("conduits.write", DefaultWriteConduit)
	viper.SetDefault("conduits.chunk_size", transport.DefaultChunkSize)
	viper.SetDefault("transport.kind", DefaultTransportKind)
	viper.SetDefault("transport.listen", transport.DefaultListen)
	viper.SetDefault("keys.debounce", DefaultDebounce)
	viper.SetDefault("keys.watch", false)
	viper.SetDefault("dispatch.push_on_timeout", false)
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")

	// The short names are the ones renderers know about; the prefixed ones
	// follow the general FWIF_ scheme.
	_ = viper.BindEnv("conduits.read", transport.EnvReadPipe, "FWIF_CONDUITS_READ")
	_ = viper.BindEnv("conduits.write", transport.EnvWritePipe, "FWIF_CONDUITS_WRITE")
}

// Load reads the global viper instance into a Config, applies defaults and
// validates the result.
func Load() (*Config, error) {
	SetDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		cerr := fwerrors.NewConfigError("cannot decode configuration")
		cerr.Cause = err
		return nil, cerr
	}

	config.normalize()

	result := ValidateConfigWithDetails(&config)
	if result.HasErrors() {
		first := result.Errors[0]
		return nil, fwerrors.NewConfigError(fmt.Sprintf("invalid configuration: %s", first.Error())).
			WithContext("errors", len(result.Errors))
	}

	return &config, nil
}

// normalize fills zero values left by an explicitly empty setting.
func (c *Config) normalize() {
	c.Transport.Kind = strings.ToLower(strings.TrimSpace(c.Transport.Kind))
	if c.Transport.Kind == "" {
		c.Transport.Kind = DefaultTransportKind
	}
	if c.Keys.Debounce == 0 {
		c.Keys.Debounce = DefaultDebounce
	}
	if c.Conduits.ChunkSize == 0 {
		c.Conduits.ChunkSize = transport.DefaultChunkSize
	}
	if c.Renderer.Path == "" {
		c.Renderer.Path = DefaultRendererPath
	}
}

// TransportConfig maps the conduit settings onto a transport configuration.
// The application writes the pipe the renderer reads.
func (c *Config) TransportConfig() transport.Config {
	return transport.Config{
		Kind:      transport.Kind(c.Transport.Kind),
		Outbound:  c.Conduits.Read,
		Inbound:   c.Conduits.Write,
		Listen:    c.Transport.Listen,
		ChunkSize: c.Conduits.ChunkSize,
	}
}

// LoggerConfig maps the logging settings onto a logger configuration.
func (c *Config) LoggerConfig() (*logging.LoggerConfig, error) {
	lc := logging.DefaultConfig()

	if c.Logging.Level != "" {
		level, err := logging.ParseLevel(c.Logging.Level)
		if err != nil {
			cerr := fwerrors.NewConfigError("invalid logging.level")
			cerr.Cause = err
			return nil, cerr
		}
		lc.Level = level
	}
	if c.Logging.Format != "" {
		lc.Format = c.Logging.Format
	}
	lc.File = c.Logging.File
	lc.Journal = c.Logging.Journal
	lc.AddSource = c.Logging.AddSource

	return lc, nil
}
