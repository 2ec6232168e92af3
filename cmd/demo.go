package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/conneroisu/fwif/examples/dynamiclist"
	"github.com/conneroisu/fwif/internal/config"
	"github.com/conneroisu/fwif/internal/logging"
	"github.com/conneroisu/fwif/internal/session"
)

var demoCmd = &cobra.Command{
	Use:     "demo",
	Aliases: []string{"d"},
	Short:   "Run the dynamic list demo against the renderer",
	Long: `Start the configured renderer and drive it with the dynamic list demo:
a column of colored boxes with a movable selection.

Press 'q' in the renderer to quit. Run 'fwif keys' for the full key table.

Examples:
  fwif demo
  fwif demo --renderer ./target/release/fwif
  fwif demo --keymap keymap.yml --watch-keymap
  fwif demo --transport websocket --listen 127.0.0.1:7070`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd.Flags(), map[string]string{
			"renderer.path":            "renderer",
			"transport.kind":           "transport",
			"transport.listen":         "listen",
			"keys.debounce":            "debounce",
			"keys.keymap":              "keymap",
			"keys.watch":               "watch-keymap",
			"dispatch.push_on_timeout": "push-on-timeout",
		})
	},
	RunE: runDemo,
}

func init() {
	rootCmd.AddCommand(demoCmd)

	demoCmd.Flags().String("renderer", config.DefaultRendererPath, "renderer executable")
	demoCmd.Flags().String("transport", config.DefaultTransportKind, "transport kind (fifo, websocket)")
	demoCmd.Flags().String("listen", "", "websocket listen address")
	demoCmd.Flags().Duration("debounce", config.DefaultDebounce, "how long an ambiguous key sequence waits for another key")
	demoCmd.Flags().String("keymap", "", "YAML file of key binding overrides")
	demoCmd.Flags().Bool("watch-keymap", false, "re-apply the keymap file when it changes")
	demoCmd.Flags().Bool("push-on-timeout", false, "send a view after a binding fires on debounce expiry")
}

func runDemo(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	outcome, err := session.New(session.FromConfig(cfg), dynamiclist.New(nil), logger).Run(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "demo finished: %s\n", outcome)
	return nil
}

func newLogger(cfg *config.Config) (*logging.FwifLogger, error) {
	lc, err := cfg.LoggerConfig()
	if err != nil {
		return nil, err
	}

	return logging.NewLogger(lc)
}

// commandContext falls back to context.Background when the command was
// not started through Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// bindFlags binds a command's flags to config keys. Binding happens when
// the command runs because several commands share a key.
func bindFlags(set *pflag.FlagSet, flags map[string]string) error {
	for key, name := range flags {
		flag := set.Lookup(name)
		if flag == nil {
			return fmt.Errorf("no flag %q to bind to %s", name, key)
		}
		if err := viper.BindPFlag(key, flag); err != nil {
			return err
		}
	}
	return nil
}
