package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/fwif/internal/config"
)

// ConfigFileEnv names the environment variable holding a config file path.
const ConfigFileEnv = "FWIF_CONFIG_FILE"

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "fwif",
	Short: "Drive a floating-window renderer from Go",
	Long: `fwif starts a floating-window renderer, connects to it over a pair of
named pipes (or a WebSocket) and drives it from a keyboard-controlled Go
application.

Quick Start:
  fwif demo                       Run the dynamic list demo
  fwif keys                       Show the demo's effective key bindings
  fwif keys --yaml > keymap.yml   Start a keymap override file
  fwif version                    Show version information`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .fwif.yml, can also use FWIF_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
}

// initConfig selects the config file and enables FWIF_ environment
// variables.
//
// Configuration Loading Priority (highest to lowest):
//  1. --config flag
//  2. FWIF_CONFIG_FILE environment variable
//  3. Default: .fwif.yml in current directory
//
// A missing default file is not an error; defaults and the environment
// still apply. An explicitly named file that cannot be read is reported.
func initConfig() {
	explicit := true
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv(ConfigFileEnv); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		explicit = false
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".fwif")
	}

	viper.SetEnvPrefix("FWIF")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	config.SetDefaults()
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	} else if explicit {
		fmt.Fprintln(os.Stderr, "Cannot read config file:", err)
	}
}
