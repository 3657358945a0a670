package commands

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/alvesdmateus/base-images/pkg/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "base-images",
	Short: "base-images - build and publish container base images",
	Long: `base-images builds the container base images defined in a directory tree,
pushes them to a registry and keeps a revision record for every published image.

Each top-level directory of the tree is one image definition. It either holds a
Dockerfile or a dockerfile_template.json pointing at a shared template under
_templates.

Core Flow:
  Select → Resolve template → Build → Verify → Publish → Record revision`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default ./config.yaml or ./config/config.yaml)")
	flags.String("root", ".", "root directory of the base image definitions")
	flags.String("log-level", "info", "log level: debug, info, warn or error")
	flags.String("log-format", "console", "log format: console or json")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(historyCmd)
}

// loadConfig loads configuration with the command's flags applied and sets
// up the global logger from it
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	setupLogger(cfg.Log, cmd.ErrOrStderr())

	log.Debug().
		Str("root", cfg.Builder.RootDir).
		Str("namespace", cfg.Builder.Namespace).
		Bool("history", cfg.History.Enabled).
		Msg("Configuration loaded")

	return cfg, nil
}

// setupLogger configures the global logger. Logs go to w so that stdout
// carries only engine output and results.
func setupLogger(cfg config.LogConfig, w io.Writer) {
	if cfg.Format == "json" {
		log.Logger = zerolog.New(w).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).
			With().Timestamp().Logger()
	}
	setLogLevel(cfg.Level)
}

// setLogLevel sets the global log level based on configuration
func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
