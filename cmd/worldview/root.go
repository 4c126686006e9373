package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/gogpu/worldview"
	"github.com/gogpu/worldview/config"
)

// version is set at build time via -ldflags.
var version = "dev"

var (
	flagConfig   string
	flagFilter   string
	flagLogLevel string
	flagSnapshot string
)

var rootCmd = &cobra.Command{
	Use:   "worldview",
	Short: "Live viewer backend for reconstruction artifacts",
	Long: `Worldview ingests PLY artifact files into GPU buffers and keeps one
live artifact per logical stream, so a consumer always renders the newest
complete state. Artifacts arrive either from a watched directory or from a
recorded playback directory.`,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&flagFilter, "filter", "", "regular expression restricting artifact names")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&flagSnapshot, "snapshot", "", "directory receiving one PNG frame per table change")

	rootCmd.AddCommand(playbackCmd)
	rootCmd.AddCommand(notifyCmd)
	rootCmd.Version = version
}

// loadConfig merges the optional config file with explicit flag overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if flagConfig != "" {
		var err error
		cfg, err = config.Load(flagConfig)
		if err != nil {
			return cfg, err
		}
	}
	if cmd.Flags().Changed("filter") || flagFilter != "" {
		cfg.Filter = flagFilter
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	if flagSnapshot != "" {
		cfg.SnapshotDir = flagSnapshot
	}
	return cfg, nil
}

// setupLogging installs a text handler at the configured level.
func setupLogging(cfg config.Config) error {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("unknown log level %q", cfg.LogLevel)
	}
	worldview.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
