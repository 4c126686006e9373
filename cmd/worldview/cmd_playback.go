package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/gogpu/worldview/inject"
	"github.com/gogpu/worldview/sequence"
)

var flagDelay time.Duration

var playbackCmd = &cobra.Command{
	Use:   "playback <dir>",
	Short: "Replay a recorded artifact directory in a loop",
	Long: `Replays the artifact files of a directory in lexicographic order,
restarting at the end. The delay paces transitions between instances;
files of the same instance are injected back to back.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlayback,
}

func init() {
	playbackCmd.Flags().DurationVar(&flagDelay, "delay", 0, "delay between instances (overrides config delay_ms)")
}

func runPlayback(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	delay := cfg.Delay()
	if cmd.Flags().Changed("delay") {
		delay = flagDelay
	}

	dir := args[0]
	return run(cfg, func(ctx context.Context, seq sequence.Sequencer) error {
		return inject.Playback(ctx, dir, seq, delay)
	})
}
