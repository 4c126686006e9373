package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/gogpu/worldview/inject"
	"github.com/gogpu/worldview/sequence"
)

var notifyCmd = &cobra.Command{
	Use:   "notify [dir]",
	Short: "Follow a live artifact directory",
	Long: `Watches a directory (default: the current directory) and mirrors it
into the artifact table: created or rewritten files replace their stream's
artifact, deleted files remove it. Files already present at startup are
ingested first.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runNotify,
}

func runNotify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}
	return run(cfg, func(ctx context.Context, seq sequence.Sequencer) error {
		return inject.Watch(ctx, dir, seq)
	})
}
