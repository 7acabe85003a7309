package main

import (
	"github.com/spf13/cobra"

	"tonearm/internal/media/tool"
)

func newRootCommand() *cobra.Command {
	return buildRootCommand(nil)
}

// buildRootCommand assembles the command tree. A nil runner executes the real
// ffprobe/ffmpeg binaries.
func buildRootCommand(runner tool.Runner) *cobra.Command {
	var configFlag string

	ctx := newCommandContext(&configFlag, runner)

	rootCmd := &cobra.Command{
		Use:           "tonearm",
		Short:         "Pull audio streams out of media files",
		Long:          "tonearm copies each audio stream of every media file in a directory into its own file, transcoding to MP3 when a copy is not possible.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newProbeCommand(ctx))
	rootCmd.AddCommand(newDepsCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))
	rootCmd.AddCommand(newHistoryCommand(ctx))

	return rootCmd
}
