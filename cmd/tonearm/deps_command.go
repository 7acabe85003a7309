package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tonearm/internal/config"
	"tonearm/internal/deps"
	"tonearm/internal/preflight"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deps [dir]",
		Short: "Check ffprobe/ffmpeg and the directories a run would use",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			inputDir := cfg.Paths.InputDir
			if len(args) == 1 {
				if inputDir, err = config.ExpandPath(args[0]); err != nil {
					return fmt.Errorf("resolve input directory: %w", err)
				}
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			statuses := deps.CheckBinaries(deps.MediaTools(cfg))
			statuses = deps.AttachVersions(cmd.Context(), ctx.toolRunner, statuses)
			writeLines(out, renderSectionHeader("Media tools", colorize))
			writeLines(out, dependencyLines(statuses, colorize))
			fmt.Fprintln(out)

			results := preflight.RunAll(cfg, inputDir)
			writeLines(out, renderSectionHeader("Directories", colorize))
			writeLines(out, preflightLines(results, colorize))

			problems := len(preflight.Failed(results))
			for _, status := range statuses {
				if !status.Available && !status.Optional {
					problems++
				}
			}
			if problems > 0 {
				return fmt.Errorf("%d check(s) failed", problems)
			}
			return nil
		},
	}
}

func dependencyLines(statuses []deps.Status, colorize bool) []string {
	lines := make([]string, 0, len(statuses)+1)
	var missing []string
	for _, status := range statuses {
		if status.Available {
			message := status.Path
			if status.Version != "" {
				message = fmt.Sprintf("%s (%s)", status.Version, status.Path)
			}
			kind := statusOK
			if status.Detail != "" {
				kind = statusWarn
				message = fmt.Sprintf("%s; %s", message, status.Detail)
			}
			lines = append(lines, renderStatusLine(status.Name, kind, message, colorize))
			continue
		}

		detail := strings.TrimSpace(status.Detail)
		if detail == "" {
			detail = "not available"
		}
		kind := statusError
		if status.Optional {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine(status.Name, kind, detail, colorize))
		missing = append(missing, status.Name)
	}
	if len(missing) > 0 {
		lines = append(lines, renderStatusLine("Missing", statusWarn,
			fmt.Sprintf("%s (install ffmpeg or set TONEARM_FFPROBE/TONEARM_FFMPEG)", strings.Join(missing, ", ")), colorize))
	}
	return lines
}

func preflightLines(results []preflight.Result, colorize bool) []string {
	lines := make([]string, 0, len(results))
	for _, result := range results {
		kind := statusOK
		if !result.Passed {
			kind = statusError
		}
		lines = append(lines, renderStatusLine(result.Name, kind, result.Detail, colorize))
	}
	return lines
}
