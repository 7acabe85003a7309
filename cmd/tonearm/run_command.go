package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"tonearm/internal/config"
	"tonearm/internal/history"
	"tonearm/internal/logging"
	"tonearm/internal/pipeline"
	"tonearm/internal/preflight"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool
	var outputDir string

	cmd := &cobra.Command{
		Use:   "run [dir]",
		Short: "Extract every audio stream of the media files in a directory",
		Long: "Validate each file with ffprobe, then copy every audio stream into its own file. " +
			"Streams that cannot be copied are transcoded to MP3. Individual file failures are " +
			"reported in the summary and do not fail the command.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			runCfg := *cfg
			inputDir := runCfg.Paths.InputDir
			if len(args) == 1 {
				if inputDir, err = config.ExpandPath(args[0]); err != nil {
					return fmt.Errorf("resolve input directory: %w", err)
				}
			}
			if override := strings.TrimSpace(outputDir); override != "" {
				runCfg.Paths.OutputDir = override
			}

			if !dryRun {
				if failed := preflight.Failed(preflight.RunAll(&runCfg, inputDir)); len(failed) > 0 {
					return preflightError(failed)
				}
			}

			opts := []pipeline.Option{
				pipeline.WithToolRunner(ctx.toolRunner),
				pipeline.WithDryRun(dryRun),
			}
			if runCfg.History.Enabled && !dryRun {
				store, err := history.Open(runCfg.HistoryPath())
				if err != nil {
					logging.WarnWithContext(logger, "run history unavailable", "history_open_failed",
						logging.Error(err),
						logging.String(logging.FieldErrorHint, "check state_dir permissions or disable [history]"),
						logging.String(logging.FieldImpact, "this run will not be recorded"),
					)
				} else {
					defer store.Close()
					opts = append(opts, pipeline.WithRecorder(store))
				}
			}

			report, runErr := pipeline.NewRunner(&runCfg, logger, opts...).Run(cmd.Context(), inputDir)
			if runErr == nil || report.Interrupted {
				printRunSummary(cmd.OutOrStdout(), report)
			}
			return runErr
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate and probe only; print the planned outputs")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory (relative paths resolve against the input directory)")
	return cmd
}

func preflightError(failed []preflight.Result) error {
	parts := make([]string, 0, len(failed))
	for _, result := range failed {
		parts = append(parts, fmt.Sprintf("%s: %s", result.Name, result.Detail))
	}
	return errors.New("preflight failed: " + strings.Join(parts, "; "))
}

func printRunSummary(out io.Writer, report pipeline.Report) {
	totals := report.Totals()
	title := "Run " + report.RunID
	if report.DryRun {
		title += " (dry run)"
	}
	fmt.Fprintln(out, title)
	fmt.Fprintf(out, "Input:  %s\nOutput: %s\n", report.InputDir, report.OutputDir)

	if totals.Files == 0 {
		fmt.Fprintln(out, "No media files found")
		return
	}

	headers := []string{"File", "Stream", "Codec", "Route", "Outcome", "Size", "Detail"}
	aligns := []columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft}
	rows := make([][]string, 0, totals.Files+totals.Streams)
	for _, file := range report.Files {
		if len(file.Artifacts) == 0 {
			rows = append(rows, []string{file.File.Name, "-", "-", "-", label(string(file.Status)), "-", file.Reason})
			continue
		}
		for _, artifact := range file.Artifacts {
			rows = append(rows, artifactRow(file.File.Name, artifact))
		}
	}
	footer := []string{
		fmt.Sprintf("%d files", totals.Files),
		strconv.Itoa(totals.Streams),
		"", "", "",
		formatBytes(totals.Bytes),
		"",
	}
	fmt.Fprintln(out, renderTable(headers, rows, aligns, footer...))

	summary := fmt.Sprintf("Copied %d, transcoded %d (%d after failed copy), failed %d, skipped %d",
		totals.Copied, totals.Transcoded, totals.Fallbacks, totals.Failed, totals.Skipped)
	if report.DryRun {
		summary = fmt.Sprintf("Planned %d stream(s)", totals.Planned)
	}
	if totals.FilesSkipped > 0 {
		summary += fmt.Sprintf("; %d file(s) skipped", totals.FilesSkipped)
	}
	fmt.Fprintln(out, summary)
	if report.Interrupted {
		fmt.Fprintln(out, "Run interrupted before every file was processed")
	}
}

func artifactRow(fileName string, artifact pipeline.Artifact) []string {
	outcome := label(string(artifact.Outcome))
	if artifact.FellBack {
		outcome += " (fallback)"
	}
	codec := artifact.Codec
	if codec == "" {
		codec = "unknown"
	}
	detail := ""
	switch {
	case artifact.Err != nil:
		detail = artifact.Err.Error()
	case artifact.Path != "":
		detail = filepath.Base(artifact.Path)
	}
	return []string{
		fileName,
		strconv.Itoa(artifact.StreamIndex),
		codec,
		artifact.Route.String(),
		outcome,
		formatBytes(artifact.Size),
		detail,
	}
}
