package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"tonearm/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var runID string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs from the audit log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			path := cfg.HistoryPath()
			if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
				fmt.Fprintln(out, "No runs recorded")
				if !cfg.History.Enabled {
					fmt.Fprintln(out, "Set [history] enabled = true to record runs")
				}
				return nil
			}

			store, err := history.Open(path)
			if err != nil {
				return err
			}
			defer store.Close()

			if runID != "" {
				artifacts, err := store.Artifacts(cmd.Context(), runID)
				if err != nil {
					return err
				}
				printHistoryArtifacts(out, runID, artifacts)
				return nil
			}

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			printHistoryRuns(out, runs)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")
	cmd.Flags().StringVar(&runID, "run", "", "Show the per-stream outcomes of one run")
	return cmd
}

func printHistoryRuns(out io.Writer, runs []history.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded")
		return
	}
	headers := []string{"Run", "Started", "Input", "Files", "Copied", "Transcoded", "Failed", "Written", "Took"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight}
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		id := run.ID
		if run.Interrupted {
			id += " (interrupted)"
		}
		files := strconv.Itoa(run.FilesTotal)
		if run.FilesSkipped > 0 {
			files = fmt.Sprintf("%d (%d skipped)", run.FilesTotal, run.FilesSkipped)
		}
		transcoded := strconv.Itoa(run.Transcoded)
		if run.Fallbacks > 0 {
			transcoded = fmt.Sprintf("%d (%d fallback)", run.Transcoded, run.Fallbacks)
		}
		rows = append(rows, []string{
			id,
			humanize.Time(run.StartedAt),
			run.InputDir,
			files,
			strconv.Itoa(run.Copied),
			transcoded,
			strconv.Itoa(run.Failed),
			formatBytes(run.BytesWritten),
			run.Duration().Round(time.Millisecond).String(),
		})
	}
	fmt.Fprintln(out, renderTable(headers, rows, aligns))
}

func printHistoryArtifacts(out io.Writer, runID string, artifacts []history.Artifact) {
	if len(artifacts) == 0 {
		fmt.Fprintf(out, "No streams recorded for run %s\n", runID)
		return
	}
	headers := []string{"File", "Stream", "Codec", "Route", "Outcome", "Size", "Detail"}
	aligns := []columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft}
	rows := make([][]string, 0, len(artifacts))
	for _, artifact := range artifacts {
		detail := artifact.Error
		if detail == "" {
			detail = artifact.Path
		}
		rows = append(rows, []string{
			artifact.FileName,
			strconv.Itoa(artifact.StreamIndex),
			artifact.Codec,
			artifact.Route,
			label(artifact.Outcome),
			formatBytes(artifact.SizeBytes),
			detail,
		})
	}
	fmt.Fprintln(out, renderTable(headers, rows, aligns))
}
