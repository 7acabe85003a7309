package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"tonearm/internal/config"
	"tonearm/internal/logging"
	"tonearm/internal/media/ffprobe"
	"tonearm/internal/pipeline"
)

type streamView struct {
	Index     int    `json:"index"`
	Codec     string `json:"codec,omitempty"`
	Route     string `json:"route"`
	Extension string `json:"extension"`
	Output    string `json:"output"`
	Reason    string `json:"reason"`

	Channels   int    `json:"channels,omitempty"`
	SampleRate string `json:"sample_rate,omitempty"`
}

type probeView struct {
	Path        string       `json:"path"`
	Valid       bool         `json:"valid"`
	EmptyReason string       `json:"empty_reason,omitempty"`
	Error       string       `json:"error,omitempty"`
	Streams     []streamView `json:"streams,omitempty"`

	Format     string  `json:"format,omitempty"`
	Duration   float64 `json:"duration_seconds,omitempty"`
	SizeBytes  int64   `json:"size_bytes,omitempty"`
	BitRate    int64   `json:"bit_rate,omitempty"`
	VideoCount int     `json:"video_streams,omitempty"`

	Raw json.RawMessage `json:"ffprobe,omitempty"`
}

func newProbeCommand(ctx *commandContext) *cobra.Command {
	var details bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "probe <file>...",
		Short: "Show the audio streams of media files and how each would be routed",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			views := make([]probeView, 0, len(args))
			for _, arg := range args {
				path, err := config.ExpandPath(arg)
				if err != nil {
					return fmt.Errorf("resolve %q: %w", arg, err)
				}
				views = append(views, probeFile(cmd.Context(), ctx, cfg, logger, path, details))
			}

			if asJSON {
				return writeJSON(cmd, views)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderProbeTable(views))
			if details {
				for _, view := range views {
					if view.Valid && view.Error == "" {
						fmt.Fprintln(out, probeDetailLine(view))
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&details, "details", false, "Include container format, duration, and bit rate")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func probeFile(ctx context.Context, cc *commandContext, cfg *config.Config, logger *slog.Logger, path string, details bool) probeView {
	view := probeView{Path: path}
	probeLogger := logging.NewComponentLogger(logger, "ffprobe")

	validator := ffprobe.NewValidator(cc.toolRunner, cfg.FFprobeBinary(), probeLogger)
	if !validator.IsValidMedia(ctx, path) {
		view.Error = "ffprobe could not read the container"
		return view
	}
	view.Valid = true

	prober := ffprobe.NewProber(cc.toolRunner, cfg.FFprobeBinary(), probeLogger)
	result := prober.ProbeAudioStreams(ctx, path)
	if result.Empty() {
		view.EmptyReason = result.Reason.String()
		if result.Err != nil {
			view.Error = result.Err.Error()
		}
	}

	policy := pipeline.NewPolicy(cfg.Routing)
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	multi := len(result.Streams) > 1
	for _, stream := range result.Streams {
		decision := policy.Decide(stream)
		view.Streams = append(view.Streams, streamView{
			Index:     stream.Index,
			Codec:     stream.Codec,
			Route:     decision.Route.String(),
			Extension: decision.Extension,
			Output:    pipeline.ArtifactName(base, stream.Index, multi, decision.Extension),
			Reason:    decision.Reason,
		})
	}

	if details {
		info, err := ffprobe.Inspect(ctx, cc.toolRunner, cfg.FFprobeBinary(), path)
		if err != nil {
			view.Error = err.Error()
			return view
		}
		view.Format = info.Format.FormatName
		view.Duration = info.DurationSeconds()
		view.SizeBytes = info.SizeBytes()
		view.BitRate = info.BitRate()
		view.VideoCount = info.VideoStreamCount()
		view.Raw = info.RawJSON()
		for _, audio := range info.AudioStreams() {
			for i := range view.Streams {
				if view.Streams[i].Index == audio.Index {
					view.Streams[i].Channels = audio.Channels
					view.Streams[i].SampleRate = audio.SampleRate
				}
			}
		}
	}
	return view
}

func renderProbeTable(views []probeView) string {
	headers := []string{"File", "Stream", "Codec", "Route", "Output", "Reason"}
	aligns := []columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignLeft, alignLeft}
	var rows [][]string
	for _, view := range views {
		name := filepath.Base(view.Path)
		if !view.Valid {
			rows = append(rows, []string{name, "-", "-", "-", "-", "invalid: " + view.Error})
			continue
		}
		if len(view.Streams) == 0 {
			rows = append(rows, []string{name, "-", "-", "-", "-", label(view.EmptyReason)})
			continue
		}
		for _, stream := range view.Streams {
			codec := stream.Codec
			if codec == "" {
				codec = "unknown"
			}
			if stream.Channels > 0 {
				codec = fmt.Sprintf("%s %dch", codec, stream.Channels)
			}
			rows = append(rows, []string{name, strconv.Itoa(stream.Index), codec, stream.Route, stream.Output, stream.Reason})
		}
	}
	return renderTable(headers, rows, aligns)
}

func probeDetailLine(view probeView) string {
	duration := time.Duration(view.Duration * float64(time.Second)).Round(time.Second)
	return fmt.Sprintf("%s: %s, %s, %s, %s/s, %d video stream(s)",
		filepath.Base(view.Path),
		view.Format,
		duration,
		formatBytes(view.SizeBytes),
		humanize.Bytes(uint64(max(view.BitRate, 0)/8)),
		view.VideoCount,
	)
}
