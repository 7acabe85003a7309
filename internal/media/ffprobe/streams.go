package ffprobe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"tonearm/internal/logging"
	"tonearm/internal/media/tool"
	"tonearm/internal/services"
)

// EmptyReason explains why a probe produced no usable streams.
type EmptyReason int

const (
	ReasonNone EmptyReason = iota
	ReasonParseError
	ReasonNoStreams
	ReasonProbeFailed
)

func (r EmptyReason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonParseError:
		return "parse_error"
	case ReasonNoStreams:
		return "no_audio_streams"
	case ReasonProbeFailed:
		return "probe_failed"
	default:
		return "unknown"
	}
}

// AudioStream is one audio track as reported by the stream probe.
// HasCodec is false when ffprobe omitted codec_name or left it empty.
type AudioStream struct {
	Index    int
	Codec    string
	HasCodec bool
}

// StreamsResult is either a non-empty stream list (Reason == ReasonNone) or
// an empty list tagged with the reason it is empty.
type StreamsResult struct {
	Streams []AudioStream
	Reason  EmptyReason
	Err     error
}

// Empty reports whether no streams are available.
func (r StreamsResult) Empty() bool {
	return len(r.Streams) == 0
}

type streamsPayload struct {
	Streams *[]struct {
		Index     *int    `json:"index"`
		CodecName *string `json:"codec_name"`
	} `json:"streams"`
}

// ParseAudioStreams decodes the `-show_entries stream=index,codec_name` JSON
// document. Streams keep the order ffprobe reported them in.
func ParseAudioStreams(data []byte) StreamsResult {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return StreamsResult{Reason: ReasonParseError, Err: services.Wrap(services.ErrProbeParse, "probe", "decode json", "empty response", nil)}
	}
	var payload streamsPayload
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return StreamsResult{Reason: ReasonParseError, Err: services.Wrap(services.ErrProbeParse, "probe", "decode json", "", err)}
	}
	// ffprobe drops the key entirely for files without audio.
	if payload.Streams == nil || len(*payload.Streams) == 0 {
		return StreamsResult{Reason: ReasonNoStreams}
	}

	streams := make([]AudioStream, 0, len(*payload.Streams))
	for i, entry := range *payload.Streams {
		if entry.Index == nil {
			return StreamsResult{Reason: ReasonParseError, Err: services.Wrap(services.ErrProbeParse, "probe", "decode json",
				fmt.Sprintf("stream entry %d has no index", i), nil)}
		}
		stream := AudioStream{Index: *entry.Index}
		if entry.CodecName != nil {
			if codec := strings.TrimSpace(*entry.CodecName); codec != "" {
				stream.Codec = strings.ToLower(codec)
				stream.HasCodec = true
			}
		}
		streams = append(streams, stream)
	}
	return StreamsResult{Streams: streams}
}

// Prober lists the audio streams of a media file.
type Prober struct {
	runner tool.Runner
	binary string
	logger *slog.Logger
}

// NewProber constructs a Prober. A nil runner executes the real binary.
func NewProber(runner tool.Runner, binary string, logger *slog.Logger) *Prober {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Prober{runner: runner, binary: binary, logger: logger}
}

// ProbeAudioStreams never fails outright; failures surface as a tagged empty result.
func (p *Prober) ProbeAudioStreams(ctx context.Context, path string) StreamsResult {
	logger := logging.WithContext(ctx, p.logger)
	res, err := tool.Invoke(ctx, p.runner, tool.Binaries{FFprobe: p.binary}, tool.Spec{Kind: tool.KindProbeAudio, Input: path})
	if err != nil {
		logging.WarnWithContext(logger, "audio probe could not run", "probe_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check tools.ffprobe or TONEARM_FFPROBE"),
			logging.String(logging.FieldImpact, "file skipped"),
		)
		return StreamsResult{Reason: ReasonProbeFailed, Err: err}
	}
	if !res.Success() {
		// Stdout is still parsed below; a failing exit with no JSON reads as a parse error.
		logger.Debug("audio probe exited non-zero",
			logging.Int("exit_code", res.ExitCode),
			logging.String("stderr", strings.TrimSpace(res.Stderr)),
		)
	}

	result := ParseAudioStreams(res.Stdout)
	switch result.Reason {
	case ReasonParseError:
		logging.WarnWithContext(logger, "audio probe returned unreadable output", "probe_parse_error",
			logging.Error(result.Err),
			logging.String(logging.FieldErrorHint, "run `tonearm probe` on the file to inspect ffprobe output"),
			logging.String(logging.FieldImpact, "file skipped"),
		)
	case ReasonNoStreams:
		logger.Info("no audio streams found",
			logging.String(logging.FieldEventType, "probe_empty"),
		)
	default:
		logger.Debug("audio streams probed",
			logging.String(logging.FieldEventType, "probe_complete"),
			logging.Int("stream_count", len(result.Streams)),
		)
	}
	return result
}
