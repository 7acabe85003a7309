package tool

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind enumerates the external operations tonearm performs.
type Kind int

const (
	KindProbeVideo Kind = iota
	KindProbeAudio
	KindCopyExtract
	KindTranscode
	KindRepair
	KindInspect
)

func (k Kind) String() string {
	switch k {
	case KindProbeVideo:
		return "probe-video"
	case KindProbeAudio:
		return "probe-audio"
	case KindCopyExtract:
		return "copy-extract"
	case KindTranscode:
		return "transcode"
	case KindRepair:
		return "repair"
	case KindInspect:
		return "inspect"
	default:
		return "unknown"
	}
}

// UsesProbe reports whether the operation runs ffprobe rather than ffmpeg.
func (k Kind) UsesProbe() bool {
	return k == KindProbeVideo || k == KindProbeAudio || k == KindInspect
}

// Spec describes a single external tool invocation.
type Spec struct {
	Kind        Kind
	Input       string
	Output      string
	StreamIndex int

	// CopyExtract only: convert ADTS AAC to MPEG-4 AudioSpecificConfig for .m4a output.
	ADTSToASC bool

	// Transcode only.
	Encoder string
	Quality int
}

// Args renders the argument list (without the binary name) for the operation.
func (s Spec) Args() ([]string, error) {
	input := strings.TrimSpace(s.Input)
	if input == "" {
		return nil, errors.New("tool spec: empty input path")
	}
	if !s.Kind.UsesProbe() && strings.TrimSpace(s.Output) == "" {
		return nil, fmt.Errorf("tool spec: %s requires an output path", s.Kind)
	}

	switch s.Kind {
	case KindProbeVideo:
		return []string{
			"-v", "error",
			"-select_streams", "v:0",
			"-show_entries", "format=filename",
			"-of", "json",
			input,
		}, nil
	case KindProbeAudio:
		return []string{
			"-v", "error",
			"-select_streams", "a",
			"-show_entries", "stream=index,codec_name",
			"-of", "json",
			input,
		}, nil
	case KindInspect:
		return []string{
			"-v", "error",
			"-hide_banner",
			"-show_format", "-show_streams",
			"-of", "json",
			"--", input,
		}, nil
	case KindCopyExtract:
		if s.StreamIndex < 0 {
			return nil, fmt.Errorf("tool spec: invalid stream index %d", s.StreamIndex)
		}
		args := ffmpegPreamble(input)
		args = append(args,
			"-map", streamSelector(s.StreamIndex),
			"-vn", "-sn", "-dn",
			"-c:a", "copy",
		)
		if s.ADTSToASC {
			args = append(args, "-bsf:a", "aac_adtstoasc")
		}
		return append(args, s.Output), nil
	case KindTranscode:
		if s.StreamIndex < 0 {
			return nil, fmt.Errorf("tool spec: invalid stream index %d", s.StreamIndex)
		}
		encoder := strings.TrimSpace(s.Encoder)
		if encoder == "" {
			encoder = "libmp3lame"
		}
		if s.Quality < 0 || s.Quality > 9 {
			return nil, fmt.Errorf("tool spec: quality %d outside 0-9", s.Quality)
		}
		args := ffmpegPreamble(input)
		return append(args,
			"-map", streamSelector(s.StreamIndex),
			"-vn",
			"-c:a", encoder,
			"-q:a", strconv.Itoa(s.Quality),
			s.Output,
		), nil
	case KindRepair:
		args := ffmpegPreamble(input)
		return append(args,
			"-c", "copy",
			"-f", "mp4",
			s.Output,
		), nil
	default:
		return nil, fmt.Errorf("tool spec: unsupported kind %d", s.Kind)
	}
}

// ffmpegPreamble overwrites existing outputs (-y) so repeated runs are idempotent
// and never blocks on the interactive overwrite prompt (-nostdin).
func ffmpegPreamble(input string) []string {
	return []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-i", input,
	}
}

func streamSelector(index int) string {
	return "0:" + strconv.Itoa(index)
}
