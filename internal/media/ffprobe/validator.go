package ffprobe

import (
	"context"
	"log/slog"
	"strings"

	"tonearm/internal/logging"
	"tonearm/internal/media/tool"
)

// Validator decides whether ffprobe can open a file as a media container.
type Validator struct {
	runner tool.Runner
	binary string
	logger *slog.Logger
}

// NewValidator constructs a Validator. A nil runner executes the real binary.
func NewValidator(runner tool.Runner, binary string, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Validator{runner: runner, binary: binary, logger: logger}
}

// IsValidMedia reports false when ffprobe exits non-zero, mentions an error on
// stderr, or cannot be started at all.
func (v *Validator) IsValidMedia(ctx context.Context, path string) bool {
	logger := logging.WithContext(ctx, v.logger)
	res, err := tool.Invoke(ctx, v.runner, tool.Binaries{FFprobe: v.binary}, tool.Spec{Kind: tool.KindProbeVideo, Input: path})
	if err != nil {
		logging.WarnWithContext(logger, "media validation could not run", "validation_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check tools.ffprobe or TONEARM_FFPROBE"),
			logging.String(logging.FieldImpact, "file treated as invalid"),
		)
		return false
	}
	if !res.Success() || res.StderrMentionsError() {
		logger.Debug("ffprobe rejected file",
			logging.Int("exit_code", res.ExitCode),
			logging.String("stderr", strings.TrimSpace(res.Stderr)),
		)
		return false
	}
	return true
}
