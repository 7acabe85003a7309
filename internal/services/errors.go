package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidMedia   = errors.New("invalid media")
	ErrProbeParse     = errors.New("probe response unreadable")
	ErrExtraction     = errors.New("stream copy failed")
	ErrTranscode      = errors.New("transcode failed")
	ErrToolInvocation = errors.New("external tool invocation failed")
	ErrValidation     = errors.New("validation error")
	ErrConfiguration  = errors.New("configuration error")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrValidation
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Recoverable reports whether a failure has a designed fallback. Any failed
// stream copy qualifies, including one where ffmpeg never started; it is
// retried once as a transcode. A copy stopped by cancellation does not.
func Recoverable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return errors.Is(err, ErrExtraction)
}

// Classify returns a short label for the first marker found in err.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrToolInvocation):
		return "tool_invocation"
	case errors.Is(err, ErrInvalidMedia):
		return "invalid_media"
	case errors.Is(err, ErrProbeParse):
		return "probe_parse"
	case errors.Is(err, ErrExtraction):
		return "extraction"
	case errors.Is(err, ErrTranscode):
		return "transcode"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrValidation):
		return "validation"
	default:
		return "unknown"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "pipeline failure"
	}
	return strings.Join(parts, ": ")
}
