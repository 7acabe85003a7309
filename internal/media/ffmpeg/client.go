package ffmpeg

import (
	"context"
	"fmt"
	"strings"

	"tonearm/internal/media/tool"
	"tonearm/internal/services"
)

const (
	defaultEncoder = "libmp3lame"
	defaultQuality = 2
)

// Client invokes ffmpeg through a tool.Runner.
type Client struct {
	runner  tool.Runner
	binary  string
	encoder string
	quality int
}

// Option customizes a Client.
type Option func(*Client)

// WithEncoder sets the MP3 encoder and VBR quality (0 best, 9 smallest).
func WithEncoder(encoder string, quality int) Option {
	return func(c *Client) {
		if encoder = strings.TrimSpace(encoder); encoder != "" {
			c.encoder = encoder
		}
		c.quality = quality
	}
}

// NewClient constructs a Client. A nil runner executes the real binary.
func NewClient(runner tool.Runner, binary string, opts ...Option) *Client {
	c := &Client{
		runner:  runner,
		binary:  binary,
		encoder: defaultEncoder,
		quality: defaultQuality,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ExtractOptions adjusts a stream copy.
type ExtractOptions struct {
	// ADTSToASC enables the aac_adtstoasc bitstream filter required for AAC in MP4/M4A.
	ADTSToASC bool
}

// Extract copies audio stream index of input into output without re-encoding.
func (c *Client) Extract(ctx context.Context, input string, index int, output string, opts ExtractOptions) error {
	spec := tool.Spec{
		Kind:        tool.KindCopyExtract,
		Input:       input,
		Output:      output,
		StreamIndex: index,
		ADTSToASC:   opts.ADTSToASC,
	}
	return c.run(ctx, spec, services.ErrExtraction, "extract")
}

// TranscodeMP3 re-encodes audio stream index of input into an MP3 at output.
func (c *Client) TranscodeMP3(ctx context.Context, input string, index int, output string) error {
	spec := tool.Spec{
		Kind:        tool.KindTranscode,
		Input:       input,
		Output:      output,
		StreamIndex: index,
		Encoder:     c.encoder,
		Quality:     c.quality,
	}
	return c.run(ctx, spec, services.ErrTranscode, "transcode")
}

// Repair remuxes input into an MP4 container at output with every stream copied.
func (c *Client) Repair(ctx context.Context, input, output string) error {
	spec := tool.Spec{
		Kind:   tool.KindRepair,
		Input:  input,
		Output: output,
	}
	return c.run(ctx, spec, services.ErrInvalidMedia, "repair")
}

func (c *Client) run(ctx context.Context, spec tool.Spec, marker error, stage string) error {
	operation := "ffmpeg"
	if spec.Kind != tool.KindRepair {
		operation = fmt.Sprintf("stream %d", spec.StreamIndex)
	}
	res, err := tool.Invoke(ctx, c.runner, tool.Binaries{FFmpeg: c.binary}, spec)
	if err != nil {
		return services.Wrap(marker, stage, operation, "", err)
	}
	if !res.Success() {
		msg := fmt.Sprintf("exit status %d", res.ExitCode)
		if detail := strings.TrimSpace(res.Stderr); detail != "" {
			msg += ": " + detail
		}
		return services.Wrap(marker, stage, operation, msg, nil)
	}
	return nil
}
