package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTools()
	c.normalizePipeline()
	c.normalizeRouting()
	c.normalizeTranscode()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.InputDir) == "" {
		c.Paths.InputDir = defaultInputDir
	}
	if c.Paths.InputDir, err = expandPath(c.Paths.InputDir); err != nil {
		return fmt.Errorf("paths.input_dir: %w", err)
	}
	c.Paths.OutputDir = strings.TrimSpace(c.Paths.OutputDir)
	if c.Paths.OutputDir == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTools() {
	if value, ok := os.LookupEnv("TONEARM_FFPROBE"); ok && strings.TrimSpace(value) != "" {
		c.Tools.FFprobe = value
	}
	if value, ok := os.LookupEnv("TONEARM_FFMPEG"); ok && strings.TrimSpace(value) != "" {
		c.Tools.FFmpeg = value
	}
	c.Tools.FFprobe = strings.TrimSpace(c.Tools.FFprobe)
	if c.Tools.FFprobe == "" {
		c.Tools.FFprobe = defaultFFprobe
	}
	c.Tools.FFmpeg = strings.TrimSpace(c.Tools.FFmpeg)
	if c.Tools.FFmpeg == "" {
		c.Tools.FFmpeg = defaultFFmpeg
	}
}

func (c *Config) normalizePipeline() {
	exts := make([]string, 0, len(c.Pipeline.ExcludeExtensions))
	seen := make(map[string]struct{}, len(c.Pipeline.ExcludeExtensions))
	for _, ext := range c.Pipeline.ExcludeExtensions {
		normalized := strings.ToLower(strings.TrimSpace(ext))
		if normalized == "" {
			continue
		}
		if !strings.HasPrefix(normalized, ".") {
			normalized = "." + normalized
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		exts = append(exts, normalized)
	}
	c.Pipeline.ExcludeExtensions = exts
}

func (c *Config) normalizeRouting() {
	codecs := make([]string, 0, len(c.Routing.TranscodeCodecs))
	seen := make(map[string]struct{}, len(c.Routing.TranscodeCodecs))
	for _, codec := range c.Routing.TranscodeCodecs {
		normalized := strings.ToLower(strings.TrimSpace(codec))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		codecs = append(codecs, normalized)
	}
	c.Routing.TranscodeCodecs = codecs

	extensions := make(map[string]string, len(c.Routing.Extensions))
	for codec, ext := range c.Routing.Extensions {
		key := strings.ToLower(strings.TrimSpace(codec))
		value := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
		if key == "" || value == "" {
			continue
		}
		extensions[key] = value
	}
	c.Routing.Extensions = extensions
}

func (c *Config) normalizeTranscode() {
	c.Transcode.Encoder = strings.TrimSpace(c.Transcode.Encoder)
	if c.Transcode.Encoder == "" {
		c.Transcode.Encoder = defaultTranscodeEncoder
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
