package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateRouting(); err != nil {
		return err
	}
	if err := c.validateTranscode(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return errors.New("paths.output_dir must be set")
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		return errors.New("paths.state_dir must be set")
	}
	return nil
}

func (c *Config) validateRouting() error {
	for codec, ext := range c.Routing.Extensions {
		if strings.EqualFold(strings.TrimSpace(codec), "aac") {
			return errors.New("routing.extensions cannot override aac; aac is always copied into .m4a")
		}
		if strings.ContainsAny(ext, `/\.`) {
			return fmt.Errorf("routing.extensions[%q] must be a bare extension, got %q", codec, ext)
		}
	}
	return nil
}

func (c *Config) validateTranscode() error {
	if c.Transcode.Quality < 0 || c.Transcode.Quality > 9 {
		return errors.New("transcode.quality must be between 0 and 9")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q (use debug, info, warn, or error)", c.Logging.Level)
	}
}
