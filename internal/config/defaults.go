package config

const (
	defaultConfigPath       = "~/.config/tonearm/config.toml"
	defaultInputDir         = "."
	defaultOutputDir        = "output"
	defaultLogDir           = "~/.local/share/tonearm/logs"
	defaultStateDir         = "~/.local/state/tonearm"
	defaultFFprobe          = "ffprobe"
	defaultFFmpeg           = "ffmpeg"
	defaultTranscodeEncoder = "libmp3lame"
	defaultTranscodeQuality = 2
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			InputDir:  defaultInputDir,
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
			StateDir:  defaultStateDir,
		},
		Tools: Tools{
			FFprobe: defaultFFprobe,
			FFmpeg:  defaultFFmpeg,
		},
		Pipeline: Pipeline{
			ExcludeExtensions: []string{".go", ".toml"},
		},
		Routing: Routing{
			TranscodeCodecs: []string{"cook"},
			Extensions:      map[string]string{},
		},
		Transcode: Transcode{
			Encoder: defaultTranscodeEncoder,
			Quality: defaultTranscodeQuality,
			Verify:  true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
