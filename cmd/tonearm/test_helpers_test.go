package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"tonearm/internal/config"
	"tonearm/internal/media/tool"
	"tonearm/internal/testsupport"
)

const twoStreams = `{"streams":[{"index":0,"codec_name":"aac"},{"index":1,"codec_name":"cook"}]}`

// mediaRunner answers ffprobe/ffmpeg calls for every input with the given
// audio stream listing. Inputs named "broken.*" fail validation.
func mediaRunner(streams string) *testsupport.FakeRunner {
	return &testsupport.FakeRunner{Handler: func(call testsupport.Call) testsupport.Response {
		if call.Has("-version") {
			return testsupport.Response{Result: tool.Result{Stdout: []byte(filepath.Base(call.Binary) + " version 6.1.1 Copyright (c) 2000-2023\n")}}
		}
		switch call.Kind() {
		case tool.KindProbeVideo:
			if strings.HasPrefix(filepath.Base(call.Input()), "broken") {
				return testsupport.Response{Result: tool.Result{ExitCode: 1, Stderr: "Invalid data found when processing input"}}
			}
			return testsupport.Response{Result: tool.Result{Stdout: []byte(`{"format":{"filename":"x"}}`)}}
		case tool.KindProbeAudio:
			return testsupport.Response{Result: tool.Result{Stdout: []byte(streams)}}
		case tool.KindInspect:
			return testsupport.Response{Result: tool.Result{Stdout: []byte(`{"streams":[{"index":0,"codec_type":"video"},{"index":1,"codec_type":"audio"}],"format":{"format_name":"rm","duration":"61.5","size":"2048","bit_rate":"128000"}}`)}}
		case tool.KindCopyExtract:
			return testsupport.Response{Output: []byte("copied")}
		default:
			return testsupport.Response{Output: testsupport.MP3Frames(3)}
		}
	}}
}

func writeTestConfig(t *testing.T, cfg *config.Config) string {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(testsupport.BaseDir(cfg), "tonearm.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCLI(t *testing.T, runner tool.Runner, configPath string, args ...string) (string, error) {
	t.Helper()
	cmd := buildRootCommand(runner)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
