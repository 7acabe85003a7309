package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tonearm/internal/media/tool"
	"tonearm/internal/testsupport"
)

func TestRunCommandPrintsSummary(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.InputDir, "clip.rm"), 64)
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.InputDir, "broken.mkv"), 64)
	configPath := writeTestConfig(t, cfg)

	runner := mediaRunner(twoStreams)
	out, err := runCLI(t, runner, configPath, "run")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	requireContains(t, out, "clip_stream0.m4a")
	requireContains(t, out, "clip_stream1.mp3")
	requireContains(t, out, "Invalid")
	requireContains(t, out, "Copied 1, transcoded 1 (0 after failed copy), failed 0, skipped 0")
	requireContains(t, out, "1 file(s) skipped")

	outputDir := filepath.Join(cfg.Paths.InputDir, "output")
	for _, name := range []string{"clip_stream0.m4a", "clip_stream1.mp3"} {
		if _, err := os.Stat(filepath.Join(outputDir, name)); err != nil {
			t.Fatalf("expected artifact %s: %v", name, err)
		}
	}
	if got := len(runner.CallsOfKind(tool.KindCopyExtract)); got != 1 {
		t.Fatalf("expected one copy call, got %d", got)
	}
}

func TestRunCommandOutputFlag(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.InputDir, "song.webm"), 64)
	configPath := writeTestConfig(t, cfg)
	target := filepath.Join(testsupport.BaseDir(cfg), "elsewhere")

	out, err := runCLI(t, mediaRunner(`{"streams":[{"index":1,"codec_name":"opus"}]}`), configPath, "run", "--output", target)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	requireContains(t, out, "song.opus")
	if _, err := os.Stat(filepath.Join(target, "song.opus")); err != nil {
		t.Fatalf("expected artifact in override dir: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.InputDir, "output")); !os.IsNotExist(err) {
		t.Fatalf("expected default output dir to stay absent, got %v", err)
	}
}

func TestRunCommandDryRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.InputDir, "clip.rm"), 64)
	configPath := writeTestConfig(t, cfg)

	runner := mediaRunner(twoStreams)
	out, err := runCLI(t, runner, configPath, "run", "--dry-run")
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	requireContains(t, out, "(dry run)")
	requireContains(t, out, "Planned 2 stream(s)")
	if _, err := os.Stat(filepath.Join(cfg.Paths.InputDir, "output")); !os.IsNotExist(err) {
		t.Fatalf("dry run must not create the output dir, got %v", err)
	}
	if got := len(runner.CallsOfKind(tool.KindCopyExtract)) + len(runner.CallsOfKind(tool.KindTranscode)); got != 0 {
		t.Fatalf("dry run invoked ffmpeg %d time(s)", got)
	}
}

func TestRunCommandEmptyDirectory(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := writeTestConfig(t, cfg)

	out, err := runCLI(t, mediaRunner(twoStreams), configPath, "run", cfg.Paths.InputDir)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	requireContains(t, out, "No media files found")
}

func TestRunCommandMissingInputFailsPreflight(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := writeTestConfig(t, cfg)
	missing := filepath.Join(testsupport.BaseDir(cfg), "missing")

	out, err := runCLI(t, mediaRunner(twoStreams), configPath, "run", missing)
	if err == nil {
		t.Fatal("expected preflight error")
	}
	if !strings.Contains(err.Error(), "preflight failed") || !strings.Contains(err.Error(), "Input directory") {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "" {
		t.Fatalf("expected no summary, got %q", out)
	}
}

func TestRunCommandRecordsHistory(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithHistory())
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.InputDir, "clip.rm"), 64)
	configPath := writeTestConfig(t, cfg)

	if _, err := runCLI(t, mediaRunner(twoStreams), configPath, "run"); err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, err := os.Stat(cfg.HistoryPath()); err != nil {
		t.Fatalf("expected history database: %v", err)
	}

	out, err := runCLI(t, nil, configPath, "history", "--limit", "5")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if strings.Contains(out, "No runs recorded") {
		t.Fatalf("expected a recorded run, got %q", out)
	}
	requireContains(t, out, "1.3 kB")
}
