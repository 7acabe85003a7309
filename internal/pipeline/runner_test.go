package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"tonearm/internal/config"
	"tonearm/internal/history"
	"tonearm/internal/media/tool"
	"tonearm/internal/pipeline"
	"tonearm/internal/services"
	"tonearm/internal/testsupport"
)

// fakeMedia scripts ffprobe/ffmpeg behaviour for one input file, keyed by base name.
type fakeMedia struct {
	invalid       bool
	streams       string
	copyFails     map[int]bool
	copyPartial   bool
	transcodeFail map[int]bool
	repairFails   bool
}

func scriptedRunner(media map[string]fakeMedia) *testsupport.FakeRunner {
	return &testsupport.FakeRunner{Handler: func(call testsupport.Call) testsupport.Response {
		base := strings.TrimSuffix(filepath.Base(call.Input()), filepath.Ext(call.Input()))
		m := media[base]
		index, _ := strconv.Atoi(strings.TrimPrefix(call.StreamIndex(), "0:"))
		switch call.Kind() {
		case tool.KindProbeVideo:
			if m.invalid {
				return testsupport.Response{Result: tool.Result{ExitCode: 1, Stderr: call.Input() + ": Invalid data found when processing input"}}
			}
			return testsupport.Response{Result: tool.Result{Stdout: []byte(`{"format":{"filename":"x"}}`)}}
		case tool.KindProbeAudio:
			return testsupport.Response{Result: tool.Result{Stdout: []byte(m.streams)}}
		case tool.KindRepair:
			if m.repairFails {
				return testsupport.Response{Result: tool.Result{ExitCode: 1}, Output: []byte{}}
			}
			return testsupport.Response{Output: []byte("remuxed")}
		case tool.KindCopyExtract:
			if m.copyFails[index] {
				out := []byte{}
				if m.copyPartial {
					out = []byte("truncated")
				}
				return testsupport.Response{Result: tool.Result{ExitCode: 1, Stderr: "codec not currently supported in container"}, Output: out}
			}
			return testsupport.Response{Output: []byte("copied:" + base + ":" + strconv.Itoa(index))}
		default:
			if m.transcodeFail[index] {
				return testsupport.Response{Result: tool.Result{ExitCode: 1}, Output: []byte{}}
			}
			return testsupport.Response{Output: testsupport.MP3Frames(3)}
		}
	}}
}

func touchInputs(t *testing.T, cfg *config.Config, names ...string) {
	t.Helper()
	for _, name := range names {
		testsupport.WriteFile(t, filepath.Join(cfg.Paths.InputDir, name), 64)
	}
}

func outputNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read output dir: %v", err)
	}
	var names []string
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names
}

func assertNoZeroByteFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read output dir: %v", err)
	}
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			t.Fatal(err)
		}
		if info.Size() == 0 {
			t.Fatalf("zero-byte artifact left behind: %s", entry.Name())
		}
	}
}

func newRunner(cfg *config.Config, runner tool.Runner, opts ...pipeline.Option) *pipeline.Runner {
	opts = append([]pipeline.Option{pipeline.WithToolRunner(runner)}, opts...)
	return pipeline.NewRunner(cfg, nil, opts...)
}

func TestRunClipAACScenario(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	touchInputs(t, cfg, "clip.mp4")
	fake := scriptedRunner(map[string]fakeMedia{
		"clip": {streams: `{"streams":[{"index":0,"codec_name":"aac"}]}`},
	})

	report, err := newRunner(cfg, fake).Run(context.Background(), "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	outDir := filepath.Join(cfg.Paths.InputDir, "output")
	if report.OutputDir != outDir {
		t.Fatalf("unexpected output dir %q", report.OutputDir)
	}
	copies := fake.CallsOfKind(tool.KindCopyExtract)
	if len(copies) != 1 || copies[0].StreamIndex() != "0:0" || !copies[0].Has("aac_adtstoasc") {
		t.Fatalf("unexpected copy calls: %+v", copies)
	}
	if n := len(fake.CallsOfKind(tool.KindTranscode)); n != 0 {
		t.Fatalf("expected no transcode, got %d", n)
	}
	if names := outputNames(t, outDir); len(names) != 1 || names[0] != "clip.m4a" {
		t.Fatalf("unexpected outputs: %v", names)
	}
	artifact := report.Files[0].Artifacts[0]
	if artifact.Outcome != pipeline.OutcomeCopied || artifact.Route != pipeline.RouteCopyAAC || artifact.Size == 0 {
		t.Fatalf("unexpected artifact: %+v", artifact)
	}
}

func TestRunCopyFailureFallsBackToMP3(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	touchInputs(t, cfg, "clip.mp4")
	fake := scriptedRunner(map[string]fakeMedia{
		"clip": {streams: `{"streams":[{"index":0,"codec_name":"aac"}]}`, copyFails: map[int]bool{0: true}},
	})

	report, err := newRunner(cfg, fake).Run(context.Background(), "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	outDir := report.OutputDir
	if names := outputNames(t, outDir); len(names) != 1 || names[0] != "clip.mp3" {
		t.Fatalf("expected only clip.mp3, got %v", names)
	}
	assertNoZeroByteFiles(t, outDir)

	calls := fake.Calls()
	var kinds []string
	for _, call := range calls {
		kinds = append(kinds, call.Kind().String())
	}
	want := "probe-video,probe-audio,copy-extract,transcode"
	if got := strings.Join(kinds, ","); got != want {
		t.Fatalf("unexpected call order %s", got)
	}
	transcode := fake.CallsOfKind(tool.KindTranscode)[0]
	if transcode.Output() != filepath.Join(outDir, "clip.mp3") {
		t.Fatalf("fallback must write a fresh mp3 path, got %s", transcode.Output())
	}

	artifact := report.Files[0].Artifacts[0]
	if artifact.Outcome != pipeline.OutcomeTranscoded || !artifact.FellBack {
		t.Fatalf("unexpected artifact: %+v", artifact)
	}
	if !errors.Is(artifact.CopyErr, services.ErrExtraction) {
		t.Fatalf("expected copy error recorded, got %v", artifact.CopyErr)
	}
	if artifact.Duration <= 0 {
		t.Fatalf("expected verified mp3 duration, got %v", artifact.Duration)
	}
	if totals := report.Totals(); totals.Fallbacks != 1 || totals.Transcoded != 1 {
		t.Fatalf("unexpected totals: %+v", totals)
	}
}

func TestRunFailedCopyRemovesPartialFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Pipeline.SkipExisting = true
	touchInputs(t, cfg, "clip.mp4")
	media := map[string]fakeMedia{
		"clip": {streams: `{"streams":[{"index":0,"codec_name":"aac"}]}`, copyFails: map[int]bool{0: true}, copyPartial: true},
	}

	report, err := newRunner(cfg, scriptedRunner(media)).Run(context.Background(), "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if names := outputNames(t, report.OutputDir); len(names) != 1 || names[0] != "clip.mp3" {
		t.Fatalf("expected the partial m4a to be removed, got %v", names)
	}

	// With the copy now working, the next run must copy rather than keep a leftover.
	media["clip"] = fakeMedia{streams: `{"streams":[{"index":0,"codec_name":"aac"}]}`}
	fake := scriptedRunner(media)
	report, err = newRunner(cfg, fake).Run(context.Background(), "")
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if n := len(fake.CallsOfKind(tool.KindCopyExtract)); n != 1 {
		t.Fatalf("expected a fresh copy attempt, got %d", n)
	}
	if outcome := report.Files[0].Artifacts[0].Outcome; outcome != pipeline.OutcomeCopied {
		t.Fatalf("expected copied outcome, got %s", outcome)
	}
}

func TestRunCopySpawnFailureStillFallsBack(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	touchInputs(t, cfg, "clip.mp4")
	spawnErr := services.Wrap(services.ErrToolInvocation, "", "exec ffmpeg", "", errors.New("text file busy"))
	fake := &testsupport.FakeRunner{Handler: func(call testsupport.Call) testsupport.Response {
		switch call.Kind() {
		case tool.KindProbeAudio:
			return testsupport.Response{Result: tool.Result{Stdout: []byte(`{"streams":[{"index":0,"codec_name":"flac"}]}`)}}
		case tool.KindCopyExtract:
			return testsupport.Response{Err: spawnErr}
		case tool.KindTranscode:
			return testsupport.Response{Output: testsupport.MP3Frames(3)}
		default:
			return testsupport.Response{}
		}
	}}

	report, err := newRunner(cfg, fake).Run(context.Background(), "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	artifact := report.Files[0].Artifacts[0]
	if artifact.Outcome != pipeline.OutcomeTranscoded || !artifact.FellBack {
		t.Fatalf("expected fallback transcode, got %+v", artifact)
	}
	if !errors.Is(artifact.CopyErr, services.ErrToolInvocation) {
		t.Fatalf("expected spawn error recorded on the copy, got %v", artifact.CopyErr)
	}
	if n := len(fake.CallsOfKind(tool.KindTranscode)); n != 1 {
		t.Fatalf("expected exactly one transcode, got %d", n)
	}
}

func TestRunCookTranscodesDirectly(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	touchInputs(t, cfg, "voice.rm")
	fake := scriptedRunner(map[string]fakeMedia{
		"voice": {streams: `{"streams":[{"index":0,"codec_name":"cook"}]}`},
	})

	report, err := newRunner(cfg, fake).Run(context.Background(), "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n := len(fake.CallsOfKind(tool.KindCopyExtract)); n != 0 {
		t.Fatalf("extractor must not run for cook, got %d calls", n)
	}
	transcodes := fake.CallsOfKind(tool.KindTranscode)
	if len(transcodes) != 1 || transcodes[0].Output() != filepath.Join(report.OutputDir, "voice.mp3") {
		t.Fatalf("unexpected transcode calls: %+v", transcodes)
	}
	if !transcodes[0].Has("libmp3lame") || transcodes[0].Args[len(transcodes[0].Args)-2] != "2" {
		t.Fatalf("unexpected encoder args: %v", transcodes[0].Args)
	}
	if report.Files[0].Artifacts[0].FellBack {
		t.Fatal("direct transcode must not be flagged as fallback")
	}
}

func TestRunAbsentCodecTranscodes(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	touchInputs(t, cfg, "mystery.avi")
	fake := scriptedRunner(map[string]fakeMedia{
		"mystery": {streams: `{"streams":[{"index":1}]}`},
	})

	report, err := newRunner(cfg, fake).Run(context.Background(), "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n := len(fake.CallsOfKind(tool.KindCopyExtract)); n != 0 {
		t.Fatalf("extractor must not run for absent codec, got %d calls", n)
	}
	artifact := report.Files[0].Artifacts[0]
	if artifact.Route != pipeline.RouteTranscode || artifact.Reason != "unknown codec" {
		t.Fatalf("unexpected artifact: %+v", artifact)
	}
}

func TestRunInvalidFileNeverReachesLaterSteps(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	touchInputs(t, cfg, "corrupt.bin", "voice.rm")
	fake := scriptedRunner(map[string]fakeMedia{
		"corrupt": {invalid: true},
		"voice":   {streams: `{"streams":[{"index":0,"codec_name":"cook"}]}`},
	})

	report, err := newRunner(cfg, fake).Run(context.Background(), "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, call := range fake.Calls() {
		if strings.Contains(call.Input(), "corrupt") && call.Kind() != tool.KindProbeVideo {
			t.Fatalf("corrupt.bin reached %s", call.Kind())
		}
	}
	if report.Files[0].File.Name != "corrupt.bin" || report.Files[0].Status != pipeline.StatusInvalid {
		t.Fatalf("unexpected first file result: %+v", report.Files[0])
	}
	if !errors.Is(report.Files[0].Err, services.ErrInvalidMedia) {
		t.Fatalf("expected invalid media error, got %v", report.Files[0].Err)
	}
	for _, name := range outputNames(t, report.OutputDir) {
		if strings.HasPrefix(name, "corrupt") {
			t.Fatalf("unexpected artifact for invalid file: %s", name)
		}
	}
	if report.Files[1].Status != pipeline.StatusProcessed {
		t.Fatalf("batch must continue after an invalid file: %+v", report.Files[1])
	}
}

func TestRunMultiStreamNaming(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	touchInputs(t, cfg, "movie.mkv")
	fake := scriptedRunner(map[string]fakeMedia{
		"movie": {streams: `{"streams":[{"index":0,"codec_name":"ac3"},{"index":1,"codec_name":"ac3"}]}`},
	})

	report, err := newRunner(cfg, fake).Run(context.Background(), "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	names := outputNames(t, report.OutputDir)
	if len(names) != 2 || names[0] != "movie_stream0.ac3" || names[1] != "movie_stream1.ac3" {
		t.Fatalf("unexpected multi-stream names: %v", names)
	}
}

func TestRunSameBaseNameGetsDistinctArtifacts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	touchInputs(t, cfg, "clip.mkv", "clip.mp4")
	aac := fakeMedia{streams: `{"streams":[{"index":0,"codec_name":"aac"}]}`}

	for _, dryRun := range []bool{true, false} {
		fake := scriptedRunner(map[string]fakeMedia{"clip": aac})
		report, err := newRunner(cfg, fake, pipeline.WithDryRun(dryRun)).Run(context.Background(), "")
		if err != nil {
			t.Fatalf("Run (dry run %v): %v", dryRun, err)
		}
		if len(report.Files) != 2 {
			t.Fatalf("expected two files, got %+v", report.Files)
		}
		first := report.Files[0].Artifacts[0].Path
		second := report.Files[1].Artifacts[0].Path
		if filepath.Base(first) != "clip.m4a" || filepath.Base(second) != "clip_mp4.m4a" {
			t.Fatalf("unexpected artifact paths (dry run %v): %s, %s", dryRun, first, second)
		}
	}

	if names := outputNames(t, filepath.Join(cfg.Paths.InputDir, "output")); len(names) != 2 || names[0] != "clip.m4a" || names[1] != "clip_mp4.m4a" {
		t.Fatalf("expected one artifact per input, got %v", names)
	}
}

func TestRunEmptyProbeSkipsFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	touchInputs(t, cfg, "silent.mp4", "garbled.mp4")
	fake := scriptedRunner(map[string]fakeMedia{
		"silent":  {streams: `{"streams":[]}`},
		"garbled": {streams: `not json`},
	})

	report, err := newRunner(cfg, fake).Run(context.Background(), "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	byName := map[string]pipeline.FileResult{}
	for _, f := range report.Files {
		byName[f.File.Name] = f
	}
	if byName["silent.mp4"].Status != pipeline.StatusNoStreams {
		t.Fatalf("unexpected silent status: %+v", byName["silent.mp4"])
	}
	if byName["garbled.mp4"].Status != pipeline.StatusProbeError || !errors.Is(byName["garbled.mp4"].Err, services.ErrProbeParse) {
		t.Fatalf("unexpected garbled status: %+v", byName["garbled.mp4"])
	}
	if n := len(fake.CallsOfKind(tool.KindCopyExtract)) + len(fake.CallsOfKind(tool.KindTranscode)); n != 0 {
		t.Fatalf("expected no ffmpeg calls, got %d", n)
	}
	if report.Totals().FilesSkipped != 2 {
		t.Fatalf("expected 2 skipped files, got %+v", report.Totals())
	}
}

func TestRunTranscodeFailureIsTerminal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	touchInputs(t, cfg, "clip.mp4", "voice.rm")
	fake := scriptedRunner(map[string]fakeMedia{
		"clip":  {streams: `{"streams":[{"index":0,"codec_name":"aac"}]}`, copyFails: map[int]bool{0: true}, transcodeFail: map[int]bool{0: true}},
		"voice": {streams: `{"streams":[{"index":0,"codec_name":"cook"}]}`},
	})

	report, err := newRunner(cfg, fake).Run(context.Background(), "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	clip := report.Files[0].Artifacts[0]
	if clip.Outcome != pipeline.OutcomeFailed || !errors.Is(clip.Err, services.ErrTranscode) {
		t.Fatalf("unexpected clip artifact: %+v", clip)
	}
	if n := len(fake.CallsOfKind(tool.KindTranscode)); n != 2 {
		t.Fatalf("expected exactly one fallback transcode plus voice, got %d", n)
	}
	names := outputNames(t, report.OutputDir)
	if len(names) != 1 || names[0] != "voice.mp3" {
		t.Fatalf("unexpected outputs: %v", names)
	}
	assertNoZeroByteFiles(t, report.OutputDir)
}

func TestRunRejectsUnverifiableMP3(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	touchInputs(t, cfg, "voice.rm")
	fake := &testsupport.FakeRunner{Handler: func(call testsupport.Call) testsupport.Response {
		switch call.Kind() {
		case tool.KindProbeAudio:
			return testsupport.Response{Result: tool.Result{Stdout: []byte(`{"streams":[{"index":0,"codec_name":"cook"}]}`)}}
		case tool.KindTranscode:
			return testsupport.Response{Output: bytes.Repeat([]byte{0}, 512)}
		default:
			return testsupport.Response{}
		}
	}}

	report, err := newRunner(cfg, fake).Run(context.Background(), "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	artifact := report.Files[0].Artifacts[0]
	if artifact.Outcome != pipeline.OutcomeFailed || !errors.Is(artifact.Err, services.ErrTranscode) {
		t.Fatalf("expected verification failure, got %+v", artifact)
	}
	if names := outputNames(t, report.OutputDir); len(names) != 0 {
		t.Fatalf("expected unverifiable mp3 removed, got %v", names)
	}

	cfg.Transcode.Verify = false
	report, err = newRunner(cfg, fake).Run(context.Background(), "")
	if err != nil {
		t.Fatalf("Run without verify: %v", err)
	}
	if report.Files[0].Artifacts[0].Outcome != pipeline.OutcomeTranscoded {
		t.Fatalf("expected transcode accepted without verification: %+v", report.Files[0].Artifacts[0])
	}
}

func TestRunIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	touchInputs(t, cfg, "clip.mp4", "movie.mkv")
	media := map[string]fakeMedia{
		"clip":  {streams: `{"streams":[{"index":0,"codec_name":"aac"}]}`},
		"movie": {streams: `{"streams":[{"index":0,"codec_name":"flac"},{"index":1,"codec_name":"cook"}]}`},
	}

	snapshot := func() map[string]string {
		out := map[string]string{}
		dir := filepath.Join(cfg.Paths.InputDir, "output")
		for _, name := range outputNames(t, dir) {
			data, err := os.ReadFile(filepath.Join(dir, name))
			if err != nil {
				t.Fatal(err)
			}
			out[name] = string(data)
		}
		return out
	}

	if _, err := newRunner(cfg, scriptedRunner(media)).Run(context.Background(), ""); err != nil {
		t.Fatalf("first run: %v", err)
	}
	first := snapshot()
	report, err := newRunner(cfg, scriptedRunner(media)).Run(context.Background(), "")
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	second := snapshot()

	if len(first) != 3 || len(first) != len(second) {
		t.Fatalf("unexpected artifact sets: %v vs %v", first, second)
	}
	for name, content := range first {
		if second[name] != content {
			t.Fatalf("artifact %s changed between runs", name)
		}
	}
	// The output directory lives inside the input directory and must not be treated as input.
	for _, file := range report.Files {
		if file.File.Name == "output" {
			t.Fatal("output directory was discovered as input")
		}
	}
}

func TestRunSkipExisting(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Pipeline.SkipExisting = true
	touchInputs(t, cfg, "clip.mp4")
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.InputDir, "output", "clip.m4a"), 10)
	fake := scriptedRunner(map[string]fakeMedia{
		"clip": {streams: `{"streams":[{"index":0,"codec_name":"aac"}]}`},
	})

	report, err := newRunner(cfg, fake).Run(context.Background(), "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n := len(fake.CallsOfKind(tool.KindCopyExtract)); n != 0 {
		t.Fatalf("expected existing artifact to be kept, got %d copies", n)
	}
	if outcome := report.Files[0].Artifacts[0].Outcome; outcome != pipeline.OutcomeSkipped {
		t.Fatalf("expected skipped outcome, got %s", outcome)
	}
}

func TestRunDryRunDoesNotWrite(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	touchInputs(t, cfg, "clip.mp4")
	fake := scriptedRunner(map[string]fakeMedia{
		"clip": {streams: `{"streams":[{"index":0,"codec_name":"aac"},{"index":2,"codec_name":"cook"}]}`},
	})

	report, err := newRunner(cfg, fake, pipeline.WithDryRun(true)).Run(context.Background(), "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := os.Stat(report.OutputDir); !os.IsNotExist(err) {
		t.Fatalf("dry run must not create the output dir (stat err=%v)", err)
	}
	for _, call := range fake.Calls() {
		if !call.Kind().UsesProbe() {
			t.Fatalf("dry run invoked ffmpeg: %v", call.Args)
		}
	}
	artifacts := report.Files[0].Artifacts
	if len(artifacts) != 2 || artifacts[0].Outcome != pipeline.OutcomePlanned {
		t.Fatalf("unexpected planned artifacts: %+v", artifacts)
	}
	if filepath.Base(artifacts[1].Path) != "clip_stream2.mp3" {
		t.Fatalf("unexpected planned path %s", artifacts[1].Path)
	}
}

func TestRunRepairFeedsRemuxedFile(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithRepair())
	touchInputs(t, cfg, "clip.flv", "broken.avi")
	fake := scriptedRunner(map[string]fakeMedia{
		"clip":   {streams: `{"streams":[{"index":0,"codec_name":"aac"}]}`},
		"broken": {repairFails: true},
	})

	report, err := newRunner(cfg, fake).Run(context.Background(), "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	byName := map[string]pipeline.FileResult{}
	for _, f := range report.Files {
		byName[f.File.Name] = f
	}
	if byName["broken.avi"].Status != pipeline.StatusRepairFailed {
		t.Fatalf("expected repair failure, got %+v", byName["broken.avi"])
	}
	probe := fake.CallsOfKind(tool.KindProbeAudio)
	if len(probe) != 1 || filepath.Base(probe[0].Input()) != "clip.mp4" || strings.HasPrefix(probe[0].Input(), cfg.Paths.InputDir) {
		t.Fatalf("expected probe of remuxed temp file, got %+v", probe)
	}
	if _, err := os.Stat(probe[0].Input()); !os.IsNotExist(err) {
		t.Fatalf("expected repaired temp file to be removed, stat err=%v", err)
	}
	if names := outputNames(t, report.OutputDir); len(names) != 1 || names[0] != "clip.m4a" {
		t.Fatalf("artifact must keep the original base name, got %v", names)
	}
}

func TestRunRecordsHistory(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithHistory())
	touchInputs(t, cfg, "voice.rm")
	store, err := history.Open(cfg.HistoryPath())
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	defer store.Close()
	fake := scriptedRunner(map[string]fakeMedia{
		"voice": {streams: `{"streams":[{"index":0,"codec_name":"cook"}]}`},
	})

	report, err := newRunner(cfg, fake,
		pipeline.WithRecorder(store),
		pipeline.WithIDGenerator(func() string { return "run-1" }),
	).Run(context.Background(), "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.RunID != "run-1" {
		t.Fatalf("unexpected run id %q", report.RunID)
	}
	runs, err := store.ListRuns(context.Background(), 5)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "run-1" || runs[0].Transcoded != 1 {
		t.Fatalf("unexpected history: %+v", runs)
	}
	artifacts, err := store.Artifacts(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("Artifacts: %v", err)
	}
	if len(artifacts) != 1 || artifacts[0].Route != "transcode" || artifacts[0].Codec != "cook" {
		t.Fatalf("unexpected artifacts: %+v", artifacts)
	}
}

func TestRunFailsWhenLocked(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	lock, err := pipeline.AcquireLock(cfg.LockPath())
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	defer lock.Release()

	if _, err := newRunner(cfg, scriptedRunner(nil)).Run(context.Background(), ""); !errors.Is(err, pipeline.ErrRunLocked) {
		t.Fatalf("expected ErrRunLocked, got %v", err)
	}
}

func TestRunRejectsMissingInputDir(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	_, err := newRunner(cfg, scriptedRunner(nil)).Run(context.Background(), filepath.Join(t.TempDir(), "missing"))
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	touchInputs(t, cfg, "a.mp4", "b.mp4")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := newRunner(cfg, scriptedRunner(nil)).Run(ctx, "")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation error, got %v", err)
	}
	if !report.Interrupted || len(report.Files) != 0 {
		t.Fatalf("unexpected report after cancel: %+v", report)
	}
}
