package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"tonearm/internal/config"
	"tonearm/internal/fileutil"
	"tonearm/internal/history"
	"tonearm/internal/logging"
	"tonearm/internal/media/ffmpeg"
	"tonearm/internal/media/ffprobe"
	"tonearm/internal/media/mp3check"
	"tonearm/internal/media/tool"
	"tonearm/internal/services"
)

// Validator gates files on container readability.
type Validator interface {
	IsValidMedia(ctx context.Context, path string) bool
}

// Prober lists audio streams.
type Prober interface {
	ProbeAudioStreams(ctx context.Context, path string) ffprobe.StreamsResult
}

// Encoder performs the ffmpeg operations.
type Encoder interface {
	Extract(ctx context.Context, input string, index int, output string, opts ffmpeg.ExtractOptions) error
	TranscodeMP3(ctx context.Context, input string, index int, output string) error
	Repair(ctx context.Context, input, output string) error
}

// Recorder receives a finished run for the audit log.
type Recorder interface {
	RecordRun(ctx context.Context, run history.Run) error
}

// Runner executes batch runs.
type Runner struct {
	cfg    *config.Config
	logger *slog.Logger

	toolRunner tool.Runner
	validator  Validator
	prober     Prober
	encoder    Encoder
	recorder   Recorder
	policy     Policy

	dryRun     bool
	executable string
	newID      func() string
	now        func() time.Time
	verify     func(path string) (mp3check.Report, error)
}

// Option customizes a Runner.
type Option func(*Runner)

// WithToolRunner routes every ffprobe/ffmpeg call through runner.
func WithToolRunner(runner tool.Runner) Option {
	return func(r *Runner) { r.toolRunner = runner }
}

// WithValidator overrides the media validator.
func WithValidator(v Validator) Option {
	return func(r *Runner) { r.validator = v }
}

// WithProber overrides the stream prober.
func WithProber(p Prober) Option {
	return func(r *Runner) { r.prober = p }
}

// WithEncoder overrides the ffmpeg client.
func WithEncoder(e Encoder) Option {
	return func(r *Runner) { r.encoder = e }
}

// WithRecorder stores every completed non-dry run.
func WithRecorder(rec Recorder) Option {
	return func(r *Runner) { r.recorder = rec }
}

// WithDryRun validates and probes without running ffmpeg or touching the output directory.
func WithDryRun(enabled bool) Option {
	return func(r *Runner) { r.dryRun = enabled }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithIDGenerator replaces the uuid run id source.
func WithIDGenerator(gen func() string) Option {
	return func(r *Runner) { r.newID = gen }
}

// NewRunner wires the default ffprobe/ffmpeg clients for cfg.
func NewRunner(cfg *config.Config, logger *slog.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	r := &Runner{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "pipeline"),
		policy: NewPolicy(cfg.Routing),
		newID:  func() string { return uuid.NewString() },
		now:    time.Now,
		verify: mp3check.VerifyFile,
	}
	if exe, err := os.Executable(); err == nil {
		r.executable = exe
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.validator == nil {
		r.validator = ffprobe.NewValidator(r.toolRunner, cfg.FFprobeBinary(), logging.NewComponentLogger(logger, "ffprobe"))
	}
	if r.prober == nil {
		r.prober = ffprobe.NewProber(r.toolRunner, cfg.FFprobeBinary(), logging.NewComponentLogger(logger, "ffprobe"))
	}
	if r.encoder == nil {
		r.encoder = ffmpeg.NewClient(r.toolRunner, cfg.FFmpegBinary(),
			ffmpeg.WithEncoder(cfg.Transcode.Encoder, cfg.Transcode.Quality))
	}
	return r
}

// Run processes every candidate file in inputDir (cfg.Paths.InputDir when
// empty). The returned error is non-nil only for setup failures (bad input
// directory, lock held, unreadable listing) or when ctx was cancelled; per-file
// and per-stream failures are reported in the Report.
func (r *Runner) Run(ctx context.Context, inputDir string) (Report, error) {
	if strings.TrimSpace(inputDir) == "" {
		inputDir = r.cfg.Paths.InputDir
	}
	absInput, err := filepath.Abs(inputDir)
	if err != nil {
		return Report{}, services.Wrap(services.ErrConfiguration, "run", "resolve input dir", inputDir, err)
	}
	info, err := os.Stat(absInput)
	if err != nil {
		return Report{}, services.Wrap(services.ErrConfiguration, "run", "stat input dir", absInput, err)
	}
	if !info.IsDir() {
		return Report{}, services.Wrap(services.ErrConfiguration, "run", "input dir", absInput+" is not a directory", nil)
	}
	outputDir, err := r.cfg.ResolveOutputDir(absInput)
	if err != nil {
		return Report{}, services.Wrap(services.ErrConfiguration, "run", "resolve output dir", "", err)
	}

	report := Report{
		RunID:     r.newID(),
		InputDir:  absInput,
		OutputDir: outputDir,
		DryRun:    r.dryRun,
		StartedAt: r.now(),
	}
	ctx = services.WithRunID(ctx, report.RunID)
	logger := logging.WithContext(ctx, r.logger)

	if !r.dryRun {
		lock, err := AcquireLock(r.cfg.LockPath())
		if err != nil {
			return report, err
		}
		defer func() {
			if err := lock.Release(); err != nil {
				logger.Warn("failed to release run lock",
					logging.String("lock", lock.Path()),
					logging.Error(err),
					logging.String(logging.FieldEventType, "lock_release_failed"),
					logging.String(logging.FieldErrorHint, "remove the lock file if no tonearm run is active"),
					logging.String(logging.FieldImpact, "next run may report a held lock"),
				)
			}
		}()
	}

	files, err := Discover(absInput, DiscoverOptions{
		ExcludeExtensions: r.cfg.Pipeline.ExcludeExtensions,
		Skip:              []string{outputDir, r.executable},
	})
	if err != nil {
		return report, err
	}
	if !r.dryRun {
		if err := os.MkdirAll(outputDir, 0o755); err != nil {
			return report, services.Wrap(services.ErrConfiguration, "run", "create output dir", outputDir, err)
		}
	}

	logger.Info("batch started",
		logging.String(logging.FieldEventType, "batch_started"),
		logging.String("input_dir", absInput),
		logging.String("output_dir", outputDir),
		logging.Int("candidates", len(files)),
		logging.Bool("dry_run", r.dryRun),
	)

	claims := pathClaims{}
	for _, file := range files {
		if ctx.Err() != nil {
			break
		}
		report.Files = append(report.Files, r.processFile(ctx, file, outputDir, claims))
	}
	report.Interrupted = ctx.Err() != nil
	report.FinishedAt = r.now()

	r.record(ctx, report, logger)

	totals := report.Totals()
	logger.Info("batch finished",
		logging.String(logging.FieldEventType, "batch_finished"),
		logging.Int("files", totals.Files),
		logging.Int("files_skipped", totals.FilesSkipped),
		logging.Int("copied", totals.Copied),
		logging.Int("transcoded", totals.Transcoded),
		logging.Int("fallbacks", totals.Fallbacks),
		logging.Int("failed", totals.Failed),
		logging.Duration("elapsed", report.Duration()),
		logging.Bool("interrupted", report.Interrupted),
	)

	if report.Interrupted {
		return report, fmt.Errorf("run interrupted: %w", ctx.Err())
	}
	return report, nil
}

func (r *Runner) record(ctx context.Context, report Report, logger *slog.Logger) {
	if r.recorder == nil || report.DryRun {
		return
	}
	// An interrupted run is still worth recording.
	if err := r.recorder.RecordRun(context.WithoutCancel(ctx), report.HistoryRun()); err != nil {
		logging.WarnWithContext(logger, "failed to record run history", "history_write_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check state_dir permissions or disable [history]"),
			logging.String(logging.FieldImpact, "run missing from `tonearm history`"),
		)
	}
}

func (r *Runner) processFile(ctx context.Context, file MediaFile, outputDir string, claims pathClaims) FileResult {
	ctx = services.WithFile(ctx, file.Name)
	logger := logging.WithContext(ctx, r.logger)
	result := FileResult{File: file}

	if !r.validator.IsValidMedia(services.WithStage(ctx, "validate"), file.Path) {
		result.Status = StatusInvalid
		result.Reason = "ffprobe could not read the container"
		result.Err = services.Wrap(services.ErrInvalidMedia, "validate", file.Name, result.Reason, nil)
		logging.WarnWithContext(logger, "skipping invalid media file", "file_invalid",
			logging.String(logging.FieldErrorHint, "run `tonearm probe` on the file for ffprobe diagnostics"),
			logging.String(logging.FieldImpact, "file skipped"),
		)
		return result
	}

	source := file.Path
	if r.cfg.Pipeline.Repair && !r.dryRun {
		repaired, cleanup, err := r.repair(ctx, file)
		if err != nil {
			result.Status = StatusRepairFailed
			result.Reason = "remux into mp4 failed"
			result.Err = err
			logging.WarnWithContext(logger, "skipping file that could not be repaired", "repair_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "disable pipeline.repair to process the file as-is"),
				logging.String(logging.FieldImpact, "file skipped"),
			)
			return result
		}
		defer cleanup()
		source = repaired
	}

	probe := r.prober.ProbeAudioStreams(services.WithStage(ctx, "probe"), source)
	if probe.Empty() {
		result.Status = StatusProbeError
		if probe.Reason == ffprobe.ReasonNoStreams {
			result.Status = StatusNoStreams
		}
		result.Reason = probe.Reason.String()
		result.Err = probe.Err
		return result
	}

	result.Status = StatusProcessed
	multi := len(probe.Streams) > 1
	for _, stream := range probe.Streams {
		if ctx.Err() != nil {
			result.Status = StatusInterrupted
			break
		}
		result.Artifacts = append(result.Artifacts, r.processStream(ctx, source, file, stream, multi, outputDir, claims))
	}
	return result
}

func (r *Runner) repair(ctx context.Context, file MediaFile) (string, func(), error) {
	dir, err := os.MkdirTemp("", "tonearm-repair-*")
	if err != nil {
		return "", nil, fmt.Errorf("create repair dir: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(dir) }
	target := filepath.Join(dir, file.Base+".mp4")
	if err := r.encoder.Repair(services.WithStage(ctx, "repair"), file.Path, target); err != nil {
		cleanup()
		return "", nil, err
	}
	return target, cleanup, nil
}

func (r *Runner) processStream(ctx context.Context, source string, file MediaFile, stream ffprobe.AudioStream, multi bool, outputDir string, claims pathClaims) Artifact {
	ctx = services.WithStreamIndex(ctx, stream.Index)
	logger := logging.WithContext(ctx, r.logger)

	decision := r.policy.Decide(stream)
	artifact := Artifact{
		Route:       decision.Route,
		StreamIndex: stream.Index,
		Codec:       stream.Codec,
		Reason:      decision.Reason,
	}
	decisionAttrs := logging.DecisionAttrs("audio_route", decision.Route.String(), decision.Reason)
	decisionAttrs = append(decisionAttrs, logging.String("codec", codecLabel(stream)))
	logger.Info("audio route selected", logging.Args(decisionAttrs...)...)

	target := r.claimTarget(claims, ArtifactPath(outputDir, file.Base, stream.Index, multi, decision.Extension), file, logger)
	if r.dryRun {
		artifact.Path = target
		artifact.Outcome = OutcomePlanned
		return artifact
	}
	if r.keepExisting(target, &artifact, logger) {
		return artifact
	}

	if decision.Route.IsCopy() {
		copyTarget := target
		err := r.encoder.Extract(services.WithStage(ctx, "extract"), source, stream.Index, copyTarget, ffmpeg.ExtractOptions{ADTSToASC: decision.ADTSToASC})
		if err == nil {
			if size, ok := fileutil.Size(copyTarget); ok && size > 0 {
				artifact.Path = copyTarget
				artifact.Size = size
				artifact.Outcome = OutcomeCopied
				logger.Info("stream copied",
					logging.String(logging.FieldEventType, "stream_copied"),
					logging.String("output", filepath.Base(copyTarget)),
					logging.Int64("size_bytes", size),
				)
				return artifact
			}
			err = services.Wrap(services.ErrExtraction, "extract", fmt.Sprintf("stream %d", stream.Index), "ffmpeg produced an empty file", nil)
		}
		r.discardFailedCopy(copyTarget, logger)
		artifact.CopyErr = err

		if !services.Recoverable(err) {
			artifact.Outcome = OutcomeFailed
			artifact.Err = err
			logging.ErrorWithContext(logger, "stream copy interrupted", "stream_copy_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "stream not processed"),
			)
			return artifact
		}

		logging.WarnWithContext(logger, "stream copy failed; transcoding to mp3", "stream_copy_fallback",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "add the codec to routing.transcode_codecs to skip the copy attempt"),
			logging.String(logging.FieldImpact, "stream re-encoded instead of copied"),
		)
		artifact.FellBack = true
		target = r.claimTarget(claims, ArtifactPath(outputDir, file.Base, stream.Index, multi, mp3Extension), file, logger)
		// A native mp3 copy shares its path with the fallback; the failed copy must not count as existing.
		if target != copyTarget && r.keepExisting(target, &artifact, logger) {
			return artifact
		}
	}

	r.transcode(ctx, source, stream.Index, target, &artifact, logger)
	return artifact
}

func (r *Runner) transcode(ctx context.Context, source string, index int, target string, artifact *Artifact, logger *slog.Logger) {
	err := r.encoder.TranscodeMP3(services.WithStage(ctx, "transcode"), source, index, target)
	size, _ := fileutil.Size(target)
	if err == nil && size == 0 {
		err = services.Wrap(services.ErrTranscode, "transcode", fmt.Sprintf("stream %d", index), "ffmpeg produced an empty file", nil)
	}
	if err == nil && r.cfg.Transcode.Verify {
		check, verr := r.verify(target)
		if verr != nil {
			if rmErr := fileutil.RemoveQuietly(target); rmErr != nil {
				logger.Debug("failed to remove unverifiable mp3", logging.Error(rmErr))
			}
			err = services.Wrap(services.ErrTranscode, "verify", fmt.Sprintf("stream %d", index), "", verr)
		} else {
			artifact.Duration = check.Duration
		}
	}
	if err != nil {
		r.removeEmpty(target, logger)
		artifact.Outcome = OutcomeFailed
		artifact.Err = err
		logging.ErrorWithContext(logger, "transcode failed", "transcode_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run ffmpeg on the file by hand to see the encoder error"),
		)
		return
	}

	artifact.Path = target
	artifact.Size = size
	artifact.Outcome = OutcomeTranscoded
	logger.Info("stream transcoded to mp3",
		logging.String(logging.FieldEventType, "stream_transcoded"),
		logging.String("output", filepath.Base(target)),
		logging.Int64("size_bytes", size),
		logging.Bool("fallback", artifact.FellBack),
		logging.Duration("audio_duration", artifact.Duration),
	)
}

// keepExisting reports true (and marks the artifact skipped) when
// skip_existing is on and target already holds data.
func (r *Runner) keepExisting(target string, artifact *Artifact, logger *slog.Logger) bool {
	if !r.cfg.Pipeline.SkipExisting {
		return false
	}
	size, ok := fileutil.Size(target)
	if !ok || size == 0 {
		return false
	}
	artifact.Path = target
	artifact.Size = size
	artifact.Outcome = OutcomeSkipped
	logger.Info("artifact already exists",
		logging.String(logging.FieldEventType, "artifact_skipped"),
		logging.String("output", filepath.Base(target)),
	)
	return true
}

// claimTarget reserves target for file, renaming it when another input of this
// run already writes there.
func (r *Runner) claimTarget(claims pathClaims, target string, file MediaFile, logger *slog.Logger) string {
	claimed := claims.claim(target, file.Path, file.Ext)
	if claimed != target {
		logging.WarnWithContext(logger, "artifact name already taken in this run; renaming", "artifact_renamed",
			logging.String("wanted", filepath.Base(target)),
			logging.String("output", filepath.Base(claimed)),
			logging.String(logging.FieldErrorHint, "give inputs that share a base name distinct names"),
			logging.String(logging.FieldImpact, "artifact written under a qualified name"),
		)
	}
	return claimed
}

// discardFailedCopy removes whatever a failed copy left at path, so a partial
// file is never mistaken for a finished artifact on a later run.
func (r *Runner) discardFailedCopy(path string, logger *slog.Logger) {
	size, ok := fileutil.Size(path)
	if !ok {
		return
	}
	if size == 0 {
		r.removeEmpty(path, logger)
		return
	}
	if err := fileutil.RemoveQuietly(path); err != nil {
		logging.WarnWithContext(logger, "failed to remove partial copy", "cleanup_failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check output_dir permissions"),
			logging.String(logging.FieldImpact, "partial file left in output directory"),
		)
		return
	}
	logger.Debug("removed partial copy", logging.String("path", path), logging.Int64("size_bytes", size))
}

func (r *Runner) removeEmpty(path string, logger *slog.Logger) {
	removed, err := fileutil.RemoveIfEmpty(path)
	if err != nil {
		logging.WarnWithContext(logger, "failed to remove empty artifact", "cleanup_failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check output_dir permissions"),
			logging.String(logging.FieldImpact, "zero-byte file left in output directory"),
		)
		return
	}
	if removed {
		logger.Debug("removed empty artifact", logging.String("path", path))
	}
}

func codecLabel(stream ffprobe.AudioStream) string {
	if !stream.HasCodec {
		return "unknown"
	}
	return stream.Codec
}
