package pipeline

import (
	"time"

	"tonearm/internal/history"
	"tonearm/internal/services"
)

// FileStatus is the per-file result of a run.
type FileStatus string

const (
	StatusProcessed    FileStatus = "processed"
	StatusInvalid      FileStatus = "invalid"
	StatusNoStreams    FileStatus = "no_audio_streams"
	StatusProbeError   FileStatus = "probe_error"
	StatusRepairFailed FileStatus = "repair_failed"
	StatusInterrupted  FileStatus = "interrupted"
)

// Skipped reports whether the file produced no stream work at all.
func (s FileStatus) Skipped() bool {
	return s != StatusProcessed
}

// Outcome is the per-stream result of a run.
type Outcome string

const (
	OutcomeCopied     Outcome = "copied"
	OutcomeTranscoded Outcome = "transcoded"
	OutcomeFailed     Outcome = "failed"
	OutcomeSkipped    Outcome = "skipped"
	OutcomePlanned    Outcome = "planned"
)

// Artifact describes what happened to one audio stream.
type Artifact struct {
	Path        string
	Route       Route
	StreamIndex int
	Codec       string
	Outcome     Outcome
	Reason      string
	Size        int64
	// FellBack is set when a failed copy was retried as a transcode.
	FellBack bool
	// Duration is the decoded MP3 length when verification ran.
	Duration time.Duration
	CopyErr  error
	Err      error
}

// FileResult collects the outcome of one input file.
type FileResult struct {
	File      MediaFile
	Status    FileStatus
	Reason    string
	Err       error
	Artifacts []Artifact
}

// Report is the result of one batch run.
type Report struct {
	RunID       string
	InputDir    string
	OutputDir   string
	DryRun      bool
	Interrupted bool
	StartedAt   time.Time
	FinishedAt  time.Time
	Files       []FileResult
}

// Totals are the aggregate counters of a Report.
type Totals struct {
	Files        int
	FilesSkipped int
	Streams      int
	Copied       int
	Transcoded   int
	Fallbacks    int
	Failed       int
	Skipped      int
	Planned      int
	Bytes        int64
}

// Totals aggregates per-file and per-stream outcomes.
func (r Report) Totals() Totals {
	var t Totals
	t.Files = len(r.Files)
	for _, file := range r.Files {
		if file.Status.Skipped() {
			t.FilesSkipped++
		}
		for _, artifact := range file.Artifacts {
			t.Streams++
			switch artifact.Outcome {
			case OutcomeCopied:
				t.Copied++
				t.Bytes += artifact.Size
			case OutcomeTranscoded:
				t.Transcoded++
				t.Bytes += artifact.Size
			case OutcomeFailed:
				t.Failed++
			case OutcomeSkipped:
				t.Skipped++
			case OutcomePlanned:
				t.Planned++
			}
			if artifact.FellBack {
				t.Fallbacks++
			}
		}
	}
	return t
}

// Duration returns the wall-clock length of the run.
func (r Report) Duration() time.Duration {
	if r.FinishedAt.Before(r.StartedAt) {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// HistoryRun converts the report into an audit log record.
func (r Report) HistoryRun() history.Run {
	totals := r.Totals()
	run := history.Run{
		ID:           r.RunID,
		InputDir:     r.InputDir,
		OutputDir:    r.OutputDir,
		StartedAt:    r.StartedAt,
		FinishedAt:   r.FinishedAt,
		Interrupted:  r.Interrupted,
		FilesTotal:   totals.Files,
		FilesSkipped: totals.FilesSkipped,
		Copied:       totals.Copied,
		Transcoded:   totals.Transcoded,
		Fallbacks:    totals.Fallbacks,
		Failed:       totals.Failed,
		BytesWritten: totals.Bytes,
	}
	for _, file := range r.Files {
		run.Files = append(run.Files, history.File{
			Name:   file.File.Name,
			Status: string(file.Status),
			Reason: file.Reason,
		})
		for _, artifact := range file.Artifacts {
			rec := history.Artifact{
				FileName:    file.File.Name,
				StreamIndex: artifact.StreamIndex,
				Codec:       artifact.Codec,
				Route:       artifact.Route.String(),
				Outcome:     string(artifact.Outcome),
				Path:        artifact.Path,
				SizeBytes:   artifact.Size,
			}
			if artifact.Err != nil {
				rec.Error = services.Classify(artifact.Err) + ": " + artifact.Err.Error()
			}
			run.Artifacts = append(run.Artifacts, rec)
		}
	}
	return run
}
