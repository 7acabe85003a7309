package history

import "time"

// Run is one recorded `tonearm run` invocation.
type Run struct {
	ID          string
	InputDir    string
	OutputDir   string
	StartedAt   time.Time
	FinishedAt  time.Time
	Interrupted bool

	FilesTotal   int
	FilesSkipped int
	Copied       int
	Transcoded   int
	Fallbacks    int
	Failed       int
	BytesWritten int64

	Files     []File
	Artifacts []Artifact
}

// Duration returns the wall-clock length of the run.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.Before(r.StartedAt) {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// File records the per-file status of a run.
type File struct {
	Name   string
	Status string
	Reason string
}

// Artifact records the outcome for one audio stream.
type Artifact struct {
	FileName    string
	StreamIndex int
	Codec       string
	Route       string
	Outcome     string
	Path        string
	SizeBytes   int64
	Error       string
}
