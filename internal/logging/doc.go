// Package logging assembles structured slog loggers and formatting helpers used
// across tonearm.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so pipeline code can tag log
// lines with run IDs, file names, and stream indices. The console handler lifts
// those into the line header; the JSON handler keeps them as plain keys. The
// package also provides a no-op logger for tests and wiring code that cannot
// fail.
package logging
