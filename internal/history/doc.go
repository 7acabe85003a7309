// Package history keeps an append-only SQLite audit log of batch runs.
//
// The pipeline only writes to it. Nothing read back from the log changes how
// a later run routes or skips files; `tonearm history` is the only reader.
package history
