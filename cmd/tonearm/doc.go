// Package main hosts the tonearm CLI entrypoint and command graph.
//
// The Cobra command tree resolves configuration once, builds the structured
// logger, and hands work to the internal packages: `run` drives the batch
// pipeline, `probe` shows per-stream routing for individual files, `deps`
// reports tool availability and directory preflight, and `history` reads the
// SQLite audit log.
//
// Keep this package thin. New behaviour belongs in internal/pipeline or the
// media packages first and is surfaced here through flags and tables.
package main
