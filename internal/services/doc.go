// Package services defines shared utilities consumed by the pipeline steps and
// the external tool wrappers.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, file names, stream indices, and step
//     names for logging.
//   - Structured error markers plus the Wrap helper that keep the failure
//     taxonomy (invalid media, probe parse, extraction, transcode, tool
//     invocation) classifiable with errors.Is.
//
// Use these helpers when wiring new steps so failure containment and
// observability stay uniform across the pipeline.
package services
