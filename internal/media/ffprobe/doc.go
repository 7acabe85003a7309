// Package ffprobe provides typed wrappers around ffprobe JSON output.
//
// Key types:
//   - Validator: gates files on whether ffprobe can read a container
//   - Prober: lists audio streams as a tagged StreamsResult
//   - Result: full inspection output used by `tonearm probe`
//
// Every invocation goes through a tool.Runner, so tests script ffprobe
// responses without a real binary.
package ffprobe
