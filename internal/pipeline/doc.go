// Package pipeline drives a batch over one input directory.
//
// For every discovered file it runs the validator gate, probes the audio
// streams, routes each stream to a copy or an MP3 transcode, and collects the
// per-file and per-stream outcomes into a Report. Files are handled strictly
// one after another and no failure stops the batch; only context
// cancellation ends a run early.
//
// A failed copy is retried exactly once as a transcode to a separate .mp3
// path. Zero-byte files left behind by a failed ffmpeg call are deleted so the
// output directory only ever holds real artifacts.
package pipeline
