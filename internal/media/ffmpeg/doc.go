// Package ffmpeg runs the three ffmpeg operations tonearm needs: copying an
// audio stream into its own container, transcoding a stream to MP3, and
// remuxing a damaged container into MP4 before probing.
//
// Failures wrap the services markers: ErrExtraction for copies, ErrTranscode
// for transcodes, and additionally ErrToolInvocation when ffmpeg could not be
// started at all. Every copy failure except cancellation is recoverable.
package ffmpeg
