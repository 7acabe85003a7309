// Package tool isolates the ffprobe/ffmpeg command-line contract.
//
// A Spec names one external operation and Args renders its exact argument
// list. Runner executes a binary and reports exit status, stdout, and stderr
// without interpreting them; callers decide what success means. Tests swap in
// a scripted Runner instead of real binaries.
package tool
