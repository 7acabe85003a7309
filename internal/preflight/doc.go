// Package preflight provides readiness checks for the filesystem paths a
// tonearm run reads and writes.
//
// The CLI "tonearm deps" command prints every result; "tonearm run" uses
// RunAll to fail fast when the output directory cannot be written.
package preflight
