package testsupport

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"tonearm/internal/media/tool"
)

// Call records one invocation seen by FakeRunner.
type Call struct {
	Binary string
	Args   []string
}

// Kind infers the operation from the argument list.
func (c Call) Kind() tool.Kind {
	switch {
	case slices.Contains(c.Args, "-show_format"):
		return tool.KindInspect
	case c.argAfter("-select_streams") == "v:0":
		return tool.KindProbeVideo
	case c.argAfter("-select_streams") == "a":
		return tool.KindProbeAudio
	case c.argAfter("-c:a") == "copy":
		return tool.KindCopyExtract
	case c.argAfter("-f") == "mp4":
		return tool.KindRepair
	default:
		return tool.KindTranscode
	}
}

// Input returns the media path the call operates on.
func (c Call) Input() string {
	if in := c.argAfter("-i"); in != "" {
		return in
	}
	if len(c.Args) == 0 {
		return ""
	}
	return c.Args[len(c.Args)-1]
}

// Output returns the destination path of an ffmpeg call.
func (c Call) Output() string {
	if c.Kind().UsesProbe() || len(c.Args) == 0 {
		return ""
	}
	return c.Args[len(c.Args)-1]
}

// StreamIndex returns the mapped stream selector (e.g. "0:1"), or "".
func (c Call) StreamIndex() string {
	return c.argAfter("-map")
}

// Has reports whether the argument list contains value.
func (c Call) Has(value string) bool {
	return slices.Contains(c.Args, value)
}

func (c Call) argAfter(flag string) string {
	for i := 0; i < len(c.Args)-1; i++ {
		if c.Args[i] == flag {
			return c.Args[i+1]
		}
	}
	return ""
}

// Response scripts what FakeRunner returns for one call.
type Response struct {
	Result tool.Result
	Err    error
	// Output, when non-nil, is written to the call's output path (empty slice
	// leaves a zero-byte file).
	Output []byte
}

// FakeRunner is a scripted tool.Runner. Handler decides each response; a nil
// Handler answers every call with exit status zero and no output.
type FakeRunner struct {
	Handler func(Call) Response

	mu    sync.Mutex
	calls []Call
}

// Run implements tool.Runner.
func (f *FakeRunner) Run(_ context.Context, binary string, args []string) (tool.Result, error) {
	call := Call{Binary: binary, Args: append([]string(nil), args...)}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()

	if f.Handler == nil {
		return tool.Result{}, nil
	}
	resp := f.Handler(call)
	if resp.Output != nil {
		if out := call.Output(); out != "" {
			if err := os.MkdirAll(filepath.Dir(out), 0o755); err == nil {
				_ = os.WriteFile(out, resp.Output, 0o644)
			}
		}
	}
	return resp.Result, resp.Err
}

// Calls returns a copy of every recorded call in order.
func (f *FakeRunner) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallsOfKind filters recorded calls by operation.
func (f *FakeRunner) CallsOfKind(kind tool.Kind) []Call {
	var out []Call
	for _, call := range f.Calls() {
		if call.Kind() == kind {
			out = append(out, call)
		}
	}
	return out
}

var _ tool.Runner = (*FakeRunner)(nil)
