package preflight

import (
	"tonearm/internal/config"
)

// MinFreeBytes is the free space below which the output check fails.
const MinFreeBytes = 256 << 20

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll checks the input, output, and state directories for a run over inputDir.
func RunAll(cfg *config.Config, inputDir string) []Result {
	if cfg == nil {
		return nil
	}
	if inputDir == "" {
		inputDir = cfg.Paths.InputDir
	}

	results := []Result{CheckDirectoryReadable("Input directory", inputDir)}

	if outputDir, err := cfg.ResolveOutputDir(inputDir); err != nil {
		results = append(results, Result{Name: "Output directory", Detail: err.Error()})
	} else {
		results = append(results,
			CheckCreatableDirectory("Output directory", outputDir),
			CheckFreeSpace("Output free space", outputDir, MinFreeBytes),
		)
	}

	results = append(results, CheckCreatableDirectory("State directory", cfg.Paths.StateDir))
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
