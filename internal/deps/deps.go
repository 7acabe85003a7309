package deps

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"tonearm/internal/config"
	"tonearm/internal/media/tool"
)

// Requirement defines an external dependency tonearm relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Path        string
	Description string
	Optional    bool
	Available   bool
	Version     string
	Detail      string
}

// MediaTools lists the binaries a run needs.
func MediaTools(cfg *config.Config) []Requirement {
	return []Requirement{
		{
			Name:        "FFprobe",
			Command:     cfg.FFprobeBinary(),
			Description: "Validates containers and lists audio streams",
		},
		{
			Name:        "FFmpeg",
			Command:     cfg.FFmpegBinary(),
			Description: "Copies and transcodes audio streams",
		},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		resolved, err := exec.LookPath(cmd)
		if err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Path = resolved
		status.Available = true
		results = append(results, status)
	}
	return results
}

// AttachVersions fills Version for available binaries by running `<bin> -version`.
// Version lookup failures are recorded in Detail but do not flip Available.
func AttachVersions(ctx context.Context, runner tool.Runner, statuses []Status) []Status {
	if runner == nil {
		runner = tool.ExecRunner{}
	}
	for i := range statuses {
		if !statuses[i].Available {
			continue
		}
		version, err := probeVersion(ctx, runner, statuses[i].Path)
		if err != nil {
			statuses[i].Detail = err.Error()
			continue
		}
		statuses[i].Version = version
	}
	return statuses
}

// probeVersion returns the version token from the first banner line, e.g.
// "6.1.1" from "ffmpeg version 6.1.1 Copyright (c) 2000-2023".
func probeVersion(ctx context.Context, runner tool.Runner, binary string) (string, error) {
	res, err := runner.Run(ctx, binary, []string{"-hide_banner", "-version"})
	if err != nil {
		return "", err
	}
	if !res.Success() {
		return "", fmt.Errorf("%s -version exited with status %d", binary, res.ExitCode)
	}
	scanner := bufio.NewScanner(bytes.NewReader(res.Stdout))
	if !scanner.Scan() {
		return "", fmt.Errorf("%s -version printed nothing", binary)
	}
	fields := strings.Fields(scanner.Text())
	for i := 0; i+1 < len(fields); i++ {
		if fields[i] == "version" {
			return fields[i+1], nil
		}
	}
	return strings.TrimSpace(scanner.Text()), nil
}
