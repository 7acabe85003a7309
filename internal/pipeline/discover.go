package pipeline

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"tonearm/internal/services"
)

// MediaFile is a candidate input discovered in the input directory.
type MediaFile struct {
	Path string
	Name string
	Base string
	Ext  string
}

// DiscoverOptions controls which directory entries count as candidates.
type DiscoverOptions struct {
	// ExcludeExtensions are lowercase, dot-prefixed extensions to ignore.
	ExcludeExtensions []string
	// Skip lists absolute paths never treated as input (the output directory
	// and the running executable).
	Skip []string
}

// Discover lists regular files in dir sorted by name. Hidden files,
// directories (including symlinks to them), excluded extensions, and skipped
// paths are left out.
func Discover(dir string, opts DiscoverOptions) ([]MediaFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "discover", "read input dir", dir, err)
	}

	skip := make(map[string]struct{}, len(opts.Skip))
	for _, path := range opts.Skip {
		if path = strings.TrimSpace(path); path != "" {
			skip[filepath.Clean(path)] = struct{}{}
		}
	}

	var files []MediaFile
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		path := filepath.Join(dir, name)
		if _, skipped := skip[filepath.Clean(path)]; skipped {
			continue
		}
		// Stat follows symlinks so a link to a directory is rejected here.
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		ext := filepath.Ext(name)
		if slices.Contains(opts.ExcludeExtensions, strings.ToLower(ext)) {
			continue
		}
		files = append(files, MediaFile{
			Path: path,
			Name: name,
			Base: strings.TrimSuffix(name, ext),
			Ext:  ext,
		})
	}
	return files, nil
}
