package pipeline_test

import (
	"os"
	"path/filepath"
	"testing"

	"tonearm/internal/pipeline"
)

func TestDiscoverFiltersEntries(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.mkv", "a.mp4", ".hidden.mp4", "convert.go", "tonearm.toml", "notes.TOML", "tool"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "output"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "subdir"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(filepath.Join(dir, "subdir"), filepath.Join(dir, "link")); err != nil {
		t.Fatal(err)
	}

	files, err := pipeline.Discover(dir, pipeline.DiscoverOptions{
		ExcludeExtensions: []string{".go", ".toml"},
		Skip:              []string{filepath.Join(dir, "output"), filepath.Join(dir, "tool")},
	})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	var names []string
	for _, f := range files {
		names = append(names, f.Name)
	}
	if len(names) != 2 || names[0] != "a.mp4" || names[1] != "b.mkv" {
		t.Fatalf("unexpected discovery: %v", names)
	}
	if files[0].Base != "a" || files[0].Ext != ".mp4" || files[0].Path != filepath.Join(dir, "a.mp4") {
		t.Fatalf("unexpected media file: %+v", files[0])
	}
}

func TestDiscoverMissingDir(t *testing.T) {
	if _, err := pipeline.Discover(filepath.Join(t.TempDir(), "missing"), pipeline.DiscoverOptions{}); err == nil {
		t.Fatal("expected error for missing directory")
	}
}
