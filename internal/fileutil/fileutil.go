package fileutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// Size returns the size of a regular file, or 0 and false when path is
// missing or not a regular file.
func Size(path string) (int64, bool) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return 0, false
	}
	return info.Size(), true
}

// RemoveIfEmpty deletes path when it is a zero-byte regular file. It reports
// whether a file was removed; a missing path is not an error.
func RemoveIfEmpty(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() || info.Size() > 0 {
		return false, nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("remove empty %s: %w", path, err)
	}
	return true, nil
}

// RemoveQuietly deletes path and ignores a missing file.
func RemoveQuietly(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
