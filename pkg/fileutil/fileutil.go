// Package fileutil provides file system utility functions.
package fileutil

import (
	"fmt"
	"path"
	"strings"

	"github.com/spf13/afero"
)

// FindFileCaseInsensitive searches for a file with the given name in the specified directory.
// The search is case-insensitive: mission data from the original release mixes
// MISSION.INI, mission.ini and Mission.Ini freely.
//
// Parameters:
//   - fsys: The file system to search in
//   - dir: The directory to search in
//   - filename: The filename to search for (case-insensitive)
//
// Returns:
//   - string: The actual path to the file if found
//   - error: Error if the file is not found or if there's an I/O error
func FindFileCaseInsensitive(fsys afero.Fs, dir, filename string) (string, error) {
	entries, err := afero.ReadDir(fsys, dir)
	if err != nil {
		return "", fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(entry.Name(), filename) {
			return path.Join(dir, entry.Name()), nil
		}
	}

	return "", fmt.Errorf("file not found: %s (searched in %s)", filename, dir)
}
