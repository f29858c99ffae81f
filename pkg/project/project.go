// Package project resolves the project base directory of spec.md §6:
// "the nearest ancestor of the CWD containing either a '.${app}'
// directory or a glob match of Project.Base.Glob." Every relative
// PathName in the module is anchored to this directory.
package project

import (
	"fmt"
	"os"
	"path/filepath"
)

// AppDirName is the "${app}" token spec.md §6 parameterizes; this
// distribution's core is named "ao".
const AppDirName = ".ao"

// FindBase walks upward from start looking for a directory containing
// AppDirName or matching globPattern (a shell glob evaluated against
// each candidate ancestor's own entries, e.g. "*.sln"). Returns the
// first ancestor (inclusive of start) that matches, or an error if the
// filesystem root is reached without a match.
func FindBase(start string, globPattern string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("project: resolving %q: %w", start, err)
	}
	for {
		if hasAppDir(dir) || (globPattern != "" && matchesGlob(dir, globPattern)) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("project: no %s directory or %q match found above %q", AppDirName, globPattern, start)
		}
		dir = parent
	}
}

func hasAppDir(dir string) bool {
	fi, err := os.Stat(filepath.Join(dir, AppDirName))
	return err == nil && fi.IsDir()
}

func matchesGlob(dir, pattern string) bool {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	return err == nil && len(matches) > 0
}
