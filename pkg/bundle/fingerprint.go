package bundle

import (
	"os"
	"path/filepath"
)

// fingerprintNames reports whether a set of top-level names (from an
// archive listing or a directory read) satisfies the bundle fingerprint,
// either directly or after peeling off a single wrapping directory name
// that itself isn't one of the fingerprint directories.
func fingerprintNames(names []string, peek func(wrapper string) []string) bool {
	if hasFingerprintDir(names) {
		return true
	}
	// Accept one level of wrapping: a single top-level directory entry whose
	// own children we must inspect.
	if len(names) == 1 && peek != nil {
		return hasFingerprintDir(peek(names[0]))
	}
	return false
}

func hasFingerprintDir(names []string) bool {
	for _, n := range names {
		if fingerprintDirs[filepath.Clean(n)] {
			return true
		}
	}
	return false
}

// DirFingerprintOK checks an extracted directory tree against spec.md §3's
// fingerprint, accepting one level of wrapping directory.
func DirFingerprintOK(root string) bool {
	entries, err := os.ReadDir(root)
	if err != nil {
		return false
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return fingerprintNames(names, func(wrapper string) []string {
		inner, err := os.ReadDir(filepath.Join(root, wrapper))
		if err != nil {
			return nil
		}
		innerNames := make([]string, 0, len(inner))
		for _, e := range inner {
			innerNames = append(innerNames, e.Name())
		}
		return innerNames
	})
}
