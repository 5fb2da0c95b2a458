package bundle

import (
	"archive/tar"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mholt/archiver/v3"

	"github.com/replicatedhq/bundle-mcp/pkg/config"
)

var archiveSuffixes = []string{".tar.gz", ".tgz"}

// Registry enumerates local bundle archives for list_available_bundles
// (C4), peeking into each archive's top-level entries without extracting
// it fully.
type Registry struct {
	cfg *config.Config
}

// NewRegistry builds a Registry scoped to cfg's bundle-storage directory.
func NewRegistry(cfg *config.Config) *Registry {
	return &Registry{cfg: cfg}
}

// List scans the bundle-storage directory non-recursively, per spec.md §4.4.
func (r *Registry) List() ([]LocalEntry, error) {
	dir, err := r.cfg.EnsureBundleStorageDir()
	if err != nil {
		return nil, err
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	entries := make([]LocalEntry, 0, len(files))
	for _, f := range files {
		if f.IsDir() || !hasArchiveSuffix(f.Name()) {
			continue
		}
		path := filepath.Join(dir, f.Name())
		info, err := f.Info()
		if err != nil {
			continue
		}
		entries = append(entries, inspect(path, info.Size(), info.ModTime()))
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Modified.After(entries[j].Modified)
	})
	return entries, nil
}

func hasArchiveSuffix(name string) bool {
	lower := strings.ToLower(name)
	for _, suf := range archiveSuffixes {
		if strings.HasSuffix(lower, suf) {
			return true
		}
	}
	return false
}

// inspect opens an archive lazily (archiver.Walk never extracts to disk)
// and checks its fingerprint, per spec.md §4.4. Errors opening an
// individual archive mark it invalid with a reason rather than aborting
// the whole scan.
func inspect(path string, size int64, modified time.Time) LocalEntry {
	top, secondLevel, err := walkTarNames(path)
	if err != nil {
		return LocalEntry{Path: path, Size: size, Modified: modified, Valid: false, Reason: "could not read archive: " + err.Error()}
	}

	ok := fingerprintNames(top, func(wrapper string) []string {
		return secondLevel[wrapper]
	})
	if !ok {
		return LocalEntry{Path: path, Size: size, Modified: modified, Valid: false, Reason: "missing cluster-info/cluster-resources/kubernetes layout"}
	}
	return LocalEntry{Path: path, Size: size, Modified: modified, Valid: true}
}

// walkTarNames uses archiver.Walk to list an archive's top-level entry
// names and, for each top-level name, its immediate children — enough to
// evaluate the one-level-of-wrapping fingerprint rule without extracting
// anything.
func walkTarNames(path string) (top []string, secondLevel map[string][]string, err error) {
	seenTop := map[string]bool{}
	seenSecond := map[string]map[string]bool{}
	secondLevel = map[string][]string{}

	walkErr := archiver.Walk(path, func(f archiver.File) error {
		hdr, ok := f.Header.(*tar.Header)
		if !ok {
			return nil
		}
		parts := strings.SplitN(strings.Trim(hdr.Name, "/"), "/", 3)
		if len(parts) == 0 || parts[0] == "" {
			return nil
		}
		if !seenTop[parts[0]] {
			seenTop[parts[0]] = true
			top = append(top, parts[0])
		}
		if len(parts) >= 2 {
			if seenSecond[parts[0]] == nil {
				seenSecond[parts[0]] = map[string]bool{}
			}
			if !seenSecond[parts[0]][parts[1]] {
				seenSecond[parts[0]][parts[1]] = true
				secondLevel[parts[0]] = append(secondLevel[parts[0]], parts[1])
			}
		}
		return nil
	})
	if walkErr != nil {
		return nil, nil, walkErr
	}
	return top, secondLevel, nil
}
