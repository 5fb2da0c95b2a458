// Package explorer implements traversal-safe file exploration rooted at
// the active bundle's extraction directory (C1 Path Guard, C8 File
// Explorer).
package explorer

import (
	"path/filepath"
	"strings"

	"github.com/replicatedhq/bundle-mcp/pkg/mcperr"
)

// Resolve joins a bundle-relative path onto root, rejecting it outright if
// it carries a ".." segment rather than silently neutralizing it, per
// spec.md §4.1: traversal must fail path-not-safe before any filesystem
// access, not collapse to some other path under root.
func Resolve(root, path string) (string, error) {
	if containsDotDot(path) {
		return "", mcperr.New(mcperr.PathNotSafe, "path contains a '..' segment").WithField("path", path)
	}

	clean := filepath.Clean("/" + path)
	joined := filepath.Join(root, clean)

	rootWithSep := root
	if !strings.HasSuffix(rootWithSep, string(filepath.Separator)) {
		rootWithSep += string(filepath.Separator)
	}
	if joined != root && !strings.HasPrefix(joined, rootWithSep) {
		return "", mcperr.New(mcperr.PathNotSafe, "path escapes the bundle root").WithField("path", path)
	}
	return joined, nil
}

// containsDotDot reports whether any slash-separated segment of path is
// literally "..", checked before cleaning so a traversal attempt is
// rejected rather than collapsed.
func containsDotDot(path string) bool {
	for _, seg := range strings.Split(filepath.ToSlash(path), "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}

// Rel returns path relative to root with a leading slash, the form every
// File Explorer entry reports its path in.
func Rel(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	if rel == "." {
		return "/"
	}
	return "/" + filepath.ToSlash(rel)
}
