package explorer

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/gobwas/glob"

	"github.com/replicatedhq/bundle-mcp/pkg/format"
	"github.com/replicatedhq/bundle-mcp/pkg/mcperr"
)

const sniffSize = 4096

// RootFunc resolves the active bundle's extraction root, failing
// no-bundle-active when none is active.
type RootFunc func() (string, error)

// Explorer implements list/read/grep (C8) scoped to the active bundle
// root via the Path Guard (C1).
type Explorer struct {
	getRoot        RootFunc
	maxDepth       int
	maxEntries     int
	defaultMaxResults     int
	defaultPerFile int
	defaultFiles   int
}

// New builds an Explorer. maxDepth<=0 means unbounded; maxEntries<=0 means
// a large but finite default.
func New(getRoot RootFunc, maxDepth, maxEntries int) *Explorer {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	return &Explorer{
		getRoot:        getRoot,
		maxDepth:       maxDepth,
		maxEntries:     maxEntries,
		defaultMaxResults: 1000,
		defaultPerFile: 5,
		defaultFiles:   10,
	}
}

func (e *Explorer) resolve(path string) (string, string, error) {
	root, err := e.getRoot()
	if err != nil {
		return "", "", err
	}
	full, err := Resolve(root, path)
	if err != nil {
		return "", "", err
	}
	return root, full, nil
}

// List produces the entries of path, per spec.md §4.8.
func (e *Explorer) List(path string, recursive bool) (*format.FileListResult, error) {
	root, full, err := e.resolve(path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, mcperr.New(mcperr.PathNotFound, "path does not exist").WithField("path", path)
		}
		return nil, mcperr.Wrap(mcperr.Internal, err, "statting path")
	}
	if !info.IsDir() {
		return nil, mcperr.New(mcperr.NotADirectory, "path is not a directory").WithField("path", path)
	}

	var entries []format.FileEntry
	if recursive {
		entries, err = e.walkRecursive(root, full)
	} else {
		entries, err = e.listOneLevel(root, full)
	}
	if err != nil {
		return nil, err
	}
	return &format.FileListResult{Entries: entries, BasePath: Rel(root, full)}, nil
}

func (e *Explorer) listOneLevel(root, dir string) ([]format.FileEntry, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, mcperr.Wrap(mcperr.Internal, err, "reading directory")
	}
	entries := make([]format.FileEntry, 0, len(dirEntries))
	for _, de := range dirEntries {
		entries = append(entries, e.toFileEntry(root, filepath.Join(dir, de.Name()), de))
	}
	sortEntries(entries)
	return entries, nil
}

func (e *Explorer) walkRecursive(root, start string) ([]format.FileEntry, error) {
	var entries []format.FileEntry
	baseDepth := strings.Count(filepath.Clean(start), string(filepath.Separator))

	err := filepath.WalkDir(start, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if p == start {
			return nil
		}
		if e.maxDepth > 0 {
			depth := strings.Count(filepath.Clean(p), string(filepath.Separator)) - baseDepth
			if depth > e.maxDepth {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}
		info, statErr := d.Info()
		if statErr != nil {
			return nil
		}
		entries = append(entries, e.toFileEntry(root, p, dirEntryAdapter{d, info}))
		if len(entries) >= e.maxEntries {
			return errStopWalk
		}
		return nil
	})
	if err != nil && err != errStopWalk {
		return nil, mcperr.Wrap(mcperr.Internal, err, "walking directory")
	}
	sortEntries(entries)
	return entries, nil
}

var errStopWalk = errStop{}

type errStop struct{}

func (errStop) Error() string { return "max entries reached" }

type dirEntryAdapter struct {
	os.DirEntry
	info os.FileInfo
}

func (a dirEntryAdapter) Info() (os.FileInfo, error) { return a.info, nil }

func (e *Explorer) toFileEntry(root, full string, d os.DirEntry) format.FileEntry {
	info, _ := d.Info()
	entry := format.FileEntry{
		Name: d.Name(),
		Path: Rel(root, full),
	}
	if d.IsDir() {
		entry.Type = "directory"
	} else {
		entry.Type = "file"
		size := info.Size()
		entry.Size = &size
		entry.Binary = isBinaryFile(full)
	}
	if info != nil {
		entry.Modified = info.ModTime()
	}
	return entry
}

func sortEntries(entries []format.FileEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Type != entries[j].Type {
			return entries[i].Type == "directory"
		}
		return entries[i].Name < entries[j].Name
	})
}

// Read implements spec.md §4.8's read operation, including binary
// detection and 0-based inclusive line clamping.
func (e *Explorer) Read(path string, startLine, endLine *int) (*format.FileReadResult, error) {
	_, full, err := e.resolve(path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, mcperr.New(mcperr.PathNotFound, "path does not exist").WithField("path", path)
		}
		return nil, mcperr.Wrap(mcperr.Internal, err, "statting path")
	}
	if info.IsDir() {
		return nil, mcperr.New(mcperr.NotAFile, "path is a directory").WithField("path", path)
	}

	if isBinaryFile(full) {
		return &format.FileReadResult{Path: path, Binary: true}, nil
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return nil, mcperr.Wrap(mcperr.Internal, err, "reading file")
	}

	lines := splitLines(data)
	total := len(lines)

	start := 0
	if startLine != nil {
		start = *startLine
	}
	end := total - 1
	if endLine != nil {
		end = *endLine
	}
	start = clamp(start, 0, maxInt(total-1, 0))
	end = clamp(end, 0, maxInt(total-1, 0))
	if end < start {
		end = start
	}

	var slice []string
	if total > 0 {
		slice = lines[start : end+1]
	}

	return &format.FileReadResult{
		Content:    strings.Join(slice, "\n"),
		Binary:     false,
		StartLine:  start,
		EndLine:    end,
		TotalLines: total,
		Path:       path,
	}, nil
}

func splitLines(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	return strings.Split(text, "\n")
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// isBinaryFile implements spec.md §4.8's 4 KiB NUL-or-invalid-UTF-8 sniff.
func isBinaryFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	buf := make([]byte, sniffSize)
	n, _ := f.Read(buf)
	chunk := buf[:n]

	if bytes.IndexByte(chunk, 0) >= 0 {
		return true
	}
	return !utf8.Valid(chunk)
}

// GrepOptions carries grep_files' tunable caps, per spec.md §4.8.
type GrepOptions struct {
	Pattern           string
	Path              string
	Recursive         bool
	GlobPattern       string
	CaseSensitive     bool
	MaxResults        int
	MaxResultsPerFile int
	MaxFiles          int
}

// Grep implements spec.md §4.8's grep operation.
func (e *Explorer) Grep(opts GrepOptions) (*format.GrepResult, error) {
	root, full, err := e.resolve(opts.Path)
	if err != nil {
		return nil, err
	}

	pattern := opts.Pattern
	if !opts.CaseSensitive {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, mcperr.Wrap(mcperr.RegexInvalid, err, "compiling grep pattern").WithField("pattern", opts.Pattern)
	}

	var g glob.Glob
	if opts.GlobPattern != "" {
		g, err = glob.Compile(opts.GlobPattern)
		if err != nil {
			return nil, mcperr.Wrap(mcperr.RegexInvalid, err, "compiling glob pattern").WithField("glob", opts.GlobPattern)
		}
	}

	maxResults := orDefault(opts.MaxResults, e.defaultMaxResults)
	maxPerFile := orDefault(opts.MaxResultsPerFile, e.defaultPerFile)
	maxFiles := orDefault(opts.MaxFiles, e.defaultFiles)

	result := &format.GrepResult{
		Pattern:       opts.Pattern,
		Path:          opts.Path,
		Glob:          opts.GlobPattern,
		CaseSensitive: opts.CaseSensitive,
	}

	candidates, err := e.collectCandidates(full, opts.Recursive)
	if err != nil {
		return nil, err
	}

	for _, candidate := range candidates {
		if g != nil && !g.Match(filepath.Base(candidate)) {
			continue
		}
		if result.FilesSearched >= maxFiles {
			result.FilesTruncated = true
			break
		}
		if isBinaryFile(candidate) {
			continue
		}
		result.FilesSearched++

		matches, fileTruncated := grepFile(candidate, re, maxPerFile)
		for i, m := range matches {
			if len(result.Matches) >= maxResults {
				result.Truncated = true
				break
			}
			m.File = Rel(root, candidate)
			if fileTruncated && i == len(matches)-1 {
				m.Truncated = true
			}
			result.Matches = append(result.Matches, m)
		}
		if result.Truncated {
			break
		}
	}

	return result, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func (e *Explorer) collectCandidates(start string, recursive bool) ([]string, error) {
	info, err := os.Stat(start)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, mcperr.New(mcperr.PathNotFound, "path does not exist")
		}
		return nil, mcperr.Wrap(mcperr.Internal, err, "statting path")
	}
	if !info.IsDir() {
		return []string{start}, nil
	}

	var files []string
	if recursive {
		err = filepath.WalkDir(start, func(p string, d os.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if !d.IsDir() {
				files = append(files, p)
			}
			return nil
		})
	} else {
		entries, rerr := os.ReadDir(start)
		if rerr != nil {
			return nil, mcperr.Wrap(mcperr.Internal, rerr, "reading directory")
		}
		for _, de := range entries {
			if !de.IsDir() {
				files = append(files, filepath.Join(start, de.Name()))
			}
		}
	}
	return files, err
}

func grepFile(path string, re *regexp.Regexp, maxPerFile int) ([]format.GrepMatch, bool) {
	f, err := os.Open(path)
	if err != nil {
		return nil, false
	}
	defer f.Close()

	var matches []format.GrepMatch
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNum := 0
	truncated := false
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		loc := re.FindStringIndex(line)
		if loc == nil {
			continue
		}
		matches = append(matches, format.GrepMatch{
			Line:       lineNum,
			Content:    line,
			MatchStart: loc[0],
			MatchEnd:   loc[1],
		})
		if len(matches) >= maxPerFile {
			truncated = true
			break
		}
	}
	return matches, truncated
}
