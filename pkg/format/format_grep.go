package format

import (
	"fmt"
	"strings"
)

// RenderGrep implements spec.md §4.2's Grep rules.
func RenderGrep(r GrepResult, tier Tier) string {
	switch tier {
	case TierMinimal:
		type match struct {
			File      string `json:"file"`
			Line      int    `json:"line"`
			Content   string `json:"content"`
			Truncated bool   `json:"truncated,omitempty"`
		}
		matches := make([]match, 0, len(r.Matches))
		for _, m := range r.Matches {
			matches = append(matches, match{File: m.File, Line: m.Line, Content: m.Content, Truncated: m.Truncated})
		}
		out := map[string]any{"matches": matches}
		if r.FilesTruncated {
			out["files_truncated"] = true
		}
		return compactJSON(out)

	case TierStandard:
		return compactJSON(map[string]any{
			"matches":         r.Matches,
			"count":           len(r.Matches),
			"files_searched":  r.FilesSearched,
			"files_truncated": r.FilesTruncated,
			"truncated":       r.Truncated,
		})

	default: // verbose, debug
		var b strings.Builder
		fmt.Fprintf(&b, "# grep %q in %s (%d matches, %d files searched)\n\n", r.Pattern, r.Path, len(r.Matches), r.FilesSearched)

		byFile := map[string][]GrepMatch{}
		var order []string
		for _, m := range r.Matches {
			if _, ok := byFile[m.File]; !ok {
				order = append(order, m.File)
			}
			byFile[m.File] = append(byFile[m.File], m)
		}
		for _, f := range order {
			fmt.Fprintf(&b, "## %s\n\n", f)
			ms := byFile[f]
			lines := make([]string, len(ms))
			for i, m := range ms {
				lines[i] = m.Content
			}
			// gutter needs contiguous numbering semantics; render per-match
			// lines individually since grep hits aren't necessarily contiguous.
			for i, m := range ms {
				marker := ""
				if m.Truncated {
					marker = " (truncated)"
				}
				fmt.Fprintf(&b, "%6d|%s%s\n", m.Line, lines[i], marker)
			}
			b.WriteString("\n")
		}

		meta := map[string]any{
			"pattern":         r.Pattern,
			"path":            r.Path,
			"glob":            r.Glob,
			"case_sensitive":  r.CaseSensitive,
			"files_searched":  r.FilesSearched,
			"files_truncated": r.FilesTruncated,
			"truncated":       r.Truncated,
			"count":           len(r.Matches),
		}
		b.WriteString("## metadata\n\n")
		b.WriteString(fence("json", compactJSON(meta)))
		b.WriteString("\n")
		return b.String()
	}
}
