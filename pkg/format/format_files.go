package format

import (
	"fmt"
	"strconv"
	"strings"
)

// RenderFileList implements spec.md §4.2's File-List rules.
func RenderFileList(r FileListResult, tier Tier) string {
	switch tier {
	case TierMinimal:
		names := make([]string, 0, len(r.Entries))
		for _, e := range r.Entries {
			name := e.Name
			if e.Type == "directory" {
				name += "/"
			}
			names = append(names, name)
		}
		return compactJSON(names)
	case TierStandard:
		type row struct {
			Name string `json:"name"`
			Type string `json:"type"`
		}
		rows := make([]row, 0, len(r.Entries))
		for _, e := range r.Entries {
			rows = append(rows, row{Name: e.Name, Type: e.Type})
		}
		return compactJSON(map[string]any{"entries": rows, "count": len(r.Entries)})
	default: // verbose, debug
		var b strings.Builder
		fmt.Fprintf(&b, "# %s (%d entries)\n\n", r.BasePath, len(r.Entries))
		for _, e := range r.Entries {
			size := "-"
			if e.Size != nil {
				size = strconv.FormatInt(*e.Size, 10)
			}
			binary := ""
			if e.Binary {
				binary = " (binary)"
			}
			fmt.Fprintf(&b, "- `%s` [%s] size=%s modified=%s%s\n",
				e.Path, e.Type, size, e.Modified.Format("2006-01-02T15:04:05Z07:00"), binary)
		}
		return b.String()
	}
}

// RenderFileRead implements spec.md §4.2's File-Read rules.
func RenderFileRead(r FileReadResult, tier Tier) string {
	if r.Binary {
		switch tier {
		case TierMinimal, TierStandard:
			return compactJSON(map[string]any{"binary": true, "content": ""})
		default:
			return fmt.Sprintf("# %s\n\nbinary file, %d bytes not shown as text\n", r.Path, len(r.Content))
		}
	}

	switch tier {
	case TierMinimal:
		return r.Content
	case TierStandard:
		return compactJSON(map[string]any{
			"content":     r.Content,
			"total_lines": r.TotalLines,
		})
	default: // verbose, debug
		lines := strings.Split(r.Content, "\n")
		if r.Content == "" {
			lines = nil
		}
		var b strings.Builder
		fmt.Fprintf(&b, "# %s (lines %d-%d of %d)\n\n", r.Path, r.StartLine+1, r.EndLine+1, r.TotalLines)
		b.WriteString(fence("", gutter(lines, r.StartLine+1)))
		b.WriteString("\n")
		return b.String()
	}
}
