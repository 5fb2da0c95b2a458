package format

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// compactJSON marshals v with no inter-token whitespace, per spec.md §4.2's
// minimal-tier requirement.
func compactJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf(`{"error":%q}`, err.Error())
	}
	return string(b)
}

// gutter renders lines with a right-aligned 1-based line-number gutter, used
// by File-Read verbose/debug rendering. Grep formats its own per-match lines,
// since its hits are not contiguous.
func gutter(lines []string, firstLineNumber int) string {
	if len(lines) == 0 {
		return ""
	}
	width := len(strconv.Itoa(firstLineNumber + len(lines) - 1))
	var b strings.Builder
	for i, line := range lines {
		fmt.Fprintf(&b, "%*d|%s\n", width, firstLineNumber+i, line)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func fence(lang, body string) string {
	return fmt.Sprintf("```%s\n%s\n```", lang, body)
}

// sortedFieldKeys is shared by error-detail rendering in every *_error.go
// style helper that walks a Fields map deterministically.
func sortedFieldKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
