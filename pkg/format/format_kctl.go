package format

import (
	"fmt"
	"sort"
	"strings"
)

// RenderKctl implements spec.md §4.2's kctl rules.
func RenderKctl(r KctlResult, tier Tier) string {
	body := r.Stdout
	if r.IsJSON && r.ParsedJSON != nil {
		body = compactJSON(r.ParsedJSON)
	}

	if tier == TierMinimal {
		return body
	}

	meta := map[string]any{
		"command":     r.Command,
		"exit_code":   r.ExitCode,
		"duration_ms": r.DurationMS,
	}
	if tier == TierStandard {
		return compactJSON(map[string]any{
			"output":      jsonBody(r, body),
			"command":     r.Command,
			"exit_code":   r.ExitCode,
			"duration_ms": r.DurationMS,
		})
	}

	// verbose, debug
	var b strings.Builder
	fmt.Fprintf(&b, "# kubectl result\n\n")
	fmt.Fprintf(&b, "- command: `%s`\n", r.Command)
	fmt.Fprintf(&b, "- exit code: %d\n", r.ExitCode)
	fmt.Fprintf(&b, "- duration: %dms\n\n", r.DurationMS)
	b.WriteString(fence("", body))
	b.WriteString("\n")

	if tier == TierDebug {
		b.WriteString("\n## metadata\n\n")
		b.WriteString(fence("json", compactJSON(meta)))
		b.WriteString("\n")
		if r.Stderr != "" {
			b.WriteString("\n## stderr\n\n")
			b.WriteString(fence("", r.Stderr))
			b.WriteString("\n")
		}
		if len(r.Env) > 0 {
			keys := make([]string, 0, len(r.Env))
			for k := range r.Env {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			b.WriteString("\n## environment\n\n")
			for _, k := range keys {
				fmt.Fprintf(&b, "- %s=%s\n", k, r.Env[k])
			}
		}
	}
	return b.String()
}

func jsonBody(r KctlResult, body string) any {
	if r.IsJSON && r.ParsedJSON != nil {
		return r.ParsedJSON
	}
	return body
}
