package format

import (
	"fmt"
	"sort"
	"strings"
)

// RenderBundleInit implements spec.md §4.2's Bundle-Init rules.
func RenderBundleInit(r BundleInitResult, tier Tier) string {
	if r.ErrorPhrase != "" {
		if tier == TierMinimal {
			return r.ErrorPhrase
		}
		return "initialize_bundle failed: " + r.ErrorPhrase
	}

	switch tier {
	case TierMinimal:
		return compactJSON(map[string]string{
			"path":       r.Path,
			"kubeconfig": r.Kubeconfig,
		})
	case TierStandard:
		return compactJSON(map[string]any{
			"path":          r.Path,
			"kubeconfig":    r.Kubeconfig,
			"api_available": r.APIAvailable,
		})
	default: // verbose, debug
		var b strings.Builder
		fmt.Fprintf(&b, "# Bundle initialized\n\n")
		fmt.Fprintf(&b, "- path: `%s`\n", r.Path)
		fmt.Fprintf(&b, "- kubeconfig: `%s`\n", r.Kubeconfig)
		fmt.Fprintf(&b, "- source: `%s`\n", r.Source)
		fmt.Fprintf(&b, "- pid: %d\n", r.PID)
		fmt.Fprintf(&b, "- activated: %s\n", r.ActivatedAt.Format("2006-01-02T15:04:05Z07:00"))
		fmt.Fprintf(&b, "- api available: %t\n", r.APIAvailable)
		if tier == TierDebug && r.Diagnostics != nil {
			b.WriteString("\n## diagnostics\n\n")
			b.WriteString(renderDiagnostics(*r.Diagnostics))
		}
		return b.String()
	}
}

func renderDiagnostics(d Diagnostics) string {
	var b strings.Builder
	fmt.Fprintf(&b, "- process alive: %t\n", d.ProcessAlive)
	fmt.Fprintf(&b, "- kubeconfig path: `%s` (exists: %t, size: %d)\n", d.KubeconfigPath, d.KubeconfigExists, d.KubeconfigSize)
	if d.ServerURL != "" {
		fmt.Fprintf(&b, "- server url: %s\n", d.ServerURL)
	}
	fmt.Fprintf(&b, "- serve-tool binary: `%s`\n", d.ServeToolBinPath)
	fmt.Fprintf(&b, "- waited: %s\n", d.WaitedFor)
	if d.LastProbeError != "" {
		fmt.Fprintf(&b, "- last probe error: %s\n", d.LastProbeError)
	}
	if len(d.StdoutTail) > 0 {
		b.WriteString("\nstdout tail:\n")
		b.WriteString(fence("", strings.Join(d.StdoutTail, "\n")))
		b.WriteString("\n")
	}
	if len(d.StderrTail) > 0 {
		b.WriteString("\nstderr tail:\n")
		b.WriteString(fence("", strings.Join(d.StderrTail, "\n")))
		b.WriteString("\n")
	}
	return b.String()
}

// RenderBundleList implements spec.md §4.2's Bundle-List rules.
func RenderBundleList(r BundleListResult, tier Tier) string {
	entries := append([]LocalBundleEntry(nil), r.Entries...)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Modified.After(entries[j].Modified)
	})

	switch tier {
	case TierMinimal:
		paths := make([]string, 0, len(entries))
		for _, e := range entries {
			if e.Valid {
				paths = append(paths, e.Path)
			}
		}
		return compactJSON(paths)
	case TierStandard:
		type row struct {
			Path  string `json:"path"`
			Valid bool   `json:"valid"`
			Size  int64  `json:"size"`
		}
		rows := make([]row, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, row{Path: e.Path, Valid: e.Valid, Size: e.Size})
		}
		return compactJSON(rows)
	default: // verbose, debug
		var b strings.Builder
		fmt.Fprintf(&b, "# Local bundles (%d)\n\n", len(entries))
		for _, e := range entries {
			status := "valid"
			if !e.Valid {
				status = "invalid: " + e.Reason
			}
			fmt.Fprintf(&b, "- `%s` — %s, %d bytes, modified %s\n",
				e.Path, status, e.Size, e.Modified.Format("2006-01-02T15:04:05Z07:00"))
		}
		return b.String()
	}
}
