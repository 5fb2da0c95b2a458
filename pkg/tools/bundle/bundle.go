// Package bundle exposes initialize_bundle and list_available_bundles,
// the two MCP tools backed by the Bundle Manager and Bundle Registry.
package bundle

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	bundlecore "github.com/replicatedhq/bundle-mcp/pkg/bundle"
	"github.com/replicatedhq/bundle-mcp/pkg/config"
	"github.com/replicatedhq/bundle-mcp/pkg/format"
	"github.com/replicatedhq/bundle-mcp/pkg/mcperr"
)

type handlers struct {
	c       *config.Config
	manager *bundlecore.Manager
}

type initializeBundleArgs struct {
	Source    string `json:"source" jsonschema:"Local path, directory, vendor-portal analyze URL, or generic HTTP(S) archive URL for the support bundle."`
	Force     bool   `json:"force,omitempty" jsonschema:"Replace an already-active bundle instead of failing. Defaults to false."`
	Verbosity string `json:"verbosity,omitempty" jsonschema:"Response detail: minimal, standard, verbose, or debug. Defaults to the server's configured verbosity."`
}

type listAvailableBundlesArgs struct {
	Verbosity string `json:"verbosity,omitempty" jsonschema:"Response detail: minimal, standard, verbose, or debug. Defaults to the server's configured verbosity."`
}

// Install registers initialize_bundle and list_available_bundles on s.
func Install(ctx context.Context, s *mcp.Server, c *config.Config, m *bundlecore.Manager) error {
	h := &handlers{c: c, manager: m}

	mcp.AddTool(s, &mcp.Tool{
		Name:        "initialize_bundle",
		Description: "Resolve, download if needed, extract, and activate a Kubernetes support bundle, starting its emulated API server. Replaces any currently active bundle only when force=true.",
	}, h.initializeBundle)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "list_available_bundles",
		Description: "List support-bundle archives already present in local storage, with their fingerprint validity.",
		Annotations: &mcp.ToolAnnotations{
			ReadOnlyHint: true,
		},
	}, h.listAvailableBundles)

	return nil
}

func (h *handlers) initializeBundle(ctx context.Context, _ *mcp.CallToolRequest, args *initializeBundleArgs) (*mcp.CallToolResult, any, error) {
	tier := format.ParseTier(resolveVerbosity(args.Verbosity, h.c))

	meta, apiAvailable, err := h.manager.Initialize(ctx, args.Source, h.c.AuthToken(), args.Force)
	if err != nil {
		return textResult(format.RenderError(err, tier)), nil, nil
	}

	result := format.BundleInitResult{
		Path:         meta.Root,
		Kubeconfig:   meta.KubeconfigPath,
		Source:       meta.Source,
		PID:          meta.ServeToolPID,
		ActivatedAt:  meta.ActivatedAt,
		APIAvailable: apiAvailable,
	}
	if tier == format.TierDebug {
		diag := h.manager.GetDiagnostics()
		result.Diagnostics = &format.Diagnostics{
			ProcessAlive:     diag.ProcessInfo.ProcessAlive,
			StdoutTail:       splitLines(diag.ProcessInfo.Stdout),
			StderrTail:       splitLines(diag.ProcessInfo.Stderr),
			KubeconfigPath:   diag.ProcessInfo.KubeconfigPath,
			KubeconfigExists: diag.ProcessInfo.KubeconfigExists,
			KubeconfigSize:   diag.ProcessInfo.KubeconfigSize,
			ServerURL:        meta.ServerURL,
			ServeToolBinPath: diag.ProcessInfo.ServeToolResolved,
			WaitedFor:        diag.ProcessInfo.WaitedFor,
			LastProbeError:   diag.ProcessInfo.LastProbeError,
		}
	}

	return textResult(format.RenderBundleInit(result, tier)), nil, nil
}

func (h *handlers) listAvailableBundles(ctx context.Context, _ *mcp.CallToolRequest, args *listAvailableBundlesArgs) (*mcp.CallToolResult, any, error) {
	tier := format.ParseTier(resolveVerbosity(args.Verbosity, h.c))

	registry := bundlecore.NewRegistry(h.c)
	entries, err := registry.List()
	if err != nil {
		return textResult(format.RenderError(mcperr.Wrap(mcperr.Internal, err, "scanning bundle storage"), tier)), nil, nil
	}

	out := make([]format.LocalBundleEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, format.LocalBundleEntry{
			Path:     e.Path,
			Size:     e.Size,
			Modified: e.Modified,
			Valid:    e.Valid,
			Reason:   e.Reason,
		})
	}

	return textResult(format.RenderBundleList(format.BundleListResult{Entries: out}, tier)), nil, nil
}

func resolveVerbosity(requested string, c *config.Config) string {
	if requested != "" {
		return requested
	}
	if c.ForceDebug {
		return "debug"
	}
	return c.DefaultVerbosity
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}
