// Package kubectl exposes the kubectl MCP tool, a restricted read-only
// subset of kubectl executed against the active bundle's emulated API.
package kubectl

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/replicatedhq/bundle-mcp/pkg/config"
	"github.com/replicatedhq/bundle-mcp/pkg/format"
	"github.com/replicatedhq/bundle-mcp/pkg/kctl"
)

type handlers struct {
	c        *config.Config
	executor *kctl.Executor
}

type kubectlArgs struct {
	Command        string `json:"command" jsonschema:"A kubectl command, e.g. 'get pods -A'. Only get, describe, explain, config, version, api-resources, api-versions, and cluster-info are allowed."`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty" jsonschema:"Command timeout in seconds. Defaults to a server-configured value."`
	JSONOutput     bool   `json:"json_output,omitempty" jsonschema:"Request JSON output by appending -o json when the command doesn't already specify an output format."`
	Verbosity      string `json:"verbosity,omitempty" jsonschema:"Response detail: minimal, standard, verbose, or debug. Defaults to the server's configured verbosity."`
}

// Install registers the kubectl tool on s.
func Install(ctx context.Context, s *mcp.Server, executor *kctl.Executor, c *config.Config) error {
	h := &handlers{c: c, executor: executor}

	mcp.AddTool(s, &mcp.Tool{
		Name:        "kubectl",
		Description: "Run a read-only kubectl command against the active support bundle's emulated Kubernetes API server.",
		Annotations: &mcp.ToolAnnotations{
			ReadOnlyHint: true,
		},
	}, h.kubectl)

	return nil
}

func (h *handlers) kubectl(ctx context.Context, _ *mcp.CallToolRequest, args *kubectlArgs) (*mcp.CallToolResult, any, error) {
	tier := format.ParseTier(resolveVerbosity(args.Verbosity, h.c))

	timeout := time.Duration(args.TimeoutSeconds) * time.Second
	result, err := h.executor.Execute(ctx, args.Command, timeout, args.JSONOutput)
	if err != nil {
		return textResult(format.RenderError(err, tier)), nil, nil
	}

	rendered := format.RenderKctl(format.KctlResult{
		Command:    result.Command,
		Stdout:     result.Stdout,
		Stderr:     result.Stderr,
		ExitCode:   result.ExitCode,
		DurationMS: result.Duration.Milliseconds(),
		IsJSON:     result.JSON,
		ParsedJSON: result.Body,
		Env:        debugEnv(tier, h.c),
	}, tier)

	return textResult(rendered), nil, nil
}

func debugEnv(tier format.Tier, c *config.Config) map[string]string {
	if tier != format.TierDebug {
		return nil
	}
	return map[string]string{
		"kctl_bin": c.KctlBin,
	}
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
