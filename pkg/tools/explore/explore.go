// Package explore exposes list_files, read_file, and grep_files, the
// three MCP tools backed by the File Explorer.
package explore

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/replicatedhq/bundle-mcp/pkg/config"
	"github.com/replicatedhq/bundle-mcp/pkg/explorer"
	"github.com/replicatedhq/bundle-mcp/pkg/format"
)

type handlers struct {
	c        *config.Config
	explorer *explorer.Explorer
}

type listFilesArgs struct {
	Path      string `json:"path,omitempty" jsonschema:"Bundle-relative directory to list. Defaults to the bundle root."`
	Recursive bool   `json:"recursive,omitempty" jsonschema:"Walk subdirectories instead of listing one level."`
	Verbosity string `json:"verbosity,omitempty" jsonschema:"Response detail: minimal, standard, verbose, or debug."`
}

type readFileArgs struct {
	Path      string `json:"path" jsonschema:"Bundle-relative file to read."`
	StartLine *int   `json:"start_line,omitempty" jsonschema:"0-based first line to include. Defaults to 0."`
	EndLine   *int   `json:"end_line,omitempty" jsonschema:"0-based last line to include (inclusive). Defaults to the last line."`
	Verbosity string `json:"verbosity,omitempty" jsonschema:"Response detail: minimal, standard, verbose, or debug."`
}

type grepFilesArgs struct {
	Pattern           string `json:"pattern" jsonschema:"Regular expression to search for."`
	Path              string `json:"path,omitempty" jsonschema:"Bundle-relative file or directory to search. Defaults to the bundle root."`
	Recursive         *bool  `json:"recursive,omitempty" jsonschema:"Search subdirectories. Defaults to true."`
	GlobPattern       string `json:"glob_pattern,omitempty" jsonschema:"Glob matched against each candidate file's basename."`
	CaseSensitive     bool   `json:"case_sensitive,omitempty" jsonschema:"Match case-sensitively. Defaults to false."`
	MaxResults        int    `json:"max_results,omitempty" jsonschema:"Overall match cap. Defaults to 1000."`
	MaxResultsPerFile int    `json:"max_results_per_file,omitempty" jsonschema:"Per-file match cap. Defaults to 5."`
	MaxFiles          int    `json:"max_files,omitempty" jsonschema:"Cap on the number of files actually searched. Defaults to 10."`
	Verbosity         string `json:"verbosity,omitempty" jsonschema:"Response detail: minimal, standard, verbose, or debug."`
}

// Install registers list_files, read_file, and grep_files on s.
func Install(ctx context.Context, s *mcp.Server, exp *explorer.Explorer, c *config.Config) error {
	h := &handlers{c: c, explorer: exp}

	mcp.AddTool(s, &mcp.Tool{
		Name:        "list_files",
		Description: "List files and directories under the active support bundle's extracted root.",
		Annotations: &mcp.ToolAnnotations{
			ReadOnlyHint: true,
		},
	}, h.listFiles)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "read_file",
		Description: "Read a line range from a file in the active support bundle.",
		Annotations: &mcp.ToolAnnotations{
			ReadOnlyHint: true,
		},
	}, h.readFile)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "grep_files",
		Description: "Regex-search files in the active support bundle, with caps on matches, per-file matches, and files searched.",
		Annotations: &mcp.ToolAnnotations{
			ReadOnlyHint: true,
		},
	}, h.grepFiles)

	return nil
}

func (h *handlers) listFiles(ctx context.Context, _ *mcp.CallToolRequest, args *listFilesArgs) (*mcp.CallToolResult, any, error) {
	tier := format.ParseTier(resolveVerbosity(args.Verbosity, h.c))
	path := args.Path
	if path == "" {
		path = "/"
	}

	result, err := h.explorer.List(path, args.Recursive)
	if err != nil {
		return textResult(format.RenderError(err, tier)), nil, nil
	}
	return textResult(format.RenderFileList(*result, tier)), nil, nil
}

func (h *handlers) readFile(ctx context.Context, _ *mcp.CallToolRequest, args *readFileArgs) (*mcp.CallToolResult, any, error) {
	tier := format.ParseTier(resolveVerbosity(args.Verbosity, h.c))

	result, err := h.explorer.Read(args.Path, args.StartLine, args.EndLine)
	if err != nil {
		return textResult(format.RenderError(err, tier)), nil, nil
	}
	return textResult(format.RenderFileRead(*result, tier)), nil, nil
}

func (h *handlers) grepFiles(ctx context.Context, _ *mcp.CallToolRequest, args *grepFilesArgs) (*mcp.CallToolResult, any, error) {
	tier := format.ParseTier(resolveVerbosity(args.Verbosity, h.c))
	path := args.Path
	if path == "" {
		path = "/"
	}

	result, err := h.explorer.Grep(explorer.GrepOptions{
		Pattern:           args.Pattern,
		Path:              path,
		Recursive:         boolOr(args.Recursive, true),
		GlobPattern:       args.GlobPattern,
		CaseSensitive:     args.CaseSensitive,
		MaxResults:        args.MaxResults,
		MaxResultsPerFile: args.MaxResultsPerFile,
		MaxFiles:          args.MaxFiles,
	})
	if err != nil {
		return textResult(format.RenderError(err, tier)), nil, nil
	}
	return textResult(format.RenderGrep(*result, tier)), nil, nil
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
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
