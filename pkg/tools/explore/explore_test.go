package explore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/replicatedhq/bundle-mcp/pkg/config"
	"github.com/replicatedhq/bundle-mcp/pkg/explorer"
)

func textOf(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("expected *mcp.TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func newExplorerWithRoot(t *testing.T) (*explorer.Explorer, string) {
	t.Helper()
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "pod.log"), []byte("INFO ok\nERROR boom\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	exp := explorer.New(func() (string, error) { return root, nil }, 0, 0)
	return exp, root
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestListFilesHandler(t *testing.T) {
	exp, _ := newExplorerWithRoot(t)
	cfg := &config.Config{DefaultVerbosity: "verbose"}
	h := &handlers{c: cfg, explorer: exp}

	result, _, err := h.listFiles(t.Context(), nil, &listFilesArgs{})
	if err != nil {
		t.Fatalf("listFiles() error = %v", err)
	}
	if rendered := textOf(t, result); !strings.Contains(rendered, "pod.log") {
		t.Errorf("expected pod.log in rendered output, got %q", rendered)
	}
}

func TestReadFileHandler(t *testing.T) {
	exp, _ := newExplorerWithRoot(t)
	cfg := &config.Config{DefaultVerbosity: "verbose"}
	h := &handlers{c: cfg, explorer: exp}

	result, _, err := h.readFile(t.Context(), nil, &readFileArgs{Path: "/pod.log"})
	if err != nil {
		t.Fatalf("readFile() error = %v", err)
	}
	if rendered := textOf(t, result); !strings.Contains(rendered, "ERROR boom") {
		t.Errorf("expected file content in rendered output, got %q", rendered)
	}
}

func TestReadFileHandlerMissingPath(t *testing.T) {
	exp, _ := newExplorerWithRoot(t)
	cfg := &config.Config{DefaultVerbosity: "minimal"}
	h := &handlers{c: cfg, explorer: exp}

	result, _, err := h.readFile(t.Context(), nil, &readFileArgs{Path: "/missing.log"})
	if err != nil {
		t.Fatalf("readFile() transport error = %v", err)
	}
	if rendered := textOf(t, result); !strings.Contains(rendered, "path-not-found") {
		t.Errorf("expected path-not-found error rendered, got %q", rendered)
	}
}

func TestGrepFilesHandler(t *testing.T) {
	exp, _ := newExplorerWithRoot(t)
	cfg := &config.Config{DefaultVerbosity: "standard"}
	h := &handlers{c: cfg, explorer: exp}

	result, _, err := h.grepFiles(t.Context(), nil, &grepFilesArgs{Pattern: "ERROR"})
	require.NoError(t, err)
	assert.Contains(t, textOf(t, result), "files_searched")
}

func TestGrepFilesHandlerDefaultsToRecursive(t *testing.T) {
	exp, root := newExplorerWithRoot(t)
	nestedDir := filepath.Join(root, "pods")
	if err := os.MkdirAll(nestedDir, 0o755); err != nil {
		t.Fatal(err)
	}
	mustWrite(t, filepath.Join(nestedDir, "nested.log"), "ERROR nested boom\n")

	cfg := &config.Config{DefaultVerbosity: "minimal"}
	h := &handlers{c: cfg, explorer: exp}

	// recursive omitted: must default to true and find the nested match.
	result, _, err := h.grepFiles(t.Context(), nil, &grepFilesArgs{Pattern: "nested"})
	require.NoError(t, err)
	assert.Contains(t, textOf(t, result), "nested.log")

	notRecursive := false
	result, _, err = h.grepFiles(t.Context(), nil, &grepFilesArgs{Pattern: "nested", Recursive: &notRecursive})
	require.NoError(t, err)
	assert.NotContains(t, textOf(t, result), "nested.log")
}
