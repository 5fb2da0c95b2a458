package explorer

import (
	"path/filepath"
	"testing"

	"github.com/replicatedhq/bundle-mcp/pkg/mcperr"
)

func TestResolveWithinRoot(t *testing.T) {
	root := t.TempDir()
	got, err := Resolve(root, "cluster-info/info.json")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	want := filepath.Join(root, "cluster-info", "info.json")
	if got != want {
		t.Errorf("Resolve() = %q, want %q", got, want)
	}
}

func TestResolveRejectsTraversal(t *testing.T) {
	root := t.TempDir()

	cases := []string{
		"../../etc/passwd",
		"../outside",
		"a/../../b",
		"a/..",
		"..",
	}
	for _, c := range cases {
		got, err := Resolve(root, c)
		if err == nil {
			t.Errorf("Resolve(%q) = %q, want path-not-safe error", c, got)
			continue
		}
		perr, ok := err.(*mcperr.Error)
		if !ok || perr.Kind != mcperr.PathNotSafe {
			t.Errorf("Resolve(%q) error = %v, want kind %q", c, err, mcperr.PathNotSafe)
		}
	}
}

func TestResolveRoot(t *testing.T) {
	root := t.TempDir()
	got, err := Resolve(root, "/")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != root {
		t.Errorf("Resolve(\"/\") = %q, want %q", got, root)
	}
}

func TestRel(t *testing.T) {
	root := "/bundles/b1"
	if got := Rel(root, "/bundles/b1/cluster-info/info.json"); got != "/cluster-info/info.json" {
		t.Errorf("Rel() = %q", got)
	}
	if got := Rel(root, "/bundles/b1"); got != "/" {
		t.Errorf("Rel() for root itself = %q, want /", got)
	}
}
