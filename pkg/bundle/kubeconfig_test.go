package bundle

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/replicatedhq/bundle-mcp/pkg/mcperr"
)

const validKubeconfig = `
apiVersion: v1
kind: Config
current-context: bundle
clusters:
- name: bundle-cluster
  cluster:
    server: https://127.0.0.1:6443
contexts:
- name: bundle
  context:
    cluster: bundle-cluster
    user: bundle-user
users:
- name: bundle-user
  user: {}
`

func writeKubeconfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kubeconfig")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestValidateKubeconfigExtractsServerURL(t *testing.T) {
	path := writeKubeconfig(t, validKubeconfig)
	got, err := validateKubeconfig(path)
	if err != nil {
		t.Fatalf("validateKubeconfig() error = %v", err)
	}
	if want := "https://127.0.0.1:6443"; got != want {
		t.Errorf("validateKubeconfig() = %q, want %q", got, want)
	}
}

func TestValidateKubeconfigRejectsMalformedFile(t *testing.T) {
	path := writeKubeconfig(t, "not: [valid yaml kubeconfig")
	if _, err := validateKubeconfig(path); err == nil {
		t.Fatal("expected an error for malformed kubeconfig")
	} else if kind := err.(*mcperr.Error).Kind; kind != mcperr.ServeToolStartFailed {
		t.Errorf("error kind = %q, want %q", kind, mcperr.ServeToolStartFailed)
	}
}

func TestValidateKubeconfigRejectsMissingCurrentContext(t *testing.T) {
	path := writeKubeconfig(t, `
apiVersion: v1
kind: Config
clusters:
- name: bundle-cluster
  cluster:
    server: https://127.0.0.1:6443
contexts: []
`)
	if _, err := validateKubeconfig(path); err == nil {
		t.Fatal("expected an error for missing current context")
	}
}
