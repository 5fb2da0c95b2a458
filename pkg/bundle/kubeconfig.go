package bundle

import (
	"k8s.io/client-go/tools/clientcmd"

	"github.com/replicatedhq/bundle-mcp/pkg/mcperr"
)

// validateKubeconfig parses the kubeconfig sbctl wrote and returns the
// server URL of its current context, failing loudly if sbctl produced a
// malformed file rather than letting that surface later as an opaque
// kctl failure.
func validateKubeconfig(path string) (serverURL string, err error) {
	cfg, err := clientcmd.LoadFromFile(path)
	if err != nil {
		return "", mcperr.Wrap(mcperr.ServeToolStartFailed, err, "parsing kubeconfig written by serve-tool")
	}
	if cfg.CurrentContext == "" {
		return "", mcperr.New(mcperr.ServeToolStartFailed, "kubeconfig has no current context")
	}
	ctx, ok := cfg.Contexts[cfg.CurrentContext]
	if !ok {
		return "", mcperr.New(mcperr.ServeToolStartFailed, "kubeconfig's current context is not defined")
	}
	cluster, ok := cfg.Clusters[ctx.Cluster]
	if !ok {
		return "", mcperr.New(mcperr.ServeToolStartFailed, "kubeconfig's current cluster is not defined")
	}
	return cluster.Server, nil
}
