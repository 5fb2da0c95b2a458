// Package bundle owns the active-bundle lifecycle: resolving a source
// (C3), enumerating local archives (C4), and the state machine that
// extracts, activates, and tears down a bundle (C6).
package bundle

import "time"

// Metadata is produced after a bundle is successfully activated. Every
// field except ServerURL is set while the bundle is active; ServerURL stays
// empty when the API was unavailable or the kubeconfig failed validation.
type Metadata struct {
	ArchivePath      string
	Root             string
	Source           string
	ServeToolPID     int
	KubeconfigPath   string
	ServerURL        string // cluster server URL read back from the kubeconfig, empty if unavailable
	ActivatedAt      time.Time
	downloadedByUs   bool // archive removed on cleanup only if we fetched it
	extractedByUs    bool // Root removed on cleanup only if we created it by extraction
}

// LocalEntry describes one archive found during a registry scan.
type LocalEntry struct {
	Path     string
	Size     int64
	Modified time.Time
	Valid    bool
	Reason   string
}

// fingerprintDirs are the top-level directory names that make an extracted
// tree recognizable as a support bundle, per spec.md §3.
var fingerprintDirs = map[string]bool{
	"cluster-info":      true,
	"cluster-resources": true,
	"kubernetes":        true,
}
