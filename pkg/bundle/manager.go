package bundle

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/mholt/archiver/v3"
	"github.com/pkg/errors"

	"github.com/replicatedhq/bundle-mcp/pkg/config"
	"github.com/replicatedhq/bundle-mcp/pkg/kctl"
	"github.com/replicatedhq/bundle-mcp/pkg/mcperr"
	"github.com/replicatedhq/bundle-mcp/pkg/servetool"
)

// State names the active slot's position in the state machine from
// spec.md §4.6.
type State string

const (
	StateEmpty             State = "empty"
	StateResolving         State = "resolving"
	StateExtracting        State = "extracting"
	StateStarting          State = "starting"
	StateActiveAvailable   State = "active-api-available"
	StateActiveUnavailable State = "active-api-unavailable"
	StateCleaningUp        State = "cleaning-up"
)

// Supervisor is the subset of *servetool.Supervisor the manager drives,
// narrowed to ease testing against a fake. processCtx roots the child
// process's lifetime; waitCtx bounds only the readiness wait.
type Supervisor interface {
	Start(processCtx, waitCtx context.Context, root, kubeconfigPath string, timeout time.Duration, probe servetool.Probe) (bool, servetool.Diagnostics, error)
	Stop(grace time.Duration) error
	Alive() bool
	Diagnostics() servetool.Diagnostics
	Pid() int
}

// SupervisorFactory builds one Supervisor per activation, so a fresh
// process/ring-buffer state backs every bundle switch.
type SupervisorFactory func() Supervisor

// Manager owns the single active-bundle slot (C6), serializing
// initialize_bundle against itself and against reads with one read/write
// lock, exactly as spec.md §5 specifies.
type Manager struct {
	cfg          *config.Config
	resolver     *Resolver
	newSuper     SupervisorFactory
	probe        servetool.Probe
	lifecycleCtx context.Context

	mu       sync.RWMutex
	state    State
	meta     *Metadata
	super    Supervisor
}

// NewManager builds a Manager. newSuper is injected so tests can supply a
// fake Supervisor without spawning real processes. lifecycleCtx is the
// single hierarchical context rooted at the process's lifecycle-enter
// scope (spec.md §5) — every serve-tool child process is parented to it
// rather than to the per-request context of the initialize_bundle call
// that started it, so the emulated API server survives that call
// returning and is torn down only via Shutdown or the supervisor's Stop.
func NewManager(lifecycleCtx context.Context, cfg *config.Config, newSuper SupervisorFactory) *Manager {
	return &Manager{
		cfg:          cfg,
		resolver:     NewResolver(cfg),
		newSuper:     newSuper,
		lifecycleCtx: lifecycleCtx,
		probe: func(ctx context.Context, kubeconfigPath string) error {
			return kctl.ProbeReady(ctx, cfg.KctlBin, kubeconfigPath)
		},
		state: StateEmpty,
	}
}

// Initialize runs the full resolve/extract/start pipeline, per spec.md
// §4.6's transition table. It holds the write lock for the duration, so
// concurrent initialize calls serialize and concurrent reads block until
// this one finishes (or fails).
func (m *Manager) Initialize(ctx context.Context, source, token string, force bool) (*Metadata, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.meta != nil {
		if !force {
			return nil, false, mcperr.New(mcperr.BundleAlreadyActive, "a bundle is already active; pass force=true to replace it").
				WithField("active_source", m.meta.Source)
		}
		m.state = StateCleaningUp
		if err := m.teardownLocked(); err != nil {
			log.Printf("cleanup before re-init failed: %v", err)
		}
	}

	m.state = StateResolving
	archivePath, downloaded, err := m.resolver.Resolve(ctx, source, token)
	if err != nil {
		m.state = StateEmpty
		return nil, false, err
	}

	m.state = StateExtracting
	root, extracted, err := m.extract(archivePath)
	if err != nil {
		m.state = StateEmpty
		return nil, false, err
	}

	m.state = StateStarting
	super := m.newSuper()
	kubeconfigPath := filepath.Join(os.TempDir(), "bundle-mcp-kubeconfig-"+uuid.NewString())

	available, _, err := super.Start(m.lifecycleCtx, ctx, root, kubeconfigPath, m.cfg.InitializationTimeout, m.probe)
	if err != nil {
		m.state = StateEmpty
		if extracted {
			_ = os.RemoveAll(root)
		}
		return nil, false, err
	}

	meta := &Metadata{
		ArchivePath:    archivePath,
		Root:           root,
		Source:         source,
		ServeToolPID:   super.Pid(),
		KubeconfigPath: kubeconfigPath,
		ActivatedAt:    time.Now(),
		downloadedByUs: downloaded,
		extractedByUs:  extracted,
	}

	if available {
		if serverURL, vErr := validateKubeconfig(kubeconfigPath); vErr != nil {
			log.Printf("kubeconfig written by serve-tool failed validation: %v", vErr)
		} else {
			meta.ServerURL = serverURL
		}
	}

	m.meta = meta
	m.super = super
	if available {
		m.state = StateActiveAvailable
	} else {
		m.state = StateActiveUnavailable
	}
	return meta, available, nil
}

// extract implements spec.md §4.6's extraction rule: a tarball is
// extracted into a fresh directory under bundle-storage; a directory
// source is referenced in place. Either way the result must pass the
// fingerprint check. The returned bool reports whether root was created
// by this extraction (true) or is the user's own directory referenced in
// place (false) — spec.md §3 only grants ownership of the former, so
// teardownLocked must never recursively delete the latter.
func (m *Manager) extract(archivePath string) (string, bool, error) {
	info, err := os.Stat(archivePath)
	if err != nil {
		return "", false, mcperr.Wrap(mcperr.ExtractionFailed, err, "statting archive")
	}

	if info.IsDir() {
		if !DirFingerprintOK(archivePath) {
			return "", false, mcperr.New(mcperr.ExtractionFailed, "source directory does not match the bundle layout fingerprint")
		}
		return archivePath, false, nil
	}

	storageDir, err := m.cfg.EnsureBundleStorageDir()
	if err != nil {
		return "", false, mcperr.Wrap(mcperr.ExtractionFailed, err, "preparing bundle storage directory")
	}
	root := filepath.Join(storageDir, "extract-"+uuid.NewString())
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", false, mcperr.Wrap(mcperr.ExtractionFailed, err, "creating extraction directory")
	}

	if err := archiver.Unarchive(archivePath, root); err != nil {
		_ = os.RemoveAll(root)
		return "", false, mcperr.Wrap(mcperr.ExtractionFailed, err, "extracting archive")
	}

	resolvedRoot := peelSingleWrapper(root)
	if !DirFingerprintOK(resolvedRoot) {
		_ = os.RemoveAll(root)
		return "", false, mcperr.New(mcperr.ExtractionFailed, "extracted tree does not match the bundle layout fingerprint")
	}
	return resolvedRoot, true, nil
}

// peelSingleWrapper returns the sole child directory of root when root
// itself doesn't carry a fingerprint directory but contains exactly one
// entry — the "one level of wrapping" case in spec.md §3.
func peelSingleWrapper(root string) string {
	if hasFingerprintEntries(root) {
		return root
	}
	entries, err := os.ReadDir(root)
	if err != nil || len(entries) != 1 || !entries[0].IsDir() {
		return root
	}
	return filepath.Join(root, entries[0].Name())
}

func hasFingerprintEntries(root string) bool {
	entries, err := os.ReadDir(root)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if fingerprintDirs[e.Name()] {
			return true
		}
	}
	return false
}

// GetActive returns a copy of the active bundle's metadata, or nil if none
// is active. Safe to call concurrently with an in-progress Initialize;
// the call blocks on the read lock until that Initialize returns and then
// sees the resulting state.
func (m *Manager) GetActive() *Metadata {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.meta == nil {
		return nil
	}
	cp := *m.meta
	return &cp
}

// IsInitialized reports whether a bundle is currently active.
func (m *Manager) IsInitialized() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.meta != nil
}

// GetKubeconfigPath returns the active bundle's kubeconfig path, failing
// no-bundle-active when none is active.
func (m *Manager) GetKubeconfigPath() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.meta == nil {
		return "", mcperr.New(mcperr.NoBundleActive, "no bundle is active")
	}
	return m.meta.KubeconfigPath, nil
}

// GetRoot returns the active bundle's extraction root, failing
// no-bundle-active when none is active.
func (m *Manager) GetRoot() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.meta == nil {
		return "", mcperr.New(mcperr.NoBundleActive, "no bundle is active")
	}
	return m.meta.Root, nil
}

// CheckAPIAvailable runs a fresh readiness probe against the active
// bundle's emulated API server.
func (m *Manager) CheckAPIAvailable(ctx context.Context) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.meta == nil {
		return false, mcperr.New(mcperr.NoBundleActive, "no bundle is active")
	}
	return m.probe(ctx, m.meta.KubeconfigPath) == nil, nil
}

// DiagnosticsRecord is the detail returned by GetDiagnostics, combining
// state-machine position with the supervisor's process-level subrecord.
type DiagnosticsRecord struct {
	State       State
	Metadata    *Metadata
	ProcessInfo servetool.Diagnostics
}

// GetDiagnostics returns the current state and, if a supervisor is
// attached, its process diagnostics.
func (m *Manager) GetDiagnostics() DiagnosticsRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec := DiagnosticsRecord{State: m.state}
	if m.meta != nil {
		cp := *m.meta
		rec.Metadata = &cp
	}
	if m.super != nil {
		rec.ProcessInfo = m.super.Diagnostics()
	}
	return rec
}

// Shutdown tears down the active bundle unconditionally, used on process
// exit. Non-fatal cleanup failures are aggregated rather than aborting
// the remaining steps.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.meta == nil {
		return nil
	}
	m.state = StateCleaningUp
	err := m.teardownLocked()
	m.state = StateEmpty
	return err
}

// teardownLocked stops the supervisor, removes the extraction root, and
// deletes the archive if this process downloaded it. Caller must hold mu.
func (m *Manager) teardownLocked() error {
	var result *multierror.Error

	if m.super != nil {
		if err := m.super.Stop(defaultTeardownGrace); err != nil {
			result = multierror.Append(result, errors.Wrap(err, "stopping serve-tool"))
		}
		m.super = nil
	}

	if m.meta != nil {
		if m.meta.extractedByUs {
			if err := os.RemoveAll(m.meta.Root); err != nil {
				result = multierror.Append(result, errors.Wrap(err, "removing extraction root"))
			}
		}
		if m.meta.downloadedByUs {
			if err := os.Remove(m.meta.ArchivePath); err != nil && !os.IsNotExist(err) {
				result = multierror.Append(result, errors.Wrap(err, "removing downloaded archive"))
			}
		}
		if err := os.Remove(m.meta.KubeconfigPath); err != nil && !os.IsNotExist(err) {
			result = multierror.Append(result, errors.Wrap(err, "removing kubeconfig"))
		}
	}

	m.meta = nil
	if result.ErrorOrNil() != nil {
		return result
	}
	return nil
}

const defaultTeardownGrace = 10 * time.Second
