package bundle

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/replicatedhq/bundle-mcp/pkg/config"
	"github.com/replicatedhq/bundle-mcp/pkg/mcperr"
	"github.com/replicatedhq/bundle-mcp/pkg/servetool"
)

// archiveDir writes srcDir as a tar.gz at destPath, giving tests a fixture
// for the extraction path without depending on a real support-bundle archive.
func archiveDir(t *testing.T, srcDir, destPath string) error {
	t.Helper()
	out, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer out.Close()

	gw := gzip.NewWriter(out)
	defer gw.Close()
	tw := tar.NewWriter(gw)
	defer tw.Close()

	return filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
}

// fakeSupervisor satisfies the Supervisor interface without spawning any
// real process, so Manager's state machine can be exercised in isolation.
type fakeSupervisor struct {
	available bool
	startErr  error
	pid       int
	stopped   bool
}

func (f *fakeSupervisor) Start(processCtx, waitCtx context.Context, root, kubeconfigPath string, timeout time.Duration, probe servetool.Probe) (bool, servetool.Diagnostics, error) {
	if f.startErr != nil {
		return false, servetool.Diagnostics{}, f.startErr
	}
	return f.available, servetool.Diagnostics{ProcessAlive: true}, nil
}

func (f *fakeSupervisor) Stop(grace time.Duration) error {
	f.stopped = true
	return nil
}

func (f *fakeSupervisor) Alive() bool                          { return !f.stopped }
func (f *fakeSupervisor) Diagnostics() servetool.Diagnostics    { return servetool.Diagnostics{ProcessAlive: !f.stopped} }
func (f *fakeSupervisor) Pid() int                              { return f.pid }

func newTestBundleDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "cluster-info"), 0o755); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestManagerInitializeFromLocalDirectory(t *testing.T) {
	bundleDir := newTestBundleDir(t)
	cfg := &config.Config{BundleStorageDir: t.TempDir(), InitializationTimeout: time.Second}

	fake := &fakeSupervisor{available: true, pid: 123}
	m := NewManager(t.Context(), cfg, func() Supervisor { return fake })

	meta, available, err := m.Initialize(t.Context(), bundleDir, "", false)
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if !available {
		t.Errorf("expected available=true")
	}
	if meta.Root != bundleDir {
		t.Errorf("Root = %q, want %q", meta.Root, bundleDir)
	}
	if meta.ServeToolPID != 123 {
		t.Errorf("ServeToolPID = %d, want 123", meta.ServeToolPID)
	}
	if m.GetDiagnostics().State != StateActiveAvailable {
		t.Errorf("state = %v, want active-api-available", m.GetDiagnostics().State)
	}
}

func TestManagerInitializeUnavailableAPI(t *testing.T) {
	bundleDir := newTestBundleDir(t)
	cfg := &config.Config{BundleStorageDir: t.TempDir(), InitializationTimeout: time.Second}

	fake := &fakeSupervisor{available: false}
	m := NewManager(t.Context(), cfg, func() Supervisor { return fake })

	_, available, err := m.Initialize(t.Context(), bundleDir, "", false)
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if available {
		t.Errorf("expected available=false")
	}
	if m.GetDiagnostics().State != StateActiveUnavailable {
		t.Errorf("state = %v, want active-api-unavailable", m.GetDiagnostics().State)
	}
}

func TestManagerInitializeRejectsDoubleInitWithoutForce(t *testing.T) {
	bundleDir := newTestBundleDir(t)
	cfg := &config.Config{BundleStorageDir: t.TempDir(), InitializationTimeout: time.Second}

	m := NewManager(t.Context(), cfg, func() Supervisor { return &fakeSupervisor{available: true} })

	if _, _, err := m.Initialize(t.Context(), bundleDir, "", false); err != nil {
		t.Fatalf("first Initialize() error = %v", err)
	}

	_, _, err := m.Initialize(t.Context(), bundleDir, "", false)
	if mcperr.KindOf(err) != mcperr.BundleAlreadyActive {
		t.Errorf("expected BundleAlreadyActive, got %v", err)
	}
}

func TestManagerInitializeForceReplacesActiveBundle(t *testing.T) {
	bundleDir := newTestBundleDir(t)
	cfg := &config.Config{BundleStorageDir: t.TempDir(), InitializationTimeout: time.Second}

	first := &fakeSupervisor{available: true}
	var current Supervisor = first
	m := NewManager(t.Context(), cfg, func() Supervisor { return current })

	if _, _, err := m.Initialize(t.Context(), bundleDir, "", false); err != nil {
		t.Fatalf("first Initialize() error = %v", err)
	}

	second := &fakeSupervisor{available: true, pid: 99}
	current = second
	_, _, err := m.Initialize(t.Context(), bundleDir, "", true)
	if err != nil {
		t.Fatalf("forced Initialize() error = %v", err)
	}
	if !first.stopped {
		t.Errorf("expected original supervisor to be stopped on force re-init")
	}
	if m.GetActive().ServeToolPID != 99 {
		t.Errorf("expected metadata from the second supervisor after force re-init")
	}
}

func TestManagerNoBundleActiveBeforeInitialize(t *testing.T) {
	cfg := &config.Config{BundleStorageDir: t.TempDir()}
	m := NewManager(t.Context(), cfg, func() Supervisor { return &fakeSupervisor{} })

	if _, err := m.GetRoot(); mcperr.KindOf(err) != mcperr.NoBundleActive {
		t.Errorf("expected NoBundleActive, got %v", err)
	}
	if _, err := m.GetKubeconfigPath(); mcperr.KindOf(err) != mcperr.NoBundleActive {
		t.Errorf("expected NoBundleActive, got %v", err)
	}
	if m.IsInitialized() {
		t.Errorf("expected IsInitialized() == false")
	}
}

func TestManagerShutdownTearsDownBundle(t *testing.T) {
	bundleDir := newTestBundleDir(t)
	cfg := &config.Config{BundleStorageDir: t.TempDir(), InitializationTimeout: time.Second}

	fake := &fakeSupervisor{available: true}
	m := NewManager(t.Context(), cfg, func() Supervisor { return fake })

	if _, _, err := m.Initialize(t.Context(), bundleDir, "", false); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	if err := m.Shutdown(t.Context()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if !fake.stopped {
		t.Errorf("expected supervisor to be stopped on shutdown")
	}
	if m.IsInitialized() {
		t.Errorf("expected IsInitialized() == false after shutdown")
	}
	if _, err := os.Stat(bundleDir); err != nil {
		t.Errorf("expected user's directory source to survive shutdown, got %v", err)
	}
}

func TestManagerShutdownRemovesExtractedArchiveRoot(t *testing.T) {
	bundleDir := newTestBundleDir(t)
	storageDir := t.TempDir()
	archivePath := filepath.Join(t.TempDir(), "bundle.tar.gz")
	if err := archiveDir(t, bundleDir, archivePath); err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{BundleStorageDir: storageDir, InitializationTimeout: time.Second}

	fake := &fakeSupervisor{available: true}
	m := NewManager(t.Context(), cfg, func() Supervisor { return fake })

	meta, _, err := m.Initialize(t.Context(), archivePath, "", false)
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if meta.Root == bundleDir {
		t.Fatalf("expected a fresh extraction root distinct from the archive's source directory")
	}
	extractedRoot := meta.Root

	if err := m.Shutdown(t.Context()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if _, err := os.Stat(extractedRoot); !os.IsNotExist(err) {
		t.Errorf("expected extracted root to be removed on shutdown, stat err = %v", err)
	}
}

func TestPeelSingleWrapper(t *testing.T) {
	root := t.TempDir()
	wrapped := filepath.Join(root, "wrapper-dir")
	if err := os.MkdirAll(filepath.Join(wrapped, "cluster-info"), 0o755); err != nil {
		t.Fatal(err)
	}
	if got := peelSingleWrapper(root); got != wrapped {
		t.Errorf("peelSingleWrapper() = %q, want %q", got, wrapped)
	}

	direct := t.TempDir()
	if err := os.Mkdir(filepath.Join(direct, "cluster-info"), 0o755); err != nil {
		t.Fatal(err)
	}
	if got := peelSingleWrapper(direct); got != direct {
		t.Errorf("peelSingleWrapper() on unwrapped root = %q, want %q", got, direct)
	}
}
