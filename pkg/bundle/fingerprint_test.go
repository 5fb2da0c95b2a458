package bundle

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFingerprintNamesDirect(t *testing.T) {
	tests := []struct {
		name  string
		names []string
		want  bool
	}{
		{"has cluster-info", []string{"cluster-info", "other"}, true},
		{"has cluster-resources", []string{"cluster-resources"}, true},
		{"has kubernetes", []string{"kubernetes", "analysis.json"}, true},
		{"no fingerprint dir, multiple entries", []string{"foo", "bar"}, false},
		{"empty", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fingerprintNames(tt.names, nil); got != tt.want {
				t.Errorf("fingerprintNames(%v) = %v, want %v", tt.names, got, tt.want)
			}
		})
	}
}

func TestFingerprintNamesOneLevelWrapping(t *testing.T) {
	peek := func(wrapper string) []string {
		if wrapper == "wrapped-dir" {
			return []string{"cluster-info", "kubernetes"}
		}
		return nil
	}
	if !fingerprintNames([]string{"wrapped-dir"}, peek) {
		t.Errorf("expected single wrapping directory with fingerprint children to pass")
	}

	peekEmpty := func(string) []string { return []string{"junk"} }
	if fingerprintNames([]string{"wrapped-dir"}, peekEmpty) {
		t.Errorf("expected single wrapping directory without fingerprint children to fail")
	}
}

func TestDirFingerprintOK(t *testing.T) {
	root := t.TempDir()
	if DirFingerprintOK(root) {
		t.Fatal("empty directory should not pass fingerprint")
	}

	if err := os.Mkdir(filepath.Join(root, "cluster-info"), 0o755); err != nil {
		t.Fatal(err)
	}
	if !DirFingerprintOK(root) {
		t.Errorf("expected directory with cluster-info to pass fingerprint")
	}
}

func TestDirFingerprintOKWrapped(t *testing.T) {
	root := t.TempDir()
	wrapped := filepath.Join(root, "support-bundle-2024-01-01")
	if err := os.MkdirAll(filepath.Join(wrapped, "cluster-resources"), 0o755); err != nil {
		t.Fatal(err)
	}
	if !DirFingerprintOK(root) {
		t.Errorf("expected one level of wrapping to pass fingerprint")
	}
}
