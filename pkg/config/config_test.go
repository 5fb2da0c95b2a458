package config

import (
	"os"
	"testing"
)

func TestAuthTokenPrecedence(t *testing.T) {
	tests := []struct {
		name      string
		sbctl     string
		replicated string
		want      string
	}{
		{"neither set", "", "", ""},
		{"replicated only", "", "rep-token", "rep-token"},
		{"sbctl only", "sbctl-token", "", "sbctl-token"},
		{"both set prefers sbctl", "sbctl-token", "rep-token", "sbctl-token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SBCTL_TOKEN", tt.sbctl)
			t.Setenv("REPLICATED", tt.replicated)
			c := &Config{}
			if got := c.AuthToken(); got != tt.want {
				t.Errorf("AuthToken() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewDefaults(t *testing.T) {
	t.Setenv("MCP_BUNDLE_STORAGE", "")
	t.Setenv("MCP_VERBOSITY", "")
	t.Setenv("MCP_DEBUG", "")

	c := New()

	if c.DefaultVerbosity != "minimal" {
		t.Errorf("DefaultVerbosity = %q, want minimal", c.DefaultVerbosity)
	}
	if c.ServeToolBin != "sbctl" {
		t.Errorf("ServeToolBin = %q, want sbctl", c.ServeToolBin)
	}
	if c.KctlBin != "kubectl" {
		t.Errorf("KctlBin = %q, want kubectl", c.KctlBin)
	}
	if c.ForceDebug {
		t.Errorf("ForceDebug = true, want false by default")
	}
}

func TestEnsureBundleStorageDir(t *testing.T) {
	dir := t.TempDir() + "/nested/storage"
	c := &Config{BundleStorageDir: dir}

	abs, err := c.EnsureBundleStorageDir()
	if err != nil {
		t.Fatalf("EnsureBundleStorageDir() error = %v", err)
	}
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		t.Errorf("expected directory at %s to exist", abs)
	}
}

func TestParseBoolEnv(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"true", true},
		{"TRUE", true},
		{"1", true},
		{"false", false},
		{"", false},
		{"garbage", false},
	}
	for _, tt := range tests {
		if got := ParseBoolEnv(tt.in); got != tt.want {
			t.Errorf("ParseBoolEnv(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
