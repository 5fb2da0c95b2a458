// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config resolves the environment variables spec.md §6 lists into a
// single Config value, with viper handling default/env-var precedence.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the process-wide set of knobs every component reads through
// explicit fields rather than reaching for os.Getenv directly.
type Config struct {
	// BundleStorageDir is where downloaded archives and extraction roots live.
	BundleStorageDir string
	// ServeToolBin and KctlBin name the external binaries; overridable so
	// tests can point them at fakes.
	ServeToolBin string
	KctlBin      string

	DefaultVerbosity string
	ForceDebug       bool

	InitializationTimeout time.Duration
	DownloadTimeout       time.Duration

	CleanupOrphaned bool
	PeriodicCleanup bool
	CleanupInterval time.Duration

	VendorPortalHost string
	VendorAPIHost    string

	MaxDownloadBytes int64
}

// New builds a Config from the environment, applying the teacher's "plain
// struct populated once at startup" idiom (pkg/config/config.go) rather than
// threading env lookups through every component.
func New() *Config {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("mcp_bundle_storage", defaultStorageDir())
	v.SetDefault("mcp_log_level", "INFO")
	v.SetDefault("mcp_verbosity", "minimal")
	v.SetDefault("mcp_debug", false)
	v.SetDefault("max_initialization_timeout", 180)
	v.SetDefault("max_download_timeout", 300)
	v.SetDefault("sbctl_cleanup_orphaned", false)
	v.SetDefault("enable_periodic_cleanup", false)
	v.SetDefault("cleanup_interval", 300)

	return &Config{
		BundleStorageDir:      v.GetString("mcp_bundle_storage"),
		ServeToolBin:          "sbctl",
		KctlBin:               "kubectl",
		DefaultVerbosity:      strings.ToLower(v.GetString("mcp_verbosity")),
		ForceDebug:            v.GetBool("mcp_debug"),
		InitializationTimeout: time.Duration(v.GetInt("max_initialization_timeout")) * time.Second,
		DownloadTimeout:       time.Duration(v.GetInt("max_download_timeout")) * time.Second,
		CleanupOrphaned:       v.GetBool("sbctl_cleanup_orphaned"),
		PeriodicCleanup:       v.GetBool("enable_periodic_cleanup"),
		CleanupInterval:       time.Duration(v.GetInt("cleanup_interval")) * time.Second,
		VendorPortalHost:      "vendor.replicated.com",
		VendorAPIHost:         "api.replicated.com",
		MaxDownloadBytes:      2 << 30, // 2 GiB
	}
}

func defaultStorageDir() string {
	if dir := os.Getenv("MCP_BUNDLE_STORAGE"); dir != "" {
		return dir
	}
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "bundle-mcp", "bundles")
}

// AuthToken resolves the vendor-portal auth token using the precedence
// spec.md §4.3 requires: SBCTL_TOKEN first, REPLICATED as fallback, empty
// if neither is set.
func (c *Config) AuthToken() string {
	if tok := os.Getenv("SBCTL_TOKEN"); tok != "" {
		return tok
	}
	return os.Getenv("REPLICATED")
}

// EnsureBundleStorageDir creates the storage directory if missing and
// returns its absolute path.
func (c *Config) EnsureBundleStorageDir() (string, error) {
	abs, err := filepath.Abs(c.BundleStorageDir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", err
	}
	return abs, nil
}

// ParseBoolEnv applies the same lenient truthy parsing viper uses for
// MCP_DEBUG-style flags, for callers that read an override directly.
func ParseBoolEnv(s string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return b
}
