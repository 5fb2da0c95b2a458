// Package kctl executes a restricted, read-only subset of kubectl against
// the kubeconfig written by the active bundle's serve-tool.
package kctl

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/replicatedhq/bundle-mcp/pkg/mcperr"
)

// allowedVerbs are the only first tokens execute will run, per spec.md §4.7.
var allowedVerbs = map[string]bool{
	"get":           true,
	"describe":      true,
	"explain":       true,
	"config":        true,
	"version":       true,
	"api-resources": true,
	"api-versions":  true,
	"cluster-info":  true,
}

const shellMetacharacters = ";&|><`$\\"

// Result is the record returned by Execute, per spec.md §4.7's closing
// paragraph.
type Result struct {
	Command  string
	Duration time.Duration
	Stdout   string
	Stderr   string
	ExitCode int
	JSON     bool
	Body     any
}

// KubeconfigFunc resolves the active bundle's kubeconfig path, failing
// no-bundle-active when none is active.
type KubeconfigFunc func() (string, error)

// Executor runs validated kubectl commands against kctlBin.
type Executor struct {
	bin            string
	getKubeconfig  KubeconfigFunc
	defaultTimeout time.Duration
}

// New builds an Executor bound to bin (normally "kubectl") and a kubeconfig
// resolver supplied by the bundle manager.
func New(bin string, getKubeconfig KubeconfigFunc, defaultTimeout time.Duration) *Executor {
	return &Executor{bin: bin, getKubeconfig: getKubeconfig, defaultTimeout: defaultTimeout}
}

// Validate normalizes and checks command per spec.md §4.7, returning the
// normalized argument string on success.
func Validate(command string) (string, error) {
	normalized := strings.TrimSpace(command)
	normalized = strings.TrimPrefix(normalized, "kubectl ")
	normalized = strings.TrimSpace(normalized)

	if normalized == "" {
		return "", mcperr.New(mcperr.KctlCommandDisallowed, "empty command")
	}
	if strings.ContainsAny(normalized, shellMetacharacters) {
		return "", mcperr.New(mcperr.KctlCommandDisallowed, "command contains shell metacharacters").WithField("command", command)
	}

	fields := strings.Fields(normalized)
	if !allowedVerbs[fields[0]] {
		return "", mcperr.New(mcperr.KctlCommandDisallowed, "verb not allowed: "+fields[0]).WithField("command", command)
	}
	return normalized, nil
}

// Execute validates, then runs command with the given timeout, per
// spec.md §4.7.
func (e *Executor) Execute(ctx context.Context, command string, timeout time.Duration, jsonOutput bool) (*Result, error) {
	normalized, err := Validate(command)
	if err != nil {
		return nil, err
	}

	kubeconfig, err := e.getKubeconfig()
	if err != nil {
		return nil, err
	}

	args := strings.Fields(normalized)
	if jsonOutput && !hasOutputFlag(args) {
		args = append(args, "-o", "json")
	}

	if timeout <= 0 {
		timeout = e.defaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, e.bin, args...)
	cmd.Env = append(os.Environ(), "KUBECONFIG="+kubeconfig)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	full := e.bin + " " + strings.Join(args, " ")

	if runCtx.Err() == context.DeadlineExceeded {
		return nil, mcperr.New(mcperr.KctlTimeout, "kubectl command timed out").WithField("command", full)
	}

	exitCode := 0
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return nil, mcperr.Wrap(mcperr.KctlFailed, runErr, "running kubectl")
		}
	}

	if exitCode != 0 {
		return nil, mcperr.New(mcperr.KctlFailed, stderr.String()).WithField("command", full).WithField("exit_code", exitCode)
	}

	result := &Result{
		Command:  full,
		Duration: duration,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode,
	}

	if jsonOutput {
		trimmed := strings.TrimSpace(result.Stdout)
		if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
			var body any
			if err := json.Unmarshal([]byte(trimmed), &body); err == nil {
				result.JSON = true
				result.Body = body
			}
		}
	}

	return result, nil
}

// ProbeReady runs a lightweight no-namespace read against the emulated API
// server, used by the serve-tool supervisor's readiness poll (spec.md
// §4.5) before a bundle is considered active — so it bypasses Execute's
// active-bundle and verb-allowlist checks and talks directly to bin.
func ProbeReady(ctx context.Context, bin, kubeconfigPath string) error {
	cmd := exec.CommandContext(ctx, bin, "get", "--raw=/readyz")
	cmd.Env = append(os.Environ(), "KUBECONFIG="+kubeconfigPath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return mcperr.Wrap(mcperr.APIUnavailable, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func hasOutputFlag(args []string) bool {
	for _, a := range args {
		if a == "-o" || a == "--output" || strings.HasPrefix(a, "-o=") || strings.HasPrefix(a, "--output=") {
			return true
		}
	}
	return false
}
