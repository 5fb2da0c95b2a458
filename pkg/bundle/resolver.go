package bundle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode"

	getter "github.com/hashicorp/go-getter"
	"github.com/pkg/errors"

	"github.com/replicatedhq/bundle-mcp/pkg/config"
	"github.com/replicatedhq/bundle-mcp/pkg/mcperr"
)

// vendorPortalPattern matches https://<vendor-host>/troubleshoot/analyze/<slug>,
// where the slug may itself contain '@' and ':' (timestamps, versions).
var vendorPortalPattern = regexp.MustCompile(`^https?://[^/]+/troubleshoot/analyze/(.+)$`)

// Resolver turns a Bundle Source string into a local archive path, per
// spec.md §4.3. It never reads the environment directly so it stays
// testable against an httptest.Server.
type Resolver struct {
	cfg    *config.Config
	client *http.Client
}

// NewResolver builds a Resolver bound to cfg's vendor hosts and download
// timeout/size cap.
func NewResolver(cfg *config.Config) *Resolver {
	return &Resolver{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.DownloadTimeout},
	}
}

// Resolve implements the five-step algorithm in spec.md §4.3. downloaded
// reports whether the process fetched the archive itself (so the manager
// knows whether to delete it on cleanup).
func (r *Resolver) Resolve(ctx context.Context, source, token string) (archivePath string, downloaded bool, err error) {
	trimmed := stripAllWhitespace(source)
	if trimmed == "" {
		return "", false, mcperr.New(mcperr.BundleSourceInvalid, "empty bundle source")
	}

	if path, ok := r.asLocal(trimmed); ok {
		return path, false, nil
	}

	if m := vendorPortalPattern.FindStringSubmatch(trimmed); m != nil {
		slug := m[1]
		path, err := r.resolveVendorPortal(ctx, slug, token)
		return path, true, err
	}

	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		path, err := r.downloadGeneric(ctx, trimmed)
		return path, true, err
	}

	return "", false, mcperr.New(mcperr.BundleSourceInvalid, fmt.Sprintf("not a local archive, directory, or recognized URL: %s", trimmed))
}

// stripAllWhitespace removes every whitespace rune, matching spec.md §4.3
// step 1's "strip whitespace, including internal whitespace introduced by
// log wrapping" — agents sometimes paste a URL that line-wrapped in a log
// viewer, inserting spaces/newlines mid-string.
func stripAllWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func (r *Resolver) asLocal(source string) (string, bool) {
	info, err := os.Stat(source)
	if err != nil {
		return "", false
	}
	if info.IsDir() {
		if DirFingerprintOK(source) {
			return source, true
		}
		return "", false
	}
	lower := strings.ToLower(source)
	if strings.HasSuffix(lower, ".tar.gz") || strings.HasSuffix(lower, ".tgz") {
		return source, true
	}
	return "", false
}

func (r *Resolver) resolveVendorPortal(ctx context.Context, slug, token string) (string, error) {
	if token == "" {
		return "", mcperr.New(mcperr.AuthRequired, "vendor-portal bundle source requires SBCTL_TOKEN or REPLICATED")
	}

	apiURL := fmt.Sprintf("https://%s/vendor/v3/supportbundle/%s", r.cfg.VendorAPIHost, slug)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return "", mcperr.Wrap(mcperr.DownloadFailed, err, "building vendor API request").WithReason(mcperr.ReasonTransport)
	}
	req.Header.Set("Authorization", token)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", classifyHTTPError(err)
	}
	defer resp.Body.Close()

	if derr := httpStatusError(resp.StatusCode); derr != nil {
		return "", derr
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", mcperr.Wrap(mcperr.DownloadFailed, err, "reading vendor API response").WithReason(mcperr.ReasonTransport)
	}

	signedURL, err := extractSignedURI(body)
	if err != nil {
		return "", err
	}

	dest := filepath.Join(r.storageDir(), sanitizeSlugFilename(slug)+".tar.gz")
	if err := r.streamDownload(ctx, signedURL, dest, ""); err != nil {
		return "", err
	}
	return dest, nil
}

// vendorResponse covers both documented response shapes: a top-level
// signedUri, or one nested under "bundle".
type vendorResponse struct {
	SignedURI string `json:"signedUri"`
	Bundle    struct {
		SignedURI string `json:"signedUri"`
	} `json:"bundle"`
}

func extractSignedURI(body []byte) (string, error) {
	var v vendorResponse
	if err := json.Unmarshal(body, &v); err != nil {
		return "", mcperr.Wrap(mcperr.DownloadFailed, err, "parsing vendor API response").WithReason(mcperr.ReasonTransport)
	}
	if v.SignedURI != "" {
		return v.SignedURI, nil
	}
	if v.Bundle.SignedURI != "" {
		return v.Bundle.SignedURI, nil
	}
	return "", mcperr.New(mcperr.DownloadFailed, "vendor API response had no signedUri").WithReason(mcperr.ReasonMissingSignedURL)
}

func sanitizeSlugFilename(slug string) string {
	replacer := strings.NewReplacer("@", "_at_", ":", "_", "/", "_")
	return replacer.Replace(slug)
}

// streamDownload fetches url into dest with a streaming size cap, used for
// the vendor-portal signed-URL fetch where we need a custom cap and no
// extra auth header (signed URLs embed their own credentials).
func (r *Resolver) streamDownload(ctx context.Context, url, dest, authHeader string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return mcperr.Wrap(mcperr.DownloadFailed, err, "building signed URL request").WithReason(mcperr.ReasonTransport)
	}
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return classifyHTTPError(err)
	}
	defer resp.Body.Close()

	if derr := httpStatusError(resp.StatusCode); derr != nil {
		return derr
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return errors.Wrap(err, "creating bundle storage directory")
	}

	out, err := os.Create(dest)
	if err != nil {
		return mcperr.Wrap(mcperr.DownloadFailed, err, "creating destination file").WithReason(mcperr.ReasonTransport)
	}
	defer out.Close()

	limit := r.cfg.MaxDownloadBytes
	n, err := io.Copy(out, io.LimitReader(resp.Body, limit+1))
	if err != nil {
		os.Remove(dest)
		return mcperr.Wrap(mcperr.DownloadFailed, err, "streaming download body").WithReason(mcperr.ReasonTransport)
	}
	if n > limit {
		os.Remove(dest)
		return mcperr.New(mcperr.DownloadFailed, fmt.Sprintf("download exceeded %d byte cap", limit)).WithReason(mcperr.ReasonSizeExceeded)
	}
	return nil
}

// downloadGeneric handles spec.md §4.3 step 4: a plain HTTP/HTTPS archive
// URL, fetched via hashicorp/go-getter the way replicatedhq/troubleshoot's
// pkg/analyze/download.go does.
func (r *Resolver) downloadGeneric(ctx context.Context, url string) (string, error) {
	dest := filepath.Join(r.storageDir(), fmt.Sprintf("bundle-%d.tar.gz", time.Now().UnixNano()))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", errors.Wrap(err, "creating bundle storage directory")
	}

	client := &getter.Client{
		Ctx:  ctx,
		Src:  url,
		Dst:  dest,
		Mode: getter.ClientModeFile,
	}
	if err := client.Get(); err != nil {
		return "", classifyHTTPError(err)
	}
	return dest, nil
}

func (r *Resolver) storageDir() string {
	dir, err := r.cfg.EnsureBundleStorageDir()
	if err != nil {
		return r.cfg.BundleStorageDir
	}
	return dir
}

func httpStatusError(status int) error {
	switch status {
	case http.StatusOK, http.StatusPartialContent:
		return nil
	case http.StatusUnauthorized:
		return mcperr.New(mcperr.DownloadFailed, "vendor API returned 401").WithReason(mcperr.ReasonHTTP401)
	case http.StatusForbidden:
		return mcperr.New(mcperr.DownloadFailed, "vendor API returned 403").WithReason(mcperr.ReasonHTTP403)
	case http.StatusNotFound:
		return mcperr.New(mcperr.DownloadFailed, "vendor API returned 404").WithReason(mcperr.ReasonHTTP404)
	default:
		return mcperr.New(mcperr.DownloadFailed, fmt.Sprintf("unexpected HTTP status %d", status)).WithReason(mcperr.ReasonTransport)
	}
}

func classifyHTTPError(err error) error {
	if os.IsTimeout(err) {
		return mcperr.Wrap(mcperr.DownloadFailed, err, "request timed out").WithReason(mcperr.ReasonTimeout)
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return mcperr.Wrap(mcperr.DownloadFailed, err, "request timed out").WithReason(mcperr.ReasonTimeout)
	}
	return mcperr.Wrap(mcperr.DownloadFailed, err, "request failed").WithReason(mcperr.ReasonTransport)
}
