// Package mcperr defines the behavior-oriented error taxonomy shared by every
// core component, so the tool surface can switch on what happened instead of
// pattern-matching error strings.
package mcperr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind identifies one of the error behaviors a tool call can fail with.
type Kind string

const (
	BundleSourceInvalid  Kind = "bundle-source-invalid"
	AuthRequired         Kind = "auth-required"
	DownloadFailed       Kind = "download-failed"
	ExtractionFailed     Kind = "extraction-failed"
	ServeToolStartFailed Kind = "serve-tool-start-failed"
	APIUnavailable       Kind = "api-unavailable"
	NoBundleActive       Kind = "no-bundle-active"
	BundleAlreadyActive Kind = "bundle-already-active"
	KctlCommandDisallowed Kind = "kctl-command-disallowed"
	KctlFailed           Kind = "kctl-failed"
	KctlTimeout          Kind = "kctl-timeout"
	PathNotSafe          Kind = "path-not-safe"
	PathNotFound         Kind = "path-not-found"
	NotADirectory        Kind = "not-a-directory"
	NotAFile             Kind = "not-a-file"
	RegexInvalid         Kind = "regex-invalid"
	Timeout              Kind = "timeout"
	SchemaInvalid        Kind = "schema-invalid"
	Internal             Kind = "internal-error"
)

// DownloadReason gives download-failed a sub-reason, per spec.md §7.
type DownloadReason string

const (
	ReasonHTTP401          DownloadReason = "http-401"
	ReasonHTTP403          DownloadReason = "http-403"
	ReasonHTTP404          DownloadReason = "http-404"
	ReasonTimeout          DownloadReason = "timeout"
	ReasonSizeExceeded     DownloadReason = "size-exceeded"
	ReasonMissingSignedURL DownloadReason = "missing-signed-url"
	ReasonTransport        DownloadReason = "transport"
)

// Error is the typed error every core component raises. It carries enough
// structure for the formatter to render per-tier detail without needing to
// re-parse a message string.
type Error struct {
	Kind    Kind
	Message string
	Reason  DownloadReason
	Fields  map[string]any
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a bare Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error of the given kind around an underlying cause.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// WithField attaches a diagnostic field (e.g. "path", "command") used by
// verbose/debug rendering.
func (e *Error) WithField(key string, value any) *Error {
	if e.Fields == nil {
		e.Fields = map[string]any{}
	}
	e.Fields[key] = value
	return e
}

// WithReason sets the download-failed sub-reason.
func (e *Error) WithReason(r DownloadReason) *Error {
	e.Reason = r
	return e
}

// KindOf extracts the Kind from err, defaulting to Internal for anything not
// raised through this package. Errors wrapped with github.com/pkg/errors
// (WithStack, Wrap) are unwrapped transparently via errors.As.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// As is a thin re-export so callers don't need a second import for the
// common case of recovering the typed Error.
func As(err error, target **Error) bool {
	return errors.As(err, target)
}
