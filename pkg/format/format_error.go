package format

import (
	"fmt"
	"strings"

	"github.com/replicatedhq/bundle-mcp/pkg/mcperr"
)

// RenderError implements spec.md §7's propagation policy: minimal gets a
// short phrase, verbose/debug get the phrase plus cause chain and fields.
func RenderError(err error, tier Tier) string {
	var e *mcperr.Error
	if !mcperr.As(err, &e) {
		e = mcperr.Wrap(mcperr.Internal, err, "internal error")
	}

	phrase := string(e.Kind)
	if e.Message != "" {
		phrase = fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}

	if tier == TierMinimal {
		return phrase
	}

	var b strings.Builder
	b.WriteString(phrase)
	if e.Reason != "" {
		fmt.Fprintf(&b, " (reason: %s)", e.Reason)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, "\ncaused by: %v", e.Cause)
	}
	if len(e.Fields) > 0 {
		b.WriteString("\nfields:\n")
		for _, k := range sortedFieldKeys(e.Fields) {
			fmt.Fprintf(&b, "  %s: %v\n", k, e.Fields[k])
		}
	}
	return b.String()
}
