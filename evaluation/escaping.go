// Package evaluation turns a construction document tree into a fully
// resolved, queryable model: properties, items, item definitions, targets
// and the import closure.
//
// Evaluation is a fixed sequence of passes (toolset setup, properties and
// imports, item definitions, items, targets). Each pass reads only data
// fully resolved by earlier passes plus whatever the current pass has
// accumulated so far, so results are deterministic under re-evaluation.
// The document tree itself is never mutated during evaluation.
package evaluation

import (
	"fmt"
	"strings"
)

// Characters with syntactic meaning in value expressions. Escaping keeps
// expanded values inert so they can be re-embedded without a second round
// of interpretation.
const escapableChars = "%$@'();?*"

// Escape replaces every special character in s with its %XX escape so the
// result round-trips through expansion unchanged.
func Escape(s string) string {
	if !strings.ContainsAny(s, escapableChars) {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if strings.IndexByte(escapableChars, c) >= 0 {
			fmt.Fprintf(&sb, "%%%02X", c)
		} else {
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

// Unescape decodes %XX escape sequences in s. Malformed sequences are left
// untouched rather than rejected; raw percent signs occur in real values.
func Unescape(s string) string {
	idx := strings.IndexByte(s, '%')
	if idx < 0 {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '%' && i+2 < len(s) {
			hi, okHi := hexValue(s[i+1])
			lo, okLo := hexValue(s[i+2])
			if okHi && okLo {
				sb.WriteByte(hi<<4 | lo)
				i += 2
				continue
			}
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

func hexValue(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}

// splitEscaped splits an escaped expression on unescaped semicolons and
// drops empty fragments. The fragments remain escaped.
func splitEscaped(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ";")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
