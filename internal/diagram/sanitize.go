// Package diagram renders the aggregated model as Mermaid class, component
// and entity-relationship diagrams. Every renderer is a pure function of the
// model.
package diagram

import (
	"crypto/sha256"
	"encoding/hex"
	"path"
	"strings"
	"unicode"
)

// placeholder is used when nothing usable survives sanitization.
const placeholder = "Node"

// Sanitize reduces name to a Mermaid-safe identifier: characters outside
// [A-Za-z0-9_] are dropped, leading digits and underscores are trimmed, and
// the result always starts with a letter.
func Sanitize(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if isIdentRune(r) {
			b.WriteRune(r)
		}
	}
	s := strings.TrimLeft(b.String(), "0123456789_")
	if s == "" {
		return placeholder
	}
	return s
}

// ShortHash is the first three bytes of sha256(name), hex encoded.
func ShortHash(name string) string {
	sum := sha256.Sum256([]byte(name))
	return hex.EncodeToString(sum[:3])
}

// ID returns the sanitized identifier for name with a hash suffix derived
// from the unsanitized name, so "a-b" and "a_b" never collide.
func ID(name string) string {
	return Sanitize(name) + "_" + ShortHash(name)
}

// FileID is the class identifier for a file key (a root-relative path or a
// bare basename). The basename's stem is sanitized and the hash covers the
// whole key, so app/page.tsx and app/about/page.tsx stay distinct.
func FileID(key string) string {
	base := path.Base(key)
	stem := strings.TrimSuffix(base, path.Ext(base))
	return Sanitize(stem) + "_" + ShortHash(key)
}

// Visibility maps the leading-underscore convention to a UML marker.
func Visibility(name string) string {
	n := len(name) - len(strings.TrimLeft(name, "_"))
	switch {
	case n == 0:
		return "+"
	case n == 1:
		return "-"
	default:
		return "#"
	}
}

// quote makes s safe inside a double-quoted Mermaid label.
func quote(s string) string {
	return strings.ReplaceAll(s, `"`, "'")
}

func isIdentRune(r rune) bool {
	return r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_')
}
