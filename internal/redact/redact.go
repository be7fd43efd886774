// Package redact masks credentials and personal data in source snippets
// before they leave the process.
package redact

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Kind categorizes a sensitive value.
type Kind string

const (
	KindPrivateKey Kind = "private_key"
	KindAWSKey     Kind = "aws_key"
	KindJWT        Kind = "jwt"
	KindSecret     Kind = "secret"
	KindBearer     Kind = "bearer"
	KindEmail      Kind = "email"
	KindSSN        Kind = "ssn"
	KindCreditCard Kind = "credit_card"
	KindPhone      Kind = "phone"
	KindIPAddress  Kind = "ip_address"
)

// DefaultKinds are detected when Config.Kinds is empty. Phone numbers and
// IP addresses are opt-in.
var DefaultKinds = []Kind{
	KindPrivateKey, KindAWSKey, KindJWT, KindSecret, KindBearer,
	KindEmail, KindSSN, KindCreditCard,
}

// Style determines how a match is replaced.
type Style string

const (
	StyleRedact  Style = "redact"  // [REDACTED:kind]
	StylePartial Style = "partial" // keep the edges
	StyleHash    Style = "hash"    // stable short digest
)

// ParseStyle maps a config value to a Style. Empty means StyleRedact.
func ParseStyle(s string) (Style, error) {
	switch st := Style(strings.ToLower(strings.TrimSpace(s))); st {
	case "":
		return StyleRedact, nil
	case StyleRedact, StylePartial, StyleHash:
		return st, nil
	default:
		return "", fmt.Errorf("unknown redaction style %q", s)
	}
}

// Match is one detected value.
type Match struct {
	Kind   Kind   `json:"kind"`
	Masked string `json:"masked"`
	Start  int    `json:"start"`
	End    int    `json:"end"`
}

// Config configures a Detector.
type Config struct {
	Kinds []Kind
	Style Style
	// Custom adds patterns under their own kind name.
	Custom map[string]*regexp.Regexp
}

type rule struct {
	kind    Kind
	pattern *regexp.Regexp
	// group selects the submatch to mask; 0 masks the whole match.
	group int
}

var builtin = []rule{
	{KindPrivateKey, regexp.MustCompile(`-----BEGIN [A-Z ]*PRIVATE KEY-----[\s\S]*?-----END [A-Z ]*PRIVATE KEY-----`), 0},
	{KindAWSKey, regexp.MustCompile(`\b(?:AKIA|ASIA)[0-9A-Z]{16}\b`), 0},
	{KindJWT, regexp.MustCompile(`\beyJ[A-Za-z0-9_-]{8,}\.[A-Za-z0-9_-]{8,}\.[A-Za-z0-9_-]{8,}\b`), 0},
	{KindSecret, regexp.MustCompile(`(?i)\b[\w.-]*(?:api[_-]?key|secret|passw(?:or)?d|token|access[_-]?key)[\w.-]*['"]?\s*[:=]\s*['"]([^'"\s]{6,})['"]`), 1},
	{KindBearer, regexp.MustCompile(`(?i)\bBearer\s+([A-Za-z0-9._~+/-]{12,}=*)`), 1},
	{KindEmail, regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), 0},
	{KindSSN, regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), 0},
	{KindCreditCard, regexp.MustCompile(`\b(?:\d{4}[-\s]?){3}\d{4}\b`), 0},
	{KindPhone, regexp.MustCompile(`\b(?:\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]\d{3}[-.\s]\d{4}\b`), 0},
	{KindIPAddress, regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`), 0},
}

var nonDigit = regexp.MustCompile(`\D`)

// Detector finds and masks sensitive values. It is safe for concurrent use.
type Detector struct {
	style Style
	rules []rule
}

// New returns a detector for cfg.
func New(cfg Config) *Detector {
	kinds := cfg.Kinds
	if len(kinds) == 0 {
		kinds = DefaultKinds
	}
	enabled := make(map[Kind]bool, len(kinds))
	for _, k := range kinds {
		enabled[k] = true
	}

	d := &Detector{style: cfg.Style}
	if d.style == "" {
		d.style = StyleRedact
	}
	for _, r := range builtin {
		if enabled[r.kind] {
			d.rules = append(d.rules, r)
		}
	}
	names := make([]string, 0, len(cfg.Custom))
	for name := range cfg.Custom {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		d.rules = append(d.rules, rule{kind: Kind(name), pattern: cfg.Custom[name]})
	}
	return d
}

// Detect returns the non-overlapping matches in text ordered by position.
// Where matches overlap the earlier rule wins, then the longer match.
func (d *Detector) Detect(text string) []Match {
	type candidate struct {
		Match
		rank int
	}
	var found []candidate
	for rank, r := range d.rules {
		for _, loc := range r.pattern.FindAllStringSubmatchIndex(text, -1) {
			start, end := loc[0], loc[1]
			if r.group > 0 && len(loc) > 2*r.group+1 && loc[2*r.group] >= 0 {
				start, end = loc[2*r.group], loc[2*r.group+1]
			}
			value := text[start:end]
			found = append(found, candidate{
				Match: Match{Kind: r.kind, Masked: d.mask(value, r.kind), Start: start, End: end},
				rank:  rank,
			})
		}
	}
	sort.SliceStable(found, func(i, j int) bool {
		a, b := found[i], found[j]
		if a.rank != b.rank {
			return a.rank < b.rank
		}
		return a.End-a.Start > b.End-b.Start
	})

	var kept []Match
	for _, c := range found {
		overlaps := false
		for _, k := range kept {
			if c.Start < k.End && k.Start < c.End {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, c.Match)
		}
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].Start < kept[j].Start })
	return kept
}

// Mask replaces every match in text and returns the masked text with the
// matches, positions referring to the original text.
func (d *Detector) Mask(text string) (string, []Match) {
	matches := d.Detect(text)
	if len(matches) == 0 {
		return text, nil
	}
	var b strings.Builder
	b.Grow(len(text))
	prev := 0
	for _, m := range matches {
		b.WriteString(text[prev:m.Start])
		b.WriteString(m.Masked)
		prev = m.End
	}
	b.WriteString(text[prev:])
	return b.String(), matches
}

// Count tallies matches per kind.
func Count(matches []Match) map[Kind]int {
	out := make(map[Kind]int)
	for _, m := range matches {
		out[m.Kind]++
	}
	return out
}

func (d *Detector) mask(value string, kind Kind) string {
	switch d.style {
	case StylePartial:
		return partial(value, kind)
	case StyleHash:
		sum := sha256.Sum256([]byte(value))
		return "HASH:" + hex.EncodeToString(sum[:6])
	default:
		return "[REDACTED:" + string(kind) + "]"
	}
}

func partial(value string, kind Kind) string {
	if len(value) <= 4 {
		return strings.Repeat("*", len(value))
	}
	switch kind {
	case KindCreditCard:
		digits := nonDigit.ReplaceAllString(value, "")
		return "****-****-****-" + digits[len(digits)-4:]
	case KindSSN:
		return "***-**-" + value[len(value)-4:]
	case KindEmail:
		if local, domain, ok := strings.Cut(value, "@"); ok && local != "" {
			return local[:1] + "***@" + domain
		}
	case KindPhone:
		digits := nonDigit.ReplaceAllString(value, "")
		if len(digits) >= 4 {
			return "(***) ***-" + digits[len(digits)-4:]
		}
	case KindPrivateKey:
		return "-----PRIVATE KEY-----"
	}
	return value[:1] + strings.Repeat("*", len(value)-2) + value[len(value)-1:]
}
