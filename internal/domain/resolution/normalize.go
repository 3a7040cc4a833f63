package resolution

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// HealthCardLength is the number of digits in a CNS number.
const HealthCardLength = 15

// Portuguese connective particles. They are kept in the canonical form but
// ignored when measuring token overlap.
var nameParticles = map[string]bool{
	"da": true, "de": true, "do": true, "das": true, "dos": true, "e": true,
}

var birthDateLayouts = []string{"2006-01-02", "02/01/2006", time.RFC3339}

// foldAccents builds its transformer per call; transform chains keep
// internal state and must not be shared between goroutines.
func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// NormalizeName lower-cases, strips diacritics, turns punctuation into
// spaces and collapses whitespace. Token order is preserved.
func NormalizeName(raw string) string {
	folded := foldAccents(strings.ToLower(raw))
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// NameKey is the comparison key derived from a name.
type NameKey struct {
	Canonical   string
	Tokens      []string
	Significant []string
}

func NewNameKey(raw string) NameKey {
	canonical := NormalizeName(raw)
	tokens := strings.Fields(canonical)
	significant := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if !nameParticles[t] {
			significant = append(significant, t)
		}
	}
	if len(significant) == 0 {
		significant = tokens
	}
	return NameKey{Canonical: canonical, Tokens: tokens, Significant: significant}
}

// First returns the given-name token, or "" for an empty key.
func (k NameKey) First() string {
	if len(k.Tokens) == 0 {
		return ""
	}
	return k.Tokens[0]
}

// NormalizeDate drops the time component, keeping the calendar date as
// seen in t's location.
func NormalizeDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseBirthDate accepts ISO (2006-01-02), Brazilian (02/01/2006) or
// RFC 3339 input and rejects dates after today.
func ParseBirthDate(raw string, now time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("birth date is required")
	}
	for _, layout := range birthDateLayouts {
		t, err := time.Parse(layout, raw)
		if err != nil {
			continue
		}
		d := NormalizeDate(t)
		if d.After(NormalizeDate(now)) {
			return time.Time{}, fmt.Errorf("birth date %s is in the future", d.Format("2006-01-02"))
		}
		return d, nil
	}
	return time.Time{}, fmt.Errorf("unrecognised birth date %q", raw)
}

// NormalizeHealthCard keeps only the digits of a CNS number, dropping the
// spaces, dots and dashes people type between groups.
func NormalizeHealthCard(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidHealthCard reports whether n is a normalized, well-formed CNS.
func ValidHealthCard(n string) bool {
	if len(n) != HealthCardLength {
		return false
	}
	for i := 0; i < len(n); i++ {
		if n[i] < '0' || n[i] > '9' {
			return false
		}
	}
	return true
}
