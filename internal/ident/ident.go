// Package ident mints and recognizes canonical entity identifiers of the
// form `type_slug_shortcode`.
package ident

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	mathrand "math/rand"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/fennwick/lorevault/internal/models"
)

const (
	maxSlugLen     = 24
	defaultCodeLen = 4
	fallbackSlug   = "entity"
	makeIDAttempts = 5
	base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// canonicalRe is the oracle used everywhere else in the system to decide
// "this string is already a canonical id" versus "this needs resolution".
var canonicalRe = regexp.MustCompile(
	`^(` + strings.Join(models.Types(), "|") + `)_[a-z0-9-]{1,24}_[a-z0-9]{4,6}$`)

// IsCanonical reports whether s is a canonical `type_slug_shortcode` id.
func IsCanonical(s string) bool {
	return canonicalRe.MatchString(s)
}

// ErrUnsupportedType is wrapped by MakeID when the requested entity type
// is outside the closed set.
var ErrUnsupportedType = fmt.Errorf("unsupported entity type")

// CollisionError reports that MakeID exhausted its retry budget without
// finding an id absent from the existing set.
type CollisionError struct {
	Type     string
	Slug     string
	Attempts int
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("ident: exhausted %d attempts generating id for %s_%s", e.Attempts, e.Type, e.Slug)
}

// RNG supplies uniform samples in [0,1). The default implementation draws
// from crypto/rand and degrades to math/rand if that fails.
type RNG func() float64

func defaultRNG() float64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return mathrand.Float64()
	}
	// 53 bits of entropy, same resolution as math/rand.Float64.
	return float64(binary.BigEndian.Uint64(buf[:])>>11) / (1 << 53)
}

// Slugify derives a deterministic, filename-safe slug from a display name:
// diacritics stripped, lower-cased, whitespace and underscores collapsed
// to single hyphens, all other characters outside [a-z0-9-] removed,
// trimmed, and capped at 24 characters. An empty result falls back to
// "entity".
func Slugify(name string) string {
	s := stripDiacritics(name)
	s = strings.ToLower(s)

	var b strings.Builder
	hyphen := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r) || r == '_' || r == '-':
			if b.Len() > 0 && !hyphen {
				b.WriteByte('-')
				hyphen = true
			}
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			hyphen = false
		}
	}
	out := strings.TrimRight(b.String(), "-")
	if len(out) > maxSlugLen {
		out = strings.TrimRight(out[:maxSlugLen], "-")
	}
	if out == "" {
		return fallbackSlug
	}
	return out
}

// stripDiacritics decomposes to NFD and drops combining marks, so that
// e.g. "Vórra" slugs the same as "Vorra".
func stripDiacritics(s string) string {
	decomposed := norm.NFD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ShortCode draws length base-36 characters from rng (defaultRNG when
// nil).
func ShortCode(length int, rng RNG) string {
	if length <= 0 {
		length = defaultCodeLen
	}
	if rng == nil {
		rng = defaultRNG
	}
	b := make([]byte, length)
	for i := range b {
		idx := int(rng()*36) % 36
		if idx < 0 {
			idx += 36
		}
		b[i] = base36Alphabet[idx]
	}
	return string(b)
}

// Options tune MakeID. Zero values select the defaults.
type Options struct {
	CodeLength int
	Rand       RNG
}

// MakeID mints a `type_slug_shortcode` identifier for a new entity. When
// existing is non-nil, up to 5 candidates are tried before failing with a
// *CollisionError; a nil existing set skips the collision check entirely,
// which keeps the generator usable without a full index in hand.
func MakeID(entityType, name string, existing map[string]struct{}, opts Options) (string, error) {
	t := strings.ToLower(strings.TrimSpace(entityType))
	if !models.IsType(t) {
		return "", fmt.Errorf("ident: %w: %q", ErrUnsupportedType, entityType)
	}
	slug := Slugify(name)

	for attempt := 0; attempt < makeIDAttempts; attempt++ {
		id := fmt.Sprintf("%s_%s_%s", t, slug, ShortCode(opts.CodeLength, opts.Rand))
		if existing == nil {
			return id, nil
		}
		if _, taken := existing[id]; !taken {
			return id, nil
		}
	}
	return "", &CollisionError{Type: t, Slug: slug, Attempts: makeIDAttempts}
}

// SplitID breaks a canonical id into its type, slug, and shortcode parts.
// ok is false when id is not canonical.
func SplitID(id string) (entityType, slug, code string, ok bool) {
	if !IsCanonical(id) {
		return "", "", "", false
	}
	first := strings.Index(id, "_")
	last := strings.LastIndex(id, "_")
	return id[:first], id[first+1 : last], id[last+1:], true
}
