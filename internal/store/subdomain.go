package store

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxSubdomainLen = 40

// Slugify turns a channel name into a DNS label: accents are folded,
// letters lower-cased and anything outside [a-z0-9] becomes a single dash.
func Slugify(name string) string {
	folded, _, err := transform.String(
		transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		name,
	)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
		if b.Len() >= maxSubdomainLen {
			break
		}
	}

	slug := strings.Trim(b.String(), "-")
	if len(slug) > maxSubdomainLen {
		slug = strings.TrimRight(slug[:maxSubdomainLen], "-")
	}
	if slug == "" {
		return "site"
	}
	return slug
}

// uniqueSubdomain returns base, or base-2, base-3... whichever is free.
func uniqueSubdomain(base string, taken func(string) bool) string {
	if !taken(base) {
		return base
	}
	for n := 2; ; n++ {
		suffix := "-" + strconv.Itoa(n)
		candidate := base
		if len(candidate)+len(suffix) > maxSubdomainLen {
			candidate = strings.TrimRight(candidate[:maxSubdomainLen-len(suffix)], "-")
		}
		candidate += suffix
		if !taken(candidate) {
			return candidate
		}
	}
}
