// Copyright (c) 2026 ToeiRei
// Serverbase - SSH server registry and remote execution
// This source code is licensed under the MIT license found in the LICENSE file.

// Package seo derives URL-safe slugs (seoname, seodomain) that serve as
// alternate natural keys in the registry.
package seo

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Name returns the slug of s: diacritics removed, lower case, every run of
// characters other than letters and digits collapsed into one dash.
func Name(s string) string {
	return slug(s)
}

// Domain returns the slug of a domain name. Dots are treated like any other
// separator so "Web1.Example.com" becomes "web1-example-com".
func Domain(s string) string {
	return slug(strings.TrimSuffix(s, "."))
}

func slug(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			dash = false
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			// non-ASCII letters without a decomposition are dropped
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// ExistsFunc reports whether a slug is already taken.
type ExistsFunc func(ctx context.Context, slug string) (bool, error)

// Unique returns base, or base suffixed with -1, -2, ... until exists reports
// the slug as free. It gives up after max attempts.
func Unique(ctx context.Context, base string, max int, exists ExistsFunc) (string, error) {
	if base == "" {
		return "", fmt.Errorf("empty slug")
	}
	candidate := base
	for i := 1; i <= max; i++ {
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
	return "", fmt.Errorf("no free slug for %q after %d attempts", base, max)
}
