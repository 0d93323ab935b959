package model

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeName canonicalizes a company or person name for identity matching:
// accents stripped, lowercased, whitespace collapsed. Brazilian trade names
// routinely differ only in accents and casing between sources.
func NormalizeName(s string) string {
	out, _, err := transform.String(stripAccents, strings.TrimSpace(s))
	if err != nil {
		out = strings.TrimSpace(s)
	}
	return strings.ToLower(strings.Join(strings.Fields(out), " "))
}

// NormalizeCNPJ reduces a CNPJ to its bare digits, dropping the usual
// XX.XXX.XXX/XXXX-XX punctuation.
func NormalizeCNPJ(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
