// Package textnorm canonicalizes free-text names so that spelling variants
// of the same region/school/class/student collapse onto one key.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var foldChain = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold strips combining marks: "SÃO JOSÉ" -> "SAO JOSE".
func Fold(s string) string {
	out, _, err := transform.String(foldChain, s)
	if err != nil {
		return s
	}
	return out
}

// Name is the canonical form used for all entity keys: accent-folded,
// uppercased, inner whitespace collapsed, trailing punctuation dropped.
func Name(s string) string {
	s = Fold(s)
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.Join(strings.Fields(s), " ")
	s = strings.TrimRight(s, ".,;:-_ ")
	return s
}

// spelling variants seen across past uploads; consulted before prefix
// stripping so "GETULIO VARGAS"-style fixes apply to the full name.
var synonyms = map[string]string{
	"SAO JOZE":         "SAO JOSE",
	"GETULHO VARGAS":   "GETULIO VARGAS",
	"SANTA LUSIA":      "SANTA LUZIA",
	"PARAIZO":          "PARAISO",
	"N S DA CONCEICAO": "NOSSA SENHORA DA CONCEICAO",
}

// generic institutional qualifiers that don't distinguish one school from
// another; ordered longest-first so compound prefixes win.
var schoolPrefixes = []string{
	"ESCOLA MUNICIPAL DE ENSINO FUNDAMENTAL",
	"ESCOLA MUNICIPAL DE EDUCACAO INFANTIL",
	"INSTITUTO EDUCACIONAL",
	"ESCOLA MUNICIPAL",
	"ESCOLA ESTADUAL",
	"UNIDADE ESCOLAR",
	"EMEIF",
	"EMEF",
	"EMEI",
	"CMEI",
	"EEF",
	"ESCOLA",
	"COLEGIO",
	"INSTITUTO",
	"CRECHE",
}

// School normalizes an institution name: Name, then synonym replacement on
// the full string and word-by-word, then one pass of prefix stripping.
func School(s string) string {
	n := Name(s)
	if n == "" {
		return n
	}
	if v, ok := synonyms[n]; ok {
		n = v
	} else {
		words := strings.Fields(n)
		for i, w := range words {
			if v, ok := synonyms[w]; ok {
				words[i] = v
			}
		}
		n = strings.Join(words, " ")
	}
	for _, p := range schoolPrefixes {
		if rest, ok := strings.CutPrefix(n, p+" "); ok && rest != "" {
			n = strings.TrimSpace(rest)
			break
		}
	}
	return n
}

// Header normalizes a column header for alias matching.
func Header(s string) string {
	return Name(s)
}
