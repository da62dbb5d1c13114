package fields

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize derives the canonical form of a field name: lower case, accents
// folded, separators and punctuation removed. "Fecha de Inicio:" and
// "fecha_de_inicio" both become "fechadeinicio".
func Normalize(name string) string {
	folded, _, err := transform.String(foldAccents(), name)
	if err != nil {
		folded = name
	}

	var sb strings.Builder
	for _, r := range strings.ToLower(folded) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// transformers carry state, so each call gets its own chain
func foldAccents() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}
