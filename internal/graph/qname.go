package graph

import (
	"fmt"
	"unicode"
)

// SplitIRI cuts a predicate IRI into a namespace and an XML local name.
// Predicates that cannot be split have no RDF/XML property element.
func SplitIRI(iri string) (string, string, error) {
	runes := []rune(iri)

	i := len(runes)
	for i > 0 && isNameChar(runes[i-1]) {
		i--
	}
	// local name must start with a letter or underscore
	for i < len(runes) && !isNameStartChar(runes[i]) {
		i++
	}

	if i >= len(runes) || i == 0 {
		return "", "", fmt.Errorf("cannot split predicate %q into namespace and local name", iri)
	}

	return string(runes[:i]), string(runes[i:]), nil
}

func isNameStartChar(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isNameChar(r rune) bool {
	return isNameStartChar(r) || r == '-' || r == '.' || unicode.IsDigit(r)
}
