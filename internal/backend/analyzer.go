package backend

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Analyzer turns free text into index words.
//
// Text is NFC normalised, case folded unless CaseSensitive, and stripped of
// combining marks unless DiacriticSensitive. Words are maximal runs of
// letters, digits and underscores.
type Analyzer struct {
	CaseSensitive      bool
	DiacriticSensitive bool
}

// DefaultAnalyzer matches case-insensitively and keeps diacritics.
func DefaultAnalyzer() Analyzer {
	return Analyzer{DiacriticSensitive: true}
}

// Form names the normalisation an analyzer applies to words. The index
// stores every word in each form, so a query matches against the column of
// its own form.
type Form int

const (
	// Folded words are case folded and keep diacritics.
	Folded Form = iota
	// Cased words keep case and diacritics.
	Cased
	// Bare words are case folded and stripped of diacritics.
	Bare
	// CasedBare words keep case and are stripped of diacritics.
	CasedBare
)

// NumForms is the number of word forms.
const NumForms = 4

var formNames = [...]string{
	Folded:    "folded",
	Cased:     "cased",
	Bare:      "bare",
	CasedBare: "cased_bare",
}

// String returns the form name.
func (f Form) String() string {
	if f < 0 || int(f) >= len(formNames) {
		return "unknown"
	}
	return formNames[f]
}

// Form returns the word form a produces.
func (a Analyzer) Form() Form {
	switch {
	case a.CaseSensitive && a.DiacriticSensitive:
		return Cased
	case a.CaseSensitive:
		return CasedBare
	case a.DiacriticSensitive:
		return Folded
	}
	return Bare
}

// Analyzer returns the analyzer producing f.
func (f Form) Analyzer() Analyzer {
	switch f {
	case Cased:
		return Analyzer{CaseSensitive: true, DiacriticSensitive: true}
	case CasedBare:
		return Analyzer{CaseSensitive: true}
	case Bare:
		return Analyzer{}
	}
	return DefaultAnalyzer()
}

// Variants holds one word in every form, indexed by Form.
type Variants [NumForms]string

// Same returns w unchanged in every form. Verbatim values use it.
func Same(w string) Variants {
	var v Variants
	for i := range v {
		v[i] = w
	}
	return v
}

// IndexWords splits s into words and returns each word in every form.
// Boundaries are those of the case and diacritic sensitive analyzer, and
// normalising a word never splits it, so all forms of a word share one
// position.
func IndexWords(s string) []Variants {
	words := Cased.Analyzer().Tokenize(s)
	out := make([]Variants, len(words))
	for i, w := range words {
		for f := Folded; f < NumForms; f++ {
			out[i][f] = f.Analyzer().Normalize(w)
		}
	}
	return out
}

// Normalize applies the analyzer's normalisation to s without splitting it.
func (a Analyzer) Normalize(s string) string {
	s = norm.NFC.String(s)
	if !a.DiacriticSensitive {
		// Transformers carry state, so the chain is built per call.
		t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
		if out, _, err := transform.String(t, s); err == nil {
			s = out
		}
	}
	if !a.CaseSensitive {
		s = cases.Fold().String(s)
	}
	return s
}

// Tokenize splits s into normalised words.
func (a Analyzer) Tokenize(s string) []string {
	return strings.FieldsFunc(a.Normalize(s), isWordSeparator)
}

func isWordSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.Is(unicode.Mn, r) && r != '_'
}
