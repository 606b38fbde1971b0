// Package lexicon holds the stateless extractors that read a French studio
// utterance and return partial structured fragments: a status, a progress
// range, a deadline instruction, notes and tasks.
//
// Every extractor works on the folded form produced by Fold (lower case,
// accents stripped, apostrophes and hyphens turned into spaces) so that
// "Terminé", "termine" and "TERMINÉ" are the same word.
package lexicon

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var accentFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

var separatorReplacer = strings.NewReplacer(
	"’", " ", "'", " ", "`", " ", "‘", " ",
	"-", " ", "–", " ", "—", " ",
	" ", " ", "\t", " ", "\n", " ", "\r", " ",
)

// Fold returns the matching form of s: lower case, without diacritics, with
// apostrophes and dashes replaced by spaces and runs of spaces collapsed.
func Fold(s string) string {
	folded, _, err := transform.String(accentFolder, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)
	folded = separatorReplacer.Replace(folded)
	return strings.Join(strings.Fields(folded), " ")
}

// Tokens splits a folded string into its alphanumeric words.
func Tokens(folded string) []string {
	return strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Similarity is 1 - levenshtein(a, b) / max(len(a), len(b)), with lengths and
// edits counted in runes.
func Similarity(a, b string) float64 {
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

// FindPhrase looks for phrase in folded text. The phrase must start on a word
// boundary and may be followed by at most maxSuffix letters before the next
// boundary, which lets "fini" match "finis" and "finies" but not "finition".
// It returns the byte offset of the match and the length of the matched word
// run, or -1.
func FindPhrase(text, phrase string, maxSuffix int) (int, int) {
	if phrase == "" {
		return -1, 0
	}
	from := 0
	for from <= len(text)-len(phrase) {
		idx := strings.Index(text[from:], phrase)
		if idx < 0 {
			return -1, 0
		}
		start := from + idx
		end := start + len(phrase)
		if start == 0 || !isWordByte(text[start-1]) {
			suffix := 0
			for end+suffix < len(text) && isLetterByte(text[end+suffix]) {
				suffix++
			}
			if suffix <= maxSuffix {
				return start, len(phrase) + suffix
			}
		}
		from = start + 1
	}
	return -1, 0
}

// ContainsPhrase reports whether FindPhrase locates phrase in text.
func ContainsPhrase(text, phrase string, maxSuffix int) bool {
	idx, _ := FindPhrase(text, phrase, maxSuffix)
	return idx >= 0
}

// ContainsAny reports whether any of the phrases occurs in text with at most
// two trailing letters.
func ContainsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if ContainsPhrase(text, p, 2) {
			return true
		}
	}
	return false
}

func isLetterByte(b byte) bool {
	return b >= 'a' && b <= 'z'
}

func isWordByte(b byte) bool {
	return isLetterByte(b) || (b >= '0' && b <= '9')
}

var numberWords = map[string]int{
	"un": 1, "une": 1, "deux": 2, "trois": 3, "quatre": 4, "cinq": 5,
	"six": 6, "sept": 7, "huit": 8, "neuf": 9, "dix": 10, "onze": 11,
	"douze": 12, "treize": 13, "quatorze": 14, "quinze": 15, "seize": 16,
	"vingt": 20, "trente": 30,
}

// ParseCount reads a cardinal written either in digits or as a French word.
func ParseCount(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	n, ok := numberWords[s]
	return n, ok
}

// numberWordPattern is the regexp alternation matching ParseCount's words.
const numberWordPattern = `un|une|deux|trois|quatre|cinq|six|sept|huit|neuf|dix|onze|douze|treize|quatorze|quinze|seize|vingt|trente`
