package lexicon

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Span is a byte range inside a folded utterance. Builders blank consumed
// spans out so that a later extractor does not read the same words twice.
type Span struct {
	Start int
	End   int
}

// Empty reports whether the span covers nothing.
func (s Span) Empty() bool { return s.End <= s.Start }

// Blank replaces the span in folded text with spaces, keeping offsets stable.
func Blank(folded string, spans ...Span) string {
	b := []byte(folded)
	for _, sp := range spans {
		if sp.Empty() || sp.Start < 0 || sp.End > len(b) {
			continue
		}
		for i := sp.Start; i < sp.End; i++ {
			b[i] = ' '
		}
	}
	return string(b)
}

// ProgressRange is a progress predicate in percent. A nil bound is open.
type ProgressRange struct {
	Min  *int
	Max  *int
	Span Span
}

type progressRule struct {
	name  string
	re    *regexp.Regexp
	build func(m []string) (ProgressRange, bool)
}

const pct = `(\d{1,3}(?:[.,]\d+)?)\s*(?:%|pour ?cent|pourcents?)`

var qualitativeProgress = []struct {
	phrases  []string
	min, max int
}{
	{phrases: []string{"presque fini", "presque finis", "presque termine", "quasi fini", "quasi termine", "quasiment fini", "quasiment termine", "bientot fini", "bientot termine", "pratiquement fini", "pratiquement termine", "presque boucle"}, min: 90, max: 100},
	{phrases: []string{"a peine commence", "tout juste commence", "juste commence", "a peine entame", "vient de commencer", "viennent de commencer", "pas encore commence", "tout juste demarre", "a peine demarre"}, min: 0, max: 10},
	{phrases: []string{"a moitie", "a la moitie", "a mi chemin", "moitie fait", "moitie faits", "a mi parcours"}, min: 50, max: 50},
}

var progressRules = []progressRule{
	{
		name: "range",
		re:   regexp.MustCompile(`entre\s+(\d{1,3}(?:[.,]\d+)?)\s*(?:%\s*)?et\s+` + pct),
		build: func(m []string) (ProgressRange, bool) {
			lo, ok1 := parsePercent(m[1], false)
			hi, ok2 := parsePercent(m[2], false)
			if !ok1 || !ok2 {
				return ProgressRange{}, false
			}
			if lo > hi {
				lo, hi = hi, lo
			}
			return ProgressRange{Min: &lo, Max: &hi}, true
		},
	},
	{
		name: "finished_at",
		re:   regexp.MustCompile(`(?:fini|finis|finie|finies|termine|terminee|termines|terminees)\s+(?:a|au moins a|a au moins)\s+` + pct),
		build: func(m []string) (ProgressRange, bool) {
			v, ok := parsePercent(m[1], false)
			return ProgressRange{Min: &v}, ok
		},
	},
	{
		name: "lower_bound",
		re:   regexp.MustCompile(`(?:plus de|au moins|au dessus de|superieure? a|superieurs? a|>=?|minimum|min)\s*` + pct),
		build: func(m []string) (ProgressRange, bool) {
			v, ok := parsePercent(m[1], false)
			return ProgressRange{Min: &v}, ok
		},
	},
	{
		name: "upper_bound",
		re:   regexp.MustCompile(`(?:moins de|au plus|au maximum|en dessous de|inferieure? a|inferieurs? a|<=?|maximum|max)\s*` + pct),
		build: func(m []string) (ProgressRange, bool) {
			v, ok := parsePercent(m[1], false)
			return ProgressRange{Max: &v}, ok
		},
	},
	{
		name: "exact",
		re:   regexp.MustCompile(pct),
		build: func(m []string) (ProgressRange, bool) {
			v, ok := parsePercent(m[1], false)
			return ProgressRange{Min: &v, Max: &v}, ok
		},
	},
	{
		name: "fraction",
		re:   regexp.MustCompile(`(?:\ba|progression(?: de| a)?|avancement(?: de| a)?|avances? a)\s+(0[.,]\d+|1[.,]0+)(?:\s|$)`),
		build: func(m []string) (ProgressRange, bool) {
			v, ok := parsePercent(m[1], true)
			return ProgressRange{Min: &v, Max: &v}, ok
		},
	},
}

// DetectProgress extracts a progress predicate from text. Rules are tried in
// order and the first match wins: ranges, "finished at X%", open bounds,
// exact percentages, decimal fractions, then qualitative phrases.
func DetectProgress(text string) (ProgressRange, bool) {
	folded := Fold(text)
	for _, rule := range progressRules {
		loc := rule.re.FindStringSubmatchIndex(folded)
		if loc == nil {
			continue
		}
		m := submatches(folded, loc)
		r, ok := rule.build(m)
		if !ok {
			continue
		}
		r.Span = Span{Start: loc[0], End: loc[1]}
		return r, true
	}
	for _, q := range qualitativeProgress {
		for _, phrase := range q.phrases {
			if idx, n := FindPhrase(folded, phrase, 2); idx >= 0 {
				lo, hi := q.min, q.max
				return ProgressRange{Min: &lo, Max: &hi, Span: Span{Start: idx, End: idx + n}}, true
			}
		}
	}
	return ProgressRange{}, false
}

// parsePercent reads "15", "12,5" or, when fraction is set, "0.7" as a whole
// percentage. Values outside 0..100 are rejected.
func parsePercent(raw string, fraction bool) (int, bool) {
	f, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
	if err != nil {
		return 0, false
	}
	if fraction {
		f *= 100
	}
	v := int(math.Round(f))
	if v < 0 || v > 100 {
		return 0, false
	}
	return v, true
}

func submatches(s string, loc []int) []string {
	out := make([]string, len(loc)/2)
	for i := range out {
		if loc[2*i] >= 0 {
			out[i] = s[loc[2*i]:loc[2*i+1]]
		}
	}
	return out
}
