package assistant

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/p-blackswan/studio-agent/internal/lexicon"
	"github.com/p-blackswan/studio-agent/internal/project"
)

var (
	quotedNameRe = regexp.MustCompile(`["«“]\s*([^"»”]+?)\s*["»”]`)
	labelChezRe  = regexp.MustCompile(`(?i)(?:^|\s)chez\s+([\p{L}\d][\p{L}\d_'.-]*)`)
	yearRe       = regexp.MustCompile(`\b(?:de|en|pour|du|sur|annee|depuis|datant de)\s+((?:19|20)\d{2})\b`)
)

type sortRule struct {
	re    *regexp.Regexp
	field project.SortField
	desc  bool
}

var sortRules = []sortRule{
	{regexp.MustCompile(`\b(?:les plus urgents?|les plus urgentes|par urgence|par ordre d urgence)\b`), project.SortDeadline, false},
	{regexp.MustCompile(`\b(?:tri(?:e|es|ee|ees)?|classe(?:s|es)?|ordonne(?:s|es)?|range(?:s|es)?)?\s*par\s+(?:deadlines?|echeances?|dates? limites?)\b`), project.SortDeadline, false},
	{regexp.MustCompile(`\b(?:les plus avances?|les plus avancees|les plus proches de la fin)\b`), project.SortProgress, true},
	{regexp.MustCompile(`\b(?:les moins avances?|les moins avancees)\b`), project.SortProgress, false},
	{regexp.MustCompile(`\bpar\s+(?:progression|avancement)\b`), project.SortProgress, true},
	{regexp.MustCompile(`\b(?:par nom|par ordre alphabetique|alphabetiquement)\b`), project.SortName, false},
	{regexp.MustCompile(`\b(?:les plus recents?|les plus recentes|derniers? modifies?|dernieres modifiees|par date de modification)\b`), project.SortUpdated, true},
}

// FilterExtraction is the scope side of an utterance.
type FilterExtraction struct {
	Filter project.Filter
	// NamedProject is set when a known project name was recognised.
	NamedProject string
	// Remainder is what no extractor consumed, kept for debug traces.
	Remainder string
}

// BuildFilter composes the lexical fragments of folded into one Filter.
// folded is the remainder left by BuildMutation; raw is the original
// utterance, used for quoted names and "chez <label>" so values keep their
// spelling. Extractors run progress first so that "presque fini" is read as a
// progress range rather than as the done status.
func BuildFilter(folded, raw string, vocab project.Vocabulary, names []string, now time.Time) FilterExtraction {
	var f project.Filter
	var named string
	folded = lexicon.Fold(folded)

	if r, ok := lexicon.DetectProgress(folded); ok {
		f.MinProgress, f.MaxProgress = r.Min, r.Max
		folded = lexicon.Fold(lexicon.Blank(folded, r.Span))
	}

	if frag, ok := lexicon.DetectDeadline(folded, now); ok && frag.Kind == lexicon.DeadlinePresence {
		has := frag.HasDeadline
		f.HasDeadline = &has
		f.HasDeadlineExplicit = true
		folded = lexicon.Fold(lexicon.Blank(folded, frag.Span))
	}

	if m := quotedNameRe.FindStringSubmatch(raw); m != nil {
		f.Name = canonical(m[1], names)
		named = f.Name
		folded = lexicon.Fold(strings.ReplaceAll(folded, lexicon.Fold(m[0]), " "))
	} else if name, span, ok := findKnown(folded, names, 0); ok && len(lexicon.Fold(name)) >= 3 {
		f.Name = name
		named = name
		folded = lexicon.Fold(lexicon.Blank(folded, span))
	}

	if name, span, ok := findKnown(folded, vocab.Collaborators, 1); ok {
		f.Collaborator = name
		folded = lexicon.Fold(lexicon.Blank(folded, span))
	}
	if name, span, ok := findKnown(folded, vocab.Styles, 1); ok {
		f.Style = name
		folded = lexicon.Fold(lexicon.Blank(folded, span))
	}
	if name, span, ok := findKnown(folded, vocab.Labels, 1); ok {
		f.Label = name
		folded = lexicon.Fold(lexicon.Blank(folded, span))
	} else if m := labelChezRe.FindStringSubmatch(raw); m != nil && f.Collaborator == "" {
		f.Label = canonical(strings.Trim(m[1], ".,;:!?"), vocab.Labels)
		folded = lexicon.Fold(strings.Replace(folded, "chez "+lexicon.Fold(m[1]), " ", 1))
	}

	if m := yearRe.FindStringSubmatchIndex(folded); m != nil {
		if y, err := strconv.Atoi(folded[m[2]:m[3]]); err == nil {
			f.Year = &y
			folded = lexicon.Fold(lexicon.Blank(folded, lexicon.Span{Start: m[0], End: m[1]}))
		}
	}

	for _, rule := range sortRules {
		if loc := rule.re.FindStringIndex(folded); loc != nil {
			f.SortBy, f.SortDesc = rule.field, rule.desc
			folded = lexicon.Fold(lexicon.Blank(folded, lexicon.Span{Start: loc[0], End: loc[1]}))
			break
		}
	}

	// Display words are not predicates, and "detail" sits close enough to
	// "retravailler" to trip the fuzzy status pass.
	for _, phrase := range detailPhrases {
		if idx, n := lexicon.FindPhrase(folded, phrase, 1); idx >= 0 {
			folded = lexicon.Fold(lexicon.Blank(folded, lexicon.Span{Start: idx, End: idx + n}))
		}
	}

	if m, ok := lexicon.DetectStatus(folded); ok {
		st := m.Status
		f.Status = &st
	}

	return FilterExtraction{Filter: f, NamedProject: named, Remainder: folded}
}

// findKnown looks for the longest known value named in folded.
func findKnown(folded string, known []string, maxSuffix int) (string, lexicon.Span, bool) {
	candidates := make([]string, 0, len(known))
	for _, k := range known {
		if strings.TrimSpace(k) != "" {
			candidates = append(candidates, k)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return len(candidates[i]) > len(candidates[j])
	})
	for _, k := range candidates {
		fk := lexicon.Fold(k)
		if fk == "" {
			continue
		}
		if idx, n := lexicon.FindPhrase(folded, fk, maxSuffix); idx >= 0 {
			return k, lexicon.Span{Start: idx, End: idx + n}, true
		}
	}
	return "", lexicon.Span{}, false
}
