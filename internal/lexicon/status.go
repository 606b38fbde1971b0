package lexicon

import (
	"strings"

	"github.com/p-blackswan/studio-agent/internal/project"
)

// StatusEntry is one status with the words that name it.
type StatusEntry struct {
	Status project.Status
	// Keywords are folded phrases, common misspellings included. A keyword
	// found in the text is an immediate, full-confidence hit.
	Keywords []string
	// Fuzzy are the distinctive single words compared token by token with
	// an edit-distance similarity.
	Fuzzy []string
	// MinSimilarity gates the fuzzy pass for this status.
	MinSimilarity float64
	// MinTokenLen skips shorter tokens in the fuzzy pass.
	MinTokenLen int
}

// StatusCorpus is scanned in order; the first keyword hit wins.
var StatusCorpus = []StatusEntry{
	{
		Status:        project.StatusGhostProduction,
		Keywords:      []string{"ghost production", "ghost prod", "ghostprod", "ghost prods", "ghostproduction"},
		MinSimilarity: 0.4,
		MinTokenLen:   3,
	},
	{
		Status:        project.StatusNeedsRework,
		Keywords:      []string{"a retravailler", "retravailler", "a retravaille", "a reprendre", "a revoir", "a refaire", "rework"},
		Fuzzy:         []string{"retravailler"},
		MinSimilarity: 0.4,
		MinTokenLen:   6,
	},
	{
		Status:        project.StatusCancelled,
		Keywords:      []string{"annule", "annulee", "annulees", "annules", "abandonne", "abandonnee", "abandonnees", "cancel", "cancelled"},
		Fuzzy:         []string{"annule", "abandonne"},
		MinSimilarity: 0.75,
		MinTokenLen:   5,
	},
	{
		Status:        project.StatusArchived,
		Keywords:      []string{"archive", "archivee", "archivees", "archivage"},
		Fuzzy:         []string{"archive"},
		MinSimilarity: 0.8,
		MinTokenLen:   5,
	},
	{
		Status:        project.StatusDone,
		Keywords:      []string{"termine", "terminee", "terminees", "terminer", "fini", "finie", "finies", "acheve", "achevee", "boucle", "bouclee", "done"},
		Fuzzy:         []string{"termine", "acheve"},
		MinSimilarity: 0.75,
		MinTokenLen:   5,
	},
	{
		Status:        project.StatusInProgress,
		Keywords:      []string{"en cours", "en cour", "encours", "encour", "en progres", "en progression", "en train", "wip", "in progress", "en chantier"},
		Fuzzy:         []string{"encours"},
		MinSimilarity: 0.85,
		MinTokenLen:   5,
	},
}

// genericProjectWords never take part in the fuzzy pass: "projets" sits too
// close to "prod" once typos are allowed.
var genericProjectWords = map[string]bool{
	"projet": true, "projets": true, "project": true, "projects": true, "projo": true, "projos": true,
}

const (
	ghostHalfThreshold      = 0.6
	productionHalfThreshold = 0.6
)

var ghostHalves = []string{"ghost", "gost", "ghosts"}
var productionHalves = []string{"production", "prod", "productions", "prods"}

// StatusMatch is the outcome of DetectStatus.
type StatusMatch struct {
	Status     project.Status
	Confidence float64
}

// DetectStatus returns the best status named in text, or ok=false.
func DetectStatus(text string) (StatusMatch, bool) {
	folded := Fold(text)
	if folded == "" {
		return StatusMatch{}, false
	}

	for _, entry := range StatusCorpus {
		for _, kw := range entry.Keywords {
			if ContainsPhrase(folded, kw, 2) {
				return StatusMatch{Status: entry.Status, Confidence: 1}, true
			}
			// A bare fragment such as "termin" still names the status.
			if len(folded) >= 4 && !strings.Contains(folded, " ") && strings.HasPrefix(kw, folded) {
				return StatusMatch{Status: entry.Status, Confidence: 1}, true
			}
		}
	}

	tokens := Tokens(folded)
	best := StatusMatch{}
	for _, entry := range StatusCorpus {
		score := entryScore(entry, tokens)
		if score >= entry.MinSimilarity && score > best.Confidence {
			best = StatusMatch{Status: entry.Status, Confidence: score}
		}
	}
	return best, best.Status != ""
}

func entryScore(entry StatusEntry, tokens []string) float64 {
	if entry.Status == project.StatusGhostProduction {
		return ghostProductionScore(tokens)
	}
	best := 0.0
	for _, tok := range tokens {
		if len(tok) < 3 || len(tok) < entry.MinTokenLen || genericProjectWords[tok] {
			continue
		}
		for _, kw := range entry.Fuzzy {
			if s := Similarity(tok, kw); s > best {
				best = s
			}
		}
	}
	return best
}

// ghostProductionScore requires a "ghost"-like token followed later by a
// "production"-like token; either half alone scores zero.
func ghostProductionScore(tokens []string) float64 {
	ghostAt, ghostScore := -1, 0.0
	for i, tok := range tokens {
		if len(tok) < 3 || genericProjectWords[tok] {
			continue
		}
		if s := bestSimilarity(tok, ghostHalves); s >= ghostHalfThreshold && s > ghostScore {
			ghostAt, ghostScore = i, s
		}
	}
	if ghostAt < 0 {
		return 0
	}
	prodScore := 0.0
	for _, tok := range tokens[ghostAt+1:] {
		if len(tok) < 3 || genericProjectWords[tok] {
			continue
		}
		if s := bestSimilarity(tok, productionHalves); s >= productionHalfThreshold && s > prodScore {
			prodScore = s
		}
	}
	if prodScore == 0 {
		return 0
	}
	return (ghostScore + prodScore) / 2
}

func bestSimilarity(tok string, candidates []string) float64 {
	best := 0.0
	for _, c := range candidates {
		if s := Similarity(tok, c); s > best {
			best = s
		}
	}
	return best
}

// StatusKeyword returns the canonical phrase for s, the first keyword of its
// corpus entry.
func StatusKeyword(s project.Status) string {
	for _, entry := range StatusCorpus {
		if entry.Status == s {
			return entry.Keywords[0]
		}
	}
	return ""
}
