package assistant

import (
	"regexp"
	"strings"

	"github.com/p-blackswan/studio-agent/internal/lexicon"
	"github.com/p-blackswan/studio-agent/internal/project"
)

// Intent is the primary reading of an utterance.
type Intent string

const (
	IntentList           Intent = "list"
	IntentCount          Intent = "count"
	IntentCreate         Intent = "create"
	IntentUpdate         Intent = "update"
	IntentConversational Intent = "conversational"
	// IntentMeta marks capability and detail requests answered by the router
	// itself. Classify never returns it.
	IntentMeta Intent = "meta"
)

// Classification holds the intent plus the signals it was derived from.
type Classification struct {
	Intent              Intent
	IsList              bool
	IsCount             bool
	IsCreate            bool
	IsUpdate            bool
	IsConversational    bool
	HasActionVerb       bool
	HasProjectReference bool
	IsQuestion          bool
	IsComplex           bool
}

// Signal tables, scanned on the folded utterance with FindPhrase.
var (
	listPhrases = []string{
		"liste", "lister", "listes", "montre", "montrer", "affiche", "afficher",
		"donne moi", "donne", "fais voir", "voir les", "quels sont", "quelles sont",
		"quels projets", "quelles tracks", "quels morceaux", "lesquels", "recherche",
		"cherche", "trouve", "sors moi", "ressors", "show", "list",
		"y a t il des projets", "il y a quoi", "ou en sont", "ou en est",
	}
	countPhrases = []string{
		"combien", "nombre de", "compte", "compter", "total de", "how many",
	}
	createPhrases = []string{
		"cree", "creer", "crees", "creez", "nouveau projet", "nouvelle track",
		"nouveau morceau", "nouveau son", "ajoute un projet", "ajoute un nouveau projet",
		"ajouter un projet", "demarre un projet", "commence un projet", "lance un projet",
		"new project",
	}
	actionVerbs = []string{
		"passe", "passer", "passez", "mets", "met", "mettre", "mettez", "marque", "marquer",
		"change", "changer", "modifie", "modifier", "modifiez", "bascule", "basculer",
		"supprime", "supprimer", "enleve", "enlever", "retire", "retirer", "efface", "effacer",
		"ajoute", "ajouter", "rajoute", "archive", "archiver", "assigne", "assigner",
		"attribue", "affecte", "fixe", "fixer", "definis", "regle", "monte", "descend",
		"augmente", "baisse", "deplace", "ecris", "repousse", "pousse", "decale",
		"update", "set",
	}
	conversationalPhrases = []string{
		"bonjour", "salut", "hello", "coucou", "bonsoir", "merci", "ca va", "comment vas",
		"comment tu vas", "qui es tu", "t es qui", "raconte", "conseil", "conseille",
		"tu penses", "ton avis", "que penses", "pourquoi", "explique", "motive",
		"inspiration", "idee", "idees", "aide moi a", "blague",
	}
	complexPhrases = []string{
		"pourquoi", "comment", "explique", "analyse", "strategie", "plan", "conseil",
		"priorise", "priorite", "organise", "compare",
	}
	projectNouns = regexp.MustCompile(`\b(?:projets?|tracks?|morceaux?|morceau|sons?|titres?|releases?|prods?|productions?)\b`)
)

// Classify assigns exactly one intent. Precedence, highest first:
// conversational signals with no action verb, list or count syntax with no
// explicit action verb, creation syntax with no edit verb, any action verb,
// then the conversational fallback. Update wins over list because bulk edits
// are phrased around a list-shaped clause.
func Classify(text string, filter project.Filter, mutation project.Mutation, namedProject string) Classification {
	folded := lexicon.Fold(text)
	c := Classification{
		IsQuestion:          strings.HasSuffix(strings.TrimSpace(text), "?") || startsWithQuestion(folded),
		HasProjectReference: projectNouns.MatchString(folded) || namedProject != "",
	}
	c.IsCount = lexicon.ContainsAny(folded, countPhrases)
	c.IsList = c.IsCount || lexicon.ContainsAny(folded, listPhrases)
	c.IsCreate = lexicon.ContainsAny(folded, createPhrases)
	hasConversational := lexicon.ContainsAny(folded, conversationalPhrases)

	verb := hasActionVerb(folded, c.IsCreate)
	c.HasActionVerb = verb || !mutation.IsEmpty()
	c.IsComplex = len(lexicon.Tokens(folded)) > 25 || lexicon.ContainsAny(folded, complexPhrases)

	switch {
	case hasConversational && !c.HasActionVerb && !c.IsList && !c.IsCreate:
		c.Intent = IntentConversational
	case c.IsList && !verb:
		// Values picked up without a verb never turn a listing into an edit.
		c.Intent = IntentList
		if c.IsCount {
			c.Intent = IntentCount
		}
		c.HasActionVerb = false
	case c.IsCreate && !verb:
		c.Intent = IntentCreate
	case c.HasActionVerb:
		c.Intent = IntentUpdate
	case filter.IsScoping() && c.HasProjectReference && !hasConversational:
		// "les projets terminés ?" lists without a list verb.
		c.Intent = IntentList
		c.IsList = true
	default:
		c.Intent = IntentConversational
	}
	c.IsUpdate = c.Intent == IntentUpdate
	c.IsConversational = c.Intent == IntentConversational
	if c.Intent == IntentCreate {
		c.HasActionVerb = false
	}
	return c
}

func hasActionVerb(folded string, creating bool) bool {
	if dir, _ := lexicon.ShiftDirection(folded); dir != 0 && lexicon.MentionsDeadline(folded) {
		return true
	}
	for _, tok := range strings.Fields(folded) {
		for _, v := range actionVerbs {
			if tok != v {
				continue
			}
			// "ajoute un projet" is creation syntax, not an edit.
			if creating && (v == "ajoute" || v == "ajouter") {
				continue
			}
			return true
		}
	}
	return false
}

var questionStarts = []string{"est ce", "quel", "quels", "quelle", "quelles", "combien", "comment", "pourquoi", "ou ", "qui ", "que ", "qu "}

func startsWithQuestion(folded string) bool {
	for _, q := range questionStarts {
		if strings.HasPrefix(folded, q) {
			return true
		}
	}
	return false
}
