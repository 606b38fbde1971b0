package assistant

import (
	"regexp"
	"strings"
	"time"

	"github.com/p-blackswan/studio-agent/internal/lexicon"
	"github.com/p-blackswan/studio-agent/internal/project"
)

// MutationExtraction is the target side of an utterance: what should change.
// Remainder is the folded utterance with every consumed clause removed, ready
// for the filter builder; RawRemainder is the same before folding, without the
// deadline, status and progress clauses cut.
type MutationExtraction struct {
	Mutation     project.Mutation
	Remainder    string
	RawRemainder string
}

var (
	// Clauses that name a new tag value. They run on the raw text so the
	// value keeps its casing.
	collaboratorTargetRe = regexp.MustCompile(`(?i)(?:^|\s)(?:mets|met|mettre|change|changer|passe|passer|assigne|assigner|attribue|affecte|définis|definis|remplace)\s+(?:le\s+|la\s+|leur\s+|comme\s+)?(?:collaborateur|collaboratrice|collab|feat(?:uring)?)\s*(?:à|a|en|sur|par|:|=)?\s*([\p{L}\d][\p{L}\d_'.-]*)`)
	assignToRe           = regexp.MustCompile(`(?i)(?:^|\s)(?:assigne|assigner|attribue|attribuer|affecte|affecter)\s+(?:les\s+|le\s+|la\s+|ces\s+)?(?:[\p{L}\d%' ]{0,60}?\s)?(?:à|a)\s+([\p{L}\d][\p{L}\d_'.-]*)`)
	styleTargetRe        = regexp.MustCompile(`(?i)(?:^|\s)(?:mets|met|mettre|change|changer|passe|passer|définis|definis|remplace)\s+(?:le\s+|leur\s+)?(?:style|genre)\s*(?:à|a|en|sur|par|:|=)?\s*([\p{L}\d][\p{L}\d_'.-]*)`)
	labelTargetRe        = regexp.MustCompile(`(?i)(?:^|\s)(?:mets|met|mettre|change|changer|passe|passer|définis|definis|remplace|signe|signer)\s+(?:le\s+|leur\s+)?(?:label)\s*(?:à|a|en|sur|chez|par|:|=)?\s*([\p{L}\d][\p{L}\d_'.-]*)`)

	// Progress targets: "mets la progression à 80%", "passe-les à 80%".
	progressTargetRe = regexp.MustCompile(`\b(?:mets|met|mettre|passe|passer|fixe|fixer|regle|regler|change|changer|monte|monter|descend|descendre|augmente|augmenter|baisse|baisser|definis|definir)\s+(?:(?:la|leur|sa|les|le)\s+)?(?:(?:progression|avancement|progres|avance)\s+)?(?:a|de|sur|en|au)\s+(\d{1,3})\s*(?:%|pour ?cent|pourcents?)`)
	progressTailRe   = regexp.MustCompile(`\b(?:passe|passer|mets|met|mettre|monte|monter|descend|descendre|augmente|augmenter|baisse|baisser|fixe|fixer|regle|regler)\b.*\b(?:a|au|jusqu a)\s+(\d{1,3})\s*(?:%|pour ?cent|pourcents?)\s*$`)
	progressFieldRe  = regexp.MustCompile(`\b(?:progression|avancement)\s*(?:a|=|:)\s*(\d{1,3})\s*(?:%|pour ?cent|pourcents?)`)

	statusVerbRe   = regexp.MustCompile(`\b(?:passe|passer|passez|mets|met|mettre|marque|marquer|marquez|bascule|basculer|change|changer|classe|classer|range|ranger|deplace|deplacer|declare|declarer|note|noter|indique|indiquer)\b`)
	statusMarkerRe = regexp.MustCompile(`\b(?:en|comme|au statut|statut|a l etat|sur)\s+`)
	archiveVerbRe  = regexp.MustCompile(`^(?:archive|archiver|archivez)\b`)
	verbGapRe      = regexp.MustCompile(`^(?:\s*(?:les|le|la|l|tous|toutes|tout|ca|moi))*\s*$`)

	// A date only becomes a new deadline next to a deadline noun or one of
	// these verbs; "à rendre demain" alone is a question about the catalog.
	deadlineSetterRe = regexp.MustCompile(`\b(?:mets|met|mettre|mettez|passe|passer|fixe|fixer|regle|regler|change|changer|modifie|modifier|definis|definir|deplace|deplacer|decale|decaler|cale|caler|prevois|prevoir|cree|creer|crees|creez|ajoute|ajouter|demarre|lance|commence|nouveau|nouvelle)\b`)
)

// BuildMutation extracts the target values of an update. The note and the tag
// targets are cut from the raw text first, then the remainder is folded and
// deadline, status and progress targets are blanked out of it in that order.
func BuildMutation(text string, vocab project.Vocabulary, now time.Time) MutationExtraction {
	var m project.Mutation
	rest := text

	if note, ok := lexicon.DetectNote(rest); ok {
		m.Note = note.Text
		m.NoteProject = note.Project
		rest = note.Rest
	}
	if tasks, ok := lexicon.DetectTasks(rest); ok {
		composed := lexicon.ComposeTasks(tasks.Tasks)
		if m.Note == "" {
			m.Note = composed
		} else {
			m.Note += "\n" + composed
		}
		rest = tasks.Rest
	}

	if v, r, ok := cutTarget(rest, collaboratorTargetRe); ok {
		m.NewCollaborator, rest = canonical(v, vocab.Collaborators), r
	} else if v, r, ok := cutTarget(rest, assignToRe); ok {
		m.NewCollaborator, rest = canonical(v, vocab.Collaborators), r
	}
	if v, r, ok := cutTarget(rest, styleTargetRe); ok {
		m.NewStyle, rest = canonical(v, vocab.Styles), r
	}
	if v, r, ok := cutTarget(rest, labelTargetRe); ok {
		m.NewLabel, rest = canonical(v, vocab.Labels), r
	}

	folded := lexicon.Fold(rest)

	if frag, ok := lexicon.DetectDeadline(folded, now); ok {
		switch frag.Kind {
		case lexicon.DeadlineRemove:
			m.RemoveDeadline = true
			folded = lexicon.Fold(lexicon.Blank(folded, frag.Span))
		case lexicon.DeadlineShift:
			shift := frag.Shift
			m.PushDeadlineBy = &shift
			folded = lexicon.Fold(lexicon.Blank(folded, frag.Span))
		case lexicon.DeadlineAbsolute:
			if lexicon.MentionsDeadline(folded) || deadlineSetterRe.MatchString(folded) {
				d := frag.Date
				m.NewDeadline = &d
			}
			folded = lexicon.Fold(lexicon.Blank(folded, frag.Span))
		}
	}

	if st, span, ok := detectStatusTarget(folded); ok {
		m.NewStatus = &st
		folded = lexicon.Fold(lexicon.Blank(folded, span))
	} else if loc := archiveVerbRe.FindStringIndex(folded); loc != nil {
		st := project.StatusArchived
		m.NewStatus = &st
		folded = lexicon.Fold(lexicon.Blank(folded, lexicon.Span{Start: loc[0], End: loc[1]}))
	}

	progressRules := []*regexp.Regexp{progressTargetRe, progressFieldRe}
	if m.NewStatus == nil {
		// "passe les projets en cours à 80%": a trailing percentage is the
		// target unless a status target already claimed the clause.
		progressRules = append(progressRules, progressTailRe)
	}
	for _, re := range progressRules {
		if loc := re.FindStringSubmatchIndex(folded); loc != nil {
			if v, ok := lexicon.ParseCount(folded[loc[2]:loc[3]]); ok && v >= 0 && v <= 100 {
				m.NewProgress = &v
				// Keep the verb so the classifier still sees an action.
				folded = lexicon.Fold(lexicon.Blank(folded, lexicon.Span{Start: loc[2], End: loc[1]}))
				break
			}
		}
	}

	return MutationExtraction{Mutation: m, Remainder: folded, RawRemainder: rest}
}

// detectStatusTarget finds "<verb> ... en|comme <status>". "en cours" doubles
// as a filter phrase: it is only a target right after the verb or as the
// closing clause, and any other status named later wins over it.
func detectStatusTarget(folded string) (project.Status, lexicon.Span, bool) {
	verb := statusVerbRe.FindStringIndex(folded)
	if verb == nil {
		return "", lexicon.Span{}, false
	}
	var (
		best  project.Status
		span  lexicon.Span
		found bool
	)
	for _, loc := range statusMarkerRe.FindAllStringIndex(folded[verb[1]:], -1) {
		start := verb[1] + loc[0]
		end := windowEnd(folded, verb[1]+loc[1], 2)
		match, ok := lexicon.DetectStatus(folded[start:end])
		if !ok || match.Confidence < 1 {
			continue
		}
		if match.Status == project.StatusInProgress {
			direct := verbGapRe.MatchString(folded[verb[1]:start])
			closing := strings.TrimSpace(folded[end:]) == ""
			if (found && best != project.StatusInProgress) || !(direct || closing) {
				continue
			}
		}
		best, span, found = match.Status, lexicon.Span{Start: start, End: end}, true
	}
	return best, span, found
}

// windowEnd returns the offset after at most n words starting at from. It
// stops before another "en" or "comme" marker.
func windowEnd(s string, from, n int) int {
	i := from
	for words := 0; words < n && i < len(s); words++ {
		j := i
		for j < len(s) && s[j] == ' ' {
			j++
		}
		k := j
		for k < len(s) && s[k] != ' ' {
			k++
		}
		if words > 0 && (s[j:k] == "en" || s[j:k] == "comme") {
			break
		}
		i = k
	}
	return i
}

// cutTarget matches re on raw text and returns the captured value and the
// text with the whole clause removed.
func cutTarget(text string, re *regexp.Regexp) (string, string, bool) {
	loc := re.FindStringSubmatchIndex(text)
	if loc == nil {
		return "", text, false
	}
	value := strings.Trim(text[loc[2]:loc[3]], ".,;:!?'\"")
	if value == "" {
		return "", text, false
	}
	return value, strings.TrimSpace(text[:loc[0]] + " " + text[loc[1]:]), true
}

// canonical returns the vocabulary spelling of v when one folds to the same
// word, so "lina" becomes "Lina".
func canonical(v string, known []string) string {
	fv := lexicon.Fold(v)
	for _, k := range known {
		if lexicon.Fold(k) == fv {
			return k
		}
	}
	return v
}
