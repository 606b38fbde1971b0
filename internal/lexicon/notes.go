package lexicon

import (
	"regexp"
	"strings"
)

// NoteFragment is a free-text note found in an utterance. Project is set when
// the note targets one named project. Rest is the utterance without the note
// clause, so that words inside the note never feed the other extractors.
type NoteFragment struct {
	Project string
	Text    string
	Rest    string
}

// TaskFragment is a list of tasks to compose into a note.
type TaskFragment struct {
	Tasks []string
	Rest  string
}

// These run on the raw utterance: the note body keeps its casing and accents.
var (
	noteTargetRe = regexp.MustCompile(`(?i)(?:^|\s)(?:ajoute|ajouter|ajoutes|rajoute|mets|met|mettre|écris|ecris|écrire|ecrire|laisse)\s+(?:une\s+|la\s+|cette\s+|un\s+)?(?:note|remarque|commentaire)\s+(?:au|à|a|sur|pour|dans)\s+(?:(?:le\s+)?projet\s+|(?:la\s+)?track\s+|(?:le\s+)?morceau\s+)?["«“]?\s*([^:"»”]+?)\s*["»”]?\s*:\s*(.+)$`)
	noteAllRe    = regexp.MustCompile(`(?i)(?:^|\s)(?:ajoute|ajouter|rajoute|mets|met|écris|ecris|laisse)\s+(?:une\s+|la\s+|cette\s+|un\s+)?(?:note|remarque|commentaire)\b([^:]*?)\s*:\s*(.+)$`)
	noteQuotedRe = regexp.MustCompile(`(?i)(?:^|\s)(?:ajoute|ajouter|rajoute|mets|met|écris|ecris)\s+(?:une\s+|la\s+|un\s+)?(?:note|remarque|commentaire)\s+["«“]\s*([^"»”]+?)\s*["»”]`)
	noteLabelRe  = regexp.MustCompile(`(?i)(?:^|\s)(?:note|remarque|commentaire)\s*:\s*(.+)$`)

	tasksColonRe = regexp.MustCompile(`(?i)(?:^|\s)(?:t[âa]ches?|todo|to do|à faire|a faire)\s*:\s*(.+)$`)
	tasksVerbRe  = regexp.MustCompile(`(?i)(?:^|\s)(?:ajoute|ajouter|rajoute|mets|met)\s+(?:les\s+|des\s+|la\s+|une\s+)?t[âa]ches?\s+(.+)$`)
	taskSplitRe  = regexp.MustCompile(`(?i)\s*(?:,|;|\s+et\s+|\s+puis\s+)\s*`)
)

// DetectNote extracts a note, targeted at one project when the utterance
// names one ("ajoute une note au projet Brume : refaire la basse").
func DetectNote(text string) (NoteFragment, bool) {
	if m := noteTargetRe.FindStringSubmatchIndex(text); m != nil {
		project := strings.TrimSpace(text[m[2]:m[3]])
		body := cleanNote(text[m[4]:m[5]])
		// "à tous les projets en cours : ..." is a scope, not a project name.
		if body != "" && !isScopeWords(project) {
			return NoteFragment{Project: project, Text: body, Rest: strings.TrimSpace(text[:m[0]])}, true
		}
	}
	if m := noteAllRe.FindStringSubmatchIndex(text); m != nil {
		body := cleanNote(text[m[4]:m[5]])
		if body != "" {
			// The clause between "note" and the colon may carry a filter.
			rest := strings.TrimSpace(text[:m[0]] + " " + text[m[2]:m[3]])
			return NoteFragment{Text: body, Rest: rest}, true
		}
	}
	if m := noteQuotedRe.FindStringSubmatchIndex(text); m != nil {
		body := cleanNote(text[m[2]:m[3]])
		if body != "" {
			return NoteFragment{Text: body, Rest: strings.TrimSpace(text[:m[0]] + " " + text[m[1]:])}, true
		}
	}
	if m := noteLabelRe.FindStringSubmatchIndex(text); m != nil {
		body := cleanNote(text[m[2]:m[3]])
		if body != "" {
			return NoteFragment{Text: body, Rest: strings.TrimSpace(text[:m[0]])}, true
		}
	}
	return NoteFragment{}, false
}

// DetectTasks extracts "tâches : mix, master et export" style lists.
func DetectTasks(text string) (TaskFragment, bool) {
	for _, re := range []*regexp.Regexp{tasksColonRe, tasksVerbRe} {
		m := re.FindStringSubmatchIndex(text)
		if m == nil {
			continue
		}
		var tasks []string
		for _, part := range taskSplitRe.Split(text[m[2]:m[3]], -1) {
			part = strings.Trim(strings.TrimSpace(part), ".!\"«»“”")
			if part != "" {
				tasks = append(tasks, part)
			}
		}
		if len(tasks) > 0 {
			return TaskFragment{Tasks: tasks, Rest: strings.TrimSpace(text[:m[0]])}, true
		}
	}
	return TaskFragment{}, false
}

// ComposeTasks renders a task list as a note body.
func ComposeTasks(tasks []string) string {
	if len(tasks) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Tâches :")
	for _, t := range tasks {
		b.WriteString("\n- ")
		b.WriteString(t)
	}
	return b.String()
}

func cleanNote(s string) string {
	return strings.Trim(strings.TrimSpace(s), "\"«»“”")
}

func isScopeWords(s string) bool {
	f := Fold(s)
	return f == "" || strings.HasPrefix(f, "tous") || strings.HasPrefix(f, "toutes") ||
		strings.HasPrefix(f, "les ") || strings.HasPrefix(f, "ces ") || f == "projets" ||
		strings.HasPrefix(f, "projets ") || strings.HasPrefix(f, "chaque")
}
