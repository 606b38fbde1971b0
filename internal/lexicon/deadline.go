package lexicon

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/p-blackswan/studio-agent/internal/project"
)

// DeadlineKind tells which pattern family matched.
type DeadlineKind int

const (
	DeadlineNone DeadlineKind = iota
	// DeadlinePresence is a filter: "avec une deadline", "sans deadline".
	DeadlinePresence
	// DeadlineShift moves existing deadlines by a signed amount.
	DeadlineShift
	// DeadlineAbsolute sets a new date resolved from a relative phrase.
	DeadlineAbsolute
	// DeadlineRemove clears the deadline.
	DeadlineRemove
)

func (k DeadlineKind) String() string {
	switch k {
	case DeadlinePresence:
		return "presence"
	case DeadlineShift:
		return "shift"
	case DeadlineAbsolute:
		return "absolute"
	case DeadlineRemove:
		return "remove"
	default:
		return "none"
	}
}

// DeadlineFragment is the result of DetectDeadline.
type DeadlineFragment struct {
	Kind        DeadlineKind
	HasDeadline bool
	Shift       project.DeadlineShift
	Date        time.Time
	Span        Span
}

const deadlineNoun = `(?:deadlines?|dead lines?|echeances?|dates? limites?|dates? de rendu|dates? de sortie|dl)`

var (
	deadlineNounRe = regexp.MustCompile(`\b` + deadlineNoun + `\b`)

	removeRe = regexp.MustCompile(`\b(?:supprim|enlev|retir|effac|vir|annul|degag)(?:e|es|er|ez|ons)?\s+(?:toutes?\s+|tous\s+)?(?:les |la |leurs? |sa |ses |l |leur )?` + deadlineNoun + `\b`)

	presenceNoRe  = regexp.MustCompile(`\b(?:sans (?:de |d |aucune )?|n ont pas de |n a pas de |pas de |aucune )` + deadlineNoun + `\b`)
	presenceYesRe = regexp.MustCompile(`\b(?:avec (?:une |des |un |leur )?|ayant (?:une |des )?|qui ont (?:une |des )?|qui a (?:une )?)` + deadlineNoun + `\b`)

	amountRe = regexp.MustCompile(`(?:\+\s*|de |d |par |plus |moins )?\b(\d+|` + numberWordPattern + `)\s*(jours?|j|semaines?|sem|mois|ans?|annees?)\b`)

	earlierRe = regexp.MustCompile(`\b(?:plus tot|en avance|moins)\b`)
	laterRe   = regexp.MustCompile(`\b(?:plus tard|en retard)\b`)

	inNRe       = regexp.MustCompile(`\bdans\s+(\d+|` + numberWordPattern + `)\s*(jours?|semaines?|mois|ans?)\b`)
	slashDateRe = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{2}|\d{4}))?\b`)
	monthDateRe = regexp.MustCompile(`\b(\d{1,2}|1er)\s+(janvier|fevrier|mars|avril|mai|juin|juillet|aout|septembre|octobre|novembre|decembre)(?:\s+(\d{4}))?\b`)
	weekdayRe   = regexp.MustCompile(`\b(lundi|mardi|mercredi|jeudi|vendredi|samedi|dimanche)(?:\s+prochain)?\b`)
	forDateRe   = regexp.MustCompile(`\b(?:pour|a|au|le|d ici)\b`)
)

var pushVerbs = []string{
	"pousse", "pousser", "poussez", "repousse", "repousser", "repoussez",
	"decale", "decaler", "decalez", "recule", "reculer", "reculez",
	"reporte", "reporter", "reportez", "retarde", "retarder", "retardez",
	"prolonge", "prolonger", "prolongez", "rallonge", "rallonger", "rallongez",
	"differe", "differer",
}

var pullVerbs = []string{
	"avance", "avancer", "avancez", "rapproche", "rapprocher", "rapprochez",
	"ramene", "ramener", "ramenez", "raccourcis", "raccourcir", "raccourcissez",
	"anticipe", "anticiper", "anticipez",
}

// verbSimilarity is the minimum similarity for a token to count as a shift
// verb, so "poussse" and "décalle" still read as push verbs.
const verbSimilarity = 0.75

var months = map[string]time.Month{
	"janvier": time.January, "fevrier": time.February, "mars": time.March,
	"avril": time.April, "mai": time.May, "juin": time.June,
	"juillet": time.July, "aout": time.August, "septembre": time.September,
	"octobre": time.October, "novembre": time.November, "decembre": time.December,
}

var weekdays = map[string]time.Weekday{
	"lundi": time.Monday, "mardi": time.Tuesday, "mercredi": time.Wednesday,
	"jeudi": time.Thursday, "vendredi": time.Friday, "samedi": time.Saturday,
	"dimanche": time.Sunday,
}

// DetectDeadline reads one deadline instruction from text. Families are tried
// in order (removal, shift, absolute date, presence filter) and the first one
// that matches wins. A date that cannot be parsed is reported as no match.
func DetectDeadline(text string, now time.Time) (DeadlineFragment, bool) {
	folded := Fold(text)
	if folded == "" {
		return DeadlineFragment{}, false
	}
	if loc := removeRe.FindStringIndex(folded); loc != nil {
		return DeadlineFragment{Kind: DeadlineRemove, Span: Span{Start: loc[0], End: loc[1]}}, true
	}
	if frag, ok := detectShift(folded); ok {
		return frag, true
	}
	if frag, ok := detectAbsolute(folded, now); ok {
		return frag, true
	}
	if loc := presenceNoRe.FindStringIndex(folded); loc != nil {
		return DeadlineFragment{Kind: DeadlinePresence, HasDeadline: false, Span: Span{Start: loc[0], End: loc[1]}}, true
	}
	if loc := presenceYesRe.FindStringIndex(folded); loc != nil {
		return DeadlineFragment{Kind: DeadlinePresence, HasDeadline: true, Span: Span{Start: loc[0], End: loc[1]}}, true
	}
	return DeadlineFragment{}, false
}

// ShiftDirection returns +1 for a push verb, -1 for a pull verb and 0 when no
// shift verb is present, together with the verb's byte offset.
func ShiftDirection(folded string) (int, int) {
	offset := 0
	for _, tok := range strings.Fields(folded) {
		start := strings.Index(folded[offset:], tok) + offset
		offset = start + len(tok)
		word := strings.Trim(tok, ".,;:!?\"()")
		if len(word) < 5 {
			continue
		}
		if bestSimilarity(word, pushVerbs) >= verbSimilarity {
			return 1, start
		}
		if bestSimilarity(word, pullVerbs) >= verbSimilarity {
			return -1, start
		}
	}
	return 0, -1
}

func detectShift(folded string) (DeadlineFragment, bool) {
	dir, verbAt := ShiftDirection(folded)
	if dir == 0 {
		return DeadlineFragment{}, false
	}
	if earlierRe.MatchString(folded[verbAt:]) {
		dir = -1
	} else if laterRe.MatchString(folded[verbAt:]) {
		dir = 1
	}

	var shift project.DeadlineShift
	end := -1
	for _, loc := range amountRe.FindAllStringSubmatchIndex(folded[verbAt:], -1) {
		m := submatches(folded[verbAt:], loc)
		n, ok := ParseCount(m[1])
		if !ok || n == 0 {
			continue
		}
		switch unit := m[2]; {
		case strings.HasPrefix(unit, "j"):
			shift.Days += dir * n
		case strings.HasPrefix(unit, "sem"):
			shift.Weeks += dir * n
		case unit == "mois":
			shift.Months += dir * n
		default:
			shift.Years += dir * n
		}
		end = verbAt + loc[1]
	}
	if end < 0 {
		return DeadlineFragment{}, false
	}
	return DeadlineFragment{Kind: DeadlineShift, Shift: shift, Span: Span{Start: verbAt, End: end}}, true
}

func detectAbsolute(folded string, now time.Time) (DeadlineFragment, bool) {
	if !deadlineNounRe.MatchString(folded) && !forDateRe.MatchString(folded) {
		return DeadlineFragment{}, false
	}
	today := project.DateOf(now)

	fixed := []struct {
		phrase string
		date   func() time.Time
	}{
		{"apres demain", func() time.Time { return today.AddDate(0, 0, 2) }},
		{"demain", func() time.Time { return today.AddDate(0, 0, 1) }},
		{"aujourd hui", func() time.Time { return today }},
		{"ce soir", func() time.Time { return today }},
		{"la semaine prochaine", func() time.Time { return today.AddDate(0, 0, 7) }},
		{"semaine prochaine", func() time.Time { return today.AddDate(0, 0, 7) }},
		{"le mois prochain", func() time.Time { return today.AddDate(0, 1, 0) }},
		{"mois prochain", func() time.Time { return today.AddDate(0, 1, 0) }},
		{"l annee prochaine", func() time.Time { return today.AddDate(1, 0, 0) }},
		{"annee prochaine", func() time.Time { return today.AddDate(1, 0, 0) }},
		{"fin du mois", func() time.Time {
			return time.Date(today.Year(), today.Month()+1, 0, 0, 0, 0, 0, time.UTC)
		}},
		{"fin de semaine", func() time.Time { return nextWeekday(today, time.Friday) }},
	}
	for _, f := range fixed {
		if idx, n := FindPhrase(folded, f.phrase, 0); idx >= 0 {
			return DeadlineFragment{Kind: DeadlineAbsolute, Date: f.date(), Span: Span{Start: idx, End: idx + n}}, true
		}
	}

	if loc := inNRe.FindStringSubmatchIndex(folded); loc != nil {
		m := submatches(folded, loc)
		if n, ok := ParseCount(m[1]); ok {
			var d time.Time
			switch {
			case strings.HasPrefix(m[2], "jour"):
				d = today.AddDate(0, 0, n)
			case strings.HasPrefix(m[2], "semaine"):
				d = today.AddDate(0, 0, 7*n)
			case m[2] == "mois":
				d = today.AddDate(0, n, 0)
			default:
				d = today.AddDate(n, 0, 0)
			}
			return DeadlineFragment{Kind: DeadlineAbsolute, Date: d, Span: Span{Start: loc[0], End: loc[1]}}, true
		}
	}

	if loc := slashDateRe.FindStringSubmatchIndex(folded); loc != nil {
		m := submatches(folded, loc)
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		if d, ok := calendarDate(today, day, time.Month(month), m[3]); ok {
			return DeadlineFragment{Kind: DeadlineAbsolute, Date: d, Span: Span{Start: loc[0], End: loc[1]}}, true
		}
		return DeadlineFragment{}, false
	}

	if loc := monthDateRe.FindStringSubmatchIndex(folded); loc != nil {
		m := submatches(folded, loc)
		day := 1
		if m[1] != "1er" {
			day, _ = strconv.Atoi(m[1])
		}
		if d, ok := calendarDate(today, day, months[m[2]], m[3]); ok {
			return DeadlineFragment{Kind: DeadlineAbsolute, Date: d, Span: Span{Start: loc[0], End: loc[1]}}, true
		}
		return DeadlineFragment{}, false
	}

	if deadlineNounRe.MatchString(folded) {
		if loc := weekdayRe.FindStringSubmatchIndex(folded); loc != nil {
			m := submatches(folded, loc)
			return DeadlineFragment{Kind: DeadlineAbsolute, Date: nextWeekday(today, weekdays[m[1]]), Span: Span{Start: loc[0], End: loc[1]}}, true
		}
	}
	return DeadlineFragment{}, false
}

// calendarDate builds day/month[/year]. Without a year the next occurrence
// from today is used. Impossible dates such as 31/02 are rejected.
func calendarDate(today time.Time, day int, month time.Month, rawYear string) (time.Time, bool) {
	if month < time.January || month > time.December || day < 1 || day > 31 {
		return time.Time{}, false
	}
	year := today.Year()
	explicitYear := rawYear != ""
	if explicitYear {
		y, err := strconv.Atoi(rawYear)
		if err != nil {
			return time.Time{}, false
		}
		if y < 100 {
			y += 2000
		}
		year = y
	}
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if d.Day() != day || d.Month() != month {
		return time.Time{}, false
	}
	if !explicitYear && d.Before(today) {
		d = d.AddDate(1, 0, 0)
	}
	return d, true
}

func nextWeekday(today time.Time, wd time.Weekday) time.Time {
	delta := (int(wd) - int(today.Weekday()) + 7) % 7
	if delta == 0 {
		delta = 7
	}
	return today.AddDate(0, 0, delta)
}

// MentionsDeadline reports whether folded text names a deadline at all.
func MentionsDeadline(folded string) bool {
	return deadlineNounRe.MatchString(folded)
}
