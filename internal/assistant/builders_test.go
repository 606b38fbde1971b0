package assistant

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/studio-agent/internal/project"
)

func extract(text string) (MutationExtraction, FilterExtraction) {
	mx := BuildMutation(text, vocabulary(), fixedNow)
	fx := BuildFilter(mx.Remainder, mx.RawRemainder, vocabulary(), projectNames(catalog()), fixedNow)
	return mx, fx
}

func TestBuildMutation_StatusTargetVersusFilter(t *testing.T) {
	mx, fx := extract("passe les projets en cours en terminé")
	require.NotNil(t, mx.Mutation.NewStatus)
	assert.Equal(t, project.StatusDone, *mx.Mutation.NewStatus)
	require.NotNil(t, fx.Filter.Status)
	assert.Equal(t, project.StatusInProgress, *fx.Filter.Status)
}

func TestBuildMutation_DirectInProgressTarget(t *testing.T) {
	mx, fx := extract("passe les en cours")
	require.NotNil(t, mx.Mutation.NewStatus)
	assert.Equal(t, project.StatusInProgress, *mx.Mutation.NewStatus)
	assert.Nil(t, fx.Filter.Status)
}

func TestBuildMutation_ArchiveVerb(t *testing.T) {
	mx, fx := extract("archive les projets terminés")
	require.NotNil(t, mx.Mutation.NewStatus)
	assert.Equal(t, project.StatusArchived, *mx.Mutation.NewStatus)
	require.NotNil(t, fx.Filter.Status)
	assert.Equal(t, project.StatusDone, *fx.Filter.Status)
}

func TestBuildMutation_Progress(t *testing.T) {
	mx, fx := extract("mets la progression à 80%")
	require.NotNil(t, mx.Mutation.NewProgress)
	assert.Equal(t, 80, *mx.Mutation.NewProgress)
	assert.Nil(t, fx.Filter.MinProgress)
	assert.False(t, fx.Filter.IsScoping())
}

func TestBuildMutation_ProgressFilterAndTarget(t *testing.T) {
	mx, fx := extract("passe les projets à 15% à 30%")
	require.NotNil(t, mx.Mutation.NewProgress)
	assert.Equal(t, 30, *mx.Mutation.NewProgress)
	require.NotNil(t, fx.Filter.MinProgress)
	assert.Equal(t, 15, *fx.Filter.MinProgress)
}

func TestBuildMutation_Deadlines(t *testing.T) {
	mx, _ := extract("pousse les deadlines de 3 jours")
	require.NotNil(t, mx.Mutation.PushDeadlineBy)
	assert.Equal(t, project.DeadlineShift{Days: 3}, *mx.Mutation.PushDeadlineBy)

	mx, _ = extract("supprime les deadlines")
	assert.True(t, mx.Mutation.RemoveDeadline)
	assert.True(t, mx.Mutation.TouchesDeadline())

	mx, _ = extract("mets la deadline au 20/11")
	require.NotNil(t, mx.Mutation.NewDeadline)
	assert.Equal(t, "20/11/2026", project.FormatDate(mx.Mutation.NewDeadline))

	mx, _ = extract("deadline vendredi")
	assert.NotNil(t, mx.Mutation.NewDeadline)

	mx, _ = extract("crée un projet Aurore pour le 20/11")
	require.NotNil(t, mx.Mutation.NewDeadline)
	assert.Equal(t, "20/11/2026", project.FormatDate(mx.Mutation.NewDeadline))
}

func TestBuildMutation_DateWithoutSetterIsNotATarget(t *testing.T) {
	for _, text := range []string{
		"liste les projets à rendre demain",
		"combien de projets pour le 15/11",
		"quels projets sortent le 3 novembre",
	} {
		mx, _ := extract(text)
		assert.Nil(t, mx.Mutation.NewDeadline, text)
		assert.True(t, mx.Mutation.IsEmpty(), text)
	}
}

func TestBuildMutation_TagTargets(t *testing.T) {
	mx, _ := extract("mets le collaborateur à lina")
	assert.Equal(t, "Lina", mx.Mutation.NewCollaborator)

	mx, _ = extract("change le style en house")
	assert.Equal(t, "house", mx.Mutation.NewStyle)

	mx, _ = extract("mets le label Nebula")
	assert.Equal(t, "Nebula", mx.Mutation.NewLabel)

	mx, _ = extract("assigne les projets en cours à Marco")
	assert.Equal(t, "Marco", mx.Mutation.NewCollaborator)
}

func TestBuildMutation_NothingToChange(t *testing.T) {
	for _, text := range []string{"liste les projets terminés", "bonjour", "combien de projets à plus de 50% ?"} {
		mx, _ := extract(text)
		assert.True(t, mx.Mutation.IsEmpty(), text)
	}
}

func TestBuildFilter(t *testing.T) {
	_, fx := extract("liste les projets de Lina en techno")
	assert.Equal(t, "Lina", fx.Filter.Collaborator)
	assert.Equal(t, "techno", fx.Filter.Style)

	_, fx = extract("montre les projets sans deadline")
	require.NotNil(t, fx.Filter.HasDeadline)
	assert.False(t, *fx.Filter.HasDeadline)
	assert.True(t, fx.Filter.HasDeadlineExplicit)

	_, fx = extract("liste les projets presque finis")
	require.NotNil(t, fx.Filter.MinProgress)
	assert.Equal(t, 90, *fx.Filter.MinProgress)
	assert.Nil(t, fx.Filter.Status)

	_, fx = extract("affiche les projets les plus urgents")
	assert.Equal(t, project.SortDeadline, fx.Filter.SortBy)

	_, fx = extract("liste les projets de 2025")
	require.NotNil(t, fx.Filter.Year)
	assert.Equal(t, 2025, *fx.Filter.Year)

	_, fx = extract("où en est Solstice ?")
	assert.Equal(t, "Solstice", fx.Filter.Name)
	assert.Equal(t, "Solstice", fx.NamedProject)

	_, fx = extract("liste les projets en détail")
	assert.Nil(t, fx.Filter.Status)
	assert.False(t, fx.Filter.IsScoping())
}

func TestClassify(t *testing.T) {
	for _, tc := range []struct {
		text string
		want Intent
	}{
		{"liste les projets terminés", IntentList},
		{"montre-moi les projets de Lina", IntentList},
		{"combien de projets en cours ?", IntentCount},
		{"crée un projet Aurore", IntentCreate},
		{"ajoute un projet Aurore", IntentCreate},
		{"crée un projet Aurore pour vendredi", IntentCreate},
		{"passe les projets en cours en terminé", IntentUpdate},
		{"mets la progression à 80%", IntentUpdate},
		{"pousse les deadlines d'une semaine", IntentUpdate},
		{"les projets terminés ?", IntentList},
		{"liste les projets à rendre demain", IntentList},
		{"combien de projets pour le 15/11", IntentCount},
		{"montre les projets avec une deadline le 20/11", IntentList},
		{"salut", IntentConversational},
		{"pourquoi je procrastine autant ?", IntentConversational},
	} {
		mx, fx := extract(tc.text)
		c := Classify(tc.text, fx.Filter, mx.Mutation, fx.NamedProject)
		assert.Equal(t, tc.want, c.Intent, tc.text)
	}
}

func TestClassify_Signals(t *testing.T) {
	mx, fx := extract("pourquoi je procrastine autant ?")
	c := Classify("pourquoi je procrastine autant ?", fx.Filter, mx.Mutation, fx.NamedProject)
	assert.True(t, c.IsQuestion)
	assert.True(t, c.IsComplex)
	assert.True(t, c.IsConversational)
	assert.False(t, c.HasActionVerb)

	mx, fx = extract("crée un projet Aurore")
	c = Classify("crée un projet Aurore", fx.Filter, mx.Mutation, fx.NamedProject)
	assert.True(t, c.IsCreate)
	assert.False(t, c.HasActionVerb)
	assert.True(t, c.HasProjectReference)
}

func TestResolveScope(t *testing.T) {
	all := catalog()
	done := project.StatusDone
	inProgress := project.StatusInProgress

	s := ResolveScope(project.Filter{Status: &done}, WorkingMemory{LastListedProjectIDs: []string{"p1"}}, all)
	assert.Equal(t, ProvenanceExplicitFilter, s.Provenance)
	require.Len(t, s.Projects, 1)
	assert.Equal(t, "p2", s.Projects[0].ID)

	s = ResolveScope(project.Filter{}, WorkingMemory{LastListedProjectIDs: []string{"p3", "gone"}}, all)
	assert.Equal(t, ProvenanceLastListing, s.Provenance)
	require.Len(t, s.Projects, 1)
	assert.Equal(t, "p3", s.Projects[0].ID)

	s = ResolveScope(project.Filter{}, WorkingMemory{LastAppliedFilter: &project.Filter{Status: &inProgress}}, all)
	assert.Equal(t, ProvenanceLastFilter, s.Provenance)
	assert.Len(t, s.Projects, 3)

	s = ResolveScope(project.Filter{}, WorkingMemory{}, all)
	assert.True(t, s.Missing)
	assert.False(t, s.Stale)
	assert.Empty(t, s.Projects)

	s = ResolveScope(project.Filter{}, WorkingMemory{LastListedProjectIDs: []string{"gone"}}, all)
	assert.True(t, s.Missing)
	assert.True(t, s.Stale)

	// A sort alone does not scope.
	s = ResolveScope(project.Filter{SortBy: project.SortName}, WorkingMemory{}, all)
	assert.True(t, s.Missing)
}

func TestStage(t *testing.T) {
	all := catalog()
	scope := Scope{Provenance: ProvenanceLastListing, Projects: append(all, all[0])}
	m := project.Mutation{NewProgress: project.IntPtr(100)}

	a := Stage(m, scope, 0, fixedNow)
	assert.Regexp(t, `^act_[0-9a-z]{26}$`, a.ID)
	assert.Equal(t, []string{"p1", "p2", "p3", "p4", "p5"}, a.AffectedIDs)
	assert.Len(t, a.Preview, previewLimit)
	assert.Equal(t, "progression", a.Preview[0].Changes[0].Field)
	assert.Equal(t, fixedNow, a.CreatedAt)
	assert.Len(t, a.ExpectedUpdatedAt, 5)
	// Nuit Blanche is already at 100%.
	assert.Empty(t, a.Preview[1].Changes)

	text := RenderPreview(a)
	assert.Contains(t, text, "Modifier 5 projets")
	assert.Contains(t, text, "… et 2 autre(s).")
}

func TestStage_MissingTimestampIsNotExpected(t *testing.T) {
	ps := catalog()[:2]
	ps[1].UpdatedAt = time.Time{}

	a := Stage(project.Mutation{NewLabel: "Nebula"}, Scope{Provenance: ProvenanceAllProjects, Projects: ps}, 0, fixedNow)
	assert.Equal(t, []string{"p1", "p2"}, a.AffectedIDs)
	assert.Contains(t, a.ExpectedUpdatedAt, "p1")
	assert.NotContains(t, a.ExpectedUpdatedAt, "p2")
	assert.Equal(t, ps[0].UpdatedAt.UTC().Format(time.RFC3339Nano), a.ExpectedUpdatedAt["p1"])
}

func TestRefineForDeadline(t *testing.T) {
	kept, skipped := RefineForDeadline(catalog())
	assert.Len(t, kept, 3)
	assert.Equal(t, 2, skipped)
}

func TestMetaPhrases(t *testing.T) {
	assert.True(t, IsCapabilityQuestion("Que sais-tu faire ?"))
	assert.True(t, IsCapabilityQuestion("aide"))
	assert.True(t, IsCapabilityQuestion("Aide-moi !"))
	assert.True(t, IsCapabilityQuestion("?"))
	assert.True(t, IsCapabilityQuestion(" ?? "))
	assert.False(t, IsCapabilityQuestion("liste les projets"))
	assert.False(t, IsCapabilityQuestion("aide Lina sur Brume"))
	assert.False(t, IsCapabilityQuestion("combien de projets ?"))

	assert.True(t, WantsDetail("montre-les en détail"))
	assert.False(t, WantsDetail("montre-les"))

	assert.True(t, IsAffirmative("Oui, vas-y !"))
	assert.True(t, IsAffirmative("applique à tous"))
	assert.False(t, IsAffirmative("oui mais seulement Brume"))
	assert.True(t, IsNegative("non"))
	assert.False(t, IsNegative("oui"))
}
