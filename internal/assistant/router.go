// Package assistant turns a French studio utterance into a listing, a
// creation request, a staged bulk mutation awaiting confirmation, or a
// conversational reply. Nothing in this package writes to the catalog: updates
// leave as PendingAction values that the store applies after confirmation,
// and the conversational oracle can only ever produce text.
package assistant

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	perrors "github.com/p-blackswan/studio-agent/internal/errors"
	"github.com/p-blackswan/studio-agent/internal/lexicon"
	"github.com/p-blackswan/studio-agent/internal/metrics"
	"github.com/p-blackswan/studio-agent/internal/project"
)

// FallbackGreeting replaces the oracle when it is absent or failing.
const FallbackGreeting = "Bonjour ! Je suis ton assistant studio. Je peux lister, compter, créer ou modifier tes projets. Dis « aide » pour voir des exemples."

// Request is the full context of one routing call. The caller loads the
// projects and vocabulary; the router never queries anything itself.
type Request struct {
	Text       string
	Projects   []project.Project
	Vocabulary project.Vocabulary
	Memory     WorkingMemory
	History    []Turn
}

// Options configures a Router.
type Options struct {
	// Debug adds routing traces and a filter breakdown to empty answers.
	Debug bool
	// Now is the clock used for relative dates. Defaults to time.Now.
	Now      func() time.Time
	Location *time.Location
	Oracle   Oracle
	Metrics  *metrics.Metrics
	Logger   zerolog.Logger
}

// Router sequences extraction, classification, scope resolution and staging.
// It holds no per-conversation state and is safe for concurrent use.
type Router struct {
	debug   bool
	now     func() time.Time
	loc     *time.Location
	oracle  Oracle
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewRouter creates a Router.
func NewRouter(opts Options) *Router {
	r := &Router{
		debug:   opts.Debug,
		now:     opts.Now,
		loc:     opts.Location,
		oracle:  opts.Oracle,
		metrics: opts.Metrics,
		logger:  opts.Logger.With().Str("component", "router").Logger(),
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.loc == nil {
		r.loc = time.UTC
	}
	return r
}

// Route interprets req.Text. Every user-caused condition resolves to a
// Result; the error is reserved for a nil request.
func (r *Router) Route(ctx context.Context, req *Request) (Result, error) {
	if req == nil {
		return nil, fmt.Errorf("route: nil request: %w", perrors.ErrInvalidInput)
	}
	start := time.Now()
	intent, res := r.route(ctx, req)
	r.metrics.RecordCommand(string(intent), string(res.Kind()))
	r.metrics.ObserveRoute(string(intent), time.Since(start).Seconds())
	return res, nil
}

func (r *Router) route(ctx context.Context, req *Request) (Intent, Result) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return IntentConversational, &GeneralResult{Message: "Je n'ai rien reçu. Dis-moi ce que tu veux faire avec tes projets.", Source: SourceAssistant}
	}
	if IsCapabilityQuestion(text) {
		return IntentMeta, &GeneralResult{Message: CapabilitiesText, Source: SourceCapabilities}
	}

	now := r.now().In(r.loc)
	names := projectNames(req.Projects)
	mx := BuildMutation(text, req.Vocabulary, now)
	fx := BuildFilter(mx.Remainder, mx.RawRemainder, req.Vocabulary, names, now)
	cls := Classify(text, fx.Filter, mx.Mutation, fx.NamedProject)
	detail := WantsDetail(text)

	if r.debug {
		r.logger.Debug().
			Str("intent", string(cls.Intent)).
			Bool("action_verb", cls.HasActionVerb).
			Bool("detail", detail).
			Str("filter", fx.Filter.Describe()).
			Bool("scoping", fx.Filter.IsScoping()).
			Str("mutation", mx.Mutation.Describe()).
			Str("remainder", fx.Remainder).
			Msg("utterance classified")
	}

	// "montre-les en détail" points at the previous answer, not the catalog.
	if detail && !fx.Filter.IsScoping() && mx.Mutation.IsEmpty() && cls.Intent != IntentCreate &&
		!(cls.IsList && cls.HasProjectReference) {
		return IntentMeta, r.detailOfLastScope(req)
	}

	switch cls.Intent {
	case IntentList, IntentCount:
		return cls.Intent, r.list(req, fx, cls.Intent == IntentCount, detail)
	case IntentCreate:
		return cls.Intent, r.create(text, fx, mx)
	case IntentUpdate:
		if mx.Mutation.IsEmpty() {
			// A verb with nothing we can stage: let the oracle answer.
			return cls.Intent, r.converse(ctx, req, cls)
		}
		return cls.Intent, r.update(req, fx, mx.Mutation, now)
	}

	return cls.Intent, r.converse(ctx, req, cls)
}

// StageForAll stages m over every project. It answers a confirmed scope
// prompt, reusing the mutation carried by the ScopeConfirmationResult.
func (r *Router) StageForAll(m project.Mutation, projects []project.Project) Result {
	return r.stage(m, AllProjectsScope(projects), r.now().In(r.loc))
}

func (r *Router) list(req *Request, fx FilterExtraction, countOnly, detailed bool) Result {
	matched := fx.Filter.Apply(req.Projects)
	if len(matched) == 0 {
		if len(req.Projects) == 0 {
			return &GeneralResult{Message: "Ton catalogue est vide pour l'instant. Tu peux créer un projet : « crée un projet \"Nom\" ».", Source: SourceAssistant}
		}
		return &GeneralResult{Message: r.noMatch(fx, len(req.Projects)), Source: SourceAssistant}
	}
	res := &ListResult{Filter: fx.Filter, Projects: matched, CountOnly: countOnly, Detailed: detailed}
	res.Message = formatListing(res)
	return res
}

func (r *Router) detailOfLastScope(req *Request) Result {
	var (
		f        project.Filter
		projects []project.Project
	)
	switch {
	case len(req.Memory.LastListedProjectIDs) > 0:
		byID := make(map[string]project.Project, len(req.Projects))
		for _, p := range req.Projects {
			byID[p.ID] = p
		}
		for _, id := range req.Memory.LastListedProjectIDs {
			if p, ok := byID[id]; ok {
				projects = append(projects, p)
			}
		}
		if req.Memory.LastAppliedFilter != nil {
			f = *req.Memory.LastAppliedFilter
		}
	case req.Memory.hasFilter():
		f = *req.Memory.LastAppliedFilter
		projects = f.Apply(req.Projects)
	default:
		projects = append(projects, req.Projects...)
	}
	if len(projects) == 0 {
		return &GeneralResult{Message: "Je n'ai aucun projet à détailler pour le moment.", Source: SourceAssistant}
	}
	res := &ListResult{Filter: f, Projects: projects, Detailed: true}
	res.Message = formatListing(res)
	return res
}

var createNameRe = regexp.MustCompile(`(?i)(?:projet|track|morceau|titre|son)\s+(?:nommé\s+|nomme\s+|appelé\s+|appele\s+|intitulé\s+|intitule\s+)?([\p{L}\d][^,.;:!?"«»“”]*?)(?:\s+(?:avec|en|pour|à|a|au|de|du|style|deadline|chez|feat|progression)\b|[,.;:!?]|$)`)

var createNameStopWords = map[string]bool{
	"en": true, "a": true, "avec": true, "pour": true, "de": true, "du": true, "style": true,
	"deadline": true, "chez": true, "nouveau": true, "nouvelle": true, "un": true, "une": true,
}

func (r *Router) create(text string, fx FilterExtraction, mx MutationExtraction) Result {
	name := fx.NamedProject
	if name == "" {
		if m := quotedNameRe.FindStringSubmatch(text); m != nil {
			name = strings.TrimSpace(m[1])
		} else if m := createNameRe.FindStringSubmatch(text); m != nil {
			candidate := strings.TrimSpace(m[1])
			if first := strings.Fields(lexicon.Fold(candidate)); len(first) > 0 && !createNameStopWords[first[0]] {
				name = candidate
			}
		}
	}
	if name == "" {
		return &GeneralResult{Message: "Quel nom veux-tu donner au nouveau projet ?", Source: SourceAssistant}
	}

	f, m := fx.Filter, mx.Mutation
	d := project.Draft{
		Name:         name,
		Status:       project.StatusInProgress,
		Collaborator: firstNonEmpty(m.NewCollaborator, f.Collaborator),
		Style:        firstNonEmpty(m.NewStyle, f.Style),
		Label:        firstNonEmpty(m.NewLabel, f.Label),
		Note:         m.Note,
		Deadline:     m.NewDeadline,
	}
	switch {
	case m.NewStatus != nil:
		d.Status = *m.NewStatus
	case f.Status != nil:
		d.Status = *f.Status
	}
	switch {
	case m.NewProgress != nil:
		d.Progress = m.NewProgress
	case f.MinProgress != nil && f.MaxProgress != nil && *f.MinProgress == *f.MaxProgress:
		d.Progress = f.MinProgress
	}
	return &CreateResult{Draft: d, Message: fmt.Sprintf("Je crée le projet « %s » (%s).", d.Name, d.Status.Label())}
}

func (r *Router) update(req *Request, fx FilterExtraction, m project.Mutation, now time.Time) Result {
	if m.IsSingleProjectNote() {
		p, ok := FindProjectByName(req.Projects, m.NoteProject)
		if !ok {
			return &GeneralResult{Message: fmt.Sprintf("Je ne trouve aucun projet nommé « %s ».", m.NoteProject), Source: SourceAssistant}
		}
		m.NoteProject = p.Name
		scope := Scope{Provenance: ProvenanceNamedProject, Filter: project.Filter{Name: p.Name}, Projects: []project.Project{p}}
		return r.stage(m, scope, now)
	}

	scope := ResolveScope(fx.Filter, req.Memory, req.Projects)
	if scope.Missing {
		msg := fmt.Sprintf("Je n'ai pas de sélection de projets pour : %s. Veux-tu l'appliquer à tous les projets ?", m.Describe())
		if scope.Stale {
			msg = fmt.Sprintf("Les projets de la dernière liste n'existent plus. Veux-tu appliquer « %s » à tous les projets ?", m.Describe())
		}
		return &ScopeConfirmationResult{ConfirmationType: ConfirmationScopeMissing, Mutation: m, Message: msg}
	}
	if len(scope.Projects) == 0 {
		return &GeneralResult{Message: r.noMatch(fx, len(req.Projects)), Source: SourceAssistant}
	}
	return r.stage(m, scope, now)
}

func (r *Router) stage(m project.Mutation, scope Scope, now time.Time) Result {
	skipped := 0
	if m.TouchesDeadline() {
		scope.Projects, skipped = RefineForDeadline(scope.Projects)
		if len(scope.Projects) == 0 {
			return &GeneralResult{Message: "Aucun projet de cette sélection n'a de deadline : rien à modifier.", Source: SourceAssistant}
		}
	}
	if len(scope.Projects) == 0 {
		return &GeneralResult{Message: "Aucun projet à modifier.", Source: SourceAssistant}
	}
	action := Stage(m, scope, skipped, now)
	r.metrics.RecordAction("staged")
	r.logger.Info().
		Str("action_id", action.ID).
		Str("provenance", string(action.Provenance)).
		Int("affected", len(action.AffectedIDs)).
		Int("skipped_no_deadline", skipped).
		Msg("action staged")
	return &PendingActionResult{Action: action, Message: RenderPreview(action)}
}

// converse is the only path that reaches the oracle, and it can only return
// a GeneralResult.
func (r *Router) converse(ctx context.Context, req *Request, cls Classification) Result {
	if r.oracle == nil {
		r.metrics.RecordOracle("disabled")
		return &GeneralResult{Message: FallbackGreeting, Source: SourceFallback}
	}
	reply, err := r.oracle.Reply(ctx, OracleRequest{
		Message: req.Text,
		Summary: project.Summarize(req.Projects, r.now().In(r.loc)),
		History: req.History,
		Complex: cls.IsComplex,
	})
	if err != nil {
		r.metrics.RecordOracle("error")
		r.logger.Warn().Err(err).Msg("oracle unavailable, using fallback")
		return &GeneralResult{Message: FallbackGreeting, Source: SourceFallback}
	}
	r.metrics.RecordOracle("ok")
	return &GeneralResult{Message: reply, Source: SourceOracle}
}

func (r *Router) noMatch(fx FilterExtraction, total int) string {
	msg := fmt.Sprintf("Aucun projet ne correspond (%s).", fx.Filter.Describe())
	if r.debug {
		msg += fmt.Sprintf("\n[debug] filtre=%s scoping=%t reste=%q catalogue=%d",
			fx.Filter.Describe(), fx.Filter.IsScoping(), fx.Remainder, total)
	}
	return msg
}

// FindProjectByName resolves a spoken project name: exact folded match, then
// containment, then the closest name with similarity of at least 0.75.
func FindProjectByName(projects []project.Project, name string) (project.Project, bool) {
	target := lexicon.Fold(name)
	if target == "" {
		return project.Project{}, false
	}
	for _, p := range projects {
		if lexicon.Fold(p.Name) == target {
			return p, true
		}
	}
	for _, p := range projects {
		fp := lexicon.Fold(p.Name)
		if strings.Contains(fp, target) || strings.Contains(target, fp) {
			return p, true
		}
	}
	best, bestScore := project.Project{}, 0.0
	for _, p := range projects {
		if s := lexicon.Similarity(lexicon.Fold(p.Name), target); s > bestScore {
			best, bestScore = p, s
		}
	}
	return best, bestScore >= 0.75
}

func projectNames(ps []project.Project) []string {
	names := make([]string, 0, len(ps))
	for _, p := range ps {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func formatListing(res *ListResult) string {
	n := len(res.Projects)
	var b strings.Builder
	scope := ""
	if res.Filter.IsScoping() {
		scope = " (" + res.Filter.Describe() + ")"
	}
	if res.CountOnly {
		fmt.Fprintf(&b, "%s%s.", pluralProjects(n), scope)
		return b.String()
	}
	fmt.Fprintf(&b, "%s%s :", pluralProjects(n), scope)
	for _, p := range res.Projects {
		fmt.Fprintf(&b, "\n• %s : %s", p.Name, p.Status.Label())
		if p.Progress != nil {
			fmt.Fprintf(&b, ", %d%%", *p.Progress)
		}
		if p.Deadline != nil {
			fmt.Fprintf(&b, ", deadline %s", project.FormatDate(p.Deadline))
		}
		if !res.Detailed {
			continue
		}
		if p.Collaborator != "" {
			fmt.Fprintf(&b, "\n   collaborateur : %s", p.Collaborator)
		}
		if p.Style != "" {
			fmt.Fprintf(&b, "\n   style : %s", p.Style)
		}
		if p.Label != "" {
			fmt.Fprintf(&b, "\n   label : %s", p.Label)
		}
		if p.Note != "" {
			fmt.Fprintf(&b, "\n   note : %s", strings.ReplaceAll(p.Note, "\n", " / "))
		}
	}
	return b.String()
}
