package assistant

import (
	"strings"

	"github.com/p-blackswan/studio-agent/internal/lexicon"
)

// CapabilitiesText answers "what can you do". It is fixed text and does not
// depend on the catalog.
const CapabilitiesText = `Voici ce que je sais faire :
• Lister ou compter tes projets : « liste les projets terminés », « combien de projets à plus de 80% ? »
• Filtrer par statut, progression, deadline, collaborateur, style, label, nom ou année
• Trier : « les plus urgents », « triés par progression »
• Créer un projet : « crée un projet "Nuit Blanche" avec Lina »
• Modifier plusieurs projets d'un coup : statut, progression, collaborateur, style, label
• Gérer les deadlines : « pousse les deadlines d'une semaine », « deadline vendredi », « supprime les deadlines »
• Ajouter une note ou des tâches : « ajoute une note au projet Brume : refaire la basse »
• Afficher le détail de la dernière liste : « en détail »
Toute modification t'est d'abord proposée avec un aperçu, et n'est appliquée qu'après ta confirmation.`

var capabilityPhrases = []string{
	"tes fonctionnalites", "tes fonctions", "tes capacites", "que sais tu faire",
	"qu est ce que tu sais faire", "que peux tu faire", "qu est ce que tu peux faire",
	"tu sais faire quoi", "tu peux faire quoi", "tu fais quoi", "comment tu marches",
	"comment t utiliser", "comment je t utilise", "a quoi tu sers", "quelles commandes",
	"what can you do",
}

// helpWords are whole-message requests for help. A message made only of
// question marks counts too. Keep both in sync with capabilityPhrases.
var helpWords = map[string]bool{"aide": true, "help": true, "aide moi": true}

// IsCapabilityQuestion reports whether text asks what the assistant can do:
// one of capabilityPhrases anywhere, a bare help word, or a lone "?".
func IsCapabilityQuestion(text string) bool {
	folded := strings.Trim(lexicon.Fold(text), " ?!.")
	if helpWords[folded] || folded == "" && strings.Contains(text, "?") {
		return true
	}
	return lexicon.ContainsAny(folded, capabilityPhrases)
}

var detailPhrases = []string{
	"en detail", "en details", "plus de details", "plus de detail", "detaille",
	"detailler", "les details", "le detail", "avec les details", "version detaillee",
	"fiche complete", "tout le detail",
}

// WantsDetail reports whether text asks for the detailed display.
func WantsDetail(text string) bool {
	return lexicon.ContainsAny(lexicon.Fold(text), detailPhrases)
}

var affirmatives = map[string]bool{
	"oui": true, "ouais": true, "ok": true, "okay": true, "d accord": true, "dac": true,
	"vas y": true, "go": true, "yes": true, "valide": true, "confirme": true,
	"c est bon": true, "oui vas y": true, "oui a tous": true, "a tous": true,
	"applique a tous": true, "applique a tout": true, "tous": true, "tous les projets": true,
	"oui tous": true, "oui tous les projets": true, "oui applique a tous": true,
	"ok pour tous": true, "ok vas y": true, "parfait": true,
}

// IsAffirmative reports whether text is a bare "yes", used to accept a
// pending scope prompt or a staged action.
func IsAffirmative(text string) bool {
	return affirmatives[bare(text)]
}

var negatives = map[string]bool{
	"non": true, "annule": true, "laisse tomber": true, "stop": true, "no": true,
	"non merci": true, "pas maintenant": true, "oublie": true,
}

// IsNegative reports whether text is a bare "no".
func IsNegative(text string) bool {
	return negatives[bare(text)]
}

var punctuation = strings.NewReplacer(",", " ", ";", " ", ":", " ", "!", " ", "?", " ", ".", " ", "…", " ")

// bare folds text and drops punctuation so that "Oui, vas-y !" reads "oui vas y".
func bare(text string) string {
	return strings.Join(strings.Fields(punctuation.Replace(lexicon.Fold(text))), " ")
}
