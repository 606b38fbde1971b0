package chat

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"github.com/p-blackswan/studio-agent/internal/assistant"
	"github.com/p-blackswan/studio-agent/internal/project"
)

// Action IDs carried by interactive buttons.
const (
	actionConfirm  = "action_confirm"
	actionCancel   = "action_cancel"
	actionApplyAll = "scope_apply_all"
	actionDropAll  = "scope_cancel"
	actionCreate   = "project_create"
)

const maxListedProjects = 15

// StatusEmoji returns the marker shown before a project in listings. An
// in-progress project due within a week is flagged.
func StatusEmoji(p project.Project, now time.Time) string {
	switch p.Status {
	case project.StatusDone:
		return "✅"
	case project.StatusArchived:
		return "📦"
	case project.StatusCancelled:
		return "⛔"
	case project.StatusGhostProduction:
		return "👻"
	case project.StatusNeedsRework:
		return "🔁"
	}
	if p.Deadline != nil && p.Deadline.Sub(project.DateOf(now)) <= 7*24*time.Hour {
		return "🟡"
	}
	return "🟢"
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-1]) + "…"
}

func mrkdwn(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.MarkdownType, text, false, false)
}

func plain(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.PlainTextType, text, false, false)
}

func section(text string) slack.Block {
	return slack.NewSectionBlock(mrkdwn(text), nil, nil)
}

// BuildBlocks renders a routing result for a conversation.
func BuildBlocks(res assistant.Result, conversationID string, now time.Time) []slack.Block {
	switch r := res.(type) {
	case *assistant.ListResult:
		return listBlocks(r, now)
	case *assistant.PendingActionResult:
		return pendingBlocks(r.Action)
	case *assistant.ScopeConfirmationResult:
		return scopeBlocks(r, conversationID)
	case *assistant.CreateResult:
		return createBlocks(r)
	default:
		return []slack.Block{section(res.Text())}
	}
}

func listBlocks(r *assistant.ListResult, now time.Time) []slack.Block {
	if r.CountOnly {
		return []slack.Block{section(r.Message)}
	}
	blocks := []slack.Block{
		slack.NewHeaderBlock(plain(fmt.Sprintf("📂 %d projet(s)", len(r.Projects)))),
	}
	if desc := r.Filter.Describe(); desc != "" {
		blocks = append(blocks, slack.NewContextBlock("", mrkdwn("Filtre : "+desc)))
	}

	shown := r.Projects
	if len(shown) > maxListedProjects {
		shown = shown[:maxListedProjects]
	}
	var b strings.Builder
	for _, p := range shown {
		fmt.Fprintf(&b, "%s *%s* · %s", StatusEmoji(p, now), p.Name, p.Status.Label())
		if p.Progress != nil {
			fmt.Fprintf(&b, " · %d%%", *p.Progress)
		}
		if p.Deadline != nil {
			fmt.Fprintf(&b, " · 📅 %s", project.FormatDate(p.Deadline))
		}
		if r.Detailed {
			if p.Collaborator != "" {
				fmt.Fprintf(&b, " · avec %s", p.Collaborator)
			}
			if p.Style != "" {
				fmt.Fprintf(&b, " · %s", p.Style)
			}
			if p.Note != "" {
				fmt.Fprintf(&b, "\n      _%s_", truncate(p.Note, 120))
			}
		}
		b.WriteString("\n")
	}
	blocks = append(blocks, section(strings.TrimRight(b.String(), "\n")))

	if extra := len(r.Projects) - len(shown); extra > 0 {
		blocks = append(blocks, slack.NewContextBlock("", mrkdwn(fmt.Sprintf("… et %d autre(s).", extra))))
	}
	return blocks
}

func pendingBlocks(a assistant.PendingAction) []slack.Block {
	text := "📝 *" + a.Description + "*"
	var b strings.Builder
	for _, p := range a.Preview {
		fmt.Fprintf(&b, "\n• *%s*", p.Name)
		for _, c := range p.Changes {
			fmt.Fprintf(&b, "\n      %s", c.String())
		}
	}
	if extra := len(a.AffectedIDs) - len(a.Preview); extra > 0 {
		fmt.Fprintf(&b, "\n… et %d autre(s).", extra)
	}

	confirm := slack.NewButtonBlockElement(actionConfirm, a.ID, plain("✅ Confirmer"))
	confirm.Style = slack.StylePrimary
	cancel := slack.NewButtonBlockElement(actionCancel, a.ID, plain("Annuler"))
	cancel.Style = slack.StyleDanger

	return []slack.Block{
		section(text + b.String()),
		slack.NewContextBlock("", mrkdwn("Portée : "+a.Provenance.Label())),
		slack.NewActionBlock("pending_"+a.ID, confirm, cancel),
	}
}

func scopeBlocks(r *assistant.ScopeConfirmationResult, conversationID string) []slack.Block {
	apply := slack.NewButtonBlockElement(actionApplyAll, conversationID, plain("Appliquer à tous"))
	apply.Style = slack.StylePrimary
	drop := slack.NewButtonBlockElement(actionDropAll, conversationID, plain("Annuler"))
	return []slack.Block{
		section("❓ " + r.Message),
		slack.NewActionBlock("scope_"+conversationID, apply, drop),
	}
}

func createBlocks(r *assistant.CreateResult) []slack.Block {
	if r.Draft.Name == "" {
		return []slack.Block{section(r.Message)}
	}
	raw, err := json.Marshal(r.Draft)
	if err != nil {
		return []slack.Block{section(r.Message)}
	}
	create := slack.NewButtonBlockElement(actionCreate, string(raw), plain("➕ Créer"))
	create.Style = slack.StylePrimary
	return []slack.Block{
		section("🆕 " + r.Message),
		slack.NewActionBlock("create_project", create),
	}
}

// outcomeBlocks replaces an interactive message once a button was handled.
func outcomeBlocks(original, outcome, userID string) []slack.Block {
	blocks := []slack.Block{}
	if original != "" {
		blocks = append(blocks, section(original))
	}
	return append(blocks, slack.NewContextBlock("", mrkdwn(fmt.Sprintf("%s (<@%s>)", outcome, userID))))
}
