package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/p-blackswan/studio-agent/internal/assistant"
	"github.com/p-blackswan/studio-agent/internal/conversation"
	"github.com/p-blackswan/studio-agent/internal/metrics"
	"github.com/p-blackswan/studio-agent/internal/project"
)

// conversations is what the REPL needs from the conversation service.
type conversations interface {
	Handle(ctx context.Context, conversationID, text string) (assistant.Result, error)
	Confirm(ctx context.Context, actionID, actor string) (*conversation.Applied, error)
	Cancel(ctx context.Context, actionID, actor string) error
	Create(ctx context.Context, d project.Draft) (project.Project, error)
}

func newAskCmd() *cobra.Command {
	var convID string

	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Talk to the assistant from the terminal against the local store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(os.Stderr)
			if err != nil {
				return err
			}
			st, err := openStore(cfg, logger)
			if err != nil {
				return err
			}
			defer st.Close()

			m := metrics.New()
			svc := conversation.NewService(st, newRouter(cfg, m, logger), conversation.Options{
				ActionTTL:       cfg.PendingActionTTL,
				SessionCapacity: 1,
				Metrics:         m,
				Logger:          logger,
			})
			actor := "cli:" + os.Getenv("USER")
			return runREPL(cmd.Context(), svc, cmd.InOrStdin(), cmd.OutOrStdout(), convID, actor)
		},
	}
	cmd.Flags().StringVar(&convID, "conversation", "cli", "Conversation ID, reuse it to keep the working memory")
	return cmd
}

// runREPL reads one utterance per line until EOF or "quit". "oui" confirms
// the last staged action or draft, "non" drops it.
func runREPL(ctx context.Context, svc conversations, in io.Reader, out io.Writer, convID, actor string) error {
	var (
		pendingID string
		draft     *project.Draft
	)
	scanner := bufio.NewScanner(in)
	fmt.Fprint(out, "> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
		case line == "quit" || line == "exit":
			return nil

		case pendingID != "" && assistant.IsAffirmative(line):
			applied, err := svc.Confirm(ctx, pendingID, actor)
			pendingID = ""
			if err != nil {
				fmt.Fprintln(out, conversation.UserMessage(err))
				break
			}
			fmt.Fprintln(out, applied.Message)

		case pendingID != "" && assistant.IsNegative(line):
			if err := svc.Cancel(ctx, pendingID, actor); err != nil {
				fmt.Fprintln(out, conversation.UserMessage(err))
			} else {
				fmt.Fprintln(out, "Action annulée.")
			}
			pendingID = ""

		case draft != nil && assistant.IsAffirmative(line):
			p, err := svc.Create(ctx, *draft)
			draft = nil
			if err != nil {
				fmt.Fprintln(out, conversation.UserMessage(err))
				break
			}
			fmt.Fprintf(out, "Projet « %s » créé.\n", p.Name)

		default:
			pendingID, draft = "", nil
			res, err := svc.Handle(ctx, convID, line)
			if err != nil {
				fmt.Fprintln(out, conversation.UserMessage(err))
				break
			}
			switch r := res.(type) {
			case *assistant.PendingActionResult:
				pendingID = r.Action.ID
			case *assistant.CreateResult:
				if r.Draft.Name != "" {
					d := r.Draft
					draft = &d
				}
			}
			render(out, res)
		}
		fmt.Fprint(out, "> ")
	}
	fmt.Fprintln(out)
	return scanner.Err()
}

func render(out io.Writer, res assistant.Result) {
	fmt.Fprintln(out, res.Text())
	switch r := res.(type) {
	case *assistant.PendingActionResult:
		for _, p := range r.Action.Preview {
			fmt.Fprintf(out, "  • %s\n", p.Name)
			for _, c := range p.Changes {
				fmt.Fprintf(out, "      %s\n", c.String())
			}
		}
		if extra := len(r.Action.AffectedIDs) - len(r.Action.Preview); extra > 0 {
			fmt.Fprintf(out, "  … et %d autre(s).\n", extra)
		}
		fmt.Fprintln(out, "(oui pour confirmer, non pour annuler)")
	case *assistant.CreateResult:
		if r.Draft.Name != "" {
			fmt.Fprintln(out, "(oui pour créer)")
		}
	}
}
