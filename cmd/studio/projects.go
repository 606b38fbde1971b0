package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/p-blackswan/studio-agent/internal/catalog"
	"github.com/p-blackswan/studio-agent/internal/chat"
	"github.com/p-blackswan/studio-agent/internal/project"
)

func newProjectsCmd() *cobra.Command {
	var asYAML bool

	cmd := &cobra.Command{
		Use:   "projects",
		Short: "Print the project catalog",
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

			return printProjects(cmd.Context(), st, cmd.OutOrStdout(), asYAML, time.Now().In(cfg.Location()))
		},
	}
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "Print a catalog file that seed accepts")
	return cmd
}

func printProjects(ctx context.Context, st catalogStore, out io.Writer, asYAML bool, now time.Time) error {
	projects, err := st.ListProjects(ctx)
	if err != nil {
		return err
	}
	if asYAML {
		raw, err := catalog.Encode(projects)
		if err != nil {
			return err
		}
		_, err = out.Write(raw)
		return err
	}
	if len(projects) == 0 {
		fmt.Fprintln(out, "Aucun projet.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "\tPROJET\tSTATUT\tPROGRESSION\tDEADLINE\tCOLLAB\tSTYLE")
	for _, p := range projects {
		progress := "-"
		if p.Progress != nil {
			progress = fmt.Sprintf("%d%%", *p.Progress)
		}
		deadline := "-"
		if p.Deadline != nil {
			deadline = project.FormatDate(p.Deadline)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			chat.StatusEmoji(p, now), p.Name, p.Status.Label(), progress, deadline,
			dash(p.Collaborator), dash(p.Style))
	}
	return w.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
