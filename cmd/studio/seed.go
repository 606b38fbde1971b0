package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/p-blackswan/studio-agent/internal/catalog"
	"github.com/p-blackswan/studio-agent/internal/lexicon"
	"github.com/p-blackswan/studio-agent/internal/project"
)

// catalogStore is the store surface used by seed and projects.
type catalogStore interface {
	ListProjects(ctx context.Context) ([]project.Project, error)
	CreateProject(ctx context.Context, d project.Draft, now time.Time) (project.Project, error)
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed <catalog.yaml>",
		Short: "Import projects from a YAML catalog, skipping names already present",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			drafts, err := catalog.Load(args[0])
			if err != nil {
				return err
			}
			cfg, logger, err := loadConfig(os.Stderr)
			if err != nil {
				return err
			}
			st, err := openStore(cfg, logger)
			if err != nil {
				return err
			}
			defer st.Close()

			created, skipped, err := seedCatalog(cmd.Context(), st, drafts, time.Now())
			if err != nil {
				return err
			}
			printSeedSummary(cmd.OutOrStdout(), created, skipped)
			return nil
		},
	}
}

// seedCatalog creates every draft whose name is not in the catalog yet.
func seedCatalog(ctx context.Context, st catalogStore, drafts []project.Draft, now time.Time) (created, skipped int, err error) {
	existing, err := st.ListProjects(ctx)
	if err != nil {
		return 0, 0, err
	}
	names := make(map[string]bool, len(existing))
	for _, p := range existing {
		names[lexicon.Fold(p.Name)] = true
	}
	for _, d := range drafts {
		key := lexicon.Fold(d.Name)
		if names[key] {
			skipped++
			continue
		}
		if _, err := st.CreateProject(ctx, d, now); err != nil {
			return created, skipped, fmt.Errorf("seed %q: %w", d.Name, err)
		}
		names[key] = true
		created++
	}
	return created, skipped, nil
}

func printSeedSummary(out io.Writer, created, skipped int) {
	fmt.Fprintf(out, "%d projet(s) créé(s)", created)
	if skipped > 0 {
		fmt.Fprintf(out, ", %d déjà présent(s)", skipped)
	}
	fmt.Fprintln(out, ".")
}
