package cmd

import (
	"errors"
	"fmt"

	"github.com/agentic-research/skilltree/internal/completion"
	"github.com/agentic-research/skilltree/internal/render"
	"github.com/spf13/cobra"
)

func newShowCmd(g *globalFlags) *cobra.Command {
	var (
		complete []string
		toggle   []string
		format   string
		reset    bool
		list     bool
	)
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Load the tree and print it, optionally completing achievements first",
		Long: `Load the skill tree and print it.

--reset, --complete and --toggle are applied in that order. With
--progress-db the result is saved and restored on the next run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, g)
			if err != nil {
				return err
			}
			defer e.Close()

			if list {
				return listSources(cmd, e)
			}
			if err := e.store.Load(cmd.Context(), e.fetcher, e.cfg.Source); err != nil {
				return err
			}

			if reset {
				e.store.Reset()
			}
			for _, id := range complete {
				report(cmd, "complete", id, e.store.CompleteWithParents(id))
			}
			for _, id := range toggle {
				report(cmd, "toggle", id, e.store.Toggle(id))
			}

			st := e.store.Snapshot()
			if format == "outline" {
				return render.Outline(cmd.OutOrStdout(), st.Nodes, st.RootID)
			}
			return render.Encode(cmd.OutOrStdout(), st, format)
		},
	}
	cmd.Flags().StringArrayVar(&complete, "complete", nil, "Complete an achievement and its ancestors (repeatable)")
	cmd.Flags().StringArrayVar(&toggle, "toggle", nil, "Toggle an achievement (repeatable)")
	cmd.Flags().BoolVar(&reset, "reset", false, "Clear all progress before applying changes")
	cmd.Flags().StringVarP(&format, "format", "f", "outline", "Output format: outline, json or yaml")
	cmd.Flags().BoolVar(&list, "list-sources", false, "List the sources with saved progress and exit (needs --progress-db)")
	return cmd
}

func listSources(cmd *cobra.Command, e *env) error {
	if e.progress == nil {
		return errors.New("--list-sources needs --progress-db")
	}
	sources, err := e.progress.Sources(cmd.Context())
	if err != nil {
		return err
	}
	for _, src := range sources {
		fmt.Fprintln(cmd.OutOrStdout(), src)
	}
	return nil
}

func report(cmd *cobra.Command, op, id string, outcome completion.Outcome) {
	if outcome == completion.Applied {
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s %s: %s\n", op, id, outcome)
}
