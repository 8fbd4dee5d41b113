package cmd

import (
	"fmt"
	"strings"

	"github.com/agentic-research/skilltree/internal/render"
	"github.com/agentic-research/skilltree/internal/state"
	"github.com/agentic-research/skilltree/internal/tree"
	"github.com/spf13/cobra"
)

func newNormalizeCmd(g *globalFlags) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "normalize",
		Short: "Print the flattened, positioned node collection",
		Long: `Fetch the tree document and print the normalized collection without
touching saved progress. Duplicate ids are reported on stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, g)
			if err != nil {
				return err
			}
			defer e.Close()

			raw, err := e.fetcher.Fetch(cmd.Context(), e.cfg.Source)
			if err != nil {
				return err
			}
			res := tree.NormalizeResult(raw, e.cfg.NormalizeOptions()...)
			if len(res.Collisions) > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "duplicate ids (%s policy): %s\n",
					e.cfg.Collision, strings.Join(res.Collisions, ", "))
			}
			st := state.State{Nodes: res.Nodes, RootID: res.RootID, Source: e.cfg.Source}
			return render.Encode(cmd.OutOrStdout(), st, format)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format: json or yaml")
	return cmd
}
