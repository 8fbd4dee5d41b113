package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/agentic-research/skilltree/internal/completion"
	"github.com/agentic-research/skilltree/internal/state"
	"github.com/agentic-research/skilltree/internal/tree"
	"gopkg.in/yaml.v3"
)

// Marks used by Outline.
const (
	markCompleted = "[x]"
	markOpen      = "[ ]"
	markLocked    = "[-]"
)

// Outline writes the tree as an indented checklist rooted at rootID:
//
//	[x] Root (root-0)
//	  [ ] Child A (child-a-1)
//	  [-] ...
//
// Locked nodes cannot be toggled until their parent is completed.
func Outline(w io.Writer, nodes tree.Collection, rootID string) error {
	if rootID == "" {
		_, err := fmt.Fprintln(w, "(empty tree)")
		return err
	}
	seen := make(map[string]struct{}, len(nodes))
	var walk func(id string, depth int) error
	walk = func(id string, depth int) error {
		n, ok := nodes[id]
		if !ok {
			return nil
		}
		if _, dup := seen[id]; dup {
			return nil
		}
		seen[id] = struct{}{}

		mark := markOpen
		switch {
		case n.Completed:
			mark = markCompleted
		case !completion.CanToggle(nodes, id):
			mark = markLocked
		}
		if _, err := fmt.Fprintf(w, "%s%s %s (%s)\n", strings.Repeat("  ", depth), mark, n.Name, n.ID); err != nil {
			return err
		}
		for _, c := range n.Children {
			if err := walk(c, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(rootID, 0); err != nil {
		return err
	}
	done, total := completion.Progress(nodes)
	_, err := fmt.Fprintf(w, "\n%d/%d achievements completed\n", done, total)
	return err
}

// Encode writes the view of st as "json" or "yaml".
func Encode(w io.Writer, st state.State, format string) error {
	v := View(st)
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q (want json or yaml)", format)
	}
}
