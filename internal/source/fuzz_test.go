package source

import (
	"testing"

	"github.com/agentic-research/skilltree/internal/completion"
	"github.com/agentic-research/skilltree/internal/tree"
)

func FuzzDecodeNormalize(f *testing.F) {
	f.Add([]byte(scenarioJSON))
	f.Add([]byte(`{"name": "a", "children": [{"name": "a"}, {"name": "a "}]}`))
	f.Add([]byte(`{"name": "x", "children": null}`))
	f.Add([]byte(`[]`))

	f.Fuzz(func(t *testing.T, data []byte) {
		root, err := Decode(data, JSON, "")
		if err != nil {
			return // rejected documents are fine, panics are not
		}

		nodes, rootID := tree.Normalize(root)
		if rootID == "" || nodes[rootID] == nil {
			t.Fatalf("decoded tree has no root: %q", data)
		}
		for id, n := range nodes {
			if n.ID != id {
				t.Fatalf("node %q stored under %q", n.ID, id)
			}
			for _, c := range n.Children {
				child, ok := nodes[c]
				if !ok {
					t.Fatalf("dangling child %q of %q", c, id)
				}
				if child.Level != n.Level+1 {
					t.Fatalf("child %q level %d under level %d", c, child.Level, n.Level)
				}
			}
		}

		for _, n := range nodes.Ordered() {
			completion.CompleteWithParents(nodes, n.ID)
		}
		completion.Toggle(nodes, rootID)
		if done, _ := completion.Progress(nodes); done != 0 {
			t.Fatalf("%d nodes still completed after un-completing the root", done)
		}
	})
}
