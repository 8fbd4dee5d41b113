// Package completion implements the unlock rules of the skill tree.
//
// A node may only be completed when its parent is completed. Completing a
// node never completes its descendants; un-completing a node always
// un-completes every descendant. CompleteWithParents is the one entry point
// that bypasses the gate, unlocking a whole ancestor chain at once.
//
// All operations mutate the collection in place and never fail. Unknown ids
// are no-ops, reported through Outcome for callers that need to tell the
// cases apart.
package completion

import (
	"sort"

	"github.com/RoaringBitmap/roaring"
	"github.com/agentic-research/skilltree/internal/tree"
)

// Outcome describes what an operation did.
type Outcome int

const (
	// Applied means the collection was updated.
	Applied Outcome = iota
	// NotFound means the id is not in the collection.
	NotFound
	// Locked means the parent is not completed, so the node cannot change.
	Locked
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case NotFound:
		return "not_found"
	case Locked:
		return "locked"
	default:
		return "unknown"
	}
}

// CanToggle reports whether Toggle(id) would change the node: it exists and
// is either the root or a child of a completed node.
func CanToggle(nodes tree.Collection, id string) bool {
	n, ok := nodes[id]
	if !ok {
		return false
	}
	return parentCompleted(nodes, n)
}

func parentCompleted(nodes tree.Collection, n *tree.Node) bool {
	if !n.HasParent() {
		return true
	}
	p, ok := nodes[n.Parent]
	return ok && p.Completed
}

// Toggle flips the completion of id when its parent is completed (or it has
// none). Un-completing cascades to every descendant.
func Toggle(nodes tree.Collection, id string) Outcome {
	n, ok := nodes[id]
	if !ok {
		return NotFound
	}
	if !parentCompleted(nodes, n) {
		return Locked
	}
	n.Completed = !n.Completed
	if !n.Completed {
		uncompleteDescendants(nodes, n)
	}
	return Applied
}

// uncompleteDescendants clears every node reachable through Children links.
// Each node is visited once even if several parents list it.
func uncompleteDescendants(nodes tree.Collection, n *tree.Node) {
	visited := map[string]struct{}{n.ID: {}}
	stack := append([]string(nil), n.Children...)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, seen := visited[id]; seen {
			continue
		}
		visited[id] = struct{}{}
		c, ok := nodes[id]
		if !ok {
			continue
		}
		c.Completed = false
		stack = append(stack, c.Children...)
	}
}

// Reset un-completes every node.
func Reset(nodes tree.Collection) {
	for _, n := range nodes {
		n.Completed = false
	}
}

// CompleteWithParents completes id and every ancestor up to the root. A
// parent id that does not resolve is treated as the root.
func CompleteWithParents(nodes tree.Collection, id string) Outcome {
	target, ok := nodes[id]
	if !ok {
		return NotFound
	}
	visited := map[string]struct{}{target.ID: {}}
	for cur := target; cur.HasParent(); {
		if _, seen := visited[cur.Parent]; seen {
			break
		}
		p, ok := nodes[cur.Parent]
		if !ok {
			break
		}
		visited[p.ID] = struct{}{}
		p.Completed = true
		cur = p
	}
	target.Completed = true
	return Applied
}

// Progress returns the number of completed nodes and the total.
func Progress(nodes tree.Collection) (completed, total int) {
	for _, n := range nodes {
		if n.Completed {
			completed++
		}
	}
	return completed, len(nodes)
}

// CompletedIDs returns the ids of completed nodes in sorted order.
func CompletedIDs(nodes tree.Collection) []string {
	ids := make([]string, 0)
	for id, n := range nodes {
		if n.Completed {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// CompletedBitmap returns the arena indices of completed nodes. Indices are
// unique in collections built by tree.Normalize.
func CompletedBitmap(nodes tree.Collection) *roaring.Bitmap {
	bm := roaring.New()
	for _, n := range nodes {
		if n.Completed {
			bm.Add(n.Index)
		}
	}
	return bm
}

// Restore marks the given ids completed, shallowest first, skipping any
// whose parent is not completed by then. Unknown ids are ignored. The
// number of nodes marked is returned.
func Restore(nodes tree.Collection, ids []string) int {
	want := make([]*tree.Node, 0, len(ids))
	for _, id := range ids {
		if n, ok := nodes[id]; ok {
			want = append(want, n)
		}
	}
	sort.SliceStable(want, func(i, j int) bool {
		if want[i].Level != want[j].Level {
			return want[i].Level < want[j].Level
		}
		return want[i].Index < want[j].Index
	})
	marked := 0
	for _, n := range want {
		if n.Completed || !parentCompleted(nodes, n) {
			continue
		}
		n.Completed = true
		marked++
	}
	return marked
}
