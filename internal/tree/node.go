package tree

import (
	"errors"
	"sort"

	"github.com/agentic-research/skilltree/api"
)

var ErrNotFound = errors.New("node not found")

// Node is a normalized achievement.
// Children and Parent are ids into the owning Collection, never pointers.
type Node struct {
	ID          string
	Name        string
	Description string
	Image       string
	Children    []string     // Child ids in input order
	Parent      string       // Empty only for the root
	Completed   bool
	Level       int          // Depth from the root (root = 0)
	Position    api.Position // Computed once by Normalize
	Index       uint32       // Pre-order arena slot, used as a bitmap key
}

// HasParent reports whether n is not a root.
func (n *Node) HasParent() bool {
	return n.Parent != ""
}

// Clone returns a copy of n that shares no mutable state with it.
func (n *Node) Clone() *Node {
	c := *n
	if n.Children != nil {
		c.Children = append([]string(nil), n.Children...)
	}
	return &c
}

// Collection is the flat id-keyed node arena.
type Collection map[string]*Node

// Get returns the node with the given id.
func (c Collection) Get(id string) (*Node, error) {
	n, ok := c[id]
	if !ok {
		return nil, ErrNotFound
	}
	return n, nil
}

// ListChildren returns the child ids of id.
func (c Collection) ListChildren(id string) ([]string, error) {
	n, ok := c[id]
	if !ok {
		return nil, ErrNotFound
	}
	return n.Children, nil
}

// Clone deep-copies the collection. Snapshots that hold the original stay
// valid when the clone is mutated.
func (c Collection) Clone() Collection {
	if c == nil {
		return nil
	}
	out := make(Collection, len(c))
	for id, n := range c {
		out[id] = n.Clone()
	}
	return out
}

// RootID returns the id of the level-0 node, or "" when there is none.
// With several level-0 nodes (only possible in hand-built collections) the
// one with the lowest arena index wins.
func (c Collection) RootID() string {
	var root *Node
	for _, n := range c {
		if n.Level != 0 {
			continue
		}
		if root == nil || n.Index < root.Index {
			root = n
		}
	}
	if root == nil {
		return ""
	}
	return root.ID
}

// Ordered returns the nodes sorted by arena index (pre-order of the source
// tree), with ties broken by id.
func (c Collection) Ordered() []*Node {
	out := make([]*Node, 0, len(c))
	for _, n := range c {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Index != out[j].Index {
			return out[i].Index < out[j].Index
		}
		return out[i].ID < out[j].ID
	})
	return out
}
