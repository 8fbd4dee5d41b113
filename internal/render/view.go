// Package render projects skill tree state for consumers: the JSON view
// served to clients and a plain text outline for terminals.
package render

import (
	"github.com/agentic-research/skilltree/api"
	"github.com/agentic-research/skilltree/internal/completion"
	"github.com/agentic-research/skilltree/internal/state"
	"github.com/agentic-research/skilltree/internal/tree"
)

// CanvasPadding is added on every side of the drawn tree.
const CanvasPadding = 150

// Bounds returns the canvas needed to draw nodes: the furthest node
// position plus padding on both sides.
func Bounds(nodes tree.Collection, padding float64) api.Bounds {
	var maxX, maxY float64
	for _, n := range nodes {
		if n.Position.X > maxX {
			maxX = n.Position.X
		}
		if n.Position.Y > maxY {
			maxY = n.Position.Y
		}
	}
	return api.Bounds{Width: maxX + padding*2, Height: maxY + padding*2}
}

// NodeView projects one node. The returned value shares nothing with n.
func NodeView(nodes tree.Collection, n *tree.Node) api.NodeView {
	v := api.NodeView{
		ID:          n.ID,
		Name:        n.Name,
		Description: n.Description,
		Image:       n.Image,
		Children:    append([]string{}, n.Children...),
		Completed:   n.Completed,
		Locked:      !completion.CanToggle(nodes, n.ID),
		Level:       n.Level,
		Position:    n.Position,
	}
	if n.HasParent() {
		p := n.Parent
		v.Parent = &p
	}
	return v
}

// View projects a store snapshot.
func View(st state.State) api.TreeView {
	v := api.TreeView{
		Nodes:   make(map[string]api.NodeView, len(st.Nodes)),
		Loading: st.Loading,
		Source:  st.Source,
		LoadID:  st.LoadID,
		Bounds:  Bounds(st.Nodes, CanvasPadding),
	}
	for id, n := range st.Nodes {
		v.Nodes[id] = NodeView(st.Nodes, n)
	}
	if st.RootID != "" {
		root := st.RootID
		v.RootID = &root
	}
	if st.Error != "" {
		msg := st.Error
		v.Error = &msg
	}
	v.Completed, v.Total = completion.Progress(st.Nodes)
	return v
}
