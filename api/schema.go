package api

// RawNode is one achievement in the skill tree document as served by the
// data source. The document root is itself a RawNode at level 0.
type RawNode struct {
	// Name of the achievement. Also the basis of the node id. It must be
	// present in documents but may be empty.
	Name string `json:"name" yaml:"name"`
	// Description shown in the tooltip.
	Description string `json:"description" yaml:"description"`
	// Image is a URI for the achievement icon.
	Image string `json:"image" yaml:"image"`
	// Children achievements unlocked after this one. Absent means leaf.
	Children []*RawNode `json:"children" yaml:"children" validate:"dive,required"`
}

// Position is a coordinate in layout space.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// NodeView is the read-only projection of a normalized node.
type NodeView struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	Image       string   `json:"image" yaml:"image"`
	Children    []string `json:"children" yaml:"children"`
	Parent      *string  `json:"parent" yaml:"parent"`
	Completed   bool     `json:"completed" yaml:"completed"`
	Locked      bool     `json:"locked" yaml:"locked"`
	Level       int      `json:"level" yaml:"level"`
	Position    Position `json:"position" yaml:"position"`
}

// Bounds is the canvas size needed to draw every node.
type Bounds struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// TreeView is the projection consumed by renderers.
type TreeView struct {
	Nodes     map[string]NodeView `json:"nodes" yaml:"nodes"`
	RootID    *string             `json:"rootId" yaml:"rootId"`
	Loading   bool                `json:"loading" yaml:"loading"`
	Error     *string             `json:"error" yaml:"error"`
	Source    string              `json:"source,omitempty" yaml:"source,omitempty"`
	LoadID    string              `json:"loadId,omitempty" yaml:"loadId,omitempty"`
	Completed int                 `json:"completed" yaml:"completed"`
	Total     int                 `json:"total" yaml:"total"`
	Bounds    Bounds              `json:"bounds" yaml:"bounds"`
}
