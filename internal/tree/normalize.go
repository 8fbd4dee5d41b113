package tree

import (
	"fmt"
	"strings"

	"github.com/agentic-research/skilltree/api"
)

// Layout defaults, in layout-space pixels.
const (
	DefaultHorizontalSpacing = 80 // between levels
	DefaultVerticalSpacing   = 70 // between sibling leaf slots
	DefaultOriginX           = 50 // left margin
)

// CollisionPolicy decides what happens when two nodes slug to the same id.
type CollisionPolicy int

const (
	// CollisionDisambiguate renames the later node to "<id>~<n>" so that no
	// subtree is lost.
	CollisionDisambiguate CollisionPolicy = iota
	// CollisionOverwrite lets the later node replace the earlier entry. The
	// earlier node's parent then points at the replacement.
	CollisionOverwrite
)

func (p CollisionPolicy) String() string {
	switch p {
	case CollisionDisambiguate:
		return "disambiguate"
	case CollisionOverwrite:
		return "overwrite"
	default:
		return fmt.Sprintf("CollisionPolicy(%d)", int(p))
	}
}

// ParseCollisionPolicy accepts the names returned by String.
func ParseCollisionPolicy(s string) (CollisionPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "disambiguate":
		return CollisionDisambiguate, nil
	case "overwrite":
		return CollisionOverwrite, nil
	default:
		return 0, fmt.Errorf("unknown collision policy %q", s)
	}
}

type options struct {
	horizontal float64
	vertical   float64
	originX    float64
	collision  CollisionPolicy
}

// Option configures Normalize.
type Option func(*options)

// WithSpacing sets the distance between levels (h) and between sibling leaf
// slots (v).
func WithSpacing(h, v float64) Option {
	return func(o *options) {
		o.horizontal = h
		o.vertical = v
	}
}

// WithOrigin sets the left margin of the root column.
func WithOrigin(x0 float64) Option {
	return func(o *options) { o.originX = x0 }
}

// WithCollisionPolicy selects how duplicate ids are handled.
func WithCollisionPolicy(p CollisionPolicy) Option {
	return func(o *options) { o.collision = p }
}

// Result is the output of a normalization pass.
type Result struct {
	Nodes  Collection
	RootID string
	// Collisions lists, in visit order, the slugs that were produced more
	// than once.
	Collisions []string
}

// Normalize flattens root into an id-keyed collection with precomputed
// positions and returns it with the root id. It never fails; a nil root
// yields an empty collection and "".
func Normalize(root *api.RawNode, opts ...Option) (Collection, string) {
	res := NormalizeResult(root, opts...)
	return res.Nodes, res.RootID
}

// NormalizeResult is Normalize with collision reporting.
func NormalizeResult(root *api.RawNode, opts ...Option) Result {
	o := options{
		horizontal: DefaultHorizontalSpacing,
		vertical:   DefaultVerticalSpacing,
		originX:    DefaultOriginX,
	}
	for _, opt := range opts {
		opt(&o)
	}

	n := &normalizer{
		options: o,
		out:     make(Collection),
		weights: make(map[*api.RawNode]int),
		used:    make(map[string]struct{}),
	}
	if root == nil {
		return Result{Nodes: n.out}
	}
	rootID := n.visit(root, "", 0, 0)
	return Result{Nodes: n.out, RootID: rootID, Collisions: n.collisions}
}

type normalizer struct {
	options
	out        Collection
	weights    map[*api.RawNode]int // memoized subtree weights, valid for one pass
	used       map[string]struct{}
	collisions []string
	next       uint32
}

// weight is the number of leaf slots the subtree occupies.
func (n *normalizer) weight(r *api.RawNode) int {
	if w, ok := n.weights[r]; ok {
		return w
	}
	w := 0
	for _, c := range r.Children {
		if c != nil {
			w += n.weight(c)
		}
	}
	if w == 0 {
		w = 1
	}
	n.weights[r] = w
	return w
}

func (n *normalizer) assignID(base string) string {
	if _, taken := n.used[base]; !taken {
		n.used[base] = struct{}{}
		return base
	}
	n.collisions = append(n.collisions, base)
	if n.collision == CollisionOverwrite {
		return base
	}
	for k := 2; ; k++ {
		cand := fmt.Sprintf("%s~%d", base, k)
		if _, taken := n.used[cand]; !taken {
			n.used[cand] = struct{}{}
			return cand
		}
	}
}

// visit lays out r and its subtree in pre-order and returns r's id.
func (n *normalizer) visit(r *api.RawNode, parent string, level int, yOffset float64) string {
	id := n.assignID(Slug(r.Name, level))
	node := &Node{
		ID:          id,
		Name:        r.Name,
		Description: r.Description,
		Image:       r.Image,
		Parent:      parent,
		Level:       level,
		Position: api.Position{
			X: float64(level)*n.horizontal + n.originX,
			Y: yOffset + float64(n.weight(r))*n.vertical/2,
		},
		Index: n.next,
	}
	n.next++
	n.out[id] = node

	offset := yOffset
	for _, c := range r.Children {
		if c == nil {
			continue
		}
		node.Children = append(node.Children, n.visit(c, id, level+1, offset))
		offset += float64(n.weight(c)) * n.vertical
	}
	if node.Children == nil {
		node.Children = []string{}
	}
	return id
}
