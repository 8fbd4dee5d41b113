package render

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/agentic-research/skilltree/api"
	"github.com/agentic-research/skilltree/internal/completion"
	"github.com/agentic-research/skilltree/internal/state"
	"github.com/agentic-research/skilltree/internal/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func scenarioState() state.State {
	nodes, rootID := tree.Normalize(&api.RawNode{
		Name: "Root",
		Children: []*api.RawNode{
			{Name: "Child A"},
			{Name: "Child B", Children: []*api.RawNode{{Name: "Grandchild"}}},
		},
	})
	return state.State{Nodes: nodes, RootID: rootID, Source: "mem://a", LoadID: "load-1"}
}

func TestBounds(t *testing.T) {
	st := scenarioState()
	assert.Equal(t, api.Bounds{Width: 510, Height: 405}, Bounds(st.Nodes, CanvasPadding))
	assert.Equal(t, api.Bounds{Width: 0, Height: 0}, Bounds(nil, 0))
}

func TestView(t *testing.T) {
	st := scenarioState()
	completion.Toggle(st.Nodes, "root-0")

	v := View(st)
	require.NotNil(t, v.RootID)
	assert.Equal(t, "root-0", *v.RootID)
	assert.Nil(t, v.Error)
	assert.Equal(t, 1, v.Completed)
	assert.Equal(t, 4, v.Total)

	root := v.Nodes["root-0"]
	assert.Nil(t, root.Parent)
	assert.True(t, root.Completed)
	assert.False(t, root.Locked)

	a := v.Nodes["child-a-1"]
	require.NotNil(t, a.Parent)
	assert.Equal(t, "root-0", *a.Parent)
	assert.False(t, a.Locked, "parent completed")

	assert.True(t, v.Nodes["grandchild-2"].Locked)
}

func TestView_Empty(t *testing.T) {
	v := View(state.State{Error: "fetch failed"})
	assert.Nil(t, v.RootID)
	require.NotNil(t, v.Error)
	assert.Equal(t, "fetch failed", *v.Error)
	assert.Empty(t, v.Nodes)
}

func TestView_DoesNotAlias(t *testing.T) {
	st := scenarioState()
	v := View(st)
	v.Nodes["root-0"].Children[0] = "changed"
	assert.Equal(t, "child-a-1", st.Nodes["root-0"].Children[0])
}

func TestView_JSONShape(t *testing.T) {
	buf, err := json.Marshal(View(scenarioState()))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf, &decoded))
	assert.Equal(t, "root-0", decoded["rootId"])
	assert.Nil(t, decoded["error"])
	assert.Equal(t, false, decoded["loading"])

	nodes := decoded["nodes"].(map[string]any)
	root := nodes["root-0"].(map[string]any)
	assert.Nil(t, root["parent"])
	assert.Equal(t, map[string]any{"x": 50.0, "y": 70.0}, root["position"])
}

func TestOutline(t *testing.T) {
	st := scenarioState()
	completion.Toggle(st.Nodes, "root-0")

	var buf bytes.Buffer
	require.NoError(t, Outline(&buf, st.Nodes, st.RootID))

	want := "[x] Root (root-0)\n" +
		"  [ ] Child A (child-a-1)\n" +
		"  [ ] Child B (child-b-1)\n" +
		"    [-] Grandchild (grandchild-2)\n" +
		"\n1/4 achievements completed\n"
	assert.Equal(t, want, buf.String())
}

func TestOutline_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Outline(&buf, nil, ""))
	assert.Equal(t, "(empty tree)\n", buf.String())
}

func TestEncode(t *testing.T) {
	st := scenarioState()

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Encode(&buf, st, "json"))
		var v api.TreeView
		require.NoError(t, json.Unmarshal(buf.Bytes(), &v))
		assert.Len(t, v.Nodes, 4)
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Encode(&buf, st, "yaml"))
		var v api.TreeView
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &v))
		assert.Len(t, v.Nodes, 4)
		assert.Equal(t, "child-b-1", *v.Nodes["grandchild-2"].Parent)
	})

	t.Run("unknown", func(t *testing.T) {
		assert.Error(t, Encode(&bytes.Buffer{}, st, "xml"))
	})
}
