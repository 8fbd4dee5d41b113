package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenarioJSON = `{
  "name": "Root",
  "description": "Start here",
  "image": "https://example.com/root.png",
  "children": [
    {"name": "Child A", "description": "", "image": "", "children": []},
    {"name": "Child B", "description": "", "image": "", "children": [
      {"name": "Grandchild", "description": "", "image": "", "children": []}
    ]}
  ]
}`

func TestDecode_JSON(t *testing.T) {
	root, err := Decode([]byte(scenarioJSON), JSON, "")
	require.NoError(t, err)

	assert.Equal(t, "Root", root.Name)
	assert.Equal(t, "Start here", root.Description)
	assert.Equal(t, "https://example.com/root.png", root.Image)
	require.Len(t, root.Children, 2)
	assert.Equal(t, "Grandchild", root.Children[1].Children[0].Name)
}

func TestDecode_YAML(t *testing.T) {
	doc := `
name: Root
description: Start here
children:
  - name: Child A
  - name: Child B
    children:
      - name: Grandchild
`
	root, err := Decode([]byte(doc), YAML, "")
	require.NoError(t, err)
	require.Len(t, root.Children, 2)
	assert.Empty(t, root.Children[0].Children, "missing children decode as a leaf")
	assert.Equal(t, "Grandchild", root.Children[1].Children[0].Name)
}

func TestDecode_Selector(t *testing.T) {
	doc := `{"version": 3, "trees": [{"name": "Overworld", "children": [{"name": "Nether"}]}]}`

	t.Run("selects nested root", func(t *testing.T) {
		root, err := Decode([]byte(doc), JSON, "$.trees[0]")
		require.NoError(t, err)
		assert.Equal(t, "Overworld", root.Name)
		assert.Equal(t, "Nether", root.Children[0].Name)
	})

	t.Run("no match", func(t *testing.T) {
		_, err := Decode([]byte(doc), JSON, "$.missing")
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("match is not an object", func(t *testing.T) {
		_, err := Decode([]byte(doc), JSON, "$.version")
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("invalid expression", func(t *testing.T) {
		_, err := Decode([]byte(doc), JSON, "$[")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMalformed)
		assert.Contains(t, err.Error(), "invalid jsonpath")
	})
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"not json", `{"name":`, "parse json"},
		{"array root", `[{"name": "Root"}]`, "want an object"},
		{"missing name", `{"children": []}`, "$.name is required"},
		{"null name", `{"name": null}`, "$.name is required"},
		{"missing child name", `{"name": "Root", "children": [{"name": "A"}, {"image": "x.png"}]}`, "$.children[1].name is required"},
		{"missing grandchild name", `{"name": "Root", "children": [{"name": "A", "children": [{}]}]}`, "$.children[0].children[0].name is required"},
		{"null child", `{"name": "Root", "children": [null]}`, "RawNode.Children[0] is required"},
		{"wrong type", `{"name": "Root", "children": "none"}`, "malformed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.doc), JSON, "")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformed)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDecode_EmptyNames(t *testing.T) {
	root, err := Decode([]byte(`{"name": "", "children": [{"name": "  "}]}`), JSON, "")
	require.NoError(t, err)
	assert.Equal(t, "", root.Name)
	assert.Equal(t, "  ", root.Children[0].Name)
}

func TestDecode_MissingNameYAML(t *testing.T) {
	_, err := Decode([]byte("name: Root\nchildren:\n  - description: no name\n"), YAML, "")
	assert.ErrorIs(t, err, ErrMalformed)
	assert.Contains(t, err.Error(), "$.children[0].name is required")
}

func TestValidate_Nil(t *testing.T) {
	assert.ErrorIs(t, Validate(nil), ErrMalformed)
}

func TestFormatDetection(t *testing.T) {
	assert.Equal(t, YAML, FormatForName("tree.yaml"))
	assert.Equal(t, YAML, FormatForName("TREE.YML"))
	assert.Equal(t, JSON, FormatForName("tree.json"))
	assert.Equal(t, JSON, FormatForName("https://host/yaml/tree"))

	assert.Equal(t, YAML, FormatForContentType("application/yaml"))
	assert.Equal(t, YAML, FormatForContentType("text/x-yaml; charset=utf-8"))
	assert.Equal(t, JSON, FormatForContentType("application/json"))
}
