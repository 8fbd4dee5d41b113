package source

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/agentic-research/skilltree/api"
	"github.com/go-playground/validator/v10"
	"github.com/ohler55/ojg/jp"
	"gopkg.in/yaml.v3"
)

var (
	// ErrFetch wraps transport failures and non-success HTTP statuses.
	ErrFetch = errors.New("fetch failed")
	// ErrMalformed wraps documents that do not have the skill tree shape.
	ErrMalformed = errors.New("malformed skill tree")
	// ErrTooLarge is returned for documents over the fetcher's size limit.
	ErrTooLarge = errors.New("document too large")
)

// Format is the encoding of a skill tree document.
type Format int

const (
	JSON Format = iota
	YAML
)

// FormatForName picks YAML for .yaml/.yml names and JSON otherwise.
func FormatForName(name string) Format {
	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml") {
		return YAML
	}
	return JSON
}

// FormatForContentType picks YAML for yaml media types and JSON otherwise.
func FormatForContentType(contentType string) Format {
	if strings.Contains(strings.ToLower(contentType), "yaml") {
		return YAML
	}
	return JSON
}

var validate = validator.New()

// Decode parses a skill tree document. A non-empty selector is a JSONPath
// expression locating the tree root inside a larger document; the first
// match is used.
func Decode(data []byte, format Format, selector string) (*api.RawNode, error) {
	var doc any
	switch format {
	case YAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: parse yaml: %v", ErrMalformed, err)
		}
	default:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: parse json: %v", ErrMalformed, err)
		}
	}

	if selector != "" {
		x, err := jp.ParseString(selector)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid jsonpath '%s': %v", ErrMalformed, selector, err)
		}
		results := x.Get(doc)
		if len(results) == 0 {
			return nil, fmt.Errorf("%w: selector %s matched nothing", ErrMalformed, selector)
		}
		doc = results[0]
	}
	if _, ok := doc.(map[string]any); !ok {
		return nil, fmt.Errorf("%w: root is %T, want an object", ErrMalformed, doc)
	}
	if err := requireNames(doc, "$"); err != nil {
		return nil, err
	}

	// Round-trip through JSON so both formats share the typed decoding rules.
	buf, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	var root api.RawNode
	if err := json.Unmarshal(buf, &root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := Validate(&root); err != nil {
		return nil, err
	}
	return &root, nil
}

// requireNames checks that every node object carries a "name" key. An
// empty name is allowed; an absent or null one is not.
func requireNames(doc any, path string) error {
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil // left to typed decoding and Validate
	}
	if name, ok := obj["name"]; !ok || name == nil {
		return fmt.Errorf("%w: %s.name is required", ErrMalformed, path)
	}
	children, _ := obj["children"].([]any)
	for i, c := range children {
		if err := requireNames(c, fmt.Sprintf("%s.children[%d]", path, i)); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the decoded structure: no child may be null.
func Validate(root *api.RawNode) error {
	if root == nil {
		return fmt.Errorf("%w: empty document", ErrMalformed)
	}
	if err := validate.Struct(root); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, e := range verrs {
				msgs = append(msgs, formatFieldError(e))
			}
			return fmt.Errorf("%w: %s", ErrMalformed, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

func formatFieldError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", e.Namespace())
	default:
		return fmt.Sprintf("%s is invalid", e.Namespace())
	}
}
