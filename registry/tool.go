package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jonwraymond/cosmosmcp/docstore"
	"github.com/jonwraymond/cosmosmcp/tooldoc"
	"github.com/jonwraymond/toolfoundation/model"
)

// ParamType is the declared type of a tool parameter.
type ParamType string

const (
	ParamString  ParamType = "string"
	ParamInteger ParamType = "integer"
	// ParamJSON accepts either a JSON object or a string holding one.
	ParamJSON ParamType = "json"
)

// Param declares one tool parameter.
type Param struct {
	Name        string
	Type        ParamType
	Required    bool
	Description string
}

// Handler executes a tool after its arguments have been validated.
type Handler func(ctx context.Context, args Args) (any, error)

// Tool is an immutable tool descriptor. Params are validated in
// declaration order.
type Tool struct {
	Name        string
	Description string
	Params      []Param
	Annotations *mcp.ToolAnnotations
	Tags        []string
	Doc         *tooldoc.DocEntry
	Handler     Handler
}

// InputSchema returns the JSON Schema advertised for t.
func (t Tool) InputSchema() map[string]any {
	props := make(map[string]any, len(t.Params))
	required := make([]string, 0, len(t.Params))
	for _, p := range t.Params {
		prop := map[string]any{}
		switch p.Type {
		case ParamJSON:
			prop["type"] = []string{"object", "string"}
		default:
			prop["type"] = string(p.Type)
		}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		props[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// Model converts t to its discovery representation.
func (t Tool) Model() model.Tool {
	return model.Tool{
		Tool: mcp.Tool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema(),
			Annotations: t.Annotations,
		},
		Tags: model.NormalizeTags(t.Tags),
	}
}

// Args is a validated argument map.
type Args map[string]any

// String returns the named argument as a string, or "" when absent.
func (a Args) String(name string) string {
	s, _ := a[name].(string)
	return s
}

// OptString returns the named argument and whether it was supplied
// non-empty. A whitespace-only value is returned as is.
func (a Args) OptString(name string) (string, bool) {
	s, ok := a[name].(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

var errNotInteger = errors.New("must be an integer")

// OptInt32 returns the named integer argument and whether it was supplied.
func (a Args) OptInt32(name string) (int32, bool, error) {
	v, ok := a[name]
	if !ok || v == nil {
		return 0, false, nil
	}
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case int32:
		return n, true, nil
	case int64:
		f = float64(n)
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false, docstore.InvalidParameter(name, errNotInteger)
		}
		f = float64(i)
	default:
		return 0, false, docstore.InvalidParameter(name, errNotInteger)
	}
	if f != math.Trunc(f) || f < math.MinInt32 || f > math.MaxInt32 {
		return 0, false, docstore.InvalidParameter(name, errNotInteger)
	}
	return int32(f), true, nil
}

// RawJSON returns a ParamJSON argument as raw bytes. A string is returned
// as-is so the caller's bytes reach the store unmodified.
func (a Args) RawJSON(name string) ([]byte, error) {
	switch v := a[name].(type) {
	case string:
		if !json.Valid([]byte(v)) {
			return nil, docstore.InvalidParameter(name, errors.New("not valid JSON"))
		}
		return []byte(v), nil
	case json.RawMessage:
		return v, nil
	case nil:
		return nil, docstore.MissingParameter(name)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, docstore.InvalidParameter(name, fmt.Errorf("encode: %w", err))
		}
		return b, nil
	}
}
