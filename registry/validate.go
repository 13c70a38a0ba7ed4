package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/jonwraymond/cosmosmcp/docstore"
)

// validator checks arguments against a tool's declared params.
type validator struct {
	params []Param
	schema *jsonschema.Schema
}

func newValidator(t Tool) (*validator, error) {
	raw, err := json.Marshal(t.InputSchema())
	if err != nil {
		return nil, fmt.Errorf("encode schema: %w", err)
	}
	schema, err := jsonschema.CompileString(t.Name+".json", string(raw))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &validator{params: t.Params, schema: schema}, nil
}

// validate reports the first missing required param in declaration
// order, then the first param with the wrong type.
func (v *validator) validate(args map[string]any) error {
	for _, p := range v.params {
		if p.Required && isMissing(args[p.Name]) {
			return docstore.MissingParameter(p.Name)
		}
	}

	// Validate against the JSON form of args so Go-typed callers and
	// decoded JSON-RPC payloads are checked the same way.
	raw, err := json.Marshal(args)
	if err != nil {
		return docstore.InvalidParameter("", fmt.Errorf("encode arguments: %w", err))
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return docstore.InvalidParameter("", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	if err := v.schema.Validate(doc); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			leaf := deepestCause(verr)
			return docstore.InvalidParameter(paramFromLocation(leaf.InstanceLocation), errors.New(leaf.Message))
		}
		return docstore.InvalidParameter("", err)
	}
	return nil
}

func isMissing(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	}
	return false
}

func deepestCause(e *jsonschema.ValidationError) *jsonschema.ValidationError {
	for len(e.Causes) > 0 {
		e = e.Causes[0]
	}
	return e
}

// paramFromLocation returns the top-level property of a JSON pointer such
// as "/throughput".
func paramFromLocation(loc string) string {
	loc = strings.TrimPrefix(loc, "/")
	if i := strings.IndexByte(loc, '/'); i >= 0 {
		loc = loc[:i]
	}
	return loc
}
