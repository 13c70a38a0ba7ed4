package tooldoc

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/jonwraymond/toolfoundation/model"
)

// DetailLevel selects how much documentation DescribeTool returns.
type DetailLevel string

const (
	DetailSummary DetailLevel = "summary"
	DetailSchema  DetailLevel = "schema"
	DetailFull    DetailLevel = "full"
)

// Caps applied to doc entries.
const (
	MaxSummaryLen = 200
	MaxArgsDepth  = 5
	MaxArgsKeys   = 50
)

var (
	ErrNotFound      = errors.New("tooldoc: not found")
	ErrNoTool        = errors.New("tooldoc: tool not available for this detail level")
	ErrInvalidDetail = errors.New("tooldoc: invalid detail level")
	ErrArgsTooLarge  = errors.New("tooldoc: example args too large")
)

// ToolExample is one illustrative invocation.
type ToolExample struct {
	ID          string         `json:"id,omitempty"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Args        map[string]any `json:"args"`
	ResultHint  string         `json:"resultHint,omitempty"`
}

// DocEntry is the human-authored part of a tool's documentation.
type DocEntry struct {
	Summary      string        `json:"summary,omitempty"`
	Notes        string        `json:"notes,omitempty"`
	Examples     []ToolExample `json:"examples,omitempty"`
	ExternalRefs []string      `json:"externalRefs,omitempty"`
}

// ValidateAndTruncate returns a copy with the summary capped at
// MaxSummaryLen.
func (e DocEntry) ValidateAndTruncate() DocEntry {
	out := e
	out.Summary = truncate(e.Summary, MaxSummaryLen)
	return out
}

// SchemaInfo is derived from a tool's input schema.
type SchemaInfo struct {
	Required []string            `json:"required,omitempty"`
	Types    map[string][]string `json:"types,omitempty"`
	Defaults map[string]any      `json:"defaults,omitempty"`
}

// ToolDoc is the documentation returned for one detail level.
type ToolDoc struct {
	Tool         *model.Tool    `json:"tool,omitempty"`
	Summary      string         `json:"summary"`
	SchemaInfo   *SchemaInfo    `json:"schemaInfo,omitempty"`
	Annotations  map[string]any `json:"annotations,omitempty"`
	Notes        string         `json:"notes,omitempty"`
	Examples     []ToolExample  `json:"examples,omitempty"`
	ExternalRefs []string       `json:"externalRefs,omitempty"`
}

// StoreOptions configures an InMemoryStore.
type StoreOptions struct {
	// ToolResolver looks a tool up by ID for schema and full detail.
	ToolResolver func(id string) (*model.Tool, error)
	// MaxExamples caps examples returned at full detail (0 = no cap).
	MaxExamples int
}

// InMemoryStore holds doc entries keyed by tool ID.
type InMemoryStore struct {
	opts StoreOptions

	mu   sync.RWMutex
	docs map[string]DocEntry
}

// NewInMemoryStore returns an empty store.
func NewInMemoryStore(opts StoreOptions) *InMemoryStore {
	return &InMemoryStore{opts: opts, docs: make(map[string]DocEntry)}
}

// RegisterDoc stores entry for id, replacing any previous entry.
func (s *InMemoryStore) RegisterDoc(id string, entry DocEntry) error {
	if id == "" {
		return fmt.Errorf("%w: empty tool id", ErrNotFound)
	}
	for _, ex := range entry.Examples {
		if _, ok := ValidateArgs(ex.Args); !ok {
			return fmt.Errorf("%w: example %q", ErrArgsTooLarge, ex.Title)
		}
	}
	entry = entry.ValidateAndTruncate()
	entry.Examples = copyExamples(entry.Examples)

	s.mu.Lock()
	s.docs[id] = entry
	s.mu.Unlock()
	return nil
}

// RegisterExamples appends examples to id's entry.
func (s *InMemoryStore) RegisterExamples(id string, examples []ToolExample) error {
	for _, ex := range examples {
		if _, ok := ValidateArgs(ex.Args); !ok {
			return fmt.Errorf("%w: example %q", ErrArgsTooLarge, ex.Title)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.docs[id]
	entry.Examples = append(entry.Examples, copyExamples(examples)...)
	s.docs[id] = entry
	return nil
}

// DescribeTool returns id's documentation at level.
func (s *InMemoryStore) DescribeTool(id string, level DetailLevel) (ToolDoc, error) {
	switch level {
	case DetailSummary, DetailSchema, DetailFull:
	default:
		return ToolDoc{}, fmt.Errorf("%w: %q", ErrInvalidDetail, level)
	}

	s.mu.RLock()
	entry, hasDoc := s.docs[id]
	s.mu.RUnlock()

	var tool *model.Tool
	if s.opts.ToolResolver != nil {
		if t, err := s.opts.ToolResolver(id); err == nil {
			tool = t
		}
	}
	if tool == nil && !hasDoc {
		return ToolDoc{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	doc := ToolDoc{Summary: entry.Summary}
	if doc.Summary == "" && tool != nil {
		doc.Summary = truncate(firstSentence(tool.Description), MaxSummaryLen)
	}
	if level == DetailSummary {
		return doc, nil
	}

	if tool == nil {
		return ToolDoc{}, fmt.Errorf("%w: %s", ErrNoTool, id)
	}
	doc.Tool = tool
	doc.SchemaInfo = deriveSchemaInfo(tool.InputSchema)
	doc.Annotations = annotationsFromTool(tool.Annotations)
	if level == DetailSchema {
		return doc, nil
	}

	doc.Notes = entry.Notes
	doc.Examples = s.capExamples(entry.Examples, 0)
	doc.ExternalRefs = append([]string(nil), entry.ExternalRefs...)
	return doc, nil
}

// ListExamples returns up to max examples for id (min of max and
// MaxExamples when both are set).
func (s *InMemoryStore) ListExamples(id string, max int) ([]ToolExample, error) {
	s.mu.RLock()
	entry, ok := s.docs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.capExamples(entry.Examples, max), nil
}

func (s *InMemoryStore) capExamples(examples []ToolExample, max int) []ToolExample {
	limit := len(examples)
	if s.opts.MaxExamples > 0 && s.opts.MaxExamples < limit {
		limit = s.opts.MaxExamples
	}
	if max > 0 && max < limit {
		limit = max
	}
	return copyExamples(examples[:limit])
}

func copyExamples(in []ToolExample) []ToolExample {
	if len(in) == 0 {
		return nil
	}
	out := make([]ToolExample, len(in))
	for i, ex := range in {
		out[i] = ex
		if ex.Args != nil {
			out[i].Args = deepCopy(ex.Args).(map[string]any)
		}
	}
	return out
}

// ArgsStats describes the shape of example args.
type ArgsStats struct {
	Depth int
	Keys  int
}

// ValidateArgs reports args' depth and size and whether both are within
// MaxArgsDepth and MaxArgsKeys.
func ValidateArgs(args map[string]any) (ArgsStats, bool) {
	var stats ArgsStats
	var walk func(v any, depth int)
	walk = func(v any, depth int) {
		if depth > stats.Depth {
			stats.Depth = depth
		}
		switch t := v.(type) {
		case map[string]any:
			stats.Keys += len(t)
			for _, val := range t {
				walk(val, depth+1)
			}
		case []any:
			stats.Keys += len(t)
			for _, val := range t {
				walk(val, depth+1)
			}
		}
	}
	if args != nil {
		walk(args, 1)
	}
	return stats, stats.Depth <= MaxArgsDepth && stats.Keys <= MaxArgsKeys
}

func deriveSchemaInfo(schema any) *SchemaInfo {
	m, ok := schema.(map[string]any)
	if !ok {
		return &SchemaInfo{}
	}
	info := &SchemaInfo{Required: stringSliceFromAny(m["required"])}
	props, _ := m["properties"].(map[string]any)
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		p, ok := props[name].(map[string]any)
		if !ok {
			continue
		}
		if types := stringSliceFromAny(p["type"]); len(types) > 0 {
			if info.Types == nil {
				info.Types = make(map[string][]string)
			}
			info.Types[name] = types
		}
		if def, ok := p["default"]; ok {
			if info.Defaults == nil {
				info.Defaults = make(map[string]any)
			}
			info.Defaults[name] = def
		}
	}
	return info
}
