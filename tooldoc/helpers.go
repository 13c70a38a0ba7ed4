package tooldoc

import (
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func stringSliceFromAny(v any) []string {
	switch t := v.(type) {
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return []string{t}
	default:
		return nil
	}
}

func annotationsFromTool(ann *mcp.ToolAnnotations) map[string]any {
	if ann == nil {
		return nil
	}
	out := map[string]any{}
	if ann.DestructiveHint != nil {
		out["destructiveHint"] = *ann.DestructiveHint
	}
	if ann.OpenWorldHint != nil {
		out["openWorldHint"] = *ann.OpenWorldHint
	}
	out["idempotentHint"] = ann.IdempotentHint
	out["readOnlyHint"] = ann.ReadOnlyHint
	if ann.Title != "" {
		out["title"] = ann.Title
	}
	return out
}

// firstSentence returns s up to and including its first period followed
// by a space, or all of s.
func firstSentence(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, ". "); i >= 0 {
		return s[:i+1]
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = deepCopy(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = deepCopy(val)
		}
		return out
	default:
		return v
	}
}
