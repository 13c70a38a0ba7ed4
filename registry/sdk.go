package registry

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jonwraymond/cosmosmcp/docstore"
)

// NewMCPServer returns a go-sdk server exposing every tool registered on r
// at the time of the call. Calls go through Execute, so validation,
// timeouts and logging match the JSON-RPC transports. Tool failures are
// reported as results with IsError set.
func NewMCPServer(r *Registry) *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{
		Name:    r.config.ServerInfo.Name,
		Version: r.config.ServerInfo.Version,
	}, nil)

	for _, t := range r.List() {
		m := t.Model()
		tool := m.Tool
		name := t.Name
		srv.AddTool(&tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var args map[string]any
			if raw := req.Params.Arguments; len(raw) > 0 {
				if err := json.Unmarshal(raw, &args); err != nil {
					return errorResult(withTool(docstore.InvalidParameter("arguments", err), name)), nil
				}
			}
			res, err := r.Execute(ctx, name, args)
			if err != nil {
				return errorResult(err), nil
			}
			text, err := RenderResult(res)
			if err != nil {
				return errorResult(withTool(err, name)), nil
			}
			return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}, nil
		})
	}
	return srv
}

func errorResult(err error) *mcp.CallToolResult {
	res := &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
	}
	if data := errorData(err); data != nil {
		res.StructuredContent = data
	}
	return res
}

// ServeMCP runs r as a go-sdk MCP server on transport until the session
// ends or ctx is cancelled.
func ServeMCP(ctx context.Context, r *Registry, transport mcp.Transport) error {
	return NewMCPServer(r).Run(ctx, transport)
}

// NewStreamableHandler serves r over MCP streamable HTTP.
func NewStreamableHandler(r *Registry) http.Handler {
	srv := NewMCPServer(r)
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return srv }, nil)
}
