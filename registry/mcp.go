package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jonwraymond/toolfoundation/model"
)

// MCPRequest represents an incoming MCP JSON-RPC request.
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether req expects no response.
func (req MCPRequest) IsNotification() bool {
	return req.ID == nil && strings.HasPrefix(req.Method, "notifications/")
}

// MCPResponse represents an MCP JSON-RPC response.
type MCPResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *MCPError `json:"error,omitempty"`
}

// MCPError is a JSON-RPC error object.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *MCPError) Error() string { return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message) }

// HandleRequest processes an MCP request and returns a response.
// Notifications are accepted and produce a zero response that callers
// must not send.
func (r *Registry) HandleRequest(ctx context.Context, req MCPRequest) MCPResponse {
	if req.IsNotification() {
		return MCPResponse{}
	}
	switch req.Method {
	case "initialize":
		return r.handleInitialize(ctx, req.ID, req.Params)
	case "ping":
		return MCPResponse{JSONRPC: "2.0", ID: req.ID, Result: map[string]any{}}
	case "tools/list":
		return r.handleToolsList(ctx, req.ID, req.Params)
	case "tools/call":
		return r.handleToolsCall(ctx, req.ID, req.Params)
	default:
		return errorResponse(req.ID, &MCPError{
			Code:    ErrCodeMethodNotFound,
			Message: fmt.Sprintf("method %s not found", req.Method),
		})
	}
}

func errorResponse(id any, e *MCPError) MCPResponse {
	return MCPResponse{JSONRPC: "2.0", ID: id, Error: e}
}

func (r *Registry) handleInitialize(ctx context.Context, id any, params json.RawMessage) MCPResponse {
	result := map[string]any{
		"protocolVersion": model.MCPVersion,
		"capabilities": map[string]any{
			"tools": map[string]any{"listChanged": false},
		},
		"serverInfo": map[string]any{
			"name":    r.config.ServerInfo.Name,
			"version": r.config.ServerInfo.Version,
		},
	}

	return MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result:  result,
	}
}

func (r *Registry) handleToolsList(ctx context.Context, id any, params json.RawMessage) MCPResponse {
	tools, err := r.ListAll(ctx)
	if err != nil {
		return errorResponse(id, &MCPError{Code: ErrCodeInternal, Message: err.Error()})
	}

	mcpTools := make([]map[string]any, 0, len(tools))
	for _, tool := range tools {
		mcpTool := map[string]any{
			"name":        tool.Name,
			"description": tool.Description,
			"inputSchema": tool.InputSchema,
		}
		if tool.Annotations != nil {
			mcpTool["annotations"] = tool.Annotations
		}
		mcpTools = append(mcpTools, mcpTool)
	}

	return MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result:  map[string]any{"tools": mcpTools},
	}
}

type toolsCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

func (r *Registry) handleToolsCall(ctx context.Context, id any, params json.RawMessage) MCPResponse {
	var callParams toolsCallParams
	if err := json.Unmarshal(params, &callParams); err != nil {
		return errorResponse(id, &MCPError{Code: ErrCodeInvalidParams, Message: err.Error()})
	}

	result, err := r.Execute(ctx, callParams.Name, callParams.Arguments)
	if err != nil {
		e := &MCPError{Code: ErrorCode(err), Message: err.Error()}
		if data := errorData(err); data != nil {
			e.Data = data
		}
		return errorResponse(id, e)
	}

	text, err := RenderResult(result)
	if err != nil {
		return errorResponse(id, &MCPError{Code: ErrCodeInternal, Message: err.Error()})
	}
	return MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result: map[string]any{
			"content": []map[string]any{{"type": "text", "text": text}},
			"isError": false,
		},
	}
}

// RenderResult turns a handler result into the text sent to clients.
// Strings and raw JSON pass through unchanged.
func RenderResult(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "null", nil
	case string:
		return t, nil
	case json.RawMessage:
		return string(t), nil
	case []byte:
		return string(t), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	return string(b), nil
}
