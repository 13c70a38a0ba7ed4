package registry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jonwraymond/toolfoundation/model"
)

// RemoteConfig describes a connection to a running MCP server.
type RemoteConfig struct {
	// URL is the server URL (http(s):// streamable, sse:// legacy SSE).
	URL string
	// Headers are added to every HTTP request, e.g. Authorization.
	Headers map[string]string
	// MaxRetries controls reconnect attempts for streamable HTTP transport.
	MaxRetries int
	// Transport overrides URL handling when provided (useful for tests).
	Transport mcp.Transport
}

// Remote is a client session against an MCP server.
type Remote struct {
	mu      sync.RWMutex
	session *mcp.ClientSession
}

// Dial connects to the server described by cfg.
func Dial(ctx context.Context, cfg RemoteConfig) (*Remote, error) {
	transport, err := remoteTransport(cfg)
	if err != nil {
		return nil, err
	}
	client := mcp.NewClient(&mcp.Implementation{Name: "cosmosmcp-client"}, nil)
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %v", ErrRemoteFailed, err)
	}
	return &Remote{session: session}, nil
}

// ListTools returns the server's tools.
func (c *Remote) ListTools(ctx context.Context) ([]model.Tool, error) {
	session, err := c.current()
	if err != nil {
		return nil, err
	}
	res, err := session.ListTools(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteFailed, err)
	}
	tools := make([]model.Tool, 0, len(res.Tools))
	for _, tool := range res.Tools {
		if tool == nil {
			continue
		}
		tools = append(tools, model.Tool{Tool: *tool})
	}
	return tools, nil
}

// Call invokes a tool and returns its result text or structured content.
// A tool-level failure is returned as an error carrying the server's
// message.
func (c *Remote) Call(ctx context.Context, name string, args map[string]any) (any, error) {
	session, err := c.current()
	if err != nil {
		return nil, err
	}
	result, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteFailed, err)
	}
	if result == nil {
		return nil, nil
	}
	if result.IsError {
		return nil, fmt.Errorf("%w: %s", ErrRemoteFailed, toolResultError(result))
	}
	return toolResultValue(result), nil
}

// Close ends the session.
func (c *Remote) Close() error {
	c.mu.Lock()
	session := c.session
	c.session = nil
	c.mu.Unlock()
	if session == nil {
		return nil
	}
	return session.Close()
}

func (c *Remote) current() (*mcp.ClientSession, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return nil, fmt.Errorf("%w: session closed", ErrRemoteFailed)
	}
	return c.session, nil
}

func remoteTransport(cfg RemoteConfig) (mcp.Transport, error) {
	if cfg.Transport != nil {
		return cfg.Transport, nil
	}
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("remote URL is required")
	}

	parsed, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid remote URL: %w", err)
	}

	httpClient := httpClientWithHeaders(cfg.Headers)

	switch parsed.Scheme {
	case "http", "https":
		return &mcp.StreamableClientTransport{
			Endpoint:   cfg.URL,
			HTTPClient: httpClient,
			MaxRetries: cfg.MaxRetries,
		}, nil
	case "sse":
		parsed.Scheme = "http"
		return &mcp.SSEClientTransport{
			Endpoint:   parsed.String(),
			HTTPClient: httpClient,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported remote URL scheme %q", parsed.Scheme)
	}
}

func httpClientWithHeaders(headers map[string]string) *http.Client {
	clone := make(map[string]string, len(headers))
	for k, v := range headers {
		if strings.TrimSpace(k) == "" {
			continue
		}
		clone[k] = v
	}
	if len(clone) == 0 {
		return nil
	}
	return &http.Client{
		Transport: &headerRoundTripper{
			base:    http.DefaultTransport,
			headers: clone,
		},
	}
}

type headerRoundTripper struct {
	base    http.RoundTripper
	headers map[string]string
}

func (h *headerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	base := h.base
	if base == nil {
		base = http.DefaultTransport
	}
	req = req.Clone(req.Context())
	for key, value := range h.headers {
		if req.Header.Get(key) == "" {
			req.Header.Set(key, value)
		}
	}
	return base.RoundTrip(req)
}

func toolResultValue(result *mcp.CallToolResult) any {
	if result.StructuredContent != nil {
		return result.StructuredContent
	}
	if len(result.Content) == 1 {
		if text, ok := result.Content[0].(*mcp.TextContent); ok {
			return text.Text
		}
	}
	return result.Content
}

func toolResultError(result *mcp.CallToolResult) string {
	for _, content := range result.Content {
		if text, ok := content.(*mcp.TextContent); ok && text.Text != "" {
			return text.Text
		}
	}
	if result.StructuredContent != nil {
		return fmt.Sprintf("%v", result.StructuredContent)
	}
	return "tool execution failed"
}
