// Package registry is the tool dispatch layer: a fixed set of named tools
// with declared parameters, a schema-driven validator, a dispatcher, and
// the MCP transports that expose them.
//
// A call is validated before its handler runs. Required parameters are
// checked in declaration order, so the first absent one is the one
// reported; then argument types are checked against the tool's JSON
// Schema. Every failure is a *docstore.Error carrying the tool name.
//
// Transports:
//   - go-sdk MCP server over stdio or streamable HTTP (NewMCPServer)
//   - newline-delimited JSON-RPC over any stream (ServeStream)
//   - single-request JSON-RPC over HTTP and SSE (ServeHTTP, ServeSSE)
//   - a chi router mounting all HTTP endpoints (Router)
//
// Example usage:
//
//	reg := registry.New(registry.Config{
//	    ServerInfo: registry.ServerInfo{Name: "cosmosmcp", Version: "1.0.0"},
//	})
//	reg.MustRegister(registry.Tool{
//	    Name:        "echo",
//	    Description: "Echoes back the input",
//	    Params:      []registry.Param{{Name: "message", Type: registry.ParamString, Required: true}},
//	    Handler: func(ctx context.Context, args registry.Args) (any, error) {
//	        return args.String("message"), nil
//	    },
//	})
//
//	ctx := context.Background()
//	reg.Start(ctx)
//	defer reg.Stop()
//
//	registry.ServeMCP(ctx, reg, &mcp.StdioTransport{})
package registry
