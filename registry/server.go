package registry

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
)

// maxLineSize bounds one JSON-RPC message on the stream transports.
const maxLineSize = 16 << 20

// ServeStdio runs the registry as a newline-delimited JSON-RPC server over
// stdio. Blocks until stdin is closed or context is cancelled.
func ServeStdio(ctx context.Context, r *Registry) error {
	return ServeStream(ctx, r, os.Stdin, os.Stdout)
}

// ServeStream serves newline-delimited JSON-RPC from in to out. Requests
// run concurrently; responses are written as they complete. A
// notifications/cancelled message cancels the named in-flight request and
// suppresses its response. In-flight calls are awaited before returning.
func ServeStream(ctx context.Context, r *Registry, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s := &streamSession{
		reg:      r,
		enc:      json.NewEncoder(out),
		inflight: make(map[string]*inflightCall),
	}
	defer s.wg.Wait()

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var req MCPRequest
		if err := json.Unmarshal(line, &req); err != nil {
			if err := s.write(errorResponse(nil, &MCPError{Code: ErrCodeParseError, Message: err.Error()})); err != nil {
				return err
			}
			continue
		}
		if req.IsNotification() {
			s.notify(req)
			continue
		}
		s.dispatch(ctx, req)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}
	return nil
}

type inflightCall struct {
	cancel    context.CancelFunc
	cancelled bool
}

type streamSession struct {
	reg *Registry
	wg  sync.WaitGroup

	writeMu sync.Mutex
	enc     *json.Encoder

	mu       sync.Mutex
	inflight map[string]*inflightCall
}

func requestKey(id any) string {
	return fmt.Sprintf("%v", id)
}

func (s *streamSession) dispatch(ctx context.Context, req MCPRequest) {
	callCtx, cancel := context.WithCancel(ctx)
	key := requestKey(req.ID)
	call := &inflightCall{cancel: cancel}

	s.mu.Lock()
	s.inflight[key] = call
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()

		resp := s.reg.HandleRequest(callCtx, req)

		s.mu.Lock()
		delete(s.inflight, key)
		suppressed := call.cancelled
		s.mu.Unlock()

		if !suppressed {
			_ = s.write(resp)
		}
	}()
}

type cancelledParams struct {
	RequestID any    `json:"requestId"`
	Reason    string `json:"reason,omitempty"`
}

func (s *streamSession) notify(req MCPRequest) {
	if req.Method != "notifications/cancelled" {
		return
	}
	var p cancelledParams
	if err := json.Unmarshal(req.Params, &p); err != nil || p.RequestID == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if call, ok := s.inflight[requestKey(p.RequestID)]; ok {
		call.cancelled = true
		call.cancel()
	}
}

func (s *streamSession) write(resp MCPResponse) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.enc.Encode(resp); err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}
	return nil
}

// ServeHTTP returns an http.Handler for single-request JSON-RPC over HTTP.
// Handles POST requests with JSON-RPC bodies, returns JSON responses.
func ServeHTTP(r *Registry) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var mcpReq MCPRequest
		if err := json.NewDecoder(io.LimitReader(req.Body, maxLineSize)).Decode(&mcpReq); err != nil {
			writeJSON(w, errorResponse(nil, &MCPError{Code: ErrCodeParseError, Message: err.Error()}))
			return
		}
		if mcpReq.IsNotification() {
			w.WriteHeader(http.StatusAccepted)
			return
		}

		writeJSON(w, r.HandleRequest(req.Context(), mcpReq))
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// ServeSSE returns an http.Handler for Server-Sent Events transport.
// Clients POST a request and receive the response as one SSE event.
func ServeSSE(r *Registry) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "SSE not supported", http.StatusInternalServerError)
			return
		}

		var mcpReq MCPRequest
		if err := json.NewDecoder(io.LimitReader(req.Body, maxLineSize)).Decode(&mcpReq); err != nil {
			writeSSEEvent(w, flusher, "error", errorResponse(nil, &MCPError{Code: ErrCodeParseError, Message: err.Error()}))
			return
		}

		resp := r.HandleRequest(req.Context(), mcpReq)
		writeSSEEvent(w, flusher, "message", resp)
	})
}

func writeSSEEvent(w http.ResponseWriter, f http.Flusher, event string, data any) {
	jsonData, _ := json.Marshal(data)
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return
	}
	f.Flush()
}
