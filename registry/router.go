package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v4"
)

// RouterOptions configures Router.
type RouterOptions struct {
	// AuthSecret enables HS256 bearer-token auth on the RPC endpoints.
	AuthSecret []byte
	// RequestTimeout bounds each HTTP request (0 = none).
	RequestTimeout time.Duration
	// Logger receives one line per request.
	Logger *slog.Logger
}

// Router mounts every HTTP transport on one chi router:
//
//	POST /rpc      single JSON-RPC request
//	POST /sse      JSON-RPC request answered as an SSE event
//	     /mcp      MCP streamable HTTP (go-sdk)
//	GET  /healthz  registry health
func Router(r *Registry, opts RouterOptions) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = r.logger
	}

	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(requestLogger(logger))
	mux.Use(middleware.Recoverer)
	if opts.RequestTimeout > 0 {
		mux.Use(middleware.Timeout(opts.RequestTimeout))
	}

	mux.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := r.HealthCheck(req.Context()); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = fmt.Fprintf(w, "{\"status\":\"unhealthy\",\"error\":%q}\n", err.Error())
			return
		}
		writeJSON(w, map[string]any{"status": "ok", "tools": r.Stats().TotalTools})
	})

	mux.Group(func(g chi.Router) {
		if len(opts.AuthSecret) > 0 {
			g.Use(BearerAuth(opts.AuthSecret))
		}
		g.Method(http.MethodPost, "/rpc", ServeHTTP(r))
		g.Method(http.MethodPost, "/sse", ServeSSE(r))
		g.Handle("/mcp", NewStreamableHandler(r))
	})
	return mux
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, req)
			logger.LogAttrs(req.Context(), slog.LevelDebug, "http request",
				slog.String("method", req.Method),
				slog.String("path", req.URL.Path),
				slog.Int("status", ww.Status()),
				slog.String("request_id", middleware.GetReqID(req.Context())),
				slog.Duration("duration", time.Since(start)))
		})
	}
}

var errBadToken = errors.New("invalid bearer token")

// BearerAuth rejects requests without a valid HS256 token signed with
// secret.
func BearerAuth(secret []byte) func(http.Handler) http.Handler {
	keyFunc := func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			authz := req.Header.Get("Authorization")
			if !strings.HasPrefix(authz, "Bearer ") {
				unauthorized(w, errBadToken)
				return
			}
			token, err := jwt.Parse(strings.TrimPrefix(authz, "Bearer "), keyFunc)
			if err != nil || !token.Valid {
				unauthorized(w, errBadToken)
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

func unauthorized(w http.ResponseWriter, err error) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="cosmosmcp"`)
	http.Error(w, err.Error(), http.StatusUnauthorized)
}
