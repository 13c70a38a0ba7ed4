package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/cosmosmcp/config"
	"github.com/jonwraymond/cosmosmcp/registry"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(bm buildMeta) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server",
		Long: `Run the MCP server on the configured transport.

  stdio  MCP over stdin/stdout (default)
  jsonl  newline-delimited JSON-RPC over stdin/stdout
  http   streamable MCP on /mcp, JSON-RPC on /rpc and /sse, health on /healthz`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, bm)
			if err != nil {
				return err
			}
			return runServe(cmd, cfg)
		},
	}
	cmd.Flags().String("transport", "", "stdio, jsonl or http")
	cmd.Flags().String("http-addr", "", "listen address for the http transport")
	cmd.Flags().Duration("call-timeout", 0, "per-call timeout (negative disables)")
	return cmd
}

func runServe(cmd *cobra.Command, cfg *config.Config) error {
	// Logs go to stderr; stdout may carry the protocol.
	a, err := newApp(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.reg.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := a.reg.Stop(); err != nil {
			a.logger.Warn("stop registry", slog.String("error", err.Error()))
		}
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.close(closeCtx); err != nil {
			a.logger.Warn("close store clients", slog.String("error", err.Error()))
		}
	}()

	if w := a.watchKeys(); w != nil {
		if err := w.Start(); err != nil {
			return err
		}
		defer w.Stop()
	}

	a.logger.Info("serving",
		slog.String("transport", string(cfg.Server.Transport)),
		slog.String("backend", string(cfg.Store.Backend)))

	switch cfg.Server.Transport {
	case config.TransportJSONL:
		return registry.ServeStream(ctx, a.reg, cmd.InOrStdin(), cmd.OutOrStdout())
	case config.TransportHTTP:
		return serveHTTP(ctx, a)
	default:
		err := registry.ServeMCP(ctx, a.reg, &mcp.StdioTransport{})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
}

func serveHTTP(ctx context.Context, a *app) error {
	opts := registry.RouterOptions{
		RequestTimeout: a.cfg.Server.RequestTimeout,
		Logger:         a.logger,
	}
	if name := a.cfg.Server.AuthSecretEnv; name != "" {
		if secret := strings.TrimSpace(os.Getenv(name)); secret != "" {
			opts.AuthSecret = []byte(secret)
		}
	}
	if opts.AuthSecret == nil {
		a.logger.Warn("http transport running without bearer auth")
	}

	srv := &http.Server{
		Addr:              a.cfg.Server.HTTPAddr,
		Handler:           registry.Router(a.reg, opts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
