package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/jonwraymond/cosmosmcp/config"
	"github.com/jonwraymond/cosmosmcp/docstore"
	"github.com/jonwraymond/cosmosmcp/docstore/cosmos"
	"github.com/jonwraymond/cosmosmcp/docstore/memstore"
	"github.com/jonwraymond/cosmosmcp/docstore/mongostore"
	"github.com/jonwraymond/cosmosmcp/registry"
	"github.com/jonwraymond/cosmosmcp/tools"
)

// app is a registry wired to its store backend.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	reg      *registry.Registry
	resolver docstore.Resolver
	cache    *docstore.CachingResolver
	keys     docstore.KeySource
}

func newApp(cfg *config.Config, logOut io.Writer) (*app, error) {
	logger, err := cfg.Log.NewLogger(logOut)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}
	a.keys = docstore.KeyChain{
		docstore.FileKey(cfg.Store.KeyFile),
		docstore.EnvKey(cfg.Store.KeyEnv),
	}

	switch cfg.Store.Backend {
	case config.BackendMemory:
		a.resolver = memstore.New(memstore.WithPageSize(cfg.Store.PageSize))
	case config.BackendCosmos:
		a.cache = docstore.NewCachingResolver(cosmos.NewResolver(
			cosmos.WithKeySource(a.keys),
			cosmos.WithEndpointDomain(cfg.Store.EndpointDomain),
			cosmos.WithPageSize(int32(cfg.Store.PageSize)),
		))
		a.resolver = a.cache
	case config.BackendMongo:
		opts := []mongostore.Option{
			mongostore.WithKeySource(a.keys),
			mongostore.WithBatchSize(int32(cfg.Store.PageSize)),
		}
		if cfg.Store.MongoURITemplate != "" {
			opts = append(opts, mongostore.WithURITemplate(cfg.Store.MongoURITemplate))
		}
		a.cache = docstore.NewCachingResolver(mongostore.NewResolver(opts...))
		a.resolver = a.cache
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Store.Backend)
	}

	regOpts := []registry.Option{registry.WithLogger(logger)}
	if a.cache != nil {
		regOpts = append(regOpts, registry.WithHealthCheck("credentials", a.checkCredentials))
	}
	a.reg = registry.New(registry.Config{
		ServerInfo: registry.ServerInfo{
			Name:    cfg.Server.Name,
			Version: cfg.Server.Version,
		},
		CallTimeout: cfg.Server.CallTimeout,
	}, regOpts...)
	if err := tools.Register(a.reg, a.resolver); err != nil {
		return nil, fmt.Errorf("register tools: %w", err)
	}
	return a, nil
}

// checkCredentials reports whether the configured key source is readable.
// An empty key is fine: the ambient identity is used instead.
func (a *app) checkCredentials(ctx context.Context) error {
	_, err := a.keys.AccountKey()
	return err
}

// watchKeys returns a watcher that drops cached clients when the key file
// changes, or nil when no key file is configured.
func (a *app) watchKeys() *docstore.KeyWatcher {
	if a.cfg.Store.KeyFile == "" || a.cache == nil {
		return nil
	}
	return docstore.NewKeyWatcher(a.cfg.Store.KeyFile, func() {
		a.logger.Info("account key changed, dropping cached clients",
			slog.Any("accounts", a.cache.Accounts()))
		a.cache.InvalidateAll()
	}, a.logger)
}

// close releases cached store clients.
func (a *app) close(ctx context.Context) error {
	if a.cache == nil {
		return nil
	}
	return a.cache.Close(ctx)
}
