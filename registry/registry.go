package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/cosmosmcp/docstore"
	"github.com/jonwraymond/cosmosmcp/search"
	"github.com/jonwraymond/cosmosmcp/tooldoc"
	"github.com/jonwraymond/toolfoundation/model"
)

// DefaultCallTimeout bounds a tool call when Config.CallTimeout is zero.
const DefaultCallTimeout = 60 * time.Second

// Config configures a Registry.
type Config struct {
	SearchConfig *search.BM25Config
	ServerInfo   ServerInfo
	// CallTimeout bounds every Execute. Negative disables the bound.
	CallTimeout time.Duration
	// MaxExamples caps examples returned by Describe at full detail.
	MaxExamples int
}

// ServerInfo describes this MCP server for initialize response.
type ServerInfo struct {
	Name    string
	Version string
}

// Option configures optional Registry collaborators.
type Option func(*Registry)

// WithLogger sets the logger used for call logging.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// HealthFunc reports whether a dependency is usable.
type HealthFunc func(ctx context.Context) error

// WithHealthCheck adds a dependency check to HealthCheck.
func WithHealthCheck(name string, fn HealthFunc) Option {
	return func(r *Registry) {
		r.checks = append(r.checks, namedCheck{name: name, fn: fn})
	}
}

type namedCheck struct {
	name string
	fn   HealthFunc
}

type entry struct {
	tool      Tool
	model     model.Tool
	validator *validator
}

// Registry holds a fixed set of tools and dispatches calls to them.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]*entry
	order    []string
	searcher *search.BM25Searcher
	docs     *tooldoc.InMemoryStore
	config   Config
	logger   *slog.Logger
	checks   []namedCheck

	calls    atomic.Int64
	failures atomic.Int64

	started bool
}

// New creates a Registry with the given config.
func New(cfg Config, opts ...Option) *Registry {
	if cfg.CallTimeout == 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	searchCfg := search.BM25Config{}
	if cfg.SearchConfig != nil {
		searchCfg = *cfg.SearchConfig
	}

	r := &Registry{
		tools:    make(map[string]*entry),
		searcher: search.NewBM25Searcher(searchCfg),
		config:   cfg,
		logger:   slog.Default(),
	}
	r.docs = tooldoc.NewInMemoryStore(tooldoc.StoreOptions{
		ToolResolver: r.resolveModel,
		MaxExamples:  cfg.MaxExamples,
	})
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds t. Names are unique; a second registration fails.
func (r *Registry) Register(t Tool) error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidTool)
	}
	if t.Handler == nil {
		return fmt.Errorf("%w: %s has no handler", ErrInvalidTool, t.Name)
	}
	seen := make(map[string]bool, len(t.Params))
	for _, p := range t.Params {
		if p.Name == "" || seen[p.Name] {
			return fmt.Errorf("%w: %s has an empty or repeated param %q", ErrInvalidTool, t.Name, p.Name)
		}
		seen[p.Name] = true
	}
	t.Params = append([]Param(nil), t.Params...)
	t.Tags = append([]string(nil), t.Tags...)

	m := t.Model()
	if err := m.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTool, err)
	}
	v, err := newValidator(t)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidTool, t.Name, err)
	}

	r.mu.Lock()
	if _, exists := r.tools[t.Name]; exists {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateTool, t.Name)
	}
	r.tools[t.Name] = &entry{tool: t, model: m, validator: v}
	r.order = append(r.order, t.Name)
	r.mu.Unlock()

	if t.Doc != nil {
		if err := r.docs.RegisterDoc(t.Name, *t.Doc); err != nil {
			return fmt.Errorf("%w: %s docs: %v", ErrInvalidTool, t.Name, err)
		}
	}
	return nil
}

// MustRegister is Register for static tool tables; it panics on error.
func (r *Registry) MustRegister(tools ...Tool) {
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
}

// List returns registered tools in registration order.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].tool)
	}
	return out
}

// ListAll returns the discovery form of every tool in registration order.
func (r *Registry) ListAll(ctx context.Context) ([]model.Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].model)
	}
	return out, nil
}

// GetTool returns a tool by name.
func (r *Registry) GetTool(ctx context.Context, name string) (model.Tool, error) {
	m, err := r.resolveModel(name)
	if err != nil {
		return model.Tool{}, err
	}
	return *m, nil
}

func (r *Registry) resolveModel(name string) (*model.Tool, error) {
	r.mu.RLock()
	e, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	m := e.model
	return &m, nil
}

// Search performs a BM25 search and returns ranked tools.
func (r *Registry) Search(ctx context.Context, query string, limit int) ([]model.Tool, error) {
	r.mu.RLock()
	docs := make([]search.Doc, 0, len(r.order))
	for _, name := range r.order {
		e := r.tools[name]
		docs = append(docs, searchDoc(e.tool))
	}
	r.mu.RUnlock()

	hits, err := r.searcher.Search(query, limit, docs)
	if err != nil {
		return nil, err
	}
	out := make([]model.Tool, 0, len(hits))
	for _, hit := range hits {
		if m, err := r.resolveModel(hit.ID); err == nil {
			out = append(out, *m)
		}
	}
	return out, nil
}

func searchDoc(t Tool) search.Doc {
	var text strings.Builder
	for _, p := range t.Params {
		text.WriteString(p.Name)
		text.WriteByte(' ')
		text.WriteString(p.Description)
		text.WriteByte(' ')
	}
	if t.Doc != nil {
		text.WriteString(t.Doc.Summary)
		text.WriteByte(' ')
		text.WriteString(t.Doc.Notes)
	}
	return search.Doc{
		ID:          t.Name,
		Name:        t.Name,
		Description: t.Description,
		Tags:        model.NormalizeTags(t.Tags),
		Text:        text.String(),
	}
}

// Describe returns progressive documentation for a tool.
func (r *Registry) Describe(name string, level tooldoc.DetailLevel) (tooldoc.ToolDoc, error) {
	return r.docs.DescribeTool(name, level)
}

// Examples returns up to max documented examples for a tool.
func (r *Registry) Examples(name string, max int) ([]tooldoc.ToolExample, error) {
	return r.docs.ListExamples(name, max)
}

// Execute validates args and runs the named tool. It returns exactly one
// of a result or an error; errors other than ErrToolNotFound are
// *docstore.Error with Tool set.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (any, error) {
	r.mu.RLock()
	e, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}

	callID := uuid.NewString()
	start := time.Now()
	r.calls.Add(1)

	result, err := r.execute(ctx, e, args)
	if err != nil {
		r.failures.Add(1)
		err = withTool(err, name)
	}
	r.logCall(ctx, name, callID, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *Registry) execute(ctx context.Context, e *entry, args map[string]any) (any, error) {
	if args == nil {
		args = map[string]any{}
	}
	if err := e.validator.validate(args); err != nil {
		return nil, err
	}
	if r.config.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.CallTimeout)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return nil, &docstore.Error{Kind: docstore.KindCancelled, Err: err}
	}
	return e.tool.Handler(ctx, Args(args))
}

// withTool classifies err and stamps the tool name on it.
func withTool(err error, tool string) error {
	var e *docstore.Error
	if !errors.As(err, &e) {
		return &docstore.Error{Kind: docstore.KindOf(err), Tool: tool, Err: err}
	}
	cp := *e
	cp.Tool = tool
	return &cp
}

func (r *Registry) logCall(ctx context.Context, tool, callID string, d time.Duration, err error) {
	attrs := []slog.Attr{
		slog.String("tool", tool),
		slog.String("call_id", callID),
		slog.Duration("duration", d),
	}
	if err == nil {
		r.logger.LogAttrs(ctx, slog.LevelInfo, "tool call", attrs...)
		return
	}
	attrs = append(attrs, slog.String("kind", string(docstore.KindOf(err))), slog.String("error", err.Error()))
	r.logger.LogAttrs(ctx, slog.LevelWarn, "tool call failed", attrs...)
}

// Start marks the registry as serving.
func (r *Registry) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return ErrAlreadyStarted
	}
	r.started = true
	r.logger.InfoContext(ctx, "registry started",
		slog.String("server", r.config.ServerInfo.Name),
		slog.Int("tools", len(r.order)))
	return nil
}

// Stop marks the registry as stopped and releases the search index.
func (r *Registry) Stop() error {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return nil
	}
	r.started = false
	r.mu.Unlock()
	return r.searcher.Close()
}

// RegistryStats returns registry statistics.
type RegistryStats struct {
	TotalTools    int
	ReadOnlyTools int
	Calls         int64
	Failures      int64
}

// Stats returns registry statistics.
func (r *Registry) Stats() RegistryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	readOnly := 0
	for _, e := range r.tools {
		if a := e.tool.Annotations; a != nil && a.ReadOnlyHint {
			readOnly++
		}
	}
	return RegistryStats{
		TotalTools:    len(r.tools),
		ReadOnlyTools: readOnly,
		Calls:         r.calls.Load(),
		Failures:      r.failures.Load(),
	}
}

// HealthCheck returns nil if the registry is started and every registered
// dependency check passes.
func (r *Registry) HealthCheck(ctx context.Context) error {
	r.mu.RLock()
	started := r.started
	checks := r.checks
	r.mu.RUnlock()

	if !started {
		return ErrNotStarted
	}
	for _, c := range checks {
		if err := c.fn(ctx); err != nil {
			return fmt.Errorf("%s: %w", c.name, err)
		}
	}
	return nil
}
