// Package memstore is an in-process docstore backend. It follows the
// service's observable behavior closely enough for tool tests and offline
// demos: insertion-ordered listings, per-partition item identity,
// metadata-only container reads, and the restricted query dialect.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jonwraymond/cosmosmcp/docstore"
	"github.com/jonwraymond/cosmosmcp/query"
)

// Option configures a Store.
type Option func(*Store)

// WithPageSize sets how many entries each listing or query page holds.
// Zero returns everything in one page.
func WithPageSize(n int) Option {
	return func(s *Store) { s.pageSize = n }
}

// WithPageHook registers fn to run after every page is served. Tests use
// it to cancel a context part-way through a drain.
func WithPageHook(fn func(op string, page int)) Option {
	return func(s *Store) { s.pageHook = fn }
}

// Store holds every account in memory. It implements docstore.Resolver.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]*account
	denied   map[string]bool

	pageSize int
	pageHook func(op string, page int)
	calls    atomic.Int64
}

type account struct {
	databases map[string]*database
	order     []string
}

type database struct {
	containers map[string]*container
	order      []string
}

type itemKey struct{ pk, id string }

type container struct {
	meta       docstore.ContainerMetadata
	pkPath     []string
	throughput *int32
	items      map[itemKey]json.RawMessage
	order      []itemKey
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		accounts: make(map[string]*account),
		denied:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Calls returns the number of store operations performed so far,
// including client resolution and each page fetched.
func (s *Store) Calls() int64 { return s.calls.Load() }

// Deny makes Resolve fail with AuthFailure for account.
func (s *Store) Deny(account string) {
	s.mu.Lock()
	s.denied[account] = true
	s.mu.Unlock()
}

// CreateDatabase adds an empty database. Existing databases are left as is.
func (s *Store) CreateDatabase(accountName, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.account(accountName)
	if _, ok := a.databases[name]; ok {
		return
	}
	a.databases[name] = &database{containers: make(map[string]*container)}
	a.order = append(a.order, name)
}

// Throughput reports the manual throughput a container was created with.
func (s *Store) Throughput(accountName, db, name string) (int32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.lookup(accountName, db, name, "")
	if err != nil || c.throughput == nil {
		return 0, false
	}
	return *c.throughput, true
}

// Resolve implements docstore.Resolver. Unknown accounts start empty.
func (s *Store) Resolve(ctx context.Context, accountName string) (docstore.Client, error) {
	s.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, docstore.Wrap(docstore.OpResolve, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.denied[accountName] {
		return nil, docstore.Errorf(docstore.KindAuthFailure, docstore.OpResolve, "no credential accepted for account %q", accountName)
	}
	s.account(accountName)
	return &client{s: s, account: accountName}, nil
}

// account returns the named account, creating it. Callers hold s.mu.
func (s *Store) account(name string) *account {
	a, ok := s.accounts[name]
	if !ok {
		a = &account{databases: make(map[string]*database)}
		s.accounts[name] = a
	}
	return a
}

// lookup finds a container. Callers hold s.mu.
func (s *Store) lookup(accountName, db, name, op string) (*container, error) {
	a, ok := s.accounts[accountName]
	if !ok {
		return nil, notFound(op, "account %q", accountName)
	}
	d, ok := a.databases[db]
	if !ok {
		return nil, notFound(op, "database %q", db)
	}
	c, ok := d.containers[name]
	if !ok {
		return nil, notFound(op, "container %q", name)
	}
	return c, nil
}

func notFound(op, format string, args ...any) error {
	return &docstore.Error{Kind: docstore.KindNotFound, Op: op, Status: 404,
		Err: fmt.Errorf(format+" does not exist", args...)}
}

func storeErr(op string, status int, format string, args ...any) error {
	return &docstore.Error{Kind: docstore.KindStore, Op: op, Status: status, Err: fmt.Errorf(format, args...)}
}

// pageCharge is the nominal request charge reported for every page.
const pageCharge = 1.0

// pager wraps a precomputed page sequence with call counting and the hook.
func (s *Store) pager(op string, items []json.RawMessage, metrics func(n int) string) docstore.Pager[json.RawMessage] {
	return &countingPager[json.RawMessage]{s: s, op: op, inner: docstore.NewSlicePager(items, s.pageSize), metrics: metrics}
}

type countingPager[T any] struct {
	s       *Store
	op      string
	inner   *docstore.SlicePager[T]
	pages   int
	metrics func(n int) string
}

func (p *countingPager[T]) More() bool { return p.inner.More() }

func (p *countingPager[T]) NextPage(ctx context.Context) (docstore.Page[T], error) {
	p.s.calls.Add(1)
	page, err := p.inner.NextPage(ctx)
	if err != nil {
		return page, err
	}
	p.pages++
	page.RequestCharge = pageCharge
	if p.metrics != nil {
		page.Metrics = p.metrics(len(page.Items))
	}
	if p.s.pageHook != nil {
		p.s.pageHook(p.op, p.pages)
	}
	return page, nil
}

type client struct {
	s       *Store
	account string
}

func (c *client) DatabasesPager() docstore.Pager[string] {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	names := append([]string(nil), c.s.accounts[c.account].order...)
	return &countingPager[string]{s: c.s, op: docstore.OpListDatabases, inner: docstore.NewSlicePager(names, c.s.pageSize)}
}

func (c *client) Database(name string) (docstore.Database, error) {
	if strings.TrimSpace(name) == "" {
		return nil, docstore.MissingParameter("database")
	}
	return &dbHandle{s: c.s, account: c.account, name: name}, nil
}

type dbHandle struct {
	s       *Store
	account string
	name    string
}

func (d *dbHandle) ContainersPager() docstore.Pager[string] {
	d.s.mu.RLock()
	defer d.s.mu.RUnlock()
	db, ok := d.s.accounts[d.account].databases[d.name]
	if !ok {
		return &docstore.ErrPager[string]{Err: notFound(docstore.OpListContainers, "database %q", d.name)}
	}
	names := append([]string(nil), db.order...)
	return &countingPager[string]{s: d.s, op: docstore.OpListContainers, inner: docstore.NewSlicePager(names, d.s.pageSize)}
}

func (d *dbHandle) Container(name string) (docstore.Container, error) {
	if strings.TrimSpace(name) == "" {
		return nil, docstore.MissingParameter("container")
	}
	return &containerHandle{s: d.s, account: d.account, db: d.name, name: name}, nil
}

func (d *dbHandle) CreateContainer(ctx context.Context, spec docstore.ContainerSpec) error {
	const op = docstore.OpCreateContainer
	d.s.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return docstore.Wrap(op, err)
	}
	pkPath, err := splitPartitionKeyPath(spec.PartitionKeyPath)
	if err != nil {
		return &docstore.Error{Kind: docstore.KindStore, Op: op, Status: 400, Err: err}
	}
	if spec.Throughput != nil && *spec.Throughput < 400 {
		return storeErr(op, 400, "throughput %d is below the minimum of 400", *spec.Throughput)
	}

	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	db, ok := d.s.accounts[d.account].databases[d.name]
	if !ok {
		return notFound(op, "database %q", d.name)
	}
	if _, exists := db.containers[spec.ID]; exists {
		return &docstore.Error{Kind: docstore.KindAlreadyExists, Op: op, Status: 409,
			Err: fmt.Errorf("container %q already exists", spec.ID)}
	}
	db.containers[spec.ID] = &container{
		meta:       defaultMetadata(spec.ID, spec.PartitionKeyPath),
		pkPath:     pkPath,
		throughput: spec.Throughput,
		items:      make(map[itemKey]json.RawMessage),
	}
	db.order = append(db.order, spec.ID)
	return nil
}

func splitPartitionKeyPath(path string) ([]string, error) {
	if !strings.HasPrefix(path, "/") || len(path) < 2 {
		return nil, fmt.Errorf("partition key path %q must start with '/' and name a property", path)
	}
	segs := strings.Split(path[1:], "/")
	for _, seg := range segs {
		if seg == "" {
			return nil, fmt.Errorf("partition key path %q has an empty segment", path)
		}
	}
	return segs, nil
}

func defaultMetadata(id, pkPath string) docstore.ContainerMetadata {
	return docstore.ContainerMetadata{
		ID: id,
		IndexingPolicy: map[string]any{
			"indexingMode":  "consistent",
			"automatic":     true,
			"includedPaths": []any{map[string]any{"path": "/*"}},
			"excludedPaths": []any{map[string]any{"path": `/"_etag"/?`}},
		},
		PartitionKeyDefinition: map[string]any{
			"paths":   []any{pkPath},
			"kind":    "Hash",
			"version": 2,
		},
		ConflictResolutionPolicy: map[string]any{
			"mode":                   "LastWriterWins",
			"conflictResolutionPath": "/_ts",
		},
	}
}

type containerHandle struct {
	s       *Store
	account string
	db      string
	name    string
}

func (c *containerHandle) Metadata(ctx context.Context) (docstore.ContainerMetadata, error) {
	const op = docstore.OpReadContainer
	c.s.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return docstore.ContainerMetadata{}, docstore.Wrap(op, err)
	}
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	ct, err := c.s.lookup(c.account, c.db, c.name, op)
	if err != nil {
		return docstore.ContainerMetadata{}, err
	}
	return ct.meta, nil
}

func (c *containerHandle) CreateItem(ctx context.Context, partitionKey string, item []byte) error {
	const op = docstore.OpCreateItem
	c.s.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return docstore.Wrap(op, err)
	}

	var doc map[string]any
	if err := json.Unmarshal(item, &doc); err != nil || doc == nil {
		return storeErr(op, 400, "item must be a JSON object")
	}
	id, _ := doc["id"].(string)
	if id == "" {
		return storeErr(op, 400, "item must have a non-empty string \"id\" property")
	}

	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	ct, err := c.s.lookup(c.account, c.db, c.name, op)
	if err != nil {
		return err
	}
	if v, ok := query.Lookup(doc, ct.pkPath); !ok || v != partitionKey {
		return storeErr(op, 400, "partition key %q does not match the item's /%s value",
			partitionKey, strings.Join(ct.pkPath, "/"))
	}
	key := itemKey{pk: partitionKey, id: id}
	if _, exists := ct.items[key]; exists {
		return storeErr(op, 409, "an item with id %q already exists in partition %q", id, partitionKey)
	}
	ct.items[key] = append(json.RawMessage(nil), item...)
	ct.order = append(ct.order, key)
	return nil
}

func (c *containerHandle) ReadItem(ctx context.Context, partitionKey, id string) (json.RawMessage, error) {
	const op = docstore.OpReadItem
	c.s.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, docstore.Wrap(op, err)
	}
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	ct, err := c.s.lookup(c.account, c.db, c.name, op)
	if err != nil {
		return nil, err
	}
	raw, ok := ct.items[itemKey{pk: partitionKey, id: id}]
	if !ok {
		return nil, notFound(op, "item %q in partition %q", id, partitionKey)
	}
	return append(json.RawMessage(nil), raw...), nil
}

func (c *containerHandle) QueryItems(src string, partitionKey *string) docstore.Pager[json.RawMessage] {
	const op = docstore.OpQueryItems
	q, err := query.Parse(src)
	if err != nil {
		return &docstore.ErrPager[json.RawMessage]{Err: storeErr(op, 400, "%v", err)}
	}

	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	ct, err := c.s.lookup(c.account, c.db, c.name, op)
	if err != nil {
		return &docstore.ErrPager[json.RawMessage]{Err: err}
	}

	results := []json.RawMessage{}
	scanned := 0
	for _, key := range ct.order {
		if partitionKey != nil && key.pk != *partitionKey {
			continue
		}
		scanned++
		raw := ct.items[key]
		var doc map[string]any
		if err := json.Unmarshal(raw, &doc); err != nil {
			continue
		}
		if !q.Matches(doc) {
			continue
		}
		if q.Select.Star {
			results = append(results, append(json.RawMessage(nil), raw...))
			continue
		}
		v, ok := q.Project(doc)
		if !ok {
			continue
		}
		out, err := json.Marshal(v)
		if err != nil {
			return &docstore.ErrPager[json.RawMessage]{Err: storeErr(op, 500, "encode result: %v", err)}
		}
		results = append(results, out)
	}

	return c.s.pager(op, results, func(n int) string {
		return fmt.Sprintf("retrievedDocumentCount=%d;outputDocumentCount=%d", scanned, n)
	})
}

var _ docstore.Resolver = (*Store)(nil)

