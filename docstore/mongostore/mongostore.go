// Package mongostore implements docstore on Azure Cosmos DB for MongoDB.
//
// Containers map to collections created with the Cosmos extension
// commands, so the partition key path becomes the collection's shard key
// and throughput is provisioned at creation. Items are stored with _id set
// to their id, which is removed again on the way out.
package mongostore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jonwraymond/cosmosmcp/docstore"
	"github.com/jonwraymond/cosmosmcp/query"
)

// DefaultURITemplate is the connection string for a Cosmos DB for MongoDB
// account; %s is replaced by the account name.
const DefaultURITemplate = "mongodb://%s.mongo.cosmos.azure.com:10255/?ssl=true&replicaSet=globaldb&retrywrites=false&maxIdleTimeMS=120000"

// Server error codes the classifier understands.
const (
	codeUnauthorized         = 13
	codeAuthenticationFailed = 18
	codeNamespaceNotFound    = 26
	codeNamespaceExists      = 48
)

// Option configures a Resolver.
type Option func(*Resolver)

// WithURITemplate sets the connection string template.
func WithURITemplate(tmpl string) Option {
	return func(r *Resolver) { r.uriTemplate = tmpl }
}

// WithKeySource sets where account keys come from. The MongoDB API has no
// ambient identity, so a key is required.
func WithKeySource(ks docstore.KeySource) Option {
	return func(r *Resolver) { r.keys = ks }
}

// WithBatchSize sets the cursor batch size, which is also the query page
// size.
func WithBatchSize(n int32) Option {
	return func(r *Resolver) { r.batchSize = n }
}

// Resolver connects to accounts through the MongoDB wire protocol.
type Resolver struct {
	uriTemplate string
	keys        docstore.KeySource
	batchSize   int32
}

// NewResolver returns a Resolver with the given options applied.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		uriTemplate: DefaultURITemplate,
		keys:        docstore.EnvKey(docstore.DefaultKeyEnv),
		batchSize:   100,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve implements docstore.Resolver. The driver connects lazily, so no
// request is sent here.
func (r *Resolver) Resolve(ctx context.Context, account string) (docstore.Client, error) {
	const op = docstore.OpResolve
	if err := docstore.ValidateAccount(account); err != nil {
		return nil, err
	}
	key, err := r.keys.AccountKey()
	if err != nil {
		return nil, docstore.Wrap(op, err)
	}
	if key == "" {
		return nil, docstore.Errorf(docstore.KindAuthFailure, op, "no account key configured for %q", account)
	}

	opts := options.Client().
		ApplyURI(fmt.Sprintf(r.uriTemplate, account)).
		SetAuth(options.Credential{Username: account, Password: key})
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, &docstore.Error{Kind: docstore.KindAuthFailure, Op: op, Err: docstore.RedactError(err, key)}
	}
	return &Client{c: client, batchSize: r.batchSize}, nil
}

// classify maps driver failures onto the docstore taxonomy.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return docstore.FromStatus(op, 404, err)
	}
	if mongo.IsDuplicateKeyError(err) {
		return docstore.FromStatus(op, 409, err)
	}
	var se mongo.ServerError
	if errors.As(err, &se) {
		switch {
		case se.HasErrorCode(codeUnauthorized), se.HasErrorCode(codeAuthenticationFailed):
			return docstore.FromStatus(op, 401, err)
		case se.HasErrorCode(codeNamespaceNotFound):
			return docstore.FromStatus(op, 404, err)
		case se.HasErrorCode(codeNamespaceExists):
			return docstore.FromStatus(op, 409, err)
		}
	}
	return docstore.Wrap(op, err)
}

// Client wraps *mongo.Client.
type Client struct {
	c         *mongo.Client
	batchSize int32
}

// Disconnect closes the connection pool.
func (c *Client) Disconnect(ctx context.Context) error {
	return c.c.Disconnect(ctx)
}

// DatabasesPager implements docstore.Client.
func (c *Client) DatabasesPager() docstore.Pager[string] {
	return &oncePager[string]{fetch: func(ctx context.Context) ([]string, error) {
		names, err := c.c.ListDatabaseNames(ctx, bson.D{})
		return names, classify(docstore.OpListDatabases, err)
	}}
}

// Database implements docstore.Client.
func (c *Client) Database(name string) (docstore.Database, error) {
	return &Database{db: c.c.Database(name), batchSize: c.batchSize}, nil
}

// Database wraps *mongo.Database.
type Database struct {
	db        *mongo.Database
	batchSize int32
}

// ContainersPager implements docstore.Database.
func (d *Database) ContainersPager() docstore.Pager[string] {
	return &oncePager[string]{fetch: func(ctx context.Context) ([]string, error) {
		names, err := d.db.ListCollectionNames(ctx, bson.D{})
		return names, classify(docstore.OpListContainers, err)
	}}
}

// Container implements docstore.Database.
func (d *Database) Container(name string) (docstore.Container, error) {
	return &Container{db: d.db, coll: d.db.Collection(name), batchSize: d.batchSize}, nil
}

// CreateContainer implements docstore.Database using the CreateCollection
// extension command.
func (d *Database) CreateContainer(ctx context.Context, spec docstore.ContainerSpec) error {
	const op = docstore.OpCreateContainer
	field, err := shardKeyField(spec.PartitionKeyPath)
	if err != nil {
		return &docstore.Error{Kind: docstore.KindStore, Op: op, Status: 400, Err: err}
	}
	cmd := bson.D{
		{Key: "customAction", Value: "CreateCollection"},
		{Key: "collection", Value: spec.ID},
		{Key: "shardKey", Value: field},
	}
	if spec.Throughput != nil {
		cmd = append(cmd, bson.E{Key: "offerThroughput", Value: *spec.Throughput})
	}
	return classify(op, d.db.RunCommand(ctx, cmd).Err())
}

// shardKeyField converts "/a/b" to "a.b".
func shardKeyField(path string) (string, error) {
	if !strings.HasPrefix(path, "/") || len(path) < 2 {
		return "", fmt.Errorf("partition key path %q must start with '/' and name a property", path)
	}
	segs := strings.Split(path[1:], "/")
	for _, s := range segs {
		if s == "" {
			return "", fmt.Errorf("partition key path %q has an empty segment", path)
		}
	}
	return strings.Join(segs, "."), nil
}

// collectionInfo is the reply of the GetCollection extension command.
type collectionInfo struct {
	Name                  string `bson:"collectionName"`
	ShardKeyDefinition    bson.M `bson:"shardKeyDefinition"`
	ProvisionedThroughput int32  `bson:"provisionedThroughput"`
}

// Container wraps *mongo.Collection.
type Container struct {
	db        *mongo.Database
	coll      *mongo.Collection
	batchSize int32

	mu   sync.Mutex
	info *collectionInfo
}

// describe fetches the collection descriptor once. Failures are not
// remembered.
func (c *Container) describe(ctx context.Context, op string) (collectionInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.info != nil {
		return *c.info, nil
	}
	cmd := bson.D{
		{Key: "customAction", Value: "GetCollection"},
		{Key: "collection", Value: c.coll.Name()},
	}
	var info collectionInfo
	if err := c.db.RunCommand(ctx, cmd).Decode(&info); err != nil {
		return collectionInfo{}, classify(op, err)
	}
	c.info = &info
	return info, nil
}

// shardKey returns the shard key field, or "" for an unsharded collection.
func (info collectionInfo) shardKey() string {
	for k := range info.ShardKeyDefinition {
		return k
	}
	return ""
}

// Metadata implements docstore.Container.
func (c *Container) Metadata(ctx context.Context) (docstore.ContainerMetadata, error) {
	const op = docstore.OpReadContainer
	info, err := c.describe(ctx, op)
	if err != nil {
		return docstore.ContainerMetadata{}, err
	}
	cur, err := c.coll.Indexes().List(ctx)
	if err != nil {
		return docstore.ContainerMetadata{}, classify(op, err)
	}
	var indexes []bson.M
	if err := cur.All(ctx, &indexes); err != nil {
		return docstore.ContainerMetadata{}, classify(op, err)
	}

	md := docstore.ContainerMetadata{
		ID:             info.Name,
		IndexingPolicy: map[string]any{"indexes": toJSON(indexes)},
	}
	if key := info.shardKey(); key != "" {
		md.PartitionKeyDefinition = map[string]any{
			"paths": []string{"/" + strings.ReplaceAll(key, ".", "/")},
			"kind":  "Hash",
		}
	}
	return md, nil
}

// CreateItem implements docstore.Container. The item is decoded only to
// set _id and check the shard key; its fields are stored as given.
func (c *Container) CreateItem(ctx context.Context, partitionKey string, item []byte) error {
	const op = docstore.OpCreateItem
	var doc bson.D
	if err := bson.UnmarshalExtJSON(item, false, &doc); err != nil {
		return &docstore.Error{Kind: docstore.KindStore, Op: op, Status: 400, Err: fmt.Errorf("item must be a JSON object: %w", err)}
	}
	id, ok := lookupString(doc, "id")
	if !ok || id == "" {
		return &docstore.Error{Kind: docstore.KindStore, Op: op, Status: 400, Err: errors.New(`item must have a non-empty string "id" property`)}
	}

	info, err := c.describe(ctx, op)
	if err != nil {
		return err
	}
	if key := info.shardKey(); key != "" {
		if v, _ := lookupString(doc, key); v != partitionKey {
			return &docstore.Error{Kind: docstore.KindStore, Op: op, Status: 400,
				Err: fmt.Errorf("partition key %q does not match the item's %s value", partitionKey, key)}
		}
	}

	doc = append(bson.D{{Key: "_id", Value: id}}, withoutID(doc)...)
	_, err = c.coll.InsertOne(ctx, doc)
	return classify(op, err)
}

// ReadItem implements docstore.Container.
func (c *Container) ReadItem(ctx context.Context, partitionKey, id string) (json.RawMessage, error) {
	const op = docstore.OpReadItem
	info, err := c.describe(ctx, op)
	if err != nil {
		return nil, err
	}
	filter := bson.D{{Key: "_id", Value: id}}
	if key := info.shardKey(); key != "" {
		filter = append(filter, bson.E{Key: key, Value: partitionKey})
	}
	var doc bson.D
	if err := c.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, classify(op, err)
	}
	out, err := bson.MarshalExtJSON(withoutID(doc), false, false)
	if err != nil {
		return nil, classify(op, err)
	}
	return out, nil
}

// QueryItems implements docstore.Container. The statement is translated
// into a find filter; each cursor batch is one page.
func (c *Container) QueryItems(src string, partitionKey *string) docstore.Pager[json.RawMessage] {
	const op = docstore.OpQueryItems
	q, err := query.Parse(src)
	if err != nil {
		return &docstore.ErrPager[json.RawMessage]{Err: &docstore.Error{Kind: docstore.KindStore, Op: op, Status: 400, Err: err}}
	}
	return &cursorPager{
		op: op,
		q:  q,
		open: func(ctx context.Context) (*mongo.Cursor, error) {
			filter := translate(q.Where)
			if partitionKey != nil {
				info, err := c.describe(ctx, op)
				if err != nil {
					return nil, err
				}
				if key := info.shardKey(); key != "" {
					filter = bson.D{{Key: "$and", Value: bson.A{bson.D{{Key: key, Value: *partitionKey}}, filter}}}
				}
			}
			return c.coll.Find(ctx, filter, options.Find().SetBatchSize(c.batchSize))
		},
	}
}

func lookupString(doc bson.D, dotted string) (string, bool) {
	var cur any = doc
	for _, seg := range strings.Split(dotted, ".") {
		d, ok := cur.(bson.D)
		if !ok {
			return "", false
		}
		found := false
		for _, e := range d {
			if e.Key == seg {
				cur, found = e.Value, true
				break
			}
		}
		if !found {
			return "", false
		}
	}
	s, ok := cur.(string)
	return s, ok
}

func withoutID(doc bson.D) bson.D {
	out := make(bson.D, 0, len(doc))
	for _, e := range doc {
		if e.Key != "_id" {
			out = append(out, e)
		}
	}
	return out
}

// toJSON converts BSON values to plain JSON values via relaxed extended
// JSON.
func toJSON(v any) any {
	raw, err := bson.MarshalExtJSON(bson.M{"v": v}, false, false)
	if err != nil {
		return nil
	}
	var wrapper struct {
		V any `json:"v"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil
	}
	return wrapper.V
}

// oncePager serves a listing fetched in one call as a single page.
type oncePager[T any] struct {
	fetch func(ctx context.Context) ([]T, error)
	done  bool
}

func (p *oncePager[T]) More() bool { return !p.done }

func (p *oncePager[T]) NextPage(ctx context.Context) (docstore.Page[T], error) {
	if p.done {
		return docstore.Page[T]{}, docstore.ErrPagerExhausted
	}
	p.done = true
	items, err := p.fetch(ctx)
	if err != nil {
		return docstore.Page[T]{}, err
	}
	if items == nil {
		items = []T{}
	}
	return docstore.Page[T]{Items: items}, nil
}

// cursorPager turns cursor batches into pages.
type cursorPager struct {
	op   string
	q    *query.Query
	open func(ctx context.Context) (*mongo.Cursor, error)
	cur  *mongo.Cursor
	done bool
}

func (p *cursorPager) More() bool { return !p.done }

func (p *cursorPager) NextPage(ctx context.Context) (docstore.Page[json.RawMessage], error) {
	if p.done {
		return docstore.Page[json.RawMessage]{}, docstore.ErrPagerExhausted
	}
	if p.cur == nil {
		cur, err := p.open(ctx)
		if err != nil {
			p.done = true
			return docstore.Page[json.RawMessage]{}, classify(p.op, err)
		}
		p.cur = cur
	}

	items := []json.RawMessage{}
	scanned := 0
	// Next fetches a new batch when the current one is exhausted.
	for p.cur.Next(ctx) {
		scanned++
		item, ok, err := p.convert(p.cur.Current)
		if err != nil {
			p.finish(ctx)
			return docstore.Page[json.RawMessage]{}, classify(p.op, err)
		}
		if ok {
			items = append(items, item)
		}
		if p.cur.RemainingBatchLength() == 0 {
			break
		}
	}
	if err := p.cur.Err(); err != nil {
		p.finish(ctx)
		return docstore.Page[json.RawMessage]{}, classify(p.op, err)
	}
	if p.cur.ID() == 0 && p.cur.RemainingBatchLength() == 0 {
		p.finish(ctx)
	}
	return docstore.Page[json.RawMessage]{
		Items:   items,
		Metrics: fmt.Sprintf("retrievedDocumentCount=%d;outputDocumentCount=%d", scanned, len(items)),
	}, nil
}

func (p *cursorPager) finish(ctx context.Context) {
	p.done = true
	_ = p.cur.Close(ctx)
}

// convert renders one stored document according to the selection.
func (p *cursorPager) convert(raw bson.Raw) (json.RawMessage, bool, error) {
	var doc bson.D
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, false, err
	}
	out, err := bson.MarshalExtJSON(withoutID(doc), false, false)
	if err != nil {
		return nil, false, err
	}
	if p.q.Select.Star {
		return out, true, nil
	}
	var m map[string]any
	if err := json.Unmarshal(out, &m); err != nil {
		return nil, false, err
	}
	v, ok := p.q.Project(m)
	if !ok {
		return nil, false, nil
	}
	projected, err := json.Marshal(v)
	return projected, true, err
}

var (
	_ docstore.Resolver  = (*Resolver)(nil)
	_ docstore.Client    = (*Client)(nil)
	_ docstore.Database  = (*Database)(nil)
	_ docstore.Container = (*Container)(nil)
)
