// Package cosmos implements docstore on the Azure Cosmos DB SQL API.
package cosmos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/data/azcosmos"

	"github.com/jonwraymond/cosmosmcp/docstore"
)

const (
	listDatabasesQuery  = "select * from dbs d"
	listContainersQuery = "select * from c"
)

// Option configures a Resolver.
type Option func(*Resolver)

// WithKeySource sets where explicit account keys come from. The default
// reads COSMOSDB_ACCOUNT_KEY.
func WithKeySource(ks docstore.KeySource) Option {
	return func(r *Resolver) { r.keys = ks }
}

// WithEndpointDomain sets the DNS suffix used to build account endpoints.
func WithEndpointDomain(domain string) Option {
	return func(r *Resolver) { r.domain = domain }
}

// WithEndpoint replaces endpoint construction entirely, e.g. to target the
// local emulator. The function still receives the validated account name.
func WithEndpoint(fn func(account string) string) Option {
	return func(r *Resolver) { r.endpoint = fn }
}

// WithClientOptions sets the SDK client options (transport, retry,
// telemetry).
func WithClientOptions(opts *azcosmos.ClientOptions) Option {
	return func(r *Resolver) { r.clientOptions = opts }
}

// WithTokenCredential sets the identity used when no key is configured.
// The default is azidentity.DefaultAzureCredential.
func WithTokenCredential(cred azcore.TokenCredential) Option {
	return func(r *Resolver) { r.tokenCredential = cred }
}

// WithPageSize hints how many items each query page should hold. Zero
// leaves the choice to the service.
func WithPageSize(n int32) Option {
	return func(r *Resolver) { r.pageSize = n }
}

// Resolver builds azcosmos clients. It performs no network I/O; credential
// problems with the ambient identity surface on the first request as
// auth failures.
type Resolver struct {
	keys            docstore.KeySource
	domain          string
	endpoint        func(account string) string
	clientOptions   *azcosmos.ClientOptions
	tokenCredential azcore.TokenCredential
	pageSize        int32
}

// NewResolver returns a Resolver with the given options applied.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{keys: docstore.EnvKey(docstore.DefaultKeyEnv)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve implements docstore.Resolver.
func (r *Resolver) Resolve(ctx context.Context, account string) (docstore.Client, error) {
	const op = docstore.OpResolve
	endpoint, err := docstore.Endpoint(account, r.domain)
	if err != nil {
		return nil, err
	}
	if r.endpoint != nil {
		endpoint = r.endpoint(account)
	}

	key, err := r.keys.AccountKey()
	if err != nil {
		return nil, docstore.Wrap(op, err)
	}

	if key != "" {
		cred, err := azcosmos.NewKeyCredential(key)
		if err != nil {
			return nil, &docstore.Error{Kind: docstore.KindAuthFailure, Op: op,
				Err: docstore.RedactError(fmt.Errorf("key credential: %w", err), key)}
		}
		client, err := azcosmos.NewClientWithKey(endpoint, cred, r.clientOptions)
		if err != nil {
			return nil, &docstore.Error{Kind: docstore.KindStore, Op: op, Err: docstore.RedactError(err, key)}
		}
		return &Client{c: client, pageSize: r.pageSize}, nil
	}

	cred := r.tokenCredential
	if cred == nil {
		dac, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, &docstore.Error{Kind: docstore.KindAuthFailure, Op: op, Err: fmt.Errorf("ambient identity: %w", err)}
		}
		cred = dac
	}
	client, err := azcosmos.NewClient(endpoint, identity{cred}, r.clientOptions)
	if err != nil {
		return nil, &docstore.Error{Kind: docstore.KindStore, Op: op, Err: err}
	}
	return &Client{c: client, pageSize: r.pageSize}, nil
}

// identity marks token acquisition failures as auth failures. The SDK
// fetches the token lazily, so the failure otherwise reaches classify as a
// plain wrapped error.
type identity struct {
	cred azcore.TokenCredential
}

func (i identity) GetToken(ctx context.Context, opts policy.TokenRequestOptions) (azcore.AccessToken, error) {
	tok, err := i.cred.GetToken(ctx, opts)
	if err != nil && ctx.Err() == nil {
		return tok, &docstore.Error{Kind: docstore.KindAuthFailure, Op: docstore.OpResolve,
			Err: fmt.Errorf("ambient identity: %w", err)}
	}
	return tok, err
}

// classify maps SDK failures onto the docstore taxonomy.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return docstore.FromStatus(op, respErr.StatusCode, err)
	}
	var authErr *azidentity.AuthenticationFailedError
	if errors.As(err, &authErr) {
		return &docstore.Error{Kind: docstore.KindAuthFailure, Op: op, Err: err}
	}
	return docstore.Wrap(op, err)
}

// pager adapts an SDK pager, converting each response into a docstore page.
type pager[R, T any] struct {
	op      string
	inner   *runtime.Pager[R]
	convert func(R) docstore.Page[T]
}

func (p *pager[R, T]) More() bool { return p.inner.More() }

func (p *pager[R, T]) NextPage(ctx context.Context) (docstore.Page[T], error) {
	resp, err := p.inner.NextPage(ctx)
	if err != nil {
		return docstore.Page[T]{}, classify(p.op, err)
	}
	return p.convert(resp), nil
}

// Client wraps *azcosmos.Client.
type Client struct {
	c        *azcosmos.Client
	pageSize int32
}

// DatabasesPager implements docstore.Client.
func (c *Client) DatabasesPager() docstore.Pager[string] {
	return &pager[azcosmos.QueryDatabasesResponse, string]{
		op:    docstore.OpListDatabases,
		inner: c.c.NewQueryDatabasesPager(listDatabasesQuery, nil),
		convert: func(resp azcosmos.QueryDatabasesResponse) docstore.Page[string] {
			names := make([]string, 0, len(resp.Databases))
			for _, db := range resp.Databases {
				names = append(names, db.ID)
			}
			return docstore.Page[string]{Items: names, RequestCharge: float64(resp.RequestCharge)}
		},
	}
}

// Database implements docstore.Client.
func (c *Client) Database(name string) (docstore.Database, error) {
	db, err := c.c.NewDatabase(name)
	if err != nil {
		return nil, docstore.Wrap(docstore.OpListContainers, err)
	}
	return &Database{db: db, pageSize: c.pageSize}, nil
}

// Database wraps *azcosmos.DatabaseClient.
type Database struct {
	db       *azcosmos.DatabaseClient
	pageSize int32
}

// ContainersPager implements docstore.Database.
func (d *Database) ContainersPager() docstore.Pager[string] {
	return &pager[azcosmos.QueryContainersResponse, string]{
		op:    docstore.OpListContainers,
		inner: d.db.NewQueryContainersPager(listContainersQuery, nil),
		convert: func(resp azcosmos.QueryContainersResponse) docstore.Page[string] {
			names := make([]string, 0, len(resp.Containers))
			for _, c := range resp.Containers {
				names = append(names, c.ID)
			}
			return docstore.Page[string]{Items: names, RequestCharge: float64(resp.RequestCharge)}
		},
	}
}

// Container implements docstore.Database.
func (d *Database) Container(name string) (docstore.Container, error) {
	c, err := d.db.NewContainer(name)
	if err != nil {
		return nil, docstore.Wrap(docstore.OpReadContainer, err)
	}
	return &Container{c: c, pageSize: d.pageSize}, nil
}

// CreateContainer implements docstore.Database. Throughput, when set, is
// provisioned as manual throughput on the container.
func (d *Database) CreateContainer(ctx context.Context, spec docstore.ContainerSpec) error {
	props := azcosmos.ContainerProperties{
		ID: spec.ID,
		PartitionKeyDefinition: azcosmos.PartitionKeyDefinition{
			Paths: []string{spec.PartitionKeyPath},
		},
	}
	var opts *azcosmos.CreateContainerOptions
	if spec.Throughput != nil {
		tp := azcosmos.NewManualThroughputProperties(*spec.Throughput)
		opts = &azcosmos.CreateContainerOptions{ThroughputProperties: &tp}
	}
	_, err := d.db.CreateContainer(ctx, props, opts)
	return classify(docstore.OpCreateContainer, err)
}

// Container wraps *azcosmos.ContainerClient.
type Container struct {
	c        *azcosmos.ContainerClient
	pageSize int32
}

// Metadata implements docstore.Container.
func (c *Container) Metadata(ctx context.Context) (docstore.ContainerMetadata, error) {
	resp, err := c.c.Read(ctx, nil)
	if err != nil {
		return docstore.ContainerMetadata{}, classify(docstore.OpReadContainer, err)
	}
	props := resp.ContainerProperties
	if props == nil {
		return docstore.ContainerMetadata{}, docstore.Errorf(docstore.KindStore, docstore.OpReadContainer, "response carried no container properties")
	}
	return docstore.ContainerMetadata{
		ID:                       props.ID,
		DefaultTTL:               props.DefaultTimeToLive,
		IndexingPolicy:           props.IndexingPolicy,
		PartitionKeyDefinition:   props.PartitionKeyDefinition,
		ConflictResolutionPolicy: props.ConflictResolutionPolicy,
	}, nil
}

// CreateItem implements docstore.Container.
func (c *Container) CreateItem(ctx context.Context, partitionKey string, item []byte) error {
	_, err := c.c.CreateItem(ctx, azcosmos.NewPartitionKeyString(partitionKey), item, nil)
	return classify(docstore.OpCreateItem, err)
}

// ReadItem implements docstore.Container.
func (c *Container) ReadItem(ctx context.Context, partitionKey, id string) (json.RawMessage, error) {
	resp, err := c.c.ReadItem(ctx, azcosmos.NewPartitionKeyString(partitionKey), id, nil)
	if err != nil {
		return nil, classify(docstore.OpReadItem, err)
	}
	return json.RawMessage(resp.Value), nil
}

// QueryItems implements docstore.Container. A nil partitionKey issues a
// cross-partition query.
func (c *Container) QueryItems(query string, partitionKey *string) docstore.Pager[json.RawMessage] {
	pk := azcosmos.PartitionKey{}
	if partitionKey != nil {
		pk = azcosmos.NewPartitionKeyString(*partitionKey)
	}
	return &pager[azcosmos.QueryItemsResponse, json.RawMessage]{
		op:    docstore.OpQueryItems,
		inner: c.c.NewQueryItemsPager(query, pk, &azcosmos.QueryOptions{PageSizeHint: c.pageSize}),
		convert: func(resp azcosmos.QueryItemsResponse) docstore.Page[json.RawMessage] {
			items := make([]json.RawMessage, 0, len(resp.Items))
			for _, it := range resp.Items {
				items = append(items, json.RawMessage(it))
			}
			page := docstore.Page[json.RawMessage]{Items: items, RequestCharge: float64(resp.RequestCharge)}
			if resp.QueryMetrics != nil {
				page.Metrics = *resp.QueryMetrics
			}
			return page
		},
	}
}

var (
	_ docstore.Resolver  = (*Resolver)(nil)
	_ docstore.Client    = (*Client)(nil)
	_ docstore.Database  = (*Database)(nil)
	_ docstore.Container = (*Container)(nil)
)
