package docstore

import (
	"context"
	"encoding/json"
)

// Resolver produces a Client for an account. Implementations choose the
// authentication strategy; callers only supply the account name.
type Resolver interface {
	Resolve(ctx context.Context, account string) (Client, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, account string) (Client, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(ctx context.Context, account string) (Client, error) {
	return f(ctx, account)
}

// Client is an authenticated handle to one account. Implementations must be
// safe for concurrent use.
type Client interface {
	// DatabasesPager lists database names in store order.
	DatabasesPager() Pager[string]
	// Database returns a handle without contacting the store.
	Database(name string) (Database, error)
}

// Database is a handle to one database within an account.
type Database interface {
	ContainersPager() Pager[string]
	Container(name string) (Container, error)
	CreateContainer(ctx context.Context, spec ContainerSpec) error
}

// Container is a handle to one container within a database.
type Container interface {
	// Metadata performs a single metadata read.
	Metadata(ctx context.Context) (ContainerMetadata, error)
	// CreateItem inserts the raw document under partitionKey.
	CreateItem(ctx context.Context, partitionKey string, item []byte) error
	// ReadItem is a point read by id and partition key.
	ReadItem(ctx context.Context, partitionKey, id string) (json.RawMessage, error)
	// QueryItems runs query scoped to partitionKey, or across partitions
	// when partitionKey is nil.
	QueryItems(query string, partitionKey *string) Pager[json.RawMessage]
}

// ContainerSpec describes a container to create.
type ContainerSpec struct {
	ID               string
	PartitionKeyPath string
	// Throughput requests manual provisioned throughput when non-nil.
	Throughput *int32
}

// ContainerMetadata is the container descriptor as returned by the store.
// Policy fields are passed through without interpretation.
type ContainerMetadata struct {
	ID                       string `json:"container_id"`
	DefaultTTL               *int32 `json:"default_ttl"`
	IndexingPolicy           any    `json:"indexing_policy"`
	PartitionKeyDefinition   any    `json:"partition_key_definition"`
	ConflictResolutionPolicy any    `json:"conflict_resolution_policy"`
}
