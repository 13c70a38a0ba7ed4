package docstore

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// CachingResolver reuses one Client per account. Concurrent first calls
// for the same account share a single resolution. Entries are dropped by
// Invalidate or InvalidateAll, e.g. after a credential rotation.
type CachingResolver struct {
	inner Resolver

	mu         sync.RWMutex
	clients    map[string]Client
	generation uint64

	group singleflight.Group
}

// NewCachingResolver wraps inner.
func NewCachingResolver(inner Resolver) *CachingResolver {
	return &CachingResolver{
		inner:   inner,
		clients: make(map[string]Client),
	}
}

// Resolve returns the cached client for account, resolving it on first use.
// Failed resolutions are not cached.
func (c *CachingResolver) Resolve(ctx context.Context, account string) (Client, error) {
	c.mu.RLock()
	client, ok := c.clients[account]
	gen := c.generation
	c.mu.RUnlock()
	if ok {
		return client, nil
	}

	v, err, _ := c.group.Do(account, func() (any, error) {
		c.mu.RLock()
		client, ok := c.clients[account]
		c.mu.RUnlock()
		if ok {
			return client, nil
		}
		client, err := c.inner.Resolve(ctx, account)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		// Skip caching if an invalidation raced with this resolution.
		if c.generation == gen {
			c.clients[account] = client
		}
		c.mu.Unlock()
		return client, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Client), nil
}

// Invalidate drops the cached client for account. A dropped client that
// holds connections is disconnected in the background.
func (c *CachingResolver) Invalidate(account string) {
	c.mu.Lock()
	client, ok := c.clients[account]
	delete(c.clients, account)
	c.generation++
	c.mu.Unlock()
	c.group.Forget(account)
	if ok {
		go disconnectAll(context.Background(), []Client{client})
	}
}

// InvalidateAll drops every cached client.
func (c *CachingResolver) InvalidateAll() {
	dropped := c.drain()
	go disconnectAll(context.Background(), dropped)
}

// Close drops every cached client and disconnects those that hold
// connections, waiting until ctx is done at the latest.
func (c *CachingResolver) Close(ctx context.Context) error {
	return disconnectAll(ctx, c.drain())
}

func (c *CachingResolver) drain() []Client {
	c.mu.Lock()
	accounts := make([]string, 0, len(c.clients))
	dropped := make([]Client, 0, len(c.clients))
	for account, client := range c.clients {
		accounts = append(accounts, account)
		dropped = append(dropped, client)
	}
	c.clients = make(map[string]Client)
	c.generation++
	c.mu.Unlock()
	for _, account := range accounts {
		c.group.Forget(account)
	}
	return dropped
}

// disconnector is implemented by clients that own network connections,
// such as the Mongo backend's.
type disconnector interface {
	Disconnect(ctx context.Context) error
}

var disconnectTimeout = 10 * time.Second

func disconnectAll(ctx context.Context, clients []Client) error {
	ctx, cancel := context.WithTimeout(ctx, disconnectTimeout)
	defer cancel()
	var errs []error
	for _, client := range clients {
		if d, ok := client.(disconnector); ok {
			errs = append(errs, d.Disconnect(ctx))
		}
	}
	return errors.Join(errs...)
}

// Accounts returns the accounts with a cached client in sorted order.
func (c *CachingResolver) Accounts() []string {
	c.mu.RLock()
	out := make([]string, 0, len(c.clients))
	for account := range c.clients {
		out = append(out, account)
	}
	c.mu.RUnlock()
	sort.Strings(out)
	return out
}
