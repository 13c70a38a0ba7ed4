// Package docstore defines the document-store client contract used by the
// tool layer: account resolution, database/container/item handles, and
// lazily paged listings and queries.
//
// Backends live in subpackages:
//   - cosmos: Azure Cosmos DB SQL API (azcosmos)
//   - mongostore: Azure Cosmos DB for MongoDB (mongo-driver)
//   - memstore: in-process store for tests and offline use
//
// # Credentials
//
// A Resolver chooses its authentication strategy without caller
// involvement. The Cosmos resolver uses an explicit key when a KeySource
// yields one (COSMOSDB_ACCOUNT_KEY by default) and otherwise falls back to
// the ambient Azure identity chain. Account names are validated by
// ValidateAccount before being placed into a fixed endpoint template.
//
// # Caching
//
// CachingResolver keeps one Client per account and is safe for concurrent
// use. KeyWatcher drops the cache when a key file is rotated.
//
// # Errors
//
// Every failure is an *Error carrying one Kind from a closed set. Use
// errors.Is(err, KindNotFound) and friends, or KindOf(err).
//
// # Paging
//
// Listings and queries return a Pager. Drain consumes it exactly once,
// checking for cancellation between pages.
package docstore
