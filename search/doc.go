// Package search ranks tool descriptors for discovery.
//
// The primary type is [BM25Searcher], backed by an in-memory Bleve index:
//
//	s := search.NewBM25Searcher(search.BM25Config{})
//	defer s.Close()
//	hits, err := s.Search("query items", 5, docs)
//
// # Configuration
//
// [BM25Config] sets field boosts and safety limits:
//
//	cfg := search.BM25Config{
//	    NameBoost:     3,    // Boost name matches (default: 3)
//	    TagsBoost:     2,    // Boost tag matches (default: 2)
//	    MaxDocs:       1000, // Limit documents to index (0 = unlimited)
//	    MaxDocTextLen: 5000, // Truncate long descriptions (0 = unlimited)
//	}
//
// # Thread Safety
//
// BM25Searcher is safe for concurrent use. The Bleve index is cached by
// document fingerprint and only rebuilt when the document set changes.
//
// # Behavior
//
// Empty queries return the first N documents in the order given.
// Non-empty queries are ranked by score, ties broken by ID ascending.
package search
