package search

import (
	"errors"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// Doc is one searchable tool descriptor.
type Doc struct {
	ID          string
	Name        string
	Description string
	Tags        []string
	// Text is extra searchable content such as parameter names and notes.
	Text string
}

// BM25Config tunes ranking. Zero values select the defaults.
type BM25Config struct {
	NameBoost     float64
	TagsBoost     float64
	MaxDocs       int
	MaxDocTextLen int
}

// ErrClosed is returned by Search after Close.
var ErrClosed = errors.New("search: searcher closed")

// BM25Searcher ranks Docs with an in-memory Bleve index.
type BM25Searcher struct {
	cfg BM25Config

	mu          sync.RWMutex
	index       bleve.Index
	fingerprint string
	byID        map[string]Doc
	closed      bool
}

// NewBM25Searcher returns a searcher with cfg's boosts and limits.
func NewBM25Searcher(cfg BM25Config) *BM25Searcher {
	if cfg.NameBoost <= 0 {
		cfg.NameBoost = 3
	}
	if cfg.TagsBoost <= 0 {
		cfg.TagsBoost = 2
	}
	return &BM25Searcher{cfg: cfg}
}

// indexed is the shape stored in Bleve. Words holds the name split on
// underscores so "query" finds "execute_query".
type indexed struct {
	Name        string `json:"name"`
	Words       string `json:"words"`
	Description string `json:"description"`
	Tags        string `json:"tags"`
	Text        string `json:"text"`
}

// Search returns up to limit docs matching q.
func (s *BM25Searcher) Search(q string, limit int, docs []Doc) ([]Doc, error) {
	if s.cfg.MaxDocs > 0 && len(docs) > s.cfg.MaxDocs {
		docs = docs[:s.cfg.MaxDocs]
	}
	if limit <= 0 || limit > len(docs) {
		limit = len(docs)
	}
	q = strings.TrimSpace(q)
	if q == "" {
		out := make([]Doc, limit)
		copy(out, docs[:limit])
		return out, nil
	}

	if err := s.ensureIndex(docs); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	req := bleve.NewSearchRequestOptions(s.buildQuery(q), limit, 0, false)
	req.SortBy([]string{"-_score", "_id"})
	res, err := s.index.Search(req)
	if err != nil {
		return nil, err
	}
	out := make([]Doc, 0, len(res.Hits))
	for _, hit := range res.Hits {
		if doc, ok := s.byID[hit.ID]; ok {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (s *BM25Searcher) buildQuery(q string) query.Query {
	name := bleve.NewMatchQuery(q)
	name.SetField("name")
	name.SetBoost(s.cfg.NameBoost)

	words := bleve.NewMatchQuery(q)
	words.SetField("words")
	words.SetBoost(s.cfg.NameBoost)

	tags := bleve.NewMatchQuery(q)
	tags.SetField("tags")
	tags.SetBoost(s.cfg.TagsBoost)

	desc := bleve.NewMatchQuery(q)
	desc.SetField("description")

	text := bleve.NewMatchQuery(q)
	text.SetField("text")

	return bleve.NewDisjunctionQuery(name, words, tags, desc, text)
}

func (s *BM25Searcher) ensureIndex(docs []Doc) error {
	fp := computeFingerprint(docs)

	s.mu.RLock()
	current := s.index != nil && s.fingerprint == fp
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	if current {
		return nil
	}

	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return err
	}
	byID := make(map[string]Doc, len(docs))
	batch := idx.NewBatch()
	for _, doc := range docs {
		desc := doc.Description
		if s.cfg.MaxDocTextLen > 0 && len(desc) > s.cfg.MaxDocTextLen {
			desc = desc[:s.cfg.MaxDocTextLen]
		}
		if err := batch.Index(doc.ID, indexed{
			Name:        doc.Name,
			Words:       strings.ReplaceAll(doc.Name, "_", " "),
			Description: desc,
			Tags:        strings.Join(doc.Tags, " "),
			Text:        doc.Text,
		}); err != nil {
			_ = idx.Close()
			return err
		}
		byID[doc.ID] = doc
	}
	if err := idx.Batch(batch); err != nil {
		_ = idx.Close()
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		_ = idx.Close()
		return ErrClosed
	}
	if s.index != nil {
		_ = s.index.Close()
	}
	s.index = idx
	s.fingerprint = fp
	s.byID = byID
	return nil
}

// Close releases the index.
func (s *BM25Searcher) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.index == nil {
		return nil
	}
	return s.index.Close()
}
