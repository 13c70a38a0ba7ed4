package search

import (
	"testing"
)

func toolDocs() []Doc {
	return []Doc{
		{ID: "list_databases", Name: "list_databases", Description: "List all databases in an account", Tags: []string{"read"}},
		{ID: "list_containers", Name: "list_containers", Description: "List all containers in a database", Tags: []string{"read"}},
		{ID: "execute_query", Name: "execute_query", Description: "Run a SQL query against a container", Tags: []string{"read", "query"}},
		{ID: "add_item_to_container", Name: "add_item_to_container", Description: "Insert a JSON document", Tags: []string{"write"}},
	}
}

func TestFingerprint_Stable(t *testing.T) {
	docs := toolDocs()
	if computeFingerprint(docs) != computeFingerprint(docs) {
		t.Error("same docs produced different fingerprints")
	}
	if computeFingerprint(docs) == "" {
		t.Error("fingerprint is empty")
	}
}

func TestFingerprint_FieldsAndOrder(t *testing.T) {
	base := Doc{ID: "a", Name: "a", Description: "d", Tags: []string{"x", "y"}, Text: "t"}
	fp := computeFingerprint([]Doc{base})

	variations := []Doc{
		{ID: "b", Name: base.Name, Description: base.Description, Tags: base.Tags, Text: base.Text},
		{ID: base.ID, Name: "b", Description: base.Description, Tags: base.Tags, Text: base.Text},
		{ID: base.ID, Name: base.Name, Description: "changed", Tags: base.Tags, Text: base.Text},
		{ID: base.ID, Name: base.Name, Description: base.Description, Tags: []string{"z"}, Text: base.Text},
		{ID: base.ID, Name: base.Name, Description: base.Description, Tags: base.Tags, Text: "changed"},
	}
	for i, v := range variations {
		if computeFingerprint([]Doc{v}) == fp {
			t.Errorf("variation %d did not change the fingerprint", i)
		}
	}

	reordered := base
	reordered.Tags = []string{"y", "x"}
	if computeFingerprint([]Doc{reordered}) != fp {
		t.Error("tag order should not matter")
	}

	other := Doc{ID: "z"}
	if computeFingerprint([]Doc{base, other}) == computeFingerprint([]Doc{other, base}) {
		t.Error("document order should matter")
	}
}

func TestSearch_RanksNameMatches(t *testing.T) {
	s := NewBM25Searcher(BM25Config{})
	defer func() {
		if err := s.Close(); err != nil {
			t.Fatalf("close failed: %v", err)
		}
	}()

	got, err := s.Search("query", 10, toolDocs())
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(got) == 0 || got[0].ID != "execute_query" {
		t.Fatalf("expected execute_query first, got %v", got)
	}

	got, err = s.Search("containers", 10, toolDocs())
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(got) == 0 || got[0].ID != "list_containers" {
		t.Errorf("expected list_containers first, got %v", got)
	}
}

func TestSearch_EmptyQueryKeepsOrder(t *testing.T) {
	s := NewBM25Searcher(BM25Config{})
	defer func() { _ = s.Close() }()

	got, err := s.Search("  ", 2, toolDocs())
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(got) != 2 || got[0].ID != "list_databases" || got[1].ID != "list_containers" {
		t.Errorf("unexpected order: %v", got)
	}
}

func TestSearch_RebuildsOnChange(t *testing.T) {
	s := NewBM25Searcher(BM25Config{})
	defer func() { _ = s.Close() }()

	if _, err := s.Search("query", 5, toolDocs()); err != nil {
		t.Fatal(err)
	}
	first := s.fingerprint

	docs := append(toolDocs(), Doc{ID: "read_item", Name: "read_item", Description: "Point read of one item"})
	got, err := s.Search("point read", 5, docs)
	if err != nil {
		t.Fatal(err)
	}
	if s.fingerprint == first {
		t.Error("index was not rebuilt")
	}
	if len(got) == 0 || got[0].ID != "read_item" {
		t.Errorf("expected read_item, got %v", got)
	}
}

func TestSearch_AfterClose(t *testing.T) {
	s := NewBM25Searcher(BM25Config{})
	_ = s.Close()
	if _, err := s.Search("query", 5, toolDocs()); err != ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}
