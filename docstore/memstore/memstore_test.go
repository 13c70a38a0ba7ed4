package memstore

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/jonwraymond/cosmosmcp/docstore"
)

func setup(t *testing.T, opts ...Option) (*Store, docstore.Container) {
	t.Helper()
	ctx := context.Background()
	s := New(opts...)
	s.CreateDatabase("acct", "db")
	client, err := s.Resolve(ctx, "acct")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	db, _ := client.Database("db")
	if err := db.CreateContainer(ctx, docstore.ContainerSpec{ID: "items", PartitionKeyPath: "/pk"}); err != nil {
		t.Fatalf("CreateContainer: %v", err)
	}
	c, _ := db.Container("items")
	return s, c
}

func TestListingsPreserveOrder(t *testing.T) {
	ctx := context.Background()
	s := New(WithPageSize(1))
	for _, name := range []string{"zeta", "alpha", "mid"} {
		s.CreateDatabase("acct", name)
	}
	client, _ := s.Resolve(ctx, "acct")

	got, err := docstore.Collect(ctx, docstore.OpListDatabases, client.DatabasesPager())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	want := []string{"zeta", "alpha", "mid"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v", got, want)
		}
	}
}

func TestListContainers_MissingDatabase(t *testing.T) {
	ctx := context.Background()
	s := New()
	client, _ := s.Resolve(ctx, "acct")
	db, _ := client.Database("nope")
	_, err := docstore.Collect(ctx, docstore.OpListContainers, db.ContainersPager())
	if !errors.Is(err, docstore.KindNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestCreateContainer_Duplicate(t *testing.T) {
	ctx := context.Background()
	s, _ := setup(t)
	client, _ := s.Resolve(ctx, "acct")
	db, _ := client.Database("db")
	err := db.CreateContainer(ctx, docstore.ContainerSpec{ID: "items", PartitionKeyPath: "/pk"})
	if !errors.Is(err, docstore.KindAlreadyExists) {
		t.Fatalf("expected AlreadyExists, got %v", err)
	}
}

func TestCreateContainer_Throughput(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.CreateDatabase("acct", "db")
	client, _ := s.Resolve(ctx, "acct")
	db, _ := client.Database("db")
	tp := int32(800)
	if err := db.CreateContainer(ctx, docstore.ContainerSpec{ID: "c", PartitionKeyPath: "/id", Throughput: &tp}); err != nil {
		t.Fatalf("CreateContainer: %v", err)
	}
	if got, ok := s.Throughput("acct", "db", "c"); !ok || got != 800 {
		t.Errorf("Throughput = %d, %v", got, ok)
	}

	low := int32(100)
	err := db.CreateContainer(ctx, docstore.ContainerSpec{ID: "d", PartitionKeyPath: "/id", Throughput: &low})
	if docstore.KindOf(err) != docstore.KindStore {
		t.Errorf("expected store error for low throughput, got %v", err)
	}
}

func TestItems_RoundTrip(t *testing.T) {
	ctx := context.Background()
	_, c := setup(t)

	raw := []byte(`{"id":"1","pk":"a",  "n":1}`)
	if err := c.CreateItem(ctx, "a", raw); err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	got, err := c.ReadItem(ctx, "a", "1")
	if err != nil {
		t.Fatalf("ReadItem: %v", err)
	}
	if string(got) != string(raw) {
		t.Errorf("ReadItem = %s, want verbatim %s", got, raw)
	}

	_, err = c.ReadItem(ctx, "b", "1")
	if !errors.Is(err, docstore.KindNotFound) {
		t.Errorf("expected NotFound for other partition, got %v", err)
	}
}

func TestCreateItem_Rejections(t *testing.T) {
	ctx := context.Background()
	_, c := setup(t)
	if err := c.CreateItem(ctx, "a", []byte(`{"id":"1","pk":"a"}`)); err != nil {
		t.Fatalf("CreateItem: %v", err)
	}

	cases := map[string]struct {
		pk   string
		item string
	}{
		"not json":  {"a", `nope`},
		"array":     {"a", `[1]`},
		"no id":     {"a", `{"pk":"a"}`},
		"mismatch":  {"b", `{"id":"2","pk":"a"}`},
		"duplicate": {"a", `{"id":"1","pk":"a"}`},
	}
	for name, tc := range cases {
		err := c.CreateItem(ctx, tc.pk, []byte(tc.item))
		if docstore.KindOf(err) != docstore.KindStore {
			t.Errorf("%s: expected store error, got %v", name, err)
		}
	}
}

func TestQueryItems_ScopedAndCrossPartition(t *testing.T) {
	ctx := context.Background()
	_, c := setup(t, WithPageSize(1))
	for _, item := range []string{
		`{"id":"1","pk":"a","n":1}`,
		`{"id":"2","pk":"b","n":2}`,
		`{"id":"3","pk":"a","n":3}`,
	} {
		var doc map[string]any
		_ = json.Unmarshal([]byte(item), &doc)
		if err := c.CreateItem(ctx, doc["pk"].(string), []byte(item)); err != nil {
			t.Fatalf("CreateItem: %v", err)
		}
	}

	all, err := docstore.Collect(ctx, docstore.OpQueryItems, c.QueryItems("SELECT * FROM c", nil))
	if err != nil {
		t.Fatalf("cross-partition: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("cross-partition got %d items, want 3", len(all))
	}

	pk := "a"
	scoped, err := docstore.Collect(ctx, docstore.OpQueryItems, c.QueryItems("SELECT VALUE c.id FROM c", &pk))
	if err != nil {
		t.Fatalf("scoped: %v", err)
	}
	if len(scoped) != 2 || string(scoped[0]) != `"1"` || string(scoped[1]) != `"3"` {
		t.Errorf("scoped = %s", scoped)
	}

	filtered, err := docstore.Collect(ctx, docstore.OpQueryItems, c.QueryItems("SELECT c.id FROM c WHERE c.n >= 2", nil))
	if err != nil {
		t.Fatalf("filtered: %v", err)
	}
	if len(filtered) != 2 || string(filtered[0]) != `{"id":"2"}` {
		t.Errorf("filtered = %s", filtered)
	}
}

func TestQueryItems_Metrics(t *testing.T) {
	ctx := context.Background()
	_, c := setup(t)
	_ = c.CreateItem(ctx, "a", []byte(`{"id":"1","pk":"a"}`))

	p := c.QueryItems("SELECT * FROM c", nil)
	page, err := p.NextPage(ctx)
	if err != nil {
		t.Fatalf("NextPage: %v", err)
	}
	if page.Metrics != "retrievedDocumentCount=1;outputDocumentCount=1" {
		t.Errorf("Metrics = %q", page.Metrics)
	}
}

func TestQueryItems_BadQuery(t *testing.T) {
	ctx := context.Background()
	_, c := setup(t)
	_, err := docstore.Collect(ctx, docstore.OpQueryItems, c.QueryItems("SELEKT", nil))
	if docstore.KindOf(err) != docstore.KindStore {
		t.Errorf("expected store error, got %v", err)
	}
}

func TestMetadata(t *testing.T) {
	ctx := context.Background()
	_, c := setup(t)
	md, err := c.Metadata(ctx)
	if err != nil {
		t.Fatalf("Metadata: %v", err)
	}
	if md.ID != "items" || md.DefaultTTL != nil {
		t.Errorf("unexpected metadata %+v", md)
	}
	pkd, _ := md.PartitionKeyDefinition.(map[string]any)
	if paths, _ := pkd["paths"].([]any); len(paths) != 1 || paths[0] != "/pk" {
		t.Errorf("partition key definition = %v", md.PartitionKeyDefinition)
	}
}

func TestDenyAndCalls(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.Deny("locked")
	if _, err := s.Resolve(ctx, "locked"); !errors.Is(err, docstore.KindAuthFailure) {
		t.Errorf("expected AuthFailure, got %v", err)
	}
	if s.Calls() != 1 {
		t.Errorf("Calls = %d, want 1", s.Calls())
	}
}

func TestPageHookCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := New(WithPageSize(1), WithPageHook(func(op string, page int) {
		if page == 1 {
			cancel()
		}
	}))
	for _, name := range []string{"a", "b", "c"} {
		s.CreateDatabase("acct", name)
	}
	client, _ := s.Resolve(ctx, "acct")
	_, err := docstore.Collect(ctx, docstore.OpListDatabases, client.DatabasesPager())
	if !errors.Is(err, docstore.KindCancelled) {
		t.Fatalf("expected Cancelled, got %v", err)
	}
}
