package tools

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/cosmosmcp/docstore"
	"github.com/jonwraymond/cosmosmcp/docstore/memstore"
	"github.com/jonwraymond/cosmosmcp/registry"
)

const (
	testAccount  = "acct"
	testDatabase = "testDB"
)

func newHarness(t *testing.T, opts ...memstore.Option) (*registry.Registry, *memstore.Store) {
	t.Helper()
	store := memstore.New(opts...)
	reg := registry.New(
		registry.Config{ServerInfo: registry.ServerInfo{Name: "cosmosmcp-test", Version: "test"}},
		registry.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	require.NoError(t, Register(reg, store))
	return reg, store
}

func call(t *testing.T, reg *registry.Registry, name string, args map[string]any) (any, error) {
	t.Helper()
	return reg.Execute(context.Background(), name, args)
}

// decode renders a tool result the way the transports do and unmarshals it.
func decode(t *testing.T, result any, out any) {
	t.Helper()
	text, err := registry.RenderResult(result)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(text), out))
}

func args(kv ...any) map[string]any {
	m := map[string]any{"account": testAccount, "database": testDatabase}
	for i := 0; i+1 < len(kv); i += 2 {
		m[kv[i].(string)] = kv[i+1]
	}
	return m
}

func createContainer(t *testing.T, reg *registry.Registry, name, pkPath string) {
	t.Helper()
	_, err := call(t, reg, CreateContainer, args("container", name, "partitionKeyPath", pkPath))
	require.NoError(t, err)
}

func addItem(t *testing.T, reg *registry.Registry, container, pk string, item any) {
	t.Helper()
	_, err := call(t, reg, AddItemToContainer, args("container", container, "partitionKey", pk, "item", item))
	require.NoError(t, err)
}

func queryItems(t *testing.T, reg *registry.Registry, container, q string, pk *string) QueryResult {
	t.Helper()
	a := args("container", container, "query", q)
	if pk != nil {
		a["partitionKey"] = *pk
	}
	res, err := call(t, reg, ExecuteQuery, a)
	require.NoError(t, err)
	var out QueryResult
	decode(t, res, &out)
	return out
}

func TestToolNamesAndRequiredParams(t *testing.T) {
	reg, _ := newHarness(t)

	want := map[string][]string{
		ListDatabases:         {"account"},
		ListContainers:        {"account", "database"},
		ReadContainerMetadata: {"account", "database", "container"},
		CreateContainer:       {"account", "database", "container", "partitionKeyPath"},
		AddItemToContainer:    {"account", "database", "container", "partitionKey", "item"},
		ReadItem:              {"account", "database", "container", "itemID", "partitionKey"},
		ExecuteQuery:          {"account", "database", "container", "query"},
	}

	tools := reg.List()
	require.Len(t, tools, len(want))
	for _, tool := range tools {
		var required []string
		for _, p := range tool.Params {
			if p.Required {
				required = append(required, p.Name)
			}
		}
		assert.Equal(t, want[tool.Name], required, tool.Name)
	}
}

// validArgs holds a complete, valid argument set per tool.
var validArgs = map[string]map[string]any{
	ListDatabases:         {"account": testAccount},
	ListContainers:        {"account": testAccount, "database": testDatabase},
	ReadContainerMetadata: {"account": testAccount, "database": testDatabase, "container": "c1"},
	CreateContainer:       {"account": testAccount, "database": testDatabase, "container": "c1", "partitionKeyPath": "/id"},
	AddItemToContainer:    {"account": testAccount, "database": testDatabase, "container": "c1", "partitionKey": "u1", "item": map[string]any{"id": "u1"}},
	ReadItem:              {"account": testAccount, "database": testDatabase, "container": "c1", "itemID": "u1", "partitionKey": "u1"},
	ExecuteQuery:          {"account": testAccount, "database": testDatabase, "container": "c1", "query": "SELECT * FROM c"},
}

func TestMissingParameter_NoStoreCalls(t *testing.T) {
	reg, store := newHarness(t)

	for _, tool := range reg.List() {
		for _, p := range tool.Params {
			if !p.Required {
				continue
			}
			for _, blank := range []any{nil, "", "  "} {
				a := make(map[string]any, len(validArgs[tool.Name]))
				for k, v := range validArgs[tool.Name] {
					a[k] = v
				}
				if blank == nil {
					delete(a, p.Name)
				} else {
					a[p.Name] = blank
				}

				_, err := call(t, reg, tool.Name, a)
				var e *docstore.Error
				require.ErrorAs(t, err, &e, "%s without %s", tool.Name, p.Name)
				assert.Equal(t, docstore.KindMissingParameter, e.Kind)
				assert.Equal(t, p.Name, e.Param)
				assert.Equal(t, tool.Name, e.Tool)
				assert.Contains(t, err.Error(), tool.Name)
				assert.Contains(t, err.Error(), p.Name)
			}
		}
	}
	assert.Zero(t, store.Calls(), "validation failures must not reach the store")
}

func TestMissingParameter_DeclarationOrder(t *testing.T) {
	reg, store := newHarness(t)

	_, err := call(t, reg, ReadItem, map[string]any{"partitionKey": "p", "container": "c"})
	var e *docstore.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "account", e.Param)

	_, err = call(t, reg, ReadItem, map[string]any{"account": testAccount, "database": "d", "container": "c", "partitionKey": "p"})
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "itemID", e.Param)
	assert.Zero(t, store.Calls())
}

func TestInvalidParameter_NoStoreCalls(t *testing.T) {
	reg, store := newHarness(t)

	_, err := call(t, reg, ListDatabases, map[string]any{"account": "evil.example.com/x"})
	assert.ErrorIs(t, err, docstore.KindInvalidParameter)

	_, err = call(t, reg, CreateContainer, args("container", "c1", "partitionKeyPath", "/id", "throughput", "lots"))
	var e *docstore.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, docstore.KindInvalidParameter, e.Kind)
	assert.Equal(t, "throughput", e.Param)

	_, err = call(t, reg, AddItemToContainer, args("container", "c1", "partitionKey", "u1", "item", "{not json"))
	assert.ErrorIs(t, err, docstore.KindInvalidParameter)

	assert.Zero(t, store.Calls())
}

func TestListDatabases_Idempotent(t *testing.T) {
	reg, store := newHarness(t, memstore.WithPageSize(2))
	for _, name := range []string{"zeta", "alpha", "mid", testDatabase, "omega"} {
		store.CreateDatabase(testAccount, name)
	}

	first, err := call(t, reg, ListDatabases, map[string]any{"account": testAccount})
	require.NoError(t, err)
	second, err := call(t, reg, ListDatabases, map[string]any{"account": testAccount})
	require.NoError(t, err)

	var a, b ListDatabasesResult
	decode(t, first, &a)
	decode(t, second, &b)
	assert.Len(t, a.Databases, 5)
	assert.ElementsMatch(t, a.Databases, b.Databases)
	assert.Equal(t, []string{"zeta", "alpha", "mid", testDatabase, "omega"}, a.Databases, "store order is kept")
}

func TestListDatabases_EmptyAccount(t *testing.T) {
	reg, _ := newHarness(t)
	res, err := call(t, reg, ListDatabases, map[string]any{"account": testAccount})
	require.NoError(t, err)
	text, err := registry.RenderResult(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"databases":[]}`, text)
}

func TestListContainers(t *testing.T) {
	reg, store := newHarness(t)
	store.CreateDatabase(testAccount, testDatabase)
	createContainer(t, reg, "orders", "/customerId")
	createContainer(t, reg, "users", "/id")

	res, err := call(t, reg, ListContainers, args())
	require.NoError(t, err)
	var out ListContainersResult
	decode(t, res, &out)
	assert.Equal(t, testAccount, out.Account)
	assert.Equal(t, testDatabase, out.Database)
	assert.Equal(t, []string{"orders", "users"}, out.Containers)

	_, err = call(t, reg, ListContainers, map[string]any{"account": testAccount, "database": "nope"})
	assert.ErrorIs(t, err, docstore.KindNotFound)
}

func TestReadContainerMetadata(t *testing.T) {
	reg, store := newHarness(t)
	store.CreateDatabase(testAccount, testDatabase)
	createContainer(t, reg, "c1", "/tenant")
	before := store.Calls()

	res, err := call(t, reg, ReadContainerMetadata, args("container", "c1"))
	require.NoError(t, err)

	var meta map[string]any
	decode(t, res, &meta)
	for _, key := range []string{"container_id", "default_ttl", "indexing_policy", "partition_key_definition", "conflict_resolution_policy"} {
		assert.Contains(t, meta, key)
	}
	assert.Equal(t, "c1", meta["container_id"])
	assert.Equal(t, int64(2), store.Calls()-before, "one resolve and one metadata read")

	_, err = call(t, reg, ReadContainerMetadata, args("container", "missing"))
	assert.ErrorIs(t, err, docstore.KindNotFound)
}

func TestCreateContainer(t *testing.T) {
	reg, store := newHarness(t)
	store.CreateDatabase(testAccount, testDatabase)

	res, err := call(t, reg, CreateContainer, args("container", "c1", "partitionKeyPath", "/id", "throughput", 400))
	require.NoError(t, err)
	var out CreateContainerResult
	decode(t, res, &out)
	assert.Contains(t, out.Message, "c1")
	assert.Contains(t, out.Message, testDatabase)

	tp, ok := store.Throughput(testAccount, testDatabase, "c1")
	require.True(t, ok)
	assert.Equal(t, int32(400), tp)

	createContainer(t, reg, "c2", "/id")
	_, ok = store.Throughput(testAccount, testDatabase, "c2")
	assert.False(t, ok, "no throughput requested")
}

func TestCreateContainer_Duplicate(t *testing.T) {
	reg, store := newHarness(t)
	store.CreateDatabase(testAccount, testDatabase)
	createContainer(t, reg, "c1", "/id")

	_, err := call(t, reg, CreateContainer, args("container", "c1", "partitionKeyPath", "/id"))
	require.Error(t, err)
	assert.Equal(t, docstore.KindAlreadyExists, docstore.KindOf(err))
	assert.NotErrorIs(t, err, docstore.KindStore)
}

func TestAddAndReadItem_RoundTrip(t *testing.T) {
	reg, store := newHarness(t)
	store.CreateDatabase(testAccount, testDatabase)
	createContainer(t, reg, "users", "/id")

	raw := `{"id": "user1",  "value": "x"}`
	res, err := call(t, reg, AddItemToContainer, args("container", "users", "partitionKey", "user1", "item", raw))
	require.NoError(t, err)
	var added AddItemResult
	decode(t, res, &added)
	assert.Contains(t, added.Message, "users")

	got, err := call(t, reg, ReadItem, args("container", "users", "itemID", "user1", "partitionKey", "user1"))
	require.NoError(t, err)
	text, err := registry.RenderResult(got)
	require.NoError(t, err)
	assert.Equal(t, raw, text, "payload is returned byte for byte")
}

func TestAddItem_StoreErrors(t *testing.T) {
	reg, store := newHarness(t)
	store.CreateDatabase(testAccount, testDatabase)
	createContainer(t, reg, "users", "/id")
	addItem(t, reg, "users", "u1", map[string]any{"id": "u1"})

	cases := map[string]struct {
		pk   string
		item any
	}{
		"missing id":             {"u2", map[string]any{"value": "no id"}},
		"duplicate id":           {"u1", map[string]any{"id": "u1"}},
		"partition key mismatch": {"other", map[string]any{"id": "u3"}},
	}
	for name, tc := range cases {
		_, err := call(t, reg, AddItemToContainer, args("container", "users", "partitionKey", tc.pk, "item", tc.item))
		require.Error(t, err, name)
		assert.Equal(t, docstore.KindStore, docstore.KindOf(err), name)
		assert.Contains(t, err.Error(), AddItemToContainer, name)
	}
}

func TestReadItem_NotFound(t *testing.T) {
	reg, store := newHarness(t)
	store.CreateDatabase(testAccount, testDatabase)
	createContainer(t, reg, "users", "/id")

	_, err := call(t, reg, ReadItem, args("container", "users", "itemID", "ghost", "partitionKey", "ghost"))
	require.Error(t, err)
	assert.ErrorIs(t, err, docstore.KindNotFound)
}

func TestExecuteQuery_ScopedAndCrossPartition(t *testing.T) {
	reg, store := newHarness(t, memstore.WithPageSize(1))
	store.CreateDatabase(testAccount, testDatabase)
	createContainer(t, reg, "people", "/dept")
	addItem(t, reg, "people", "HR", map[string]any{"id": "1", "dept": "HR", "age": 30})
	addItem(t, reg, "people", "HR", map[string]any{"id": "2", "dept": "HR", "age": 45})
	addItem(t, reg, "people", "IT", map[string]any{"id": "3", "dept": "IT", "age": 50})

	cross := queryItems(t, reg, "people", "SELECT * FROM c", nil)
	assert.Len(t, cross.Results, 3)
	assert.Len(t, cross.Metrics, 3, "one metrics entry per page")
	for _, m := range cross.Metrics {
		assert.Positive(t, m.RequestCharge)
		assert.NotEmpty(t, m.QueryMetrics)
	}

	var raw map[string][]map[string]any
	text, err := registry.RenderResult(cross)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(text), &raw))
	assert.Contains(t, raw["metrics"][0], "requestCharge")
	assert.Contains(t, raw["metrics"][0], "queryMetrics")

	blank := "  "
	assert.Empty(t, queryItems(t, reg, "people", "SELECT * FROM c", &blank).Results,
		"a whitespace partition key scopes the query instead of going cross-partition")
	empty := ""
	assert.Len(t, queryItems(t, reg, "people", "SELECT * FROM c", &empty).Results, 3)

	hr := "HR"
	scoped := queryItems(t, reg, "people", "SELECT * FROM c", &hr)
	assert.Len(t, scoped.Results, 2)

	filtered := queryItems(t, reg, "people", "SELECT VALUE c.id FROM c WHERE c.age > 40", nil)
	var ids []string
	for _, r := range filtered.Results {
		var id string
		require.NoError(t, json.Unmarshal(r, &id))
		ids = append(ids, id)
	}
	assert.ElementsMatch(t, []string{"2", "3"}, ids)

	none := queryItems(t, reg, "people", "SELECT * FROM c WHERE c.dept = 'Sales'", nil)
	assert.NotNil(t, none.Results)
	assert.Empty(t, none.Results)
}

func TestExecuteQuery_UnsupportedClauses(t *testing.T) {
	reg, store := newHarness(t)

	queries := []struct{ clause, query string }{
		{"TOP", "SELECT TOP 5 * FROM c"},
		{"ORDER BY", "SELECT * FROM c ORDER BY c.age"},
		{"OFFSET", "SELECT * FROM c OFFSET 0 LIMIT 10"},
		{"DISTINCT", "SELECT DISTINCT c.dept FROM c"},
		{"GROUP BY", "SELECT c.dept FROM c GROUP BY c.dept"},
		{"TOP", "SELECT TOP 1 c.a || c.b FROM c"},
		{"DISTINCT", `SELECT DISTINCT VALUE {"a": c.a} FROM c`},
		{"ORDER BY", "SELECT * FROM c WHERE (c.x ?? 1) = 1 ORDER BY c.y"},
		{"GROUP BY", "SELECT * FROM c WHERE c.a = 1 GROUP BY c.b;"},
	}
	for _, tc := range queries {
		for _, pk := range []any{nil, "p1"} {
			a := args("container", "c1", "query", tc.query)
			if pk != nil {
				a["partitionKey"] = pk
			}
			_, err := call(t, reg, ExecuteQuery, a)
			require.Error(t, err, tc.query)
			assert.Equal(t, docstore.KindStore, docstore.KindOf(err), tc.query)
			assert.Contains(t, err.Error(), tc.clause, tc.query)
		}
	}
	assert.Zero(t, store.Calls(), "clause checks run before any store call")

	store.CreateDatabase(testAccount, testDatabase)
	createContainer(t, reg, "c1", "/id")
	addItem(t, reg, "c1", "x", map[string]any{"id": "x", "note": "ORDER BY is just text here"})
	res := queryItems(t, reg, "c1", "SELECT * FROM c WHERE c.note = 'ORDER BY is just text here'", nil)
	assert.Len(t, res.Results, 1)
}

func TestExecuteQuery_CancelledBetweenPages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var pages int
	reg, store := newHarness(t,
		memstore.WithPageSize(1),
		memstore.WithPageHook(func(op string, page int) {
			if op == docstore.OpQueryItems {
				pages = page
				if page == 1 {
					cancel()
				}
			}
		}),
	)
	store.CreateDatabase(testAccount, testDatabase)
	createContainer(t, reg, "c1", "/id")
	for _, id := range []string{"a", "b", "c"} {
		addItem(t, reg, "c1", id, map[string]any{"id": id})
	}

	res, err := reg.Execute(ctx, ExecuteQuery, args("container", "c1", "query", "SELECT * FROM c"))
	assert.Nil(t, res, "no partial result")
	assert.ErrorIs(t, err, docstore.KindCancelled)
	assert.Equal(t, 1, pages, "no page is fetched after cancellation")
}

func TestAuthFailure(t *testing.T) {
	reg, store := newHarness(t)
	store.Deny(testAccount)

	_, err := call(t, reg, ListDatabases, map[string]any{"account": testAccount})
	assert.ErrorIs(t, err, docstore.KindAuthFailure)
}

func TestScenario_EndToEndOverMCP(t *testing.T) {
	reg, store := newHarness(t)
	store.CreateDatabase(testAccount, testDatabase)

	ctx := context.Background()
	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	session, err := registry.NewMCPServer(reg).Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })

	remote, err := registry.Dial(ctx, registry.RemoteConfig{Transport: clientTransport})
	require.NoError(t, err)
	t.Cleanup(func() { _ = remote.Close() })

	listed, err := remote.ListTools(ctx)
	require.NoError(t, err)
	assert.Len(t, listed, 7)

	_, err = remote.Call(ctx, CreateContainer, args("container", "c1", "partitionKeyPath", "/id"))
	require.NoError(t, err)

	_, err = remote.Call(ctx, AddItemToContainer, args("container", "c1", "partitionKey", "u1",
		"item", map[string]any{"id": "u1", "value": "v"}))
	require.NoError(t, err)

	item, err := remote.Call(ctx, ReadItem, args("container", "c1", "itemID", "u1", "partitionKey", "u1"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"u1","value":"v"}`, item.(string))

	out, err := remote.Call(ctx, ExecuteQuery, args("container", "c1", "query", "SELECT * FROM c", "partitionKey", "u1"))
	require.NoError(t, err)
	var qr QueryResult
	require.NoError(t, json.Unmarshal([]byte(out.(string)), &qr))
	require.Len(t, qr.Results, 1)
	assert.JSONEq(t, `{"id":"u1","value":"v"}`, string(qr.Results[0]))

	_, err = remote.Call(ctx, CreateContainer, args("container", "c1", "partitionKeyPath", "/id"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), string(docstore.KindAlreadyExists))
}
