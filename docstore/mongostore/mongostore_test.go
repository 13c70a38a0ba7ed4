package mongostore

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/jonwraymond/cosmosmcp/docstore"
	"github.com/jonwraymond/cosmosmcp/query"
)

func where(t *testing.T, src string) query.Expr {
	t.Helper()
	q, err := query.Parse(src)
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	return q.Where
}

func TestTranslate(t *testing.T) {
	cases := []struct {
		src  string
		want bson.D
	}{
		{"SELECT * FROM c", bson.D{}},
		{"SELECT * FROM c WHERE c.a = 1",
			bson.D{{Key: "a", Value: bson.D{{Key: "$eq", Value: 1.0}}}}},
		{"SELECT * FROM c WHERE c.addr.city >= 'M'",
			bson.D{{Key: "addr.city", Value: bson.D{{Key: "$gte", Value: "M"}}}}},
		{"SELECT * FROM c WHERE c.a = null",
			bson.D{{Key: "a", Value: bson.D{{Key: "$type", Value: "null"}}}}},
		{"SELECT * FROM c WHERE c.a != 'x'",
			bson.D{{Key: "a", Value: bson.D{{Key: "$exists", Value: true}, {Key: "$ne", Value: "x"}}}}},
		{"SELECT * FROM c WHERE c.a = 1 OR NOT c.b",
			bson.D{{Key: "$or", Value: bson.A{
				bson.D{{Key: "a", Value: bson.D{{Key: "$eq", Value: 1.0}}}},
				bson.D{{Key: "$nor", Value: bson.A{
					bson.D{{Key: "b", Value: bson.D{{Key: "$eq", Value: true}}}},
				}}},
			}}}},
		{"SELECT * FROM c WHERE c.a < 1 AND c.b <= 2",
			bson.D{{Key: "$and", Value: bson.A{
				bson.D{{Key: "a", Value: bson.D{{Key: "$lt", Value: 1.0}}}},
				bson.D{{Key: "b", Value: bson.D{{Key: "$lte", Value: 2.0}}}},
			}}}},
	}
	for _, tc := range cases {
		got := translate(where(t, tc.src))
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("translate(%q)\n got %v\nwant %v", tc.src, got, tc.want)
		}
	}
}

func TestShardKeyField(t *testing.T) {
	if got, err := shardKeyField("/userId"); err != nil || got != "userId" {
		t.Errorf("shardKeyField = %q, %v", got, err)
	}
	if got, _ := shardKeyField("/address/zip"); got != "address.zip" {
		t.Errorf("nested shard key = %q", got)
	}
	for _, bad := range []string{"", "userId", "/", "/a//b"} {
		if _, err := shardKeyField(bad); err == nil {
			t.Errorf("shardKeyField(%q) should fail", bad)
		}
	}
}

func TestClassify(t *testing.T) {
	if !errors.Is(classify(docstore.OpReadItem, mongo.ErrNoDocuments), docstore.KindNotFound) {
		t.Error("ErrNoDocuments should be not_found")
	}
	dup := mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "dup"}}}
	if docstore.KindOf(classify(docstore.OpCreateItem, dup)) != docstore.KindStore {
		t.Error("duplicate item should be store_error")
	}
	exists := mongo.CommandError{Code: codeNamespaceExists, Message: "exists"}
	if !errors.Is(classify(docstore.OpCreateContainer, exists), docstore.KindAlreadyExists) {
		t.Error("namespace exists should be already_exists")
	}
	unauth := mongo.CommandError{Code: codeUnauthorized, Message: "no"}
	if !errors.Is(classify(docstore.OpListDatabases, unauth), docstore.KindAuthFailure) {
		t.Error("unauthorized should be auth_failure")
	}
	if !errors.Is(classify(docstore.OpQueryItems, context.Canceled), docstore.KindCancelled) {
		t.Error("cancellation should be cancelled")
	}
}

func TestResolve_RequiresKey(t *testing.T) {
	r := NewResolver(WithKeySource(docstore.KeyChain{}))
	_, err := r.Resolve(context.Background(), "myaccount")
	if !errors.Is(err, docstore.KindAuthFailure) {
		t.Fatalf("expected auth_failure, got %v", err)
	}
	_, err = r.Resolve(context.Background(), "Bad.Host")
	if !errors.Is(err, docstore.KindInvalidParameter) {
		t.Fatalf("expected invalid_parameter, got %v", err)
	}
}

func TestLookupStringAndWithoutID(t *testing.T) {
	doc := bson.D{
		{Key: "_id", Value: "1"},
		{Key: "id", Value: "1"},
		{Key: "addr", Value: bson.D{{Key: "zip", Value: "0150"}}},
	}
	if v, ok := lookupString(doc, "addr.zip"); !ok || v != "0150" {
		t.Errorf("lookupString = %q, %v", v, ok)
	}
	if _, ok := lookupString(doc, "addr.city"); ok {
		t.Error("missing path should not be found")
	}
	if got := withoutID(doc); len(got) != 2 || got[0].Key != "id" {
		t.Errorf("withoutID = %v", got)
	}
}

func TestQueryItems_BadQueryNeedsNoConnection(t *testing.T) {
	c := &Container{}
	_, err := docstore.Collect(context.Background(), docstore.OpQueryItems, c.QueryItems("SELECT TOP 1 * FROM c", nil))
	if docstore.KindOf(err) != docstore.KindStore {
		t.Errorf("expected store_error, got %v", err)
	}
}
