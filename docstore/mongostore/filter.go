package mongostore

import (
	"go.mongodb.org/mongo-driver/bson"

	"github.com/jonwraymond/cosmosmcp/query"
)

var mongoOps = map[query.Op]string{
	query.OpEq: "$eq",
	query.OpNe: "$ne",
	query.OpLt: "$lt",
	query.OpLe: "$lte",
	query.OpGt: "$gt",
	query.OpGe: "$gte",
}

// translate converts a WHERE expression into a find filter. A nil
// expression matches everything.
//
// MongoDB only orders values of the same type, which matches how the SQL
// dialect treats mixed-type comparisons. Equality with null and inequality
// need explicit existence checks because MongoDB treats a missing field as
// null.
func translate(e query.Expr) bson.D {
	switch e := e.(type) {
	case nil:
		return bson.D{}
	case query.Comparison:
		field := e.Path.String()
		switch {
		case e.Value == nil && e.Op == query.OpEq:
			return bson.D{{Key: field, Value: bson.D{{Key: "$type", Value: "null"}}}}
		case e.Value == nil && e.Op == query.OpNe:
			return bson.D{{Key: field, Value: bson.D{
				{Key: "$exists", Value: true},
				{Key: "$ne", Value: nil},
			}}}
		case e.Op == query.OpNe:
			return bson.D{{Key: field, Value: bson.D{
				{Key: "$exists", Value: true},
				{Key: "$ne", Value: e.Value},
			}}}
		}
		return bson.D{{Key: field, Value: bson.D{{Key: mongoOps[e.Op], Value: e.Value}}}}
	case query.Logical:
		key := "$or"
		if e.And {
			key = "$and"
		}
		return bson.D{{Key: key, Value: bson.A{translate(e.Left), translate(e.Right)}}}
	case query.Not:
		return bson.D{{Key: "$nor", Value: bson.A{translate(e.Expr)}}}
	}
	return bson.D{}
}
