// Package query understands the small SQL dialect accepted by the
// execute_query tool.
//
// CheckClauses rejects clauses that cross-partition item queries cannot
// serve (TOP, ORDER BY, OFFSET, LIMIT, DISTINCT, GROUP BY) before any
// request is sent. Parse builds a Query for backends that evaluate
// statements themselves:
//
//	SELECT * FROM c WHERE c.status = 'open' AND NOT (c.qty < 3)
//	SELECT VALUE c.name FROM c
//	SELECT c.id, c.address.city FROM c WHERE c["kind"] != null
//
// Comparisons follow document-database semantics: a comparison with an
// undefined property or a value of another type is false.
package query
