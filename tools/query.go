package tools

import (
	"context"
	"encoding/json"

	"github.com/jonwraymond/cosmosmcp/docstore"
	"github.com/jonwraymond/cosmosmcp/query"
	"github.com/jonwraymond/cosmosmcp/registry"
	"github.com/jonwraymond/cosmosmcp/tooldoc"
)

const executeQueryDescription = "Execute a general query on a Cosmos DB container. " +
	"If the query fails with an error related to cross partition query, do not ask the user to provide a partition key. " +
	"Instead, try a different query that does not require a partition key. " +
	"Do not use the `TOP`, `ORDER BY`, `OFFSET LIMIT`, `DISTINCT` and `GROUP BY` clauses in the query as they are not supported by this tool. " +
	"Simple projections and Filters are supported in the query. " +
	"Ensure that the query string is valid and adheres to Cosmos DB SQL syntax. " +
	"To use a partition key in the query directly, add it in the WHERE clause. " +
	"Example: SELECT * FROM c WHERE c.department='HR'."

// QueryResult is the execute_query payload. Metrics holds one entry per
// page fetched.
type QueryResult struct {
	Results []json.RawMessage `json:"results"`
	Metrics []PageMetrics     `json:"metrics"`
}

// PageMetrics describes the cost of one result page. QueryMetrics is the
// store's raw execution report and is omitted when the store sent none.
type PageMetrics struct {
	RequestCharge float64 `json:"requestCharge"`
	QueryMetrics  string  `json:"queryMetrics,omitempty"`
}

func executeQueryTool(h *handlers) registry.Tool {
	return registry.Tool{
		Name:        ExecuteQuery,
		Description: executeQueryDescription,
		Params: []registry.Param{
			accountParam(),
			stringParam("database", "Name of the database"),
			stringParam("container", "Name of the container to query"),
			stringParam("query", "The SQL query string to execute."),
			{Name: "partitionKey", Type: registry.ParamString, Description: "The partition key value for the query. If provided, the query will be scoped to this partition."},
		},
		Annotations: readOnly("Execute query"),
		Tags:        []string{"cosmosdb", "query", "sql", "read"},
		Doc: &tooldoc.DocEntry{
			Summary: "Run a SQL query against a container and return every matching document.",
			Notes: "Unsupported clauses (TOP, ORDER BY, OFFSET/LIMIT, DISTINCT, GROUP BY) are rejected " +
				"with store_error before anything is sent. Without partitionKey the query runs across " +
				"all partitions; an empty partitionKey counts as omitted, while any other value, including " +
				"whitespace, is sent as the key. All pages are read; cancelling the call discards the pages read so far.",
			Examples: []tooldoc.ToolExample{
				{
					Title: "Filter across partitions",
					Args: map[string]any{
						"account": "myaccount", "database": "hr", "container": "employees",
						"query": "SELECT * FROM c WHERE c.department = 'HR'",
					},
				},
				{
					Title: "Scoped to one partition",
					Args: map[string]any{
						"account": "myaccount", "database": "appdb", "container": "users",
						"query": "SELECT c.id, c.value FROM c", "partitionKey": "user1",
					},
				},
			},
		},
		Handler: h.executeQuery,
	}
}

func (h *handlers) executeQuery(ctx context.Context, args registry.Args) (any, error) {
	const op = docstore.OpQueryItems
	src := args.String("query")
	if err := query.CheckClauses(src); err != nil {
		return nil, &docstore.Error{Kind: docstore.KindStore, Op: op, Err: err}
	}

	c, err := h.container(ctx, args, op)
	if err != nil {
		return nil, err
	}
	var pk *string
	if v, ok := args.OptString("partitionKey"); ok {
		pk = &v
	}

	result := QueryResult{Results: []json.RawMessage{}, Metrics: []PageMetrics{}}
	err = docstore.Drain(ctx, op, c.QueryItems(src, pk), func(page docstore.Page[json.RawMessage]) error {
		result.Results = append(result.Results, page.Items...)
		result.Metrics = append(result.Metrics, PageMetrics{
			RequestCharge: page.RequestCharge,
			QueryMetrics:  page.Metrics,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
