package tools

import (
	"context"

	"github.com/jonwraymond/cosmosmcp/docstore"
	"github.com/jonwraymond/cosmosmcp/registry"
	"github.com/jonwraymond/cosmosmcp/tooldoc"
)

// ListDatabasesResult is the list_databases payload.
type ListDatabasesResult struct {
	Databases []string `json:"databases"`
}

func listDatabasesTool(h *handlers) registry.Tool {
	return registry.Tool{
		Name:        ListDatabases,
		Description: "List all databases in a Cosmos DB account",
		Params:      []registry.Param{accountParam()},
		Annotations: readOnly("List databases"),
		Tags:        []string{"cosmosdb", "database", "list"},
		Doc: &tooldoc.DocEntry{
			Notes: "Names are returned in the order the account reports them, which is not necessarily sorted.",
			Examples: []tooldoc.ToolExample{{
				Title:      "List databases",
				Args:       map[string]any{"account": "myaccount"},
				ResultHint: `{"databases":["appdb","telemetry"]}`,
			}},
		},
		Handler: h.listDatabases,
	}
}

func (h *handlers) listDatabases(ctx context.Context, args registry.Args) (any, error) {
	c, err := h.client(ctx, args)
	if err != nil {
		return nil, err
	}
	names, err := docstore.Collect(ctx, docstore.OpListDatabases, c.DatabasesPager())
	if err != nil {
		return nil, err
	}
	return ListDatabasesResult{Databases: names}, nil
}

// ListContainersResult is the list_containers payload.
type ListContainersResult struct {
	Account    string   `json:"account"`
	Database   string   `json:"database"`
	Containers []string `json:"containers"`
}

func listContainersTool(h *handlers) registry.Tool {
	return registry.Tool{
		Name:        ListContainers,
		Description: "List all containers in a specific database",
		Params: []registry.Param{
			accountParam(),
			stringParam("database", "Name of the database to list containers from"),
		},
		Annotations: readOnly("List containers"),
		Tags:        []string{"cosmosdb", "container", "list"},
		Handler:     h.listContainers,
	}
}

func (h *handlers) listContainers(ctx context.Context, args registry.Args) (any, error) {
	db, err := h.database(ctx, args, docstore.OpListContainers)
	if err != nil {
		return nil, err
	}
	names, err := docstore.Collect(ctx, docstore.OpListContainers, db.ContainersPager())
	if err != nil {
		return nil, err
	}
	return ListContainersResult{
		Account:    args.String("account"),
		Database:   args.String("database"),
		Containers: names,
	}, nil
}
