package tools

import (
	"context"
	"fmt"

	"github.com/jonwraymond/cosmosmcp/docstore"
	"github.com/jonwraymond/cosmosmcp/registry"
	"github.com/jonwraymond/cosmosmcp/tooldoc"
)

func readContainerMetadataTool(h *handlers) registry.Tool {
	return registry.Tool{
		Name:        ReadContainerMetadata,
		Description: "Retrieve metadata or configuration of a specific container in a Cosmos DB database. Not to be used for executing queries or reading data from the container.",
		Params: []registry.Param{
			accountParam(),
			stringParam("database", "Name of the database that holds the container"),
			stringParam("container", "Name of the container to describe"),
		},
		Annotations: readOnly("Read container metadata"),
		Tags:        []string{"cosmosdb", "container", "metadata"},
		Doc: &tooldoc.DocEntry{
			Notes: "Returns the container descriptor only: id, default TTL, indexing policy, " +
				"partition key definition and conflict resolution policy. Policies are passed " +
				"through as the store reports them. No items are read.",
		},
		Handler: h.readContainerMetadata,
	}
}

func (h *handlers) readContainerMetadata(ctx context.Context, args registry.Args) (any, error) {
	c, err := h.container(ctx, args, docstore.OpReadContainer)
	if err != nil {
		return nil, err
	}
	meta, err := c.Metadata(ctx)
	if err != nil {
		return nil, docstore.Wrap(docstore.OpReadContainer, err)
	}
	return meta, nil
}

// CreateContainerResult confirms a created container.
type CreateContainerResult struct {
	Message    string `json:"message"`
	Database   string `json:"database"`
	Container  string `json:"container"`
	Throughput *int32 `json:"throughput,omitempty"`
}

func createContainerTool(h *handlers) registry.Tool {
	return registry.Tool{
		Name:        CreateContainer,
		Description: "Create a new container in a specified database",
		Params: []registry.Param{
			accountParam(),
			stringParam("database", "Name of the database to create the container in"),
			stringParam("container", "Name of the container to create"),
			stringParam("partitionKeyPath", "Partition key path for the container, e.g., '/id'"),
			{Name: "throughput", Type: registry.ParamInteger, Description: "Provisioned throughput for the container (optional)"},
		},
		Annotations: writes("Create container"),
		Tags:        []string{"cosmosdb", "container", "create"},
		Doc: &tooldoc.DocEntry{
			Notes: "Fails with already_exists when a container with the same name exists. " +
				"When throughput is given the container gets that much manual provisioned throughput.",
			Examples: []tooldoc.ToolExample{{
				Title: "Create a container partitioned by id",
				Args: map[string]any{
					"account": "myaccount", "database": "appdb",
					"container": "users", "partitionKeyPath": "/id", "throughput": 400,
				},
			}},
		},
		Handler: h.createContainer,
	}
}

func (h *handlers) createContainer(ctx context.Context, args registry.Args) (any, error) {
	throughput, ok, err := args.OptInt32("throughput")
	if err != nil {
		return nil, err
	}
	spec := docstore.ContainerSpec{
		ID:               args.String("container"),
		PartitionKeyPath: args.String("partitionKeyPath"),
	}
	if ok {
		spec.Throughput = &throughput
	}

	db, err := h.database(ctx, args, docstore.OpCreateContainer)
	if err != nil {
		return nil, err
	}
	if err := db.CreateContainer(ctx, spec); err != nil {
		return nil, docstore.Wrap(docstore.OpCreateContainer, err)
	}
	database := args.String("database")
	return CreateContainerResult{
		Message:    fmt.Sprintf("Container '%s' created successfully in database '%s'", spec.ID, database),
		Database:   database,
		Container:  spec.ID,
		Throughput: spec.Throughput,
	}, nil
}
