package tools

import (
	"context"
	"fmt"

	"github.com/jonwraymond/cosmosmcp/docstore"
	"github.com/jonwraymond/cosmosmcp/registry"
	"github.com/jonwraymond/cosmosmcp/tooldoc"
)

// AddItemResult confirms an inserted item.
type AddItemResult struct {
	Message   string `json:"message"`
	Database  string `json:"database"`
	Container string `json:"container"`
}

func addItemTool(h *handlers) registry.Tool {
	return registry.Tool{
		Name:        AddItemToContainer,
		Description: "Add a new item to a specified container in a Cosmos DB database",
		Params: []registry.Param{
			accountParam(),
			stringParam("database", "Name of the database to add the item to"),
			stringParam("container", "Name of the container to add the item to"),
			stringParam("partitionKey", "Partition key for the item to add"),
			{Name: "item", Type: registry.ParamJSON, Required: true, Description: "The JSON representation of the item to add. id field is mandatory"},
		},
		Annotations: writes("Add item"),
		Tags:        []string{"cosmosdb", "item", "create", "write"},
		Doc: &tooldoc.DocEntry{
			Notes: "The item is sent to the store as given. A missing id, a duplicate id or a " +
				"partition key that does not match the item fails with store_error and the store's message.",
			Examples: []tooldoc.ToolExample{{
				Title: "Add a user",
				Args: map[string]any{
					"account": "myaccount", "database": "appdb", "container": "users",
					"partitionKey": "user1", "item": map[string]any{"id": "user1", "value": "x"},
				},
			}},
		},
		Handler: h.addItem,
	}
}

func (h *handlers) addItem(ctx context.Context, args registry.Args) (any, error) {
	item, err := args.RawJSON("item")
	if err != nil {
		return nil, err
	}
	c, err := h.container(ctx, args, docstore.OpCreateItem)
	if err != nil {
		return nil, err
	}
	if err := c.CreateItem(ctx, args.String("partitionKey"), item); err != nil {
		return nil, docstore.Wrap(docstore.OpCreateItem, err)
	}
	database, container := args.String("database"), args.String("container")
	return AddItemResult{
		Message:   fmt.Sprintf("Item added successfully to container '%s' in database '%s'", container, database),
		Database:  database,
		Container: container,
	}, nil
}

func readItemTool(h *handlers) registry.Tool {
	return registry.Tool{
		Name:        ReadItem,
		Description: "Read a specific item from a container in a Cosmos DB database",
		Params: []registry.Param{
			accountParam(),
			stringParam("database", "Name of the database"),
			stringParam("container", "Name of the container to read data from"),
			stringParam("itemID", "ID of the item to read"),
			stringParam("partitionKey", "Partition key of the item"),
		},
		Annotations: readOnly("Read item"),
		Tags:        []string{"cosmosdb", "item", "read"},
		Doc: &tooldoc.DocEntry{
			Notes: "Point read by id and partition key. Returns the stored document unmodified; " +
				"a missing item fails with not_found.",
		},
		Handler: h.readItem,
	}
}

func (h *handlers) readItem(ctx context.Context, args registry.Args) (any, error) {
	c, err := h.container(ctx, args, docstore.OpReadItem)
	if err != nil {
		return nil, err
	}
	raw, err := c.ReadItem(ctx, args.String("partitionKey"), args.String("itemID"))
	if err != nil {
		return nil, docstore.Wrap(docstore.OpReadItem, err)
	}
	return raw, nil
}
