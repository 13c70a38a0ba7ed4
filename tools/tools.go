package tools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jonwraymond/cosmosmcp/docstore"
	"github.com/jonwraymond/cosmosmcp/registry"
)

// Tool names.
const (
	ListDatabases         = "list_databases"
	ListContainers        = "list_containers"
	ReadContainerMetadata = "read_container_metadata"
	CreateContainer       = "create_container"
	AddItemToContainer    = "add_item_to_container"
	ReadItem              = "read_item"
	ExecuteQuery          = "execute_query"
)

const accountDescription = "Name of the Cosmos DB account. If not available, ask the user to provide the account name. Do not use a random account name of your choice."

// Register adds every tool to reg. Clients are obtained from r on each
// call; wrap r in a docstore.CachingResolver to reuse them.
func Register(reg *registry.Registry, r docstore.Resolver) error {
	for _, t := range All(r) {
		if err := reg.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// All returns the tool descriptors in their canonical order.
func All(r docstore.Resolver) []registry.Tool {
	h := &handlers{resolver: r}
	return []registry.Tool{
		listDatabasesTool(h),
		listContainersTool(h),
		readContainerMetadataTool(h),
		createContainerTool(h),
		addItemTool(h),
		readItemTool(h),
		executeQueryTool(h),
	}
}

func accountParam() registry.Param {
	return registry.Param{Name: "account", Type: registry.ParamString, Required: true, Description: accountDescription}
}

func stringParam(name, description string) registry.Param {
	return registry.Param{Name: name, Type: registry.ParamString, Required: true, Description: description}
}

func readOnly(title string) *mcp.ToolAnnotations {
	closed := false
	return &mcp.ToolAnnotations{Title: title, ReadOnlyHint: true, IdempotentHint: true, OpenWorldHint: &closed}
}

func writes(title string) *mcp.ToolAnnotations {
	no := false
	return &mcp.ToolAnnotations{Title: title, DestructiveHint: &no, OpenWorldHint: &no}
}

type handlers struct {
	resolver docstore.Resolver
}

func (h *handlers) client(ctx context.Context, args registry.Args) (docstore.Client, error) {
	account := args.String("account")
	if err := docstore.ValidateAccount(account); err != nil {
		return nil, err
	}
	c, err := h.resolver.Resolve(ctx, account)
	if err != nil {
		return nil, docstore.Wrap(docstore.OpResolve, err)
	}
	return c, nil
}

func (h *handlers) database(ctx context.Context, args registry.Args, op string) (docstore.Database, error) {
	c, err := h.client(ctx, args)
	if err != nil {
		return nil, err
	}
	db, err := c.Database(args.String("database"))
	if err != nil {
		return nil, docstore.Wrap(op, err)
	}
	return db, nil
}

func (h *handlers) container(ctx context.Context, args registry.Args, op string) (docstore.Container, error) {
	db, err := h.database(ctx, args, op)
	if err != nil {
		return nil, err
	}
	c, err := db.Container(args.String("container"))
	if err != nil {
		return nil, docstore.Wrap(op, err)
	}
	return c, nil
}
