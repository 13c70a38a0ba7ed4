// Package tools defines the document database tools: listing databases and
// containers, reading container metadata, creating containers, adding and
// reading items, and running queries.
//
// Tool names and their required parameters are a wire contract. Each tool
// resolves a client for the account named in the call, so a single server
// can serve many accounts.
package tools
