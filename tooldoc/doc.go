// Package tooldoc provides progressive documentation for registered tools.
// It delivers tiered detail without pulling long content into a model's
// context until it is asked for.
//
// # Documentation Tiers
//
// Summary: a short description from the doc entry or, failing that, the
// first sentence of the tool description. No schema or examples.
//
// Schema: adds the tool itself plus derived schema info (required fields,
// types, defaults) and the tool's behavior hints.
//
// Full: adds notes (constraints, error semantics), up to MaxExamples
// examples, and external references.
//
// # Errors
//
//   - ErrNotFound: no tool or doc entry for the ID
//   - ErrNoTool: schema or full detail requested but the tool is unknown
//   - ErrInvalidDetail: unknown DetailLevel
//   - ErrArgsTooLarge: example args exceed MaxArgsDepth or MaxArgsKeys
//
// # Thread Safety
//
// InMemoryStore is safe for concurrent use. Example args are deep-copied
// on the way in and out.
package tooldoc
