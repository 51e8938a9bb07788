// Package core holds the domain types shared by every docmesh package:
//
//   - Message and Conversation (the append-only history of one dispatch run)
//   - Content / Part, the provider-neutral wire shape handed to models
//   - Event, the record streamed to observers while a run progresses
//   - Outcome and the error taxonomy (contract violations, turn limits)
//   - ObjectStore and VectorStore, the two external collaborators
//   - ToolContext, the scoped surface handed to tool implementations
//
// Concrete behaviour (models, tools, stores, the dispatch loop) lives in its
// own package; core only defines the small interfaces those packages share.
package core
