// Package vectorstore provides core.VectorStore implementations and the
// document record schema used for indexed objects. Memory is an in-process
// store for tests and local development; the weaviate subpackage talks to a
// Weaviate server.
package vectorstore
