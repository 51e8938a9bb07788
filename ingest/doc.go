// Package ingest indexes the objects of a bucket into the vector store.
//
// Every store access goes through a tool.Invoker, the same boundary workers
// use, so ingestion and agents observe identical result semantics. Bucket
// notifications (MinIO webhook or NATS target) keep the index current
// between full passes.
package ingest
