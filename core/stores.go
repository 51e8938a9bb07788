package core

import (
	"context"
	"time"
)

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ETag         string    `json:"etag,omitempty"`
	ContentType  string    `json:"content_type,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// ObjectStore is the object storage collaborator (MinIO in production).
// List returns objects sorted by key so repeated listings without an
// intervening mutation are identical.
type ObjectStore interface {
	EnsureBucket(ctx context.Context, bucket string) error
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) (ObjectInfo, error)
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	List(ctx context.Context, bucket string) ([]ObjectInfo, error)
	Remove(ctx context.Context, bucket, key string) error
}

// Record is a vector store object: an id plus its properties.
type Record struct {
	ID         string         `json:"id"`
	Class      string         `json:"class,omitempty"`
	Properties map[string]any `json:"properties"`
	// Distance is set by similarity queries; zero otherwise.
	Distance float64 `json:"distance,omitempty"`
}

// Query selects records of a class.
type Query struct {
	// Properties lists the property names to return; empty means all known.
	Properties []string
	// Where holds equality filters on properties.
	Where map[string]any
	// NearText ranks records by similarity to the text.
	NearText string
	// Limit caps the number of records; zero means the store default.
	Limit int
}

// VectorStore is the vector database collaborator (Weaviate in production).
type VectorStore interface {
	EnsureClass(ctx context.Context, class string) error
	Create(ctx context.Context, class string, rec Record) (string, error)
	Get(ctx context.Context, class string, q Query) ([]Record, error)
	Update(ctx context.Context, class, id string, properties map[string]any) error
	Delete(ctx context.Context, class, id string) error
}
