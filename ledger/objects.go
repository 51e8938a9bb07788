package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/docmesh/core"
)

// IngestedObject links a stored object version to the vector record built
// from it.
type IngestedObject struct {
	Bucket     string    `json:"bucket"`
	Key        string    `json:"object_key"`
	ETag       string    `json:"etag"`
	DocumentID string    `json:"document_id"`
	Class      string    `json:"class"`
	IndexedAt  time.Time `json:"indexed_at"`
}

// SaveObject inserts or replaces the entry for (bucket, key).
func (l *Ledger) SaveObject(ctx context.Context, o IngestedObject) error {
	if o.IndexedAt.IsZero() {
		o.IndexedAt = time.Now().UTC()
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO ingested_objects (bucket, object_key, etag, document_id, class, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(bucket, object_key) DO UPDATE SET
			etag = excluded.etag,
			document_id = excluded.document_id,
			class = excluded.class,
			indexed_at = excluded.indexed_at`,
		o.Bucket, o.Key, o.ETag, o.DocumentID, o.Class, o.IndexedAt)
	if err != nil {
		return fmt.Errorf("save object: %w", err)
	}
	return nil
}

// Object returns the entry for (bucket, key) or core.ErrNotFound.
func (l *Ledger) Object(ctx context.Context, bucket, key string) (IngestedObject, error) {
	var o IngestedObject
	err := l.db.QueryRowContext(ctx, `
		SELECT bucket, object_key, etag, document_id, class, indexed_at
		FROM ingested_objects
		WHERE bucket = ? AND object_key = ?`, bucket, key).
		Scan(&o.Bucket, &o.Key, &o.ETag, &o.DocumentID, &o.Class, &o.IndexedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return IngestedObject{}, fmt.Errorf("object %s/%s: %w", bucket, key, core.ErrNotFound)
	}
	if err != nil {
		return IngestedObject{}, fmt.Errorf("get object: %w", err)
	}
	return o, nil
}

// Objects lists the entries of bucket ordered by key.
func (l *Ledger) Objects(ctx context.Context, bucket string) ([]IngestedObject, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT bucket, object_key, etag, document_id, class, indexed_at
		FROM ingested_objects
		WHERE bucket = ?
		ORDER BY object_key`, bucket)
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}
	defer rows.Close()

	var out []IngestedObject
	for rows.Next() {
		var o IngestedObject
		if err := rows.Scan(&o.Bucket, &o.Key, &o.ETag, &o.DocumentID, &o.Class, &o.IndexedAt); err != nil {
			return nil, fmt.Errorf("scan object: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// DeleteObject removes the entry for (bucket, key). Missing entries are not
// an error.
func (l *Ledger) DeleteObject(ctx context.Context, bucket, key string) error {
	if _, err := l.db.ExecContext(ctx,
		`DELETE FROM ingested_objects WHERE bucket = ? AND object_key = ?`, bucket, key); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}
