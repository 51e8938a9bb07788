package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/docmesh/core"
	"github.com/hupe1980/docmesh/ledger"
	"github.com/hupe1980/docmesh/logging"
	"github.com/hupe1980/docmesh/tool"
	"github.com/hupe1980/docmesh/vectorstore"
)

// ObjectLedger remembers which object version each vector record was built
// from.
type ObjectLedger interface {
	Object(ctx context.Context, bucket, key string) (ledger.IngestedObject, error)
	SaveObject(ctx context.Context, o ledger.IngestedObject) error
	DeleteObject(ctx context.Context, bucket, key string) error
}

// Options configures a Pipeline.
type Options struct {
	Bucket string
	Class  string
	// ObjectTool and VectorTool are the invoker identifiers of the stores.
	ObjectTool string
	VectorTool string
	// Summarizer is optional; without one documents are indexed unsummarized.
	Summarizer Summarizer
	// Ledger is optional; without one every pass re-indexes every object.
	Ledger ObjectLedger
	Tags   []string
	Logger logging.Logger
}

// Pipeline lists a bucket, downloads each object, summarizes it and creates
// a vector record for it.
type Pipeline struct {
	invoker *tool.Invoker
	opts    Options
	logger  logging.Logger
}

// IndexedObject pairs an object key with its vector record.
type IndexedObject struct {
	Key        string `json:"key"`
	DocumentID string `json:"document_id"`
}

// FailedObject reports an object that could not be indexed.
type FailedObject struct {
	Key   string `json:"key"`
	Error string `json:"error"`
}

// Report summarizes one pass over a bucket.
type Report struct {
	Bucket  string          `json:"bucket"`
	Indexed []IndexedObject `json:"indexed"`
	Skipped []string        `json:"skipped"`
	Failed  []FailedObject  `json:"failed"`
}

// NewPipeline creates a Pipeline over invoker.
func NewPipeline(invoker *tool.Invoker, optFns ...func(o *Options)) *Pipeline {
	opts := Options{
		Class:      vectorstore.DefaultClass,
		ObjectTool: tool.ObjectStoreToolName,
		VectorTool: tool.VectorStoreToolName,
		Logger:     logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Pipeline{
		invoker: invoker,
		opts:    opts,
		logger:  logging.With(opts.Logger, "component", "ingest"),
	}
}

// Bucket returns the bucket indexed by IndexBucket.
func (p *Pipeline) Bucket() string { return p.opts.Bucket }

// IndexBucket runs one pass over the configured bucket. Per-object failures
// are collected in the report; only a failed listing returns an error.
func (p *Pipeline) IndexBucket(ctx context.Context) (Report, error) {
	bucket := p.opts.Bucket
	report := Report{Bucket: bucket, Indexed: []IndexedObject{}, Skipped: []string{}, Failed: []FailedObject{}}

	res := p.invoker.Invoke(ctx, p.opts.ObjectTool, "list", map[string]any{"bucket": bucket})
	if !res.OK() {
		return report, fmt.Errorf("list bucket %s: %w", bucket, res.Err())
	}
	listing, ok := res.Data.(tool.ObjectListing)
	if !ok {
		return report, fmt.Errorf("list bucket %s: unexpected result %T", bucket, res.Data)
	}

	p.logger.Info("ingest.bucket.start", "bucket", bucket, "objects", len(listing.Objects))

	for _, info := range listing.Objects {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		indexed, skipped, err := p.IndexObject(ctx, bucket, info)
		switch {
		case err != nil:
			p.logger.Warn("ingest.object.error", "bucket", bucket, "key", info.Key, "error", err.Error())
			report.Failed = append(report.Failed, FailedObject{Key: info.Key, Error: err.Error()})
		case skipped:
			report.Skipped = append(report.Skipped, info.Key)
		default:
			report.Indexed = append(report.Indexed, indexed)
		}
	}

	p.logger.Info("ingest.bucket.completed", "bucket", bucket,
		"indexed", len(report.Indexed), "skipped", len(report.Skipped), "failed", len(report.Failed))

	return report, nil
}

// IndexObject indexes one object. An object whose ETag matches the ledger
// entry is skipped. A changed object updates its existing record.
func (p *Pipeline) IndexObject(ctx context.Context, bucket string, info core.ObjectInfo) (IndexedObject, bool, error) {
	var previous *ledger.IngestedObject
	if p.opts.Ledger != nil {
		entry, err := p.opts.Ledger.Object(ctx, bucket, info.Key)
		switch {
		case err == nil:
			if info.ETag != "" && entry.ETag == info.ETag {
				return IndexedObject{Key: info.Key, DocumentID: entry.DocumentID}, true, nil
			}
			previous = &entry
		case !errors.Is(err, core.ErrNotFound):
			return IndexedObject{}, false, err
		}
	}

	res := p.invoker.Invoke(ctx, p.opts.ObjectTool, "download", map[string]any{
		"bucket":      bucket,
		"object_name": info.Key,
	})
	if !res.OK() {
		return IndexedObject{}, false, res.Err()
	}
	content, ok := res.Data.(tool.ObjectContent)
	if !ok {
		return IndexedObject{}, false, fmt.Errorf("download %s: unexpected result %T", info.Key, res.Data)
	}

	doc, err := p.document(ctx, bucket, info, content)
	if err != nil {
		return IndexedObject{}, false, err
	}

	id, err := p.store(ctx, previous, doc)
	if err != nil {
		return IndexedObject{}, false, err
	}

	if p.opts.Ledger != nil {
		if err := p.opts.Ledger.SaveObject(ctx, ledger.IngestedObject{
			Bucket:     bucket,
			Key:        info.Key,
			ETag:       info.ETag,
			DocumentID: id,
			Class:      p.opts.Class,
		}); err != nil {
			return IndexedObject{}, false, err
		}
	}

	p.logger.Debug("ingest.object.indexed", "bucket", bucket, "key", info.Key, "document_id", id)

	return IndexedObject{Key: info.Key, DocumentID: id}, false, nil
}

// RemoveObject deletes the records built from (bucket, key).
func (p *Pipeline) RemoveObject(ctx context.Context, bucket, key string) ([]string, error) {
	var ids []string

	if p.opts.Ledger != nil {
		entry, err := p.opts.Ledger.Object(ctx, bucket, key)
		switch {
		case err == nil:
			ids = append(ids, entry.DocumentID)
		case !errors.Is(err, core.ErrNotFound):
			return nil, err
		}
	}

	if len(ids) == 0 {
		res := p.invoker.Invoke(ctx, p.opts.VectorTool, "get", map[string]any{
			"class": p.opts.Class,
			"where": map[string]any{"source": source(bucket, key)},
		})
		if !res.OK() {
			return nil, res.Err()
		}
		records, _ := res.Data.([]core.Record)
		for _, r := range records {
			ids = append(ids, r.ID)
		}
	}

	for _, id := range ids {
		res := p.invoker.Invoke(ctx, p.opts.VectorTool, "delete", map[string]any{"class": p.opts.Class, "id": id})
		if !res.OK() {
			p.logger.Warn("ingest.remove.error", "bucket", bucket, "key", key, "document_id", id, "error", res.Message)
		}
	}

	if p.opts.Ledger != nil {
		if err := p.opts.Ledger.DeleteObject(ctx, bucket, key); err != nil {
			return ids, err
		}
	}

	return ids, nil
}

// HandleNotification applies one bucket event and reports what it did:
// "indexed", "skipped", "removed" or "ignored".
func (p *Pipeline) HandleNotification(ctx context.Context, n Notification) (string, error) {
	switch {
	case n.IsCreated():
		_, skipped, err := p.IndexObject(ctx, n.Bucket, core.ObjectInfo{
			Key:          n.Key,
			Size:         n.Size,
			ETag:         n.ETag,
			ContentType:  n.ContentType,
			LastModified: time.Now().UTC(),
		})
		if err != nil {
			return "", err
		}
		if skipped {
			return "skipped", nil
		}
		return "indexed", nil
	case n.IsRemoved():
		if _, err := p.RemoveObject(ctx, n.Bucket, n.Key); err != nil {
			return "", err
		}
		return "removed", nil
	default:
		return "ignored", nil
	}
}

func (p *Pipeline) document(ctx context.Context, bucket string, info core.ObjectInfo, content tool.ObjectContent) (vectorstore.Document, error) {
	var summary string
	if p.opts.Summarizer != nil && content.Encoding == "" {
		s, err := p.opts.Summarizer.Summarize(ctx, info.Key, content.Content)
		if err != nil {
			return vectorstore.Document{}, err
		}
		summary = s
	}

	metadata, err := vectorstore.EncodeMetadata(map[string]any{
		"bucket":       bucket,
		"key":          info.Key,
		"etag":         info.ETag,
		"size":         info.Size,
		"content_type": info.ContentType,
		"encoding":     content.Encoding,
	})
	if err != nil {
		return vectorstore.Document{}, err
	}

	ts := info.LastModified
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	return vectorstore.Document{
		Name:      info.Key,
		Source:    source(bucket, info.Key),
		Content:   content.Content,
		Summary:   summary,
		Timestamp: ts,
		Tags:      p.opts.Tags,
		Metadata:  metadata,
	}, nil
}

func (p *Pipeline) store(ctx context.Context, previous *ledger.IngestedObject, doc vectorstore.Document) (string, error) {
	if previous != nil {
		res := p.invoker.Invoke(ctx, p.opts.VectorTool, "update", map[string]any{
			"class":      p.opts.Class,
			"id":         previous.DocumentID,
			"properties": doc.Properties(),
		})
		if res.OK() {
			return previous.DocumentID, nil
		}
		p.logger.Debug("ingest.update.fallback", "document_id", previous.DocumentID, "error", res.Message)
	}

	res := p.invoker.Invoke(ctx, p.opts.VectorTool, "create", map[string]any{
		"class":      p.opts.Class,
		"properties": doc.Properties(),
	})
	if !res.OK() {
		return "", res.Err()
	}
	created, ok := res.Data.(tool.CreatedObject)
	if !ok {
		return "", fmt.Errorf("create record: unexpected result %T", res.Data)
	}
	return created.ID, nil
}

func source(bucket, key string) string { return bucket + "/" + key }
