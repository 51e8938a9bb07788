package tool

import (
	"context"
	"encoding/base64"
	"errors"
	"mime"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/hupe1980/docmesh/core"
)

// ObjectStoreToolName is the default identifier of the object store tool.
const ObjectStoreToolName = "minio"

// ObjectStoreToolOptions configures NewObjectStoreTool.
type ObjectStoreToolOptions struct {
	Name          string
	DefaultBucket string
}

// ObjectListing is the data of a successful list action.
type ObjectListing struct {
	Bucket  string            `json:"bucket"`
	Objects []core.ObjectInfo `json:"objects"`
}

// Keys returns the object keys in listing order.
func (l ObjectListing) Keys() []string {
	keys := make([]string, len(l.Objects))
	for i, o := range l.Objects {
		keys[i] = o.Key
	}
	return keys
}

// ObjectContent is the data of a successful download action.
type ObjectContent struct {
	Bucket     string `json:"bucket"`
	ObjectName string `json:"object_name"`
	Content    string `json:"content"`
	// Encoding is "base64" for binary payloads and empty for text.
	Encoding string `json:"encoding,omitempty"`
}

// Bytes returns the decoded object payload.
func (c ObjectContent) Bytes() ([]byte, error) {
	if c.Encoding == "base64" {
		return base64.StdEncoding.DecodeString(c.Content)
	}
	return []byte(c.Content), nil
}

// NewObjectStoreTool exposes store through the upload, download and list
// actions. Bucket parameters fall back to DefaultBucket.
func NewObjectStoreTool(store core.ObjectStore, optFns ...func(o *ObjectStoreToolOptions)) *ActionTool {
	opts := ObjectStoreToolOptions{Name: ObjectStoreToolName}
	for _, fn := range optFns {
		fn(&opts)
	}

	bucketOf := func(params map[string]any) string {
		return stringParam(params, "bucket", opts.DefaultBucket)
	}

	bucketProp := map[string]any{"type": "string", "description": "Name of the bucket."}
	objectProp := map[string]any{"type": "string", "description": "Name of the object."}

	return NewActionTool(opts.Name, "Interact with MinIO object storage.",
		Action{
			Name:        "upload",
			Description: "store content under object_name",
			Properties: map[string]any{
				"bucket":       bucketProp,
				"object_name":  objectProp,
				"content":      map[string]any{"type": "string", "description": "Text content of the object."},
				"content_type": map[string]any{"type": "string", "description": "MIME type of the content."},
			},
			Required: []string{"object_name", "content"},
			Handler: func(ctx context.Context, params map[string]any) Result {
				bucket := bucketOf(params)
				name := stringParam(params, "object_name", "")
				contentType := stringParam(params, "content_type", contentTypeFor(name))

				info, err := store.Put(ctx, bucket, name, []byte(stringParam(params, "content", "")), contentType)
				if err != nil {
					return FromError(err)
				}

				return Success("Object "+name+" uploaded to bucket "+bucket, info)
			},
		},
		Action{
			Name:        "download",
			Description: "read the content of object_name",
			Properties: map[string]any{
				"bucket":      bucketProp,
				"object_name": objectProp,
			},
			Required: []string{"object_name"},
			Handler: func(ctx context.Context, params map[string]any) Result {
				bucket := bucketOf(params)
				name := stringParam(params, "object_name", "")

				data, err := store.Get(ctx, bucket, name)
				if err != nil {
					if errors.Is(err, core.ErrNotFound) {
						return Failure("Object %s not found in bucket %s", name, bucket).WithCode(CodeNotFound)
					}
					return FromError(err)
				}

				content := ObjectContent{Bucket: bucket, ObjectName: name}
				if utf8.Valid(data) {
					content.Content = string(data)
				} else {
					content.Content = base64.StdEncoding.EncodeToString(data)
					content.Encoding = "base64"
				}

				return Success("Object "+name+" downloaded from bucket "+bucket, content)
			},
		},
		Action{
			Name:        "list",
			Description: "list the objects of a bucket sorted by key",
			Properties: map[string]any{
				"bucket": bucketProp,
			},
			Handler: func(ctx context.Context, params map[string]any) Result {
				bucket := bucketOf(params)

				objects, err := store.List(ctx, bucket)
				if err != nil {
					return FromError(err)
				}

				return Success("", ObjectListing{Bucket: bucket, Objects: objects})
			},
		},
	)
}

func contentTypeFor(name string) string {
	switch ext := strings.ToLower(path.Ext(name)); ext {
	case ".md", ".markdown":
		return "text/markdown; charset=utf-8"
	default:
		if t := mime.TypeByExtension(ext); t != "" {
			return t
		}
		return "text/plain; charset=utf-8"
	}
}
