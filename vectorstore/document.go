package vectorstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hupe1980/docmesh/core"
)

// DefaultClass is the class indexed documents are stored in.
const DefaultClass = "MarkdownDocument"

// Property describes one property of the document class.
type Property struct {
	Name        string
	DataType    string
	Description string
}

// DocumentProperties is the schema of the document class.
var DocumentProperties = []Property{
	{Name: "name", DataType: "text", Description: "Object name the document was read from."},
	{Name: "source", DataType: "text", Description: "Bucket and object key of the source."},
	{Name: "content", DataType: "text", Description: "Primary content of the document; base64 for binary data."},
	{Name: "summary", DataType: "text", Description: "Model generated summary of the content."},
	{Name: "timestamp", DataType: "date", Description: "Creation or last modified time."},
	{Name: "tags", DataType: "text[]", Description: "Tags for categorization and retrieval."},
	{Name: "metadata", DataType: "text", Description: "Additional metadata as a JSON string."},
}

// PropertyNames returns the names of DocumentProperties.
func PropertyNames() []string {
	names := make([]string, len(DocumentProperties))
	for i, p := range DocumentProperties {
		names[i] = p.Name
	}
	return names
}

// Document is an indexed object.
type Document struct {
	ID        string    `json:"id,omitempty"`
	Name      string    `json:"name"`
	Source    string    `json:"source,omitempty"`
	Content   string    `json:"content"`
	Summary   string    `json:"summary,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Tags      []string  `json:"tags,omitempty"`
	// Metadata is opaque JSON text.
	Metadata string `json:"metadata,omitempty"`
}

// Properties converts d into vector store properties.
func (d Document) Properties() map[string]any {
	props := map[string]any{
		"name":      d.Name,
		"source":    d.Source,
		"content":   d.Content,
		"summary":   d.Summary,
		"timestamp": d.Timestamp.UTC().Format(time.RFC3339),
	}
	if len(d.Tags) > 0 {
		props["tags"] = d.Tags
	}
	if d.Metadata != "" {
		props["metadata"] = d.Metadata
	}
	return props
}

// Record converts d into a core.Record of class.
func (d Document) Record(class string) core.Record {
	return core.Record{ID: d.ID, Class: class, Properties: d.Properties()}
}

// DocumentFromRecord reads a Document back from a record.
func DocumentFromRecord(r core.Record) Document {
	d := Document{ID: r.ID}
	d.Name, _ = r.Properties["name"].(string)
	d.Source, _ = r.Properties["source"].(string)
	d.Content, _ = r.Properties["content"].(string)
	d.Summary, _ = r.Properties["summary"].(string)
	d.Metadata, _ = r.Properties["metadata"].(string)

	if ts, ok := r.Properties["timestamp"].(string); ok {
		d.Timestamp, _ = time.Parse(time.RFC3339, ts)
	}

	switch tags := r.Properties["tags"].(type) {
	case []string:
		d.Tags = tags
	case []any:
		for _, t := range tags {
			d.Tags = append(d.Tags, fmt.Sprint(t))
		}
	}

	return d
}

// EncodeMetadata renders metadata as the JSON text stored on a document.
func EncodeMetadata(metadata map[string]any) (string, error) {
	if len(metadata) == 0 {
		return "", nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	return string(data), nil
}
