package tool

import (
	"context"
	"errors"

	"github.com/hupe1980/docmesh/core"
)

// VectorStoreToolName is the default identifier of the vector store tool.
const VectorStoreToolName = "weaviate"

// VectorStoreToolOptions configures NewVectorStoreTool.
type VectorStoreToolOptions struct {
	Name         string
	DefaultClass string
}

// CreatedObject is the data of successful create, update and delete actions.
type CreatedObject struct {
	ID    string `json:"id"`
	Class string `json:"class"`
}

// NewVectorStoreTool exposes store through the get, create, update and delete
// actions. Class parameters fall back to DefaultClass.
func NewVectorStoreTool(store core.VectorStore, optFns ...func(o *VectorStoreToolOptions)) *ActionTool {
	opts := VectorStoreToolOptions{Name: VectorStoreToolName}
	for _, fn := range optFns {
		fn(&opts)
	}

	classOf := func(params map[string]any) string {
		return stringParam(params, "class", opts.DefaultClass)
	}

	classProp := map[string]any{"type": "string", "description": "Name of the class."}
	idProp := map[string]any{"type": "string", "description": "Object id."}
	propsProp := map[string]any{"type": "object", "description": "Object properties."}

	notFound := func(class, id string, err error) Result {
		if errors.Is(err, core.ErrNotFound) {
			return Failure("Object %s not found in class %s", id, class).WithCode(CodeNotFound)
		}
		return FromError(err)
	}

	return NewActionTool(opts.Name, "Interact with Weaviate object storage.",
		Action{
			Name:        "get",
			Description: "query objects of a class",
			Properties: map[string]any{
				"class":      classProp,
				"properties": map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Property names to return."},
				"where":      map[string]any{"type": "object", "description": "Equality filters on properties."},
				"near_text":  map[string]any{"type": "string", "description": "Rank results by similarity to this text."},
				"limit":      map[string]any{"type": "integer", "description": "Maximum number of objects."},
			},
			Handler: func(ctx context.Context, params map[string]any) Result {
				records, err := store.Get(ctx, classOf(params), core.Query{
					Properties: stringsParam(params, "properties"),
					Where:      mapParam(params, "where"),
					NearText:   stringParam(params, "near_text", ""),
					Limit:      intParam(params, "limit", 0),
				})
				if err != nil {
					return FromError(err)
				}
				if records == nil {
					records = []core.Record{}
				}
				return Success("", records)
			},
		},
		Action{
			Name:        "create",
			Description: "create an object",
			Properties: map[string]any{
				"class":      classProp,
				"properties": propsProp,
				"id":         idProp,
			},
			Required: []string{"properties"},
			Handler: func(ctx context.Context, params map[string]any) Result {
				class := classOf(params)
				id, err := store.Create(ctx, class, core.Record{
					ID:         stringParam(params, "id", ""),
					Properties: mapParam(params, "properties"),
				})
				if err != nil {
					return FromError(err)
				}
				return Success("Object created successfully", CreatedObject{ID: id, Class: class})
			},
		},
		Action{
			Name:        "update",
			Description: "merge properties into an existing object",
			Properties: map[string]any{
				"class":      classProp,
				"id":         idProp,
				"properties": propsProp,
			},
			Required: []string{"id", "properties"},
			Handler: func(ctx context.Context, params map[string]any) Result {
				class := classOf(params)
				id := stringParam(params, "id", "")
				if err := store.Update(ctx, class, id, mapParam(params, "properties")); err != nil {
					return notFound(class, id, err)
				}
				return Success("Object updated successfully", CreatedObject{ID: id, Class: class})
			},
		},
		Action{
			Name:        "delete",
			Description: "delete an object",
			Properties: map[string]any{
				"class": classProp,
				"id":    idProp,
			},
			Required: []string{"id"},
			Handler: func(ctx context.Context, params map[string]any) Result {
				class := classOf(params)
				id := stringParam(params, "id", "")
				if err := store.Delete(ctx, class, id); err != nil {
					return notFound(class, id, err)
				}
				return Success("Object deleted successfully", CreatedObject{ID: id, Class: class})
			},
		},
	)
}
