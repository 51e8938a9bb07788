// Package weaviate implements core.VectorStore on a Weaviate server using the
// official Go client.
package weaviate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/hupe1980/docmesh/core"
	"github.com/hupe1980/docmesh/vectorstore"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/fault"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

var _ core.VectorStore = (*Store)(nil)

// Options configures the Weaviate connection.
type Options struct {
	// Endpoint is the server URL, e.g. http://weaviate:8080.
	Endpoint string
	APIKey   string
	// Vectorizer is the module used for new classes. "none" disables
	// nearText queries; they fall back to a Like filter on content.
	Vectorizer string
	// DefaultProperties are queried when a query names none.
	DefaultProperties []string
}

// Store is a core.VectorStore backed by Weaviate.
type Store struct {
	client *weaviate.Client
	opts   Options
}

// New creates a client for the configured endpoint.
func New(optFns ...func(o *Options)) (*Store, error) {
	opts := Options{
		Endpoint:          "http://weaviate:8080",
		Vectorizer:        "none",
		DefaultProperties: vectorstore.PropertyNames(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	scheme, host := splitEndpoint(opts.Endpoint)
	cfg := weaviate.Config{Host: host, Scheme: scheme}
	if opts.APIKey != "" {
		cfg.AuthConfig = auth.ApiKey{Value: opts.APIKey}
	}

	client, err := weaviate.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("weaviate client: %w", err)
	}

	return &Store{client: client, opts: opts}, nil
}

func splitEndpoint(endpoint string) (scheme, host string) {
	scheme = "http"
	host = endpoint
	if i := strings.Index(endpoint, "://"); i >= 0 {
		scheme = endpoint[:i]
		host = endpoint[i+3:]
	}
	return scheme, strings.TrimSuffix(host, "/")
}

// EnsureClass creates class with the document schema when it is missing.
func (s *Store) EnsureClass(ctx context.Context, class string) error {
	exists, err := s.client.Schema().ClassExistenceChecker().WithClassName(class).Do(ctx)
	if err != nil {
		return fmt.Errorf("check class %s: %w", class, err)
	}
	if exists {
		return nil
	}

	props := make([]*models.Property, 0, len(vectorstore.DocumentProperties))
	for _, p := range vectorstore.DocumentProperties {
		props = append(props, &models.Property{
			Name:        p.Name,
			DataType:    []string{p.DataType},
			Description: p.Description,
		})
	}

	err = s.client.Schema().ClassCreator().WithClass(&models.Class{
		Class:       class,
		Description: "Documents indexed from object storage.",
		Vectorizer:  s.opts.Vectorizer,
		Properties:  props,
	}).Do(ctx)
	if err != nil {
		return fmt.Errorf("create class %s: %w", class, err)
	}

	return nil
}

// Create stores rec and returns the assigned id.
func (s *Store) Create(ctx context.Context, class string, rec core.Record) (string, error) {
	creator := s.client.Data().Creator().
		WithClassName(class).
		WithProperties(rec.Properties)
	if rec.ID != "" {
		creator = creator.WithID(rec.ID)
	}

	w, err := creator.Do(ctx)
	if err != nil {
		return "", mapError("create object", err)
	}

	return string(w.Object.ID), nil
}

// Update merges properties into the object.
func (s *Store) Update(ctx context.Context, class, id string, properties map[string]any) error {
	err := s.client.Data().Updater().
		WithMerge().
		WithClassName(class).
		WithID(id).
		WithProperties(properties).
		Do(ctx)
	if err != nil {
		return mapError("update object "+id, err)
	}
	return nil
}

// Delete removes the object.
func (s *Store) Delete(ctx context.Context, class, id string) error {
	err := s.client.Data().Deleter().
		WithClassName(class).
		WithID(id).
		Do(ctx)
	if err != nil {
		return mapError("delete object "+id, err)
	}
	return nil
}

// Get runs a GraphQL Get query.
func (s *Store) Get(ctx context.Context, class string, q core.Query) ([]core.Record, error) {
	names := q.Properties
	if len(names) == 0 {
		names = s.opts.DefaultProperties
	}

	fields := make([]graphql.Field, 0, len(names)+1)
	for _, n := range names {
		fields = append(fields, graphql.Field{Name: n})
	}
	fields = append(fields, graphql.Field{Name: "_additional", Fields: []graphql.Field{{Name: "id"}, {Name: "distance"}}})

	get := s.client.GraphQL().Get().WithClassName(class).WithFields(fields...)

	where := whereFilter(q.Where)
	if q.NearText != "" {
		if s.opts.Vectorizer != "" && s.opts.Vectorizer != "none" {
			get = get.WithNearText(s.client.GraphQL().NearTextArgBuilder().WithConcepts([]string{q.NearText}))
		} else {
			where = and(where, filters.Where().
				WithPath([]string{"content"}).
				WithOperator(filters.Like).
				WithValueText("*"+q.NearText+"*"))
		}
	}
	if where != nil {
		get = get.WithWhere(where)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = vectorstore.DefaultLimit
	}
	get = get.WithLimit(limit)

	resp, err := get.Do(ctx)
	if err != nil {
		return nil, mapError("get objects", err)
	}
	if len(resp.Errors) > 0 {
		msgs := make([]string, 0, len(resp.Errors))
		for _, e := range resp.Errors {
			msgs = append(msgs, e.Message)
		}
		return nil, fmt.Errorf("get objects: %s", strings.Join(msgs, "; "))
	}

	return parseGet(resp.Data, class), nil
}

// parseGet extracts records from the data of a GraphQL Get response.
func parseGet(data map[string]models.JSONObject, class string) []core.Record {
	records := make([]core.Record, 0)

	get, ok := data["Get"].(map[string]any)
	if !ok {
		return records
	}
	items, ok := get[class].([]any)
	if !ok {
		return records
	}

	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}

		rec := core.Record{Class: class, Properties: make(map[string]any, len(obj))}
		for k, v := range obj {
			if k == "_additional" {
				if add, ok := v.(map[string]any); ok {
					rec.ID, _ = add["id"].(string)
					rec.Distance, _ = add["distance"].(float64)
				}
				continue
			}
			if v != nil {
				rec.Properties[k] = v
			}
		}
		records = append(records, rec)
	}

	return records
}

// whereFilter turns equality filters into a Weaviate where clause. Keys are
// combined with And in sorted order.
func whereFilter(where map[string]any) *filters.WhereBuilder {
	if len(where) == 0 {
		return nil
	}

	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out *filters.WhereBuilder
	for _, k := range keys {
		out = and(out, equal(k, where[k]))
	}

	return out
}

func equal(path string, value any) *filters.WhereBuilder {
	b := filters.Where().WithPath([]string{path}).WithOperator(filters.Equal)

	switch v := value.(type) {
	case bool:
		return b.WithValueBoolean(v)
	case int:
		return b.WithValueInt(int64(v))
	case int64:
		return b.WithValueInt(v)
	case float64:
		if v == float64(int64(v)) {
			return b.WithValueInt(int64(v))
		}
		return b.WithValueNumber(v)
	case string:
		return b.WithValueText(v)
	default:
		return b.WithValueText(fmt.Sprint(v))
	}
}

func and(left, right *filters.WhereBuilder) *filters.WhereBuilder {
	if left == nil {
		return right
	}
	return filters.Where().
		WithOperator(filters.And).
		WithOperands([]*filters.WhereBuilder{left, right})
}

func mapError(op string, err error) error {
	var clientErr *fault.WeaviateClientError
	if errors.As(err, &clientErr) && clientErr.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
