package testutil

import (
	"encoding/json"
	"fmt"

	"github.com/hupe1980/docmesh/core"
	"github.com/hupe1980/docmesh/model"
)

// ReplyBuilder provides a fluent helper for constructing scripted replies.
// Example:
//
//	r := NewReplyBuilder().Text("thinking").Call("minio", map[string]any{"action": "list"}).Build()
type ReplyBuilder struct {
	parts []core.Part
	n     int
}

// NewReplyBuilder creates an empty builder.
func NewReplyBuilder() *ReplyBuilder { return &ReplyBuilder{} }

// Text appends a text part (chainable).
func (b *ReplyBuilder) Text(t string) *ReplyBuilder {
	b.parts = append(b.parts, core.TextPart{Text: t})
	return b
}

// Call appends a function call whose arguments are args encoded as JSON
// (chainable).
func (b *ReplyBuilder) Call(name string, args map[string]any) *ReplyBuilder {
	data, err := json.Marshal(args)
	if err != nil {
		panic(fmt.Sprintf("testutil: encode args: %v", err))
	}
	return b.RawCall(name, string(data))
}

// RawCall appends a function call with verbatim arguments (chainable).
func (b *ReplyBuilder) RawCall(name, arguments string) *ReplyBuilder {
	b.n++
	b.parts = append(b.parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{
		ID:        fmt.Sprintf("call_%d", b.n),
		Name:      name,
		Arguments: arguments,
	}})
	return b
}

// Build finalizes the reply.
func (b *ReplyBuilder) Build() model.Reply {
	parts := make([]core.Part, len(b.parts))
	copy(parts, b.parts)
	return model.Reply{Content: core.Content{Role: "assistant", Parts: parts}}
}

// Route scripts a supervisor routing call selecting next.
func Route(next string) model.Reply {
	return NewReplyBuilder().Call("route", map[string]any{"next": next}).Build()
}

// Routes scripts a sequence of routing calls.
func Routes(next ...string) []model.Reply {
	out := make([]model.Reply, len(next))
	for i, n := range next {
		out[i] = Route(n)
	}
	return out
}
