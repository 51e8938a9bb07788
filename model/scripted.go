package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/docmesh/core"
)

// Reply is one scripted model turn: either content or an error.
type Reply struct {
	Content core.Content
	Err     error
}

// ScriptedModel replays queued replies in order and records every request.
// Once the queue is drained it falls back to Fallback (when set) or returns an
// error. It is safe for concurrent use.
type ScriptedModel struct {
	mu       sync.Mutex
	info     Info
	replies  []Reply
	requests []Request

	// Fallback, when non-nil, computes a reply once the queue is empty.
	Fallback func(req Request) Reply
}

// NewScriptedModel creates a ScriptedModel with tool support.
func NewScriptedModel(name string, replies ...Reply) *ScriptedModel {
	return &ScriptedModel{
		info:    Info{Name: name, Provider: "scripted", SupportsTools: true},
		replies: replies,
	}
}

// Enqueue appends replies to the script.
func (m *ScriptedModel) Enqueue(replies ...Reply) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, replies...)
}

// Requests returns the requests seen so far.
func (m *ScriptedModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Remaining returns the number of queued replies not yet consumed.
func (m *ScriptedModel) Remaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.replies)
}

func (m *ScriptedModel) next(req Request) Reply {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)
	if len(m.replies) > 0 {
		r := m.replies[0]
		m.replies = m.replies[1:]
		return r
	}
	if m.Fallback != nil {
		return m.Fallback(req)
	}
	return Reply{Err: fmt.Errorf("scripted model %s: no reply queued", m.info.Name)}
}

// Generate implements Model.
func (m *ScriptedModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		if err := ctx.Err(); err != nil {
			errCh <- err
			return
		}

		reply := m.next(req)
		if reply.Err != nil {
			errCh <- reply.Err
			return
		}

		content := reply.Content
		if content.Role == "" {
			content.Role = "assistant"
		}

		finish := "stop"
		if len(content.FunctionCalls()) > 0 {
			finish = "tool_calls"
		}

		respCh <- Response{ID: core.NewID(), Content: content, FinishReason: finish}
	}()

	return respCh, errCh
}

// Info implements Model.
func (m *ScriptedModel) Info() Info { return m.info }

// TextReply scripts a plain assistant answer.
func TextReply(text string) Reply {
	return Reply{Content: core.NewTextContent("assistant", text)}
}

// CallReply scripts a single function call with raw JSON arguments.
func CallReply(name, arguments string) Reply {
	return Reply{Content: core.Content{
		Role: "assistant",
		Parts: []core.Part{core.FunctionCallPart{FunctionCall: core.FunctionCall{
			ID:        "call_" + core.NewID()[:8],
			Name:      name,
			Arguments: arguments,
		}}},
	}}
}

// ErrorReply scripts a transport failure.
func ErrorReply(err error) Reply { return Reply{Err: err} }
