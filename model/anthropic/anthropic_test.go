package anthropic

import (
	"testing"

	"github.com/hupe1980/docmesh/core"
	"github.com/hupe1980/docmesh/internal/util"
	"github.com/hupe1980/docmesh/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSystem(t *testing.T) {
	blocks := buildSystem(model.Request{
		Instructions: "be brief",
		Contents:     []core.Content{core.NewTextContent("system", "roster"), core.NewTextContent("user", "hi")},
	})

	require.Len(t, blocks, 2)
	assert.Equal(t, "be brief", blocks[0].Text)
	assert.Equal(t, "roster", blocks[1].Text)
}

func TestBuildMessages_ToolResultsInUserTurn(t *testing.T) {
	msgs := buildMessages([]core.Content{
		core.NewTextContent("system", "skip"),
		core.NewTextContent("user", "hello"),
		{Role: "assistant", Parts: []core.Part{core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "t1", Name: "x", Arguments: "{}"}}}},
		{Role: "tool", Parts: []core.Part{core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{ID: "t1", Name: "x", Response: "ok"}}}},
	})

	require.Len(t, msgs, 3)
	assert.Equal(t, "user", string(msgs[0].Role))
	assert.Equal(t, "assistant", string(msgs[1].Role))
	assert.Equal(t, "user", string(msgs[2].Role))
}

func TestBuildTools(t *testing.T) {
	tools := buildTools([]model.ToolDefinition{
		model.NewFunctionTool("route", "Select the next role.", util.EnumSchema("next", "", []string{"FINISH", "a"})),
	})

	require.Len(t, tools, 1)
	require.NotNil(t, tools[0].OfTool)
	assert.Equal(t, "route", tools[0].OfTool.Name)
	assert.Equal(t, []string{"next"}, tools[0].OfTool.InputSchema.Required)
}
