package agent

import (
	"errors"
	"testing"

	"github.com/hupe1980/docmesh/core"
	"github.com/hupe1980/docmesh/internal/testutil"
	"github.com/hupe1980/docmesh/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testOptions = []string{"FINISH", "researcher", "writer"}

func TestRouteTool(t *testing.T) {
	def := RouteTool(testOptions)

	assert.Equal(t, "function", def.Type)
	assert.Equal(t, RouteFunctionName, def.Function.Name)

	params := def.Function.Parameters
	props, ok := params["properties"].(map[string]any)
	require.True(t, ok)
	next, ok := props["next"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "string", next["type"])
	assert.Equal(t, testOptions, next["enum"])
	assert.Equal(t, []string{"next"}, params["required"])
}

func TestParseDecision(t *testing.T) {
	resp := func(r model.Reply) model.Response { return model.Response{Content: r.Content} }

	t.Run("valid worker", func(t *testing.T) {
		d, err := ParseDecision(resp(testutil.Route("writer")), testOptions)
		require.NoError(t, err)
		assert.Equal(t, "writer", d.Next)
		assert.False(t, d.IsFinish())
	})

	t.Run("finish", func(t *testing.T) {
		d, err := ParseDecision(resp(testutil.Route("FINISH")), testOptions)
		require.NoError(t, err)
		assert.True(t, d.IsFinish())
	})

	t.Run("route call among other calls", func(t *testing.T) {
		r := testutil.NewReplyBuilder().
			Call("minio", map[string]any{"action": "list"}).
			Call(RouteFunctionName, map[string]any{"next": "researcher"}).
			Build()
		d, err := ParseDecision(resp(r), testOptions)
		require.NoError(t, err)
		assert.Equal(t, "researcher", d.Next)
	})

	violations := []struct {
		name   string
		reply  model.Reply
		reason string
	}{
		{"plain text", model.TextReply("writer"), ReasonMissingCall},
		{"other function", testutil.NewReplyBuilder().Call("minio", map[string]any{"next": "writer"}).Build(), ReasonMissingCall},
		{"bare string arguments", model.CallReply(RouteFunctionName, `"writer"`), ReasonMalformedArgs},
		{"broken json", model.CallReply(RouteFunctionName, `{"next":`), ReasonMalformedArgs},
		{"missing next", model.CallReply(RouteFunctionName, `{"worker":"writer"}`), ReasonMalformedArgs},
		{"non-string next", model.CallReply(RouteFunctionName, `{"next":3}`), ReasonMalformedArgs},
		{"out of set", testutil.Route("editor"), ReasonInvalidRoute},
		{"wrong case finish", testutil.Route("finish"), ReasonInvalidRoute},
	}

	for _, tt := range violations {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDecision(resp(tt.reply), testOptions)
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrContractViolation)

			var cv *core.ContractViolationError
			require.True(t, errors.As(err, &cv))
			assert.Equal(t, tt.reason, cv.Reason)
			assert.Equal(t, testOptions, cv.Options)
		})
	}
}
