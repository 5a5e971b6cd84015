package translate_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"goa.design/responses-bridge/chatcompletions"
	"goa.design/responses-bridge/responses"
	"goa.design/responses-bridge/tools"
	"goa.design/responses-bridge/translate"
)

func newRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	reg, err := tools.New(tools.Builtins()...)
	require.NoError(t, err)
	return reg
}

func TestTranslatePlainText(t *testing.T) {
	reg := newRegistry(t)
	tr := translate.NewRequestTranslator(reg, map[string]string{"gpt-4.1": "openai/gpt-4.1"}, 256)

	req := &responses.Request{Model: "gpt-4.1", Input: responses.Input{Text: "Hello"}}
	out, ctx, err := tr.Translate(req, nil)
	require.NoError(t, err)
	require.Equal(t, "openai/gpt-4.1", out.Model)
	require.Len(t, out.Messages, 1)
	require.Equal(t, chatcompletions.RoleUser, out.Messages[0].Role)
	require.Equal(t, "Hello", out.Messages[0].Content)
	require.False(t, ctx.ToolsInferred)
}

func TestTranslateVirtualizedBuiltin(t *testing.T) {
	reg := newRegistry(t)
	tr := translate.NewRequestTranslator(reg, nil, 0)

	req := &responses.Request{
		Model: "gpt-4.1",
		Tools: []responses.ToolDecl{{Type: "apply_patch"}},
	}
	out, ctx, err := tr.Translate(req, nil)
	require.NoError(t, err)
	require.Len(t, out.Tools, 1)
	require.Equal(t, "apply_patch", out.Tools[0].Function.Name)
	externalType, ok := ctx.ToolMap.ExternalType("apply_patch")
	require.True(t, ok)
	require.Equal(t, "apply_patch_call", externalType)
}

func TestTranslateToolNameCollisionFails(t *testing.T) {
	reg := newRegistry(t)
	tr := translate.NewRequestTranslator(reg, nil, 0)

	req := &responses.Request{
		Model: "gpt-4.1",
		Tools: []responses.ToolDecl{
			{Type: "apply_patch"},
			{Type: "function", Function: &responses.FunctionDecl{Name: "apply_patch"}},
		},
	}
	_, _, err := tr.Translate(req, nil)
	require.Error(t, err)
}

func TestTranslateInfersToolsOnFollowUp(t *testing.T) {
	reg := newRegistry(t)
	tr := translate.NewRequestTranslator(reg, nil, 0)

	req := &responses.Request{
		Model: "gpt-4.1",
		Input: responses.Input{Items: []responses.InputItem{
			responses.FunctionCallItem{CallID: "call_1", Name: "lookup", Arguments: "{}"},
			responses.FunctionCallOutputItem{CallID: "call_1", Output: "ok"},
		}},
	}
	out, ctx, err := tr.Translate(req, nil)
	require.NoError(t, err)
	require.True(t, ctx.ToolsInferred)
	require.Len(t, out.Tools, 1)
	require.Equal(t, "lookup", out.Tools[0].Function.Name)
	var choice string
	require.NoError(t, json.Unmarshal(out.ToolChoice, &choice))
	require.Equal(t, "none", choice)
}

func TestTranslateInstructionsNotInherited(t *testing.T) {
	reg := newRegistry(t)
	tr := translate.NewRequestTranslator(reg, nil, 0)

	prior := []chatcompletions.Message{{Role: chatcompletions.RoleUser, Content: "hi"}}
	req := &responses.Request{Model: "gpt-4.1", Input: responses.Input{Text: "again"}}
	out, _, err := tr.Translate(req, prior)
	require.NoError(t, err)
	for _, m := range out.Messages {
		require.NotEqual(t, chatcompletions.RoleSystem, m.Role)
	}
}

func TestTranslateMaxOutputTokensBuffer(t *testing.T) {
	reg := newRegistry(t)
	tr := translate.NewRequestTranslator(reg, nil, 100)
	max := 500
	req := &responses.Request{Model: "gpt-4.1", Input: responses.Input{Text: "hi"}, MaxOutputTokens: &max}
	out, _, err := tr.Translate(req, nil)
	require.NoError(t, err)
	require.NotNil(t, out.MaxTokens)
	require.Equal(t, 600, *out.MaxTokens)
}
