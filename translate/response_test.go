package translate_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"goa.design/responses-bridge/chatcompletions"
	"goa.design/responses-bridge/responses"
	"goa.design/responses-bridge/translate"
)

func TestResponseTranslatorPlainText(t *testing.T) {
	reg := newRegistry(t)
	ctx := &translate.Context{Model: "openai/gpt-4.1", ToolMap: translate.NewToolMap(reg)}
	rt := translate.NewResponseTranslator()

	resp := &chatcompletions.Response{
		Choices: []chatcompletions.Choice{{Message: chatcompletions.Message{Role: chatcompletions.RoleAssistant, Content: "Hi"}, FinishReason: "stop"}},
	}
	obj, err := rt.Translate(resp, ctx, 100)
	require.NoError(t, err)
	require.Equal(t, "completed", obj.Status)
	require.Len(t, obj.Output, 1)
	msg, ok := obj.Output[0].(responses.MessageOutputItem)
	require.True(t, ok)
	require.Equal(t, "Hi", msg.Content[0].Text)
}

func TestResponseTranslatorVirtualizedToolCall(t *testing.T) {
	reg := newRegistry(t)
	ctx := &translate.Context{Model: "openai/gpt-4.1", ToolMap: translate.NewToolMap(reg)}
	require.NoError(t, ctx.ToolMap.AddBuiltin("shell_call", "shell"))
	rt := translate.NewResponseTranslator()

	resp := &chatcompletions.Response{
		Choices: []chatcompletions.Choice{{
			Message: chatcompletions.Message{
				Role: chatcompletions.RoleAssistant,
				ToolCalls: []chatcompletions.ToolCall{{
					ID:   "call_9",
					Type: "function",
					Function: chatcompletions.FunctionCall{
						Name:      "shell",
						Arguments: `{"cmd":"ls"}`,
					},
				}},
			},
			FinishReason: "tool_calls",
		}},
	}
	obj, err := rt.Translate(resp, ctx, 100)
	require.NoError(t, err)
	require.Len(t, obj.Output, 1)
	call, ok := obj.Output[0].(responses.BuiltinCallOutput)
	require.True(t, ok)
	require.Equal(t, "shell_call", call.Type)
	require.Equal(t, "call_9", call.CallID)
}

func TestResponseTranslatorIncompleteStatus(t *testing.T) {
	reg := newRegistry(t)
	ctx := &translate.Context{Model: "m", ToolMap: translate.NewToolMap(reg)}
	rt := translate.NewResponseTranslator()
	resp := &chatcompletions.Response{
		Choices: []chatcompletions.Choice{{Message: chatcompletions.Message{Content: "partial"}, FinishReason: "length"}},
	}
	obj, err := rt.Translate(resp, ctx, 0)
	require.NoError(t, err)
	require.Equal(t, "incomplete", obj.Status)
}
