package stream_test

import (
	"testing"

	"goa.design/responses-bridge/chatcompletions"
	"goa.design/responses-bridge/responses"
	"goa.design/responses-bridge/stream"
	"goa.design/responses-bridge/tools"
	"goa.design/responses-bridge/translate"
)

type recordingWriter struct {
	names []string
	data  []any
}

func (w *recordingWriter) WriteEvent(ev stream.Event) error {
	w.names = append(w.names, ev.Name)
	w.data = append(w.data, ev.Data)
	return nil
}

func newTestContext(t *testing.T) *translate.Context {
	t.Helper()
	reg, err := tools.New(tools.Builtins()...)
	if err != nil {
		t.Fatalf("tools.New: %v", err)
	}
	return &translate.Context{Model: "openai/gpt-4.1", ToolMap: translate.NewToolMap(reg)}
}

func strPtr(s string) *string { return &s }

func TestBridgeStreamingText(t *testing.T) {
	w := &recordingWriter{}
	b := stream.NewBridge(w, newTestContext(t), "resp_1", "openai/gpt-4.1", 100)

	chunks := []chatcompletions.StreamChunk{
		{Choices: []chatcompletions.ChunkChoice{{Delta: chatcompletions.ChunkDelta{Content: "He"}}}},
		{Choices: []chatcompletions.ChunkChoice{{Delta: chatcompletions.ChunkDelta{Content: "llo"}}}},
		{Choices: []chatcompletions.ChunkChoice{{Delta: chatcompletions.ChunkDelta{Content: "!"}, FinishReason: strPtr("stop")}}},
	}
	for _, c := range chunks {
		if err := b.HandleChunk(c); err != nil {
			t.Fatalf("HandleChunk: %v", err)
		}
	}
	obj, err := b.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}

	wantOrder := []string{
		"response.created",
		"response.output_item.added",
		"response.content_part.added",
		"response.output_text.delta",
		"response.output_text.delta",
		"response.output_text.delta",
		"response.output_text.done",
		"response.content_part.done",
		"response.output_item.done",
		"response.completed",
	}
	if len(w.names) != len(wantOrder) {
		t.Fatalf("got %d events %v, want %d", len(w.names), w.names, len(wantOrder))
	}
	for i, name := range wantOrder {
		if w.names[i] != name {
			t.Errorf("event[%d] = %s, want %s", i, w.names[i], name)
		}
	}
	msg, ok := obj.Output[0].(responses.MessageOutputItem)
	if !ok || msg.Content[0].Text != "Hello!" {
		t.Fatalf("output[0] = %#v", obj.Output[0])
	}
}

func TestBridgeStreamingToolCall(t *testing.T) {
	w := &recordingWriter{}
	ctx := newTestContext(t)
	if err := ctx.ToolMap.AddBuiltin("shell_call", "shell"); err != nil {
		t.Fatalf("AddBuiltin: %v", err)
	}
	b := stream.NewBridge(w, ctx, "resp_2", "openai/gpt-4.1", 100)

	chunks := []chatcompletions.StreamChunk{
		{Choices: []chatcompletions.ChunkChoice{{Delta: chatcompletions.ChunkDelta{ToolCalls: []chatcompletions.ToolCallDelta{
			{Index: 0, ID: "call_9", Function: chatcompletions.FunctionCallDelta{Name: "shell", Arguments: `{"cmd":`}},
		}}}}},
		{Choices: []chatcompletions.ChunkChoice{{Delta: chatcompletions.ChunkDelta{ToolCalls: []chatcompletions.ToolCallDelta{
			{Index: 0, Function: chatcompletions.FunctionCallDelta{Arguments: `"ls"}`}},
		}}, FinishReason: strPtr("tool_calls")}}},
	}
	for _, c := range chunks {
		if err := b.HandleChunk(c); err != nil {
			t.Fatalf("HandleChunk: %v", err)
		}
	}
	obj, err := b.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}

	var sawArgsDone bool
	for _, name := range w.names {
		if name == "response.function_call_arguments.done" {
			sawArgsDone = true
		}
	}
	if !sawArgsDone {
		t.Fatal("expected a function_call_arguments.done event")
	}

	call, ok := obj.Output[0].(responses.BuiltinCallOutput)
	if !ok {
		t.Fatalf("output[0] = %#v, want BuiltinCallOutput", obj.Output[0])
	}
	if call.Type != "shell_call" || call.CallID != "call_9" {
		t.Fatalf("call = %+v", call)
	}
}

func TestBridgeFailBeforeFirstByte(t *testing.T) {
	w := &recordingWriter{}
	b := stream.NewBridge(w, newTestContext(t), "resp_3", "m", 0)
	err := b.Fail("upstream_error", "connect_failed", "dial tcp: timeout")
	if err == nil {
		t.Fatal("expected error surfaced directly")
	}
	if len(w.names) != 0 {
		t.Fatalf("expected no events emitted, got %v", w.names)
	}
}

func TestBridgeFailAfterFirstByte(t *testing.T) {
	w := &recordingWriter{}
	b := stream.NewBridge(w, newTestContext(t), "resp_4", "m", 0)
	if err := b.HandleChunk(chatcompletions.StreamChunk{Choices: []chatcompletions.ChunkChoice{{Delta: chatcompletions.ChunkDelta{Content: "hi"}}}}); err != nil {
		t.Fatalf("HandleChunk: %v", err)
	}
	if err := b.Fail("upstream_error", "disconnect", "connection reset"); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if w.names[len(w.names)-1] != "response.failed" {
		t.Fatalf("last event = %s, want response.failed", w.names[len(w.names)-1])
	}
}
