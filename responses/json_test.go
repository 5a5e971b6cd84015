package responses_test

import (
	"encoding/json"
	"testing"

	"goa.design/responses-bridge/responses"
)

func TestInputUnmarshalStringForm(t *testing.T) {
	var req responses.Request
	if err := json.Unmarshal([]byte(`{"model":"gpt-4.1","input":"Hello"}`), &req); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if req.Input.Text != "Hello" || req.Input.Items != nil {
		t.Fatalf("got Input=%+v", req.Input)
	}
}

func TestInputUnmarshalItemForm(t *testing.T) {
	body := `{"model":"gpt-4.1","input":[
		{"type":"message","role":"user","content":"hi"},
		{"type":"function_call","call_id":"call_1","name":"lookup","arguments":"{}"},
		{"type":"function_call_output","call_id":"call_1","output":"ok"},
		{"type":"shell_call","call_id":"call_2","command":"ls"},
		{"type":"shell_call_output","call_id":"call_2","output":"file1"},
		{"type":"reasoning","summary":"thinking"}
	]}`
	var req responses.Request
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(req.Input.Items) != 6 {
		t.Fatalf("got %d items, want 6", len(req.Input.Items))
	}
	msg, ok := req.Input.Items[0].(responses.MessageItem)
	if !ok || msg.Content != "hi" {
		t.Fatalf("items[0] = %#v", req.Input.Items[0])
	}
	builtin, ok := req.Input.Items[3].(responses.BuiltinCallItem)
	if !ok || builtin.Type != "shell_call" || builtin.CallID != "call_2" {
		t.Fatalf("items[3] = %#v", req.Input.Items[3])
	}
	if _, ok := builtin.Fields["command"]; !ok {
		t.Fatalf("expected command field, got %+v", builtin.Fields)
	}
}

func TestObjectMarshalDiscriminators(t *testing.T) {
	obj := responses.Object{
		ID:     "resp_1",
		Status: "completed",
		Output: []responses.OutputItem{
			responses.MessageOutputItem{ID: "msg_1", Role: "assistant", Content: []responses.OutputContentPart{{Type: "output_text", Text: "hi"}}},
			responses.FunctionCallOutput{ID: "fc_1", CallID: "call_1", Name: "lookup", Arguments: "{}"},
		},
	}
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	output, ok := decoded["output"].([]any)
	if !ok || len(output) != 2 {
		t.Fatalf("output = %#v", decoded["output"])
	}
	first := output[0].(map[string]any)
	if first["type"] != "message" {
		t.Errorf("output[0].type = %v, want message", first["type"])
	}
	second := output[1].(map[string]any)
	if second["type"] != "function_call" {
		t.Errorf("output[1].type = %v, want function_call", second["type"])
	}
}
