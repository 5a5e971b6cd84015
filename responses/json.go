package responses

import (
	"encoding/json"
	"fmt"
)

// builtinCallOutputSuffix identifies an external item type as the output of
// a virtualized built-in call, as opposed to the fixed
// "function_call_output" kind.
const builtinCallOutputSuffix = "_call_output"

// UnmarshalJSON accepts either a bare JSON string or an array of input
// items, matching the two shapes the Responses `input` field allows.
func (in *Input) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		in.Text = asString
		in.Items = nil
		return nil
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return fmt.Errorf("input: expected string or array, got: %w", err)
	}
	items := make([]InputItem, 0, len(raws))
	for i, raw := range raws {
		item, err := decodeInputItem(raw)
		if err != nil {
			return fmt.Errorf("input[%d]: %w", i, err)
		}
		items = append(items, item)
	}
	in.Items = items
	return nil
}

// MarshalJSON round-trips the bare-string or item-array shape, preferring
// the string form when Items is empty.
func (in Input) MarshalJSON() ([]byte, error) {
	if len(in.Items) == 0 {
		return json.Marshal(in.Text)
	}
	encoded := make([]any, 0, len(in.Items))
	for i, item := range in.Items {
		enc, err := encodeInputItem(item)
		if err != nil {
			return nil, fmt.Errorf("input[%d]: %w", i, err)
		}
		encoded = append(encoded, enc)
	}
	return json.Marshal(encoded)
}

func decodeInputItem(raw json.RawMessage) (InputItem, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("decode type discriminator: %w", err)
	}
	switch head.Type {
	case "", "message":
		var m MessageItem
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		return m, nil
	case "function_call":
		var f FunctionCallItem
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("decode function_call: %w", err)
		}
		return f, nil
	case "function_call_output":
		var f FunctionCallOutputItem
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("decode function_call_output: %w", err)
		}
		return f, nil
	case "reasoning":
		var r ReasoningItem
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("decode reasoning: %w", err)
		}
		return r, nil
	default:
		if hasSuffix(head.Type, builtinCallOutputSuffix) {
			var b BuiltinCallOutputItem
			if err := json.Unmarshal(raw, &b); err != nil {
				return nil, fmt.Errorf("decode %s: %w", head.Type, err)
			}
			return b, nil
		}
		// Any other type is captured as a BuiltinCallItem with its extra
		// fields verbatim; the translator projects `*_call` types and drops
		// the rest.
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, fmt.Errorf("decode %s: %w", head.Type, err)
		}
		b := BuiltinCallItem{Type: head.Type, Fields: map[string]json.RawMessage{}}
		for k, v := range obj {
			switch k {
			case "type":
				continue
			case "call_id":
				var callID string
				if err := json.Unmarshal(v, &callID); err != nil {
					return nil, fmt.Errorf("decode %s.call_id: %w", head.Type, err)
				}
				b.CallID = callID
			default:
				b.Fields[k] = v
			}
		}
		return b, nil
	}
}

func encodeInputItem(item InputItem) (any, error) {
	switch v := item.(type) {
	case MessageItem:
		return struct {
			Type string `json:"type"`
			MessageItem
		}{Type: "message", MessageItem: v}, nil
	case FunctionCallItem:
		return struct {
			Type string `json:"type"`
			FunctionCallItem
		}{Type: "function_call", FunctionCallItem: v}, nil
	case FunctionCallOutputItem:
		return struct {
			Type string `json:"type"`
			FunctionCallOutputItem
		}{Type: "function_call_output", FunctionCallOutputItem: v}, nil
	case ReasoningItem:
		return struct {
			Type string `json:"type"`
			ReasoningItem
		}{Type: "reasoning", ReasoningItem: v}, nil
	case BuiltinCallItem:
		obj := map[string]any{"type": v.Type, "call_id": v.CallID}
		for k, raw := range v.Fields {
			obj[k] = raw
		}
		return obj, nil
	case BuiltinCallOutputItem:
		return struct {
			Type string `json:"type"`
			BuiltinCallOutputItem
		}{Type: v.Type, BuiltinCallOutputItem: v}, nil
	default:
		return nil, fmt.Errorf("unknown input item type %T", v)
	}
}

// MarshalJSON encodes an Object's heterogeneous Output slice with an
// explicit "type" discriminator per item.
func (o Object) MarshalJSON() ([]byte, error) {
	type alias Object
	encodedOutput := make([]any, 0, len(o.Output))
	for i, item := range o.Output {
		enc, err := encodeOutputItem(item)
		if err != nil {
			return nil, fmt.Errorf("output[%d]: %w", i, err)
		}
		encodedOutput = append(encodedOutput, enc)
	}
	return json.Marshal(struct {
		alias
		Output []any `json:"output"`
	}{alias: alias(o), Output: encodedOutput})
}

func encodeOutputItem(item OutputItem) (any, error) {
	switch v := item.(type) {
	case MessageOutputItem:
		return struct {
			Type string `json:"type"`
			MessageOutputItem
		}{Type: "message", MessageOutputItem: v}, nil
	case FunctionCallOutput:
		return struct {
			Type string `json:"type"`
			FunctionCallOutput
		}{Type: "function_call", FunctionCallOutput: v}, nil
	case ReasoningOutputItem:
		return struct {
			Type string `json:"type"`
			ReasoningOutputItem
		}{Type: "reasoning", ReasoningOutputItem: v}, nil
	case BuiltinCallOutput:
		obj := map[string]any{"type": v.Type, "id": v.ID, "call_id": v.CallID}
		for k, raw := range v.Fields {
			obj[k] = raw
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unknown output item type %T", v)
	}
}

func hasSuffix(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}
