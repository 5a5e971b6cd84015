package translate

import (
	"encoding/json"
	"fmt"
	"strings"

	"goa.design/responses-bridge/apperr"
	"goa.design/responses-bridge/chatcompletions"
	"goa.design/responses-bridge/responses"
	"goa.design/responses-bridge/tools"
)

// RequestTranslator converts an incoming Responses request, plus any
// rehydrated prior messages, into a Chat Completions payload.
type RequestTranslator struct {
	registry        *tools.Registry
	modelAliases    map[string]string
	maxTokensBuffer int
}

// NewRequestTranslator constructs a RequestTranslator. aliases maps a
// Responses model name to the upstream model name; unknown models pass
// through unchanged. maxTokensBuffer is added to max_output_tokens when
// present; when max_output_tokens is absent, a positive maxTokensBuffer
// alone becomes max_tokens.
func NewRequestTranslator(reg *tools.Registry, aliases map[string]string, maxTokensBuffer int) *RequestTranslator {
	return &RequestTranslator{registry: reg, modelAliases: aliases, maxTokensBuffer: maxTokensBuffer}
}

// Translate produces the upstream payload and per-turn context for req.
// priorMessages is the reduced history rehydrated from the conversation
// store, or nil for a fresh conversation.
func (t *RequestTranslator) Translate(req *responses.Request, priorMessages []chatcompletions.Message) (*chatcompletions.Request, *Context, error) {
	ctx := &Context{
		Model:           t.resolveModel(req.Model),
		ToolMap:         NewToolMap(t.registry),
		MaxTokensBuffer: t.maxTokensBuffer,
	}

	messages := make([]chatcompletions.Message, len(priorMessages))
	copy(messages, priorMessages)

	if req.Instructions != "" {
		messages = append([]chatcompletions.Message{{Role: chatcompletions.RoleSystem, Content: req.Instructions}}, messages...)
		ctx.SystemInjected = true
	}

	sawToolCall := false
	if req.Input.Text != "" {
		messages = append(messages, chatcompletions.Message{Role: chatcompletions.RoleUser, Content: req.Input.Text})
	}
	for _, item := range req.Input.Items {
		var err error
		messages, err = t.reduceItem(item, messages, ctx, &sawToolCall)
		if err != nil {
			return nil, nil, err
		}
	}

	upstreamTools, err := t.translateTools(req.Tools, ctx)
	if err != nil {
		return nil, nil, err
	}

	toolChoice := req.ToolChoice
	if len(req.Tools) == 0 && sawToolCall {
		inferred, names := t.inferTools(messages)
		upstreamTools = inferred
		ctx.ToolsInferred = len(names) > 0
		if toolChoice == nil && ctx.ToolsInferred {
			toolChoice = json.RawMessage(`"none"`)
		}
	} else if toolChoice != nil {
		mapped, filtered, err := mapToolChoice(toolChoice, upstreamTools)
		if err != nil {
			return nil, nil, apperr.New(apperr.InvalidRequest, "invalid_tool_choice", err.Error(), err)
		}
		toolChoice = mapped
		if filtered != nil {
			upstreamTools = filtered
		}
	}

	out := &chatcompletions.Request{
		Model:             ctx.Model,
		Messages:          messages,
		Tools:             upstreamTools,
		ToolChoice:        toolChoice,
		ParallelToolCalls: req.ParallelToolCalls,
		Temperature:       req.Temperature,
		TopP:              req.TopP,
		Reasoning:         req.Reasoning,
		Stream:            req.Stream,
	}
	if req.MaxOutputTokens != nil {
		buffered := *req.MaxOutputTokens + t.maxTokensBuffer
		out.MaxTokens = &buffered
	} else if t.maxTokensBuffer > 0 {
		buffered := t.maxTokensBuffer
		out.MaxTokens = &buffered
	}
	if req.Text != nil && req.Text.Format != nil {
		out.ResponseFormat = translateTextFormat(req.Text.Format)
	}

	return out, ctx, nil
}

func (t *RequestTranslator) resolveModel(model string) string {
	if alias, ok := t.modelAliases[model]; ok {
		return alias
	}
	return model
}

func (t *RequestTranslator) reduceItem(item responses.InputItem, messages []chatcompletions.Message, ctx *Context, sawToolCall *bool) ([]chatcompletions.Message, error) {
	switch v := item.(type) {
	case responses.MessageItem:
		return append(messages, chatcompletions.Message{Role: v.Role, Content: v.Content}), nil

	case responses.FunctionCallItem:
		*sawToolCall = true
		return appendToolCall(messages, v.CallID, v.Name, v.Arguments), nil

	case responses.FunctionCallOutputItem:
		*sawToolCall = true
		return append(messages, chatcompletions.Message{
			Role:       chatcompletions.RoleTool,
			ToolCallID: v.CallID,
			Content:    v.Output,
		}), nil

	case responses.BuiltinCallItem:
		if !strings.HasSuffix(v.Type, "_call") {
			// Not a call item: an unknown item type, dropped like the default case.
			return messages, nil
		}
		*sawToolCall = true
		spec, ok := t.registry.LookupExternalType(v.Type)
		if !ok {
			return nil, apperr.New(apperr.InvalidRequest, "unknown_builtin_call", fmt.Sprintf("unknown built-in call type %q", v.Type), nil)
		}
		if err := ctx.ToolMap.AddBuiltin(v.Type, spec.Name); err != nil {
			return nil, apperr.New(apperr.InvalidRequest, "tool_name_collision", err.Error(), err)
		}
		fields := make(map[string]any, len(v.Fields))
		for k, raw := range v.Fields {
			var val any
			if err := json.Unmarshal(raw, &val); err != nil {
				return nil, apperr.New(apperr.InvalidRequest, "invalid_builtin_call_field", err.Error(), err)
			}
			fields[k] = val
		}
		args := json.RawMessage(`{}`)
		if spec.Project != nil {
			encoded, err := spec.Project.ToArguments(fields)
			if err != nil {
				return nil, apperr.New(apperr.InvalidRequest, "builtin_projection_failed", err.Error(), err)
			}
			args = encoded
		} else {
			encoded, err := json.Marshal(fields)
			if err != nil {
				return nil, apperr.New(apperr.Internal, "", err.Error(), err)
			}
			args = encoded
		}
		return appendToolCall(messages, v.CallID, spec.Name, string(args)), nil

	case responses.BuiltinCallOutputItem:
		*sawToolCall = true
		return append(messages, chatcompletions.Message{
			Role:       chatcompletions.RoleTool,
			ToolCallID: v.CallID,
			Content:    v.Output,
		}), nil

	case responses.ReasoningItem:
		// Attached right away to the trailing assistant message's
		// reasoning_details, or to a new assistant message when the last
		// message is not an assistant; see replayReasoning.
		return replayReasoning(messages, v), nil

	default:
		// Unknown item types are dropped silently per the reduction rules.
		return messages, nil
	}
}

// appendToolCall merges a tool-call item into the preceding assistant
// message when it has no content yet (consecutive function calls coalesce
// into one assistant message), otherwise appends a fresh one.
func appendToolCall(messages []chatcompletions.Message, callID, name, arguments string) []chatcompletions.Message {
	call := chatcompletions.ToolCall{
		ID:       callID,
		Type:     "function",
		Function: chatcompletions.FunctionCall{Name: name, Arguments: arguments},
	}
	if n := len(messages); n > 0 {
		last := &messages[n-1]
		if last.Role == chatcompletions.RoleAssistant && last.Content == "" {
			last.ToolCalls = append(last.ToolCalls, call)
			return messages
		}
	}
	return append(messages, chatcompletions.Message{Role: chatcompletions.RoleAssistant, ToolCalls: []chatcompletions.ToolCall{call}})
}

// replayReasoning attaches a reasoning item's details to the trailing
// assistant message, creating one if needed.
func replayReasoning(messages []chatcompletions.Message, item responses.ReasoningItem) []chatcompletions.Message {
	detailsJSON, err := json.Marshal(item.Details)
	if err != nil {
		return messages
	}
	if n := len(messages); n > 0 && messages[n-1].Role == chatcompletions.RoleAssistant {
		messages[n-1].ReasoningDetails = detailsJSON
		return messages
	}
	return append(messages, chatcompletions.Message{Role: chatcompletions.RoleAssistant, ReasoningDetails: detailsJSON})
}

func (t *RequestTranslator) translateTools(decls []responses.ToolDecl, ctx *Context) ([]chatcompletions.Tool, error) {
	if len(decls) == 0 {
		return nil, nil
	}
	out := make([]chatcompletions.Tool, 0, len(decls))
	for _, d := range decls {
		name := d.Name
		desc := d.Description
		params := d.Parameters
		if d.Function != nil {
			name = d.Function.Name
			desc = d.Function.Description
			params = d.Function.Parameters
		}
		if spec, ok := t.registry.Lookup(d.Type); ok {
			name = spec.Name
			desc = spec.Description
			params = spec.Parameters
			if err := ctx.ToolMap.AddBuiltin(spec.ExternalType, spec.Name); err != nil {
				return nil, apperr.New(apperr.InvalidRequest, "tool_name_collision", err.Error(), err)
			}
		} else {
			if tools.IsReservedName(name) {
				return nil, apperr.New(apperr.InvalidRequest, "reserved_tool_name", fmt.Sprintf("tool name %q uses a reserved prefix", name), nil)
			}
			if err := tools.ValidateParameters(name, params); err != nil {
				return nil, apperr.New(apperr.InvalidRequest, "invalid_tool_schema", err.Error(), err)
			}
			if err := ctx.ToolMap.ReserveFunctionName(name); err != nil {
				return nil, apperr.New(apperr.InvalidRequest, "tool_name_collision", err.Error(), err)
			}
		}
		out = append(out, chatcompletions.Tool{
			Type:     "function",
			Function: chatcompletions.FunctionSpec{Name: name, Description: desc, Parameters: params},
		})
	}
	return out, nil
}

// inferTools synthesizes minimal function-tool declarations, one per
// distinct tool name observed in an assistant message's tool_calls, for a
// follow-up turn whose client supplied no `tools`.
func (t *RequestTranslator) inferTools(messages []chatcompletions.Message) ([]chatcompletions.Tool, []string) {
	seen := map[string]bool{}
	var names []string
	for _, m := range messages {
		for _, call := range m.ToolCalls {
			if !seen[call.Function.Name] {
				seen[call.Function.Name] = true
				names = append(names, call.Function.Name)
			}
		}
	}
	if len(names) == 0 {
		return nil, nil
	}
	out := make([]chatcompletions.Tool, 0, len(names))
	for _, name := range names {
		out = append(out, chatcompletions.Tool{
			Type:     "function",
			Function: chatcompletions.FunctionSpec{Name: name, Parameters: json.RawMessage(`{"type":"object"}`)},
		})
	}
	return out, names
}

// mapToolChoice translates a Responses tool_choice value into the upstream
// shape. A bare "auto"/"none"/"required" string passes through unchanged.
// A {"type":"function","name":X} selector becomes
// {"type":"function","function":{"name":X}}. An {"type":"allowed_tools",
// "tools":[...]} selector filters declaredTools down to the allowed subset
// and degrades tool_choice to its embedded mode.
func mapToolChoice(raw json.RawMessage, declaredTools []chatcompletions.Tool) (json.RawMessage, []chatcompletions.Tool, error) {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return raw, nil, nil
	}

	var head struct {
		Type string `json:"type"`
		Name string `json:"name"`
		Mode string `json:"mode"`
		Tools []struct {
			Type string `json:"type"`
			Name string `json:"name"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, nil, fmt.Errorf("unparseable tool_choice: %w", err)
	}

	switch head.Type {
	case "function":
		mapped, err := json.Marshal(map[string]any{
			"type":     "function",
			"function": map[string]string{"name": head.Name},
		})
		return mapped, nil, err
	case "allowed_tools":
		allowed := map[string]bool{}
		for _, a := range head.Tools {
			allowed[a.Name] = true
		}
		filtered := make([]chatcompletions.Tool, 0, len(declaredTools))
		for _, t := range declaredTools {
			if allowed[t.Function.Name] {
				filtered = append(filtered, t)
			}
		}
		mode := head.Mode
		if mode == "" {
			mode = "auto"
		}
		mapped, err := json.Marshal(mode)
		return mapped, filtered, err
	default:
		return raw, nil, nil
	}
}

func translateTextFormat(f *responses.TextFormat) *chatcompletions.ResponseFormat {
	switch f.Type {
	case "json_schema":
		return &chatcompletions.ResponseFormat{
			Type: "json_schema",
			JSONSchema: &chatcompletions.JSONSchemaSpec{
				Name:   f.Name,
				Strict: f.Strict,
				Schema: f.Schema,
			},
		}
	case "json_object":
		return &chatcompletions.ResponseFormat{Type: "json_object"}
	default:
		return nil
	}
}
