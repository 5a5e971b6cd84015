package translate

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"goa.design/responses-bridge/chatcompletions"
	"goa.design/responses-bridge/responses"
)

// ResponseTranslator converts a completed Chat Completions response into a
// Responses object, consulting the turn's ToolMap to un-virtualize tool
// calls back into their external item shapes.
type ResponseTranslator struct{}

// NewResponseTranslator constructs a ResponseTranslator.
func NewResponseTranslator() *ResponseTranslator { return &ResponseTranslator{} }

// Translate converts resp into a Responses Object. now is the Unix
// timestamp to stamp on the object (callers pass it in rather than the
// translator calling time.Now, keeping the function pure).
func (t *ResponseTranslator) Translate(resp *chatcompletions.Response, ctx *Context, now int64) (*responses.Object, error) {
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("translate: response has no choices")
	}
	choice := resp.Choices[0]
	out := &responses.Object{
		ID:        "resp_" + uuid.NewString(),
		Object:    "response",
		CreatedAt: now,
		Model:     ctx.Model,
		Status:    statusFor(choice.FinishReason),
	}

	output, err := t.projectAssistantMessage(choice.Message, ctx)
	if err != nil {
		return nil, err
	}
	out.Output = output

	if resp.Usage != nil {
		out.Usage = &responses.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		}
	}
	return out, nil
}

func statusFor(finishReason string) string {
	if finishReason == "length" {
		return "incomplete"
	}
	return "completed"
}

func (t *ResponseTranslator) projectAssistantMessage(msg chatcompletions.Message, ctx *Context) ([]responses.OutputItem, error) {
	var out []responses.OutputItem

	if len(msg.ReasoningDetails) > 0 {
		var details []json.RawMessage
		if err := json.Unmarshal(msg.ReasoningDetails, &details); err == nil && len(details) > 0 {
			out = append(out, responses.ReasoningOutputItem{ID: "rs_" + uuid.NewString(), Details: details})
		}
	}

	if msg.Content != "" {
		out = append(out, responses.MessageOutputItem{
			ID:   "msg_" + uuid.NewString(),
			Role: "assistant",
			Content: []responses.OutputContentPart{
				{Type: "output_text", Text: msg.Content},
			},
		})
	}

	for _, call := range msg.ToolCalls {
		item, err := t.projectToolCall(call, ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}

	return out, nil
}

func (t *ResponseTranslator) projectToolCall(call chatcompletions.ToolCall, ctx *Context) (responses.OutputItem, error) {
	externalType, virtualized := ctx.ToolMap.ExternalType(call.Function.Name)
	if !virtualized {
		return responses.FunctionCallOutput{
			ID:        "fc_" + uuid.NewString(),
			CallID:    call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		}, nil
	}

	spec, ok := ctx.ToolMap.Registry().Lookup(call.Function.Name)
	if !ok {
		return nil, fmt.Errorf("translate: tool map references unknown built-in %q", call.Function.Name)
	}
	fields := map[string]any{}
	if spec.Project != nil {
		expanded, err := spec.Project.FromArguments(json.RawMessage(call.Function.Arguments))
		if err != nil {
			return nil, fmt.Errorf("translate: expand %s arguments: %w", spec.Name, err)
		}
		fields = expanded
	}
	rawFields := make(map[string]json.RawMessage, len(fields))
	for k, v := range fields {
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		rawFields[k] = encoded
	}
	return responses.BuiltinCallOutput{
		ID:     "bc_" + uuid.NewString(),
		Type:   externalType,
		CallID: call.ID,
		Fields: rawFields,
	}, nil
}
