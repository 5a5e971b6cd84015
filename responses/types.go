// Package responses defines the OpenAI-style Responses API wire shapes: the
// incoming request, its tagged-variant input items, and the outgoing
// response object with its tagged-variant output items. Variants are
// modeled as a marker interface with unexported methods (the same pattern
// the upstream provider layer uses for message parts) so every switch over
// a variant is exhaustive and new kinds cannot be smuggled in from another
// package.
package responses

import "encoding/json"

// Request is an incoming POST /v1/responses body.
type Request struct {
	Model              string          `json:"model"`
	Instructions       string          `json:"instructions,omitempty"`
	Input              Input           `json:"input"`
	Tools              []ToolDecl      `json:"tools,omitempty"`
	ToolChoice         json.RawMessage `json:"tool_choice,omitempty"`
	ParallelToolCalls  *bool           `json:"parallel_tool_calls,omitempty"`
	MaxOutputTokens    *int            `json:"max_output_tokens,omitempty"`
	Temperature        *float64        `json:"temperature,omitempty"`
	TopP               *float64        `json:"top_p,omitempty"`
	Verbosity          string          `json:"verbosity,omitempty"`
	Text               *TextConfig     `json:"text,omitempty"`
	Stream             bool            `json:"stream,omitempty"`
	PreviousResponseID string          `json:"previous_response_id,omitempty"`
	Reasoning          json.RawMessage `json:"reasoning,omitempty"`
}

// TextConfig configures structured-output formatting.
type TextConfig struct {
	Format *TextFormat `json:"format,omitempty"`
}

// TextFormat is one of "text", "json_object", or "json_schema".
type TextFormat struct {
	Type   string          `json:"type"`
	Name   string          `json:"name,omitempty"`
	Strict *bool           `json:"strict,omitempty"`
	Schema json.RawMessage `json:"schema,omitempty"`
}

// ToolDecl is a client-declared tool. Built-in tools carry only Type;
// function tools additionally carry Name/Description/Parameters either
// flat or nested under Function.
type ToolDecl struct {
	Type        string          `json:"type"`
	Name        string          `json:"name,omitempty"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
	Function    *FunctionDecl   `json:"function,omitempty"`
}

// FunctionDecl is the nested shape some clients use for function tools.
type FunctionDecl struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// Input is the request's `input` field: either a bare string or an ordered
// sequence of InputItem values. Items is nil when the request used the bare
// string form; in that case Text holds the string.
type Input struct {
	Text  string
	Items []InputItem
}

// InputItem is a tagged variant of the Responses input-item union.
type InputItem interface {
	inputItem()
}

// MessageItem is a plain chat message.
type MessageItem struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// FunctionCallItem replays a prior function-tool invocation.
type FunctionCallItem struct {
	CallID    string `json:"call_id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// FunctionCallOutputItem supplies the result of a prior function call.
type FunctionCallOutputItem struct {
	CallID string `json:"call_id"`
	Output string `json:"output"`
}

// BuiltinCallItem replays a prior virtualized built-in tool invocation
// (e.g. "shell_call", "apply_patch_call"). Fields holds the external
// item's call-specific fields as raw JSON, keyed by field name.
type BuiltinCallItem struct {
	Type   string                     `json:"type"`
	CallID string                     `json:"call_id"`
	Fields map[string]json.RawMessage `json:"-"`
}

// BuiltinCallOutputItem supplies the result of a prior virtualized built-in
// tool invocation.
type BuiltinCallOutputItem struct {
	Type   string `json:"type"`
	CallID string `json:"call_id"`
	Output string `json:"output"`
}

// ReasoningItem replays a prior model reasoning block.
type ReasoningItem struct {
	Summary   string            `json:"summary,omitempty"`
	Details   []json.RawMessage `json:"details,omitempty"`
	Encrypted string            `json:"encrypted,omitempty"`
}

func (MessageItem) inputItem()            {}
func (FunctionCallItem) inputItem()       {}
func (FunctionCallOutputItem) inputItem() {}
func (BuiltinCallItem) inputItem()        {}
func (BuiltinCallOutputItem) inputItem()  {}
func (ReasoningItem) inputItem()          {}

// Object is the response body for a completed or failed Responses call.
type Object struct {
	ID        string          `json:"id"`
	Object    string          `json:"object"`
	CreatedAt int64           `json:"created_at"`
	Model     string          `json:"model"`
	Status    string          `json:"status"`
	Output    []OutputItem    `json:"output"`
	Usage     *Usage          `json:"usage,omitempty"`
	Reasoning json.RawMessage `json:"reasoning,omitempty"`
	Error     *ErrorPayload   `json:"error,omitempty"`
}

// Usage mirrors the upstream token accounting.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// ErrorPayload is attached to a failed Object or a response.failed event.
type ErrorPayload struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
}

// OutputItem is a tagged variant of the Responses output-item union.
type OutputItem interface {
	outputItem()
}

// MessageOutputItem carries assistant-visible text.
type MessageOutputItem struct {
	ID      string              `json:"id"`
	Role    string              `json:"role"`
	Content []OutputContentPart `json:"content"`
}

// OutputContentPart is a single content part of a MessageOutputItem.
type OutputContentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// FunctionCallOutput is a plain (non-virtualized) function-tool call.
type FunctionCallOutput struct {
	ID        string `json:"id"`
	CallID    string `json:"call_id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// BuiltinCallOutput is a virtualized built-in tool call, un-virtualized
// back into its external item shape.
type BuiltinCallOutput struct {
	ID     string                     `json:"id"`
	Type   string                     `json:"type"`
	CallID string                     `json:"call_id"`
	Fields map[string]json.RawMessage `json:"-"`
}

// ReasoningOutputItem carries a replayed or newly produced reasoning block.
type ReasoningOutputItem struct {
	ID      string            `json:"id"`
	Summary string            `json:"summary,omitempty"`
	Details []json.RawMessage `json:"details,omitempty"`
}

func (MessageOutputItem) outputItem()   {}
func (FunctionCallOutput) outputItem()  {}
func (BuiltinCallOutput) outputItem()   {}
func (ReasoningOutputItem) outputItem() {}
