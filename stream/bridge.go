package stream

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"goa.design/responses-bridge/apperr"
	"goa.design/responses-bridge/chatcompletions"
	"goa.design/responses-bridge/responses"
	"goa.design/responses-bridge/translate"
)

// Bridge is a per-request, single-threaded state machine: Idle -> Opened ->
// ItemOpen(kind, index)* -> Completed | Failed. It owns no lock because its
// state is reachable only through the goroutine driving one HTTP request;
// HandleChunk, Finish, and Fail must be called serially by that goroutine.
type Bridge struct {
	w   Writer
	ctx *translate.Context
	rt  *translate.ResponseTranslator

	responseID string
	model      string
	createdAt  int64

	opened     bool
	terminated bool

	text       *textItemState
	toolCalls  map[int]*toolCallItemState
	toolOrder  []int
	nextOutput int

	finishReason string
	usage        *chatcompletions.Usage
}

type textItemState struct {
	itemID      string
	outputIndex int
	buf         strings.Builder
}

type toolCallItemState struct {
	itemID       string
	outputIndex  int
	index        int
	callID       string
	upstreamName string
	externalType string
	virtualized  bool
	args         strings.Builder
}

// NewBridge constructs a Bridge for one request. responseID and createdAt
// are generated/stamped by the orchestrator so the bridge stays pure.
func NewBridge(w Writer, translationCtx *translate.Context, responseID, model string, createdAt int64) *Bridge {
	return &Bridge{
		w:          w,
		ctx:        translationCtx,
		rt:         translate.NewResponseTranslator(),
		responseID: responseID,
		model:      model,
		createdAt:  createdAt,
		toolCalls:  make(map[int]*toolCallItemState),
	}
}

// HandleChunk folds one upstream stream chunk into the bridge's state,
// emitting the SSE events it implies. It must not be called after Finish or
// Fail.
func (b *Bridge) HandleChunk(chunk chatcompletions.StreamChunk) error {
	if b.terminated {
		return fmt.Errorf("stream: HandleChunk called after terminal event")
	}
	if err := b.ensureOpened(); err != nil {
		return err
	}
	if chunk.Usage != nil {
		b.usage = chunk.Usage
	}
	if len(chunk.Choices) == 0 {
		return nil
	}
	choice := chunk.Choices[0]
	if choice.FinishReason != nil {
		b.finishReason = *choice.FinishReason
	}
	if choice.Delta.Content != "" {
		if err := b.appendText(choice.Delta.Content); err != nil {
			return err
		}
	}
	for _, delta := range choice.Delta.ToolCalls {
		if err := b.appendToolCallFragment(delta); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bridge) ensureOpened() error {
	if b.opened {
		return nil
	}
	b.opened = true
	return b.w.WriteEvent(Event{
		Name: "response.created",
		Data: createdPayload{Response: responseSnapshot{
			ID: b.responseID, Object: "response", Model: b.model, CreatedAt: b.createdAt, Status: "in_progress",
		}},
	})
}

func (b *Bridge) appendText(delta string) error {
	if b.text == nil {
		b.text = &textItemState{itemID: "msg_" + uuid.NewString(), outputIndex: b.nextOutput}
		b.nextOutput++
		if err := b.w.WriteEvent(Event{
			Name: "response.output_item.added",
			Data: outputItemAddedPayload{OutputIndex: b.text.outputIndex, Item: messageItemView{
				ID: b.text.itemID, Type: "message", Role: "assistant",
			}},
		}); err != nil {
			return err
		}
		if err := b.w.WriteEvent(Event{
			Name: "response.content_part.added",
			Data: contentPartPayload{ItemID: b.text.itemID, OutputIndex: b.text.outputIndex, ContentIndex: 0, Part: contentPartView{Type: "output_text"}},
		}); err != nil {
			return err
		}
	}
	b.text.buf.WriteString(delta)
	return b.w.WriteEvent(Event{
		Name: "response.output_text.delta",
		Data: textDeltaPayload{ItemID: b.text.itemID, OutputIndex: b.text.outputIndex, ContentIndex: 0, Delta: delta},
	})
}

func (b *Bridge) appendToolCallFragment(delta chatcompletions.ToolCallDelta) error {
	state, ok := b.toolCalls[delta.Index]
	if !ok {
		state = &toolCallItemState{
			itemID:       "fc_" + uuid.NewString(),
			outputIndex:  b.nextOutput,
			index:        delta.Index,
			callID:       delta.ID,
			upstreamName: delta.Function.Name,
		}
		b.nextOutput++
		b.toolCalls[delta.Index] = state
		b.toolOrder = append(b.toolOrder, delta.Index)
		if externalType, ok := b.ctx.ToolMap.ExternalType(delta.Function.Name); ok {
			state.virtualized = true
			state.externalType = externalType
		}
		if err := b.w.WriteEvent(Event{
			Name: "response.output_item.added",
			Data: outputItemAddedPayload{OutputIndex: state.outputIndex, Item: b.openingItemView(state)},
		}); err != nil {
			return err
		}
	}
	if delta.ID != "" {
		state.callID = delta.ID
	}
	if delta.Function.Name != "" {
		state.upstreamName = delta.Function.Name
		if externalType, ok := b.ctx.ToolMap.ExternalType(delta.Function.Name); ok {
			state.virtualized = true
			state.externalType = externalType
		}
	}
	if delta.Function.Arguments == "" {
		return nil
	}
	state.args.WriteString(delta.Function.Arguments)
	return b.w.WriteEvent(Event{
		Name: "response.function_call_arguments.delta",
		Data: functionArgsDeltaPayload{ItemID: state.itemID, OutputIndex: state.outputIndex, Delta: delta.Function.Arguments},
	})
}

func (b *Bridge) openingItemView(state *toolCallItemState) any {
	if state.virtualized {
		return builtinCallItemView{ID: state.itemID, Type: state.externalType, CallID: state.callID}
	}
	return functionCallItemView{ID: state.itemID, Type: "function_call", CallID: state.callID, Name: state.upstreamName}
}

// Finish closes the text item (if any) first and then each tool-call item
// in the order it was opened, emits
// response.completed, and returns the equivalent non-stream Object so the
// caller can persist it through the same store-write path the non-stream
// translator uses.
func (b *Bridge) Finish() (*responses.Object, error) {
	if b.terminated {
		return nil, fmt.Errorf("stream: Finish called after terminal event")
	}
	if err := b.ensureOpened(); err != nil {
		return nil, err
	}
	b.terminated = true

	if b.text != nil {
		text := b.text.buf.String()
		if err := b.w.WriteEvent(Event{
			Name: "response.output_text.done",
			Data: textDonePayload{ItemID: b.text.itemID, OutputIndex: b.text.outputIndex, ContentIndex: 0, Text: text},
		}); err != nil {
			return nil, err
		}
		if err := b.w.WriteEvent(Event{
			Name: "response.content_part.done",
			Data: contentPartPayload{ItemID: b.text.itemID, OutputIndex: b.text.outputIndex, ContentIndex: 0, Part: contentPartView{Type: "output_text", Text: text}},
		}); err != nil {
			return nil, err
		}
		if err := b.w.WriteEvent(Event{
			Name: "response.output_item.done",
			Data: outputItemDonePayload{OutputIndex: b.text.outputIndex, Item: messageItemView{
				ID: b.text.itemID, Type: "message", Role: "assistant",
				Content: []contentPartView{{Type: "output_text", Text: text}},
			}},
		}); err != nil {
			return nil, err
		}
	}

	toolCalls := make([]chatcompletions.ToolCall, 0, len(b.toolOrder))
	for _, idx := range b.toolOrder {
		state := b.toolCalls[idx]
		args := state.args.String()
		if err := b.w.WriteEvent(Event{
			Name: "response.function_call_arguments.done",
			Data: functionArgsDonePayload{ItemID: state.itemID, OutputIndex: state.outputIndex, Arguments: args},
		}); err != nil {
			return nil, err
		}
		view := b.openingItemView(state)
		if fv, ok := view.(functionCallItemView); ok {
			fv.Arguments = args
			view = fv
		} else if bv, ok := view.(builtinCallItemView); ok {
			bv.Fields = map[string]any{"arguments": args}
			view = bv
		}
		if err := b.w.WriteEvent(Event{
			Name: "response.output_item.done",
			Data: outputItemDonePayload{OutputIndex: state.outputIndex, Item: view},
		}); err != nil {
			return nil, err
		}
		toolCalls = append(toolCalls, chatcompletions.ToolCall{
			ID:       state.callID,
			Type:     "function",
			Function: chatcompletions.FunctionCall{Name: state.upstreamName, Arguments: args},
		})
	}

	finishReason := b.finishReason
	if finishReason == "" {
		if len(toolCalls) > 0 {
			finishReason = "tool_calls"
		} else {
			finishReason = "stop"
		}
	}
	syntheticResp := &chatcompletions.Response{
		ID:    b.responseID,
		Model: b.model,
		Choices: []chatcompletions.Choice{{
			Message:      chatcompletions.Message{Role: chatcompletions.RoleAssistant, Content: b.textContent(), ToolCalls: toolCalls},
			FinishReason: finishReason,
		}},
		Usage: b.usage,
	}
	obj, err := b.rt.Translate(syntheticResp, b.ctx, b.createdAt)
	if err != nil {
		return nil, err
	}
	obj.ID = b.responseID

	if err := b.w.WriteEvent(Event{Name: "response.completed", Data: completedPayload{Response: obj}}); err != nil {
		return nil, err
	}
	return obj, nil
}

func (b *Bridge) textContent() string {
	if b.text == nil {
		return ""
	}
	return b.text.buf.String()
}

// Fail terminates the stream on an upstream failure. If no event has been
// emitted yet, it writes nothing and returns an *apperr.Error of the given
// kind so the caller can respond with a plain HTTP error of the matching
// status instead of starting an SSE stream. Once any event
// has been emitted, it writes a single response.failed event and returns
// nil: the stream closes cleanly from the client's perspective.
func (b *Bridge) Fail(kind, code, message string) error {
	if b.terminated {
		return nil
	}
	if !b.opened {
		b.terminated = true
		return apperr.New(apperr.Kind(kind), code, message, nil)
	}
	b.terminated = true
	return b.w.WriteEvent(Event{
		Name: "response.failed",
		Data: failedPayload{Error: errorPayload{Message: message, Type: kind, Code: code}},
	})
}
