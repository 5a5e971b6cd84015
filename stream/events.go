// Package stream implements the StreamingBridge: a per-request state
// machine that converts Chat Completions streamed chunk deltas into
// Responses SSE lifecycle events.
package stream

import "encoding/json"

// Event is one SSE frame: `event: <Name>\ndata: <json(Data)>\n\n`.
type Event struct {
	Name string
	Data any
}

// Writer emits one SSE event at a time, in call order, and makes it visible
// to the client (e.g. via http.Flusher). Implementations must preserve
// call order; the bridge relies on it to keep each item's events in
// added -> delta -> done order.
type Writer interface {
	WriteEvent(Event) error
}

type responseSnapshot struct {
	ID        string `json:"id"`
	Object    string `json:"object"`
	Model     string `json:"model"`
	CreatedAt int64  `json:"created_at"`
	Status    string `json:"status,omitempty"`
}

type createdPayload struct {
	Response responseSnapshot `json:"response"`
}

type outputItemAddedPayload struct {
	OutputIndex int `json:"output_index"`
	Item        any `json:"item"`
}

type outputItemDonePayload struct {
	OutputIndex int `json:"output_index"`
	Item        any `json:"item"`
}

type contentPartPayload struct {
	ItemID       string `json:"item_id"`
	OutputIndex  int    `json:"output_index"`
	ContentIndex int    `json:"content_index"`
	Part         any    `json:"part"`
}

type textDeltaPayload struct {
	ItemID       string `json:"item_id"`
	OutputIndex  int    `json:"output_index"`
	ContentIndex int    `json:"content_index"`
	Delta        string `json:"delta"`
}

type textDonePayload struct {
	ItemID       string `json:"item_id"`
	OutputIndex  int    `json:"output_index"`
	ContentIndex int    `json:"content_index"`
	Text         string `json:"text"`
}

type functionArgsDeltaPayload struct {
	ItemID      string `json:"item_id"`
	OutputIndex int    `json:"output_index"`
	Delta       string `json:"delta"`
}

type functionArgsDonePayload struct {
	ItemID      string `json:"item_id"`
	OutputIndex int    `json:"output_index"`
	Arguments   string `json:"arguments"`
}

type completedPayload struct {
	Response any `json:"response"`
}

type failedPayload struct {
	Response any          `json:"response,omitempty"`
	Error    errorPayload `json:"error"`
}

type errorPayload struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
}

type messageItemView struct {
	ID      string           `json:"id"`
	Type    string           `json:"type"`
	Role    string           `json:"role"`
	Content []contentPartView `json:"content"`
}

type contentPartView struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type functionCallItemView struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	CallID    string `json:"call_id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type builtinCallItemView struct {
	ID     string
	Type   string
	CallID string
	Fields map[string]any
}

func (v builtinCallItemView) MarshalJSON() ([]byte, error) {
	obj := make(map[string]any, len(v.Fields)+3)
	for k, val := range v.Fields {
		obj[k] = val
	}
	obj["id"] = v.ID
	obj["type"] = v.Type
	obj["call_id"] = v.CallID
	return json.Marshal(obj)
}
