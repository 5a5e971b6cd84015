package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"goa.design/responses-bridge/stream"
)

// sseWriter adapts an http.ResponseWriter into a stream.Writer, flushing
// after every event so the client sees lifecycle events as they happen
// rather than buffered until the handler returns.
type sseWriter struct {
	w         http.ResponseWriter
	flusher   http.Flusher
	requestID string
	opened    bool
}

var _ stream.Writer = (*sseWriter)(nil)

func newSSEWriter(w http.ResponseWriter, requestID string) (*sseWriter, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	return &sseWriter{w: w, flusher: flusher, requestID: requestID}, true
}

// WriteEvent writes one SSE frame, setting response headers on the first
// call so a pre-first-byte failure can still be reported as a plain JSON
// error instead of a half-open stream.
func (s *sseWriter) WriteEvent(evt stream.Event) error {
	payload, err := json.Marshal(evt.Data)
	if err != nil {
		return err
	}
	if !s.opened {
		s.opened = true
		s.w.Header().Set("Content-Type", "text/event-stream")
		s.w.Header().Set("Cache-Control", "no-cache")
		s.w.Header().Set("Connection", "keep-alive")
		s.w.Header().Set("X-Request-Id", s.requestID)
		s.w.WriteHeader(http.StatusOK)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", evt.Name, payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
