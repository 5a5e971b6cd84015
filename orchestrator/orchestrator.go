// Package orchestrator composes the ToolRegistry, RequestTranslator,
// UpstreamClient, ResponseTranslator, StreamingBridge, and ConversationStore
// into the per-request control flow: load -> translate -> call ->
// translate-back -> store.
package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"goa.design/responses-bridge/apperr"
	"goa.design/responses-bridge/chatcompletions"
	"goa.design/responses-bridge/responses"
	"goa.design/responses-bridge/store"
	"goa.design/responses-bridge/stream"
	"goa.design/responses-bridge/telemetry"
	"goa.design/responses-bridge/translate"
	"goa.design/responses-bridge/upstream"
)

type (
	// UnaryHandler processes one non-streaming Responses request.
	UnaryHandler func(ctx context.Context, req *responses.Request) (*responses.Object, error)

	// UnaryMiddleware wraps a UnaryHandler, composed in registration order
	// the same way features/model/gateway composes provider middleware:
	// the first registered middleware is the outermost layer.
	UnaryMiddleware func(next UnaryHandler) UnaryHandler

	// Option configures an Orchestrator during construction.
	Option func(*config)

	config struct {
		translator *translate.RequestTranslator
		responder  *translate.ResponseTranslator
		upstream   *upstream.Client
		store      store.Store
		logger     telemetry.Logger
		metrics    telemetry.Metrics
		tracer     telemetry.Tracer
		ttl        time.Duration
		unaryMW    []UnaryMiddleware
	}

	// Orchestrator sequences one request through every bridge component.
	Orchestrator struct {
		cfg   config
		unary UnaryHandler
	}
)

// WithRequestTranslator is required.
func WithRequestTranslator(t *translate.RequestTranslator) Option {
	return func(c *config) { c.translator = t }
}

// WithResponseTranslator is required.
func WithResponseTranslator(t *translate.ResponseTranslator) Option {
	return func(c *config) { c.responder = t }
}

// WithUpstream is required.
func WithUpstream(u *upstream.Client) Option {
	return func(c *config) { c.upstream = u }
}

// WithStore registers a ConversationStore. Omitting it leaves state
// disabled: any request naming a previous_response_id fails with
// not_implemented, and GET/DELETE fail the same way.
func WithStore(s store.Store, ttl time.Duration) Option {
	return func(c *config) { c.store = s; c.ttl = ttl }
}

// WithLogger, WithMetrics, WithTracer default to no-ops when omitted.
func WithLogger(l telemetry.Logger) Option   { return func(c *config) { c.logger = l } }
func WithMetrics(m telemetry.Metrics) Option { return func(c *config) { c.metrics = m } }
func WithTracer(t telemetry.Tracer) Option   { return func(c *config) { c.tracer = t } }

// WithUnaryMiddleware appends cross-cutting middleware (logging, metrics,
// auth) around the non-streaming handler, in registration order.
func WithUnaryMiddleware(mw ...UnaryMiddleware) Option {
	return func(c *config) { c.unaryMW = append(c.unaryMW, mw...) }
}

// New constructs an Orchestrator. RequestTranslator, ResponseTranslator, and
// Upstream are required.
func New(opts ...Option) (*Orchestrator, error) {
	cfg := config{
		logger:  telemetry.NewNoopLogger(),
		metrics: telemetry.NewNoopMetrics(),
		tracer:  telemetry.NewNoopTracer(),
	}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.translator == nil || cfg.responder == nil || cfg.upstream == nil {
		return nil, apperr.New(apperr.Internal, "missing_dependency", "orchestrator requires RequestTranslator, ResponseTranslator, and Upstream", nil)
	}

	o := &Orchestrator{cfg: cfg}
	base := o.handleNonStream
	chain := UnaryHandler(base)
	for i := len(cfg.unaryMW) - 1; i >= 0; i-- {
		chain = cfg.unaryMW[i](chain)
	}
	o.unary = chain
	return o, nil
}

// HandleNonStream runs one request through the full pipeline: load prior
// state, translate, call upstream, translate back, persist.
func (o *Orchestrator) HandleNonStream(ctx context.Context, req *responses.Request) (*responses.Object, error) {
	ctx, span := o.cfg.tracer.Start(ctx, "responses.orchestrate")
	defer span.End()
	obj, err := o.unary(ctx, req)
	if err != nil {
		span.RecordError(err)
		o.cfg.metrics.IncCounter("responses.completions.failed", 1)
		return nil, err
	}
	o.cfg.metrics.IncCounter("responses.completions.succeeded", 1)
	return obj, nil
}

func (o *Orchestrator) handleNonStream(ctx context.Context, req *responses.Request) (*responses.Object, error) {
	prior, toolMapEntries, err := o.loadPrior(ctx, req.PreviousResponseID)
	if err != nil {
		return nil, err
	}

	payload, tctx, err := o.cfg.translator.Translate(req, prior)
	if err != nil {
		return nil, err
	}
	restoreToolMap(tctx.ToolMap, toolMapEntries)

	payload.Stream = false
	chatResp, requestID, err := o.cfg.upstream.Call(ctx, payload)
	if err != nil {
		o.cfg.logger.Error(ctx, "upstream call failed", "upstream_request_id", requestID, "error", err.Error())
		return nil, err
	}

	obj, err := o.cfg.responder.Translate(chatResp, tctx, nowUnix())
	if err != nil {
		return nil, apperr.New(apperr.Internal, "", err.Error(), err)
	}

	if o.cfg.store != nil && (obj.Status == "completed" || obj.Status == "incomplete") {
		turn := &store.StoredTurn{
			Model:    tctx.Model,
			Messages: append(persistedHistory(payload.Messages, tctx), chatResp.Choices[0].Message),
			ToolMap:  dumpToolMap(tctx.ToolMap),
		}
		if err := o.cfg.store.Put(ctx, obj.ID, turn, o.cfg.ttl); err != nil {
			o.cfg.logger.Warn(ctx, "failed to persist conversation turn", "response_id", obj.ID, "error", err.Error())
		}
	}
	return obj, nil
}

// HandleStream runs one streaming request through the pipeline, writing
// Responses lifecycle events to w as upstream chunks arrive.
func (o *Orchestrator) HandleStream(ctx context.Context, req *responses.Request, w stream.Writer) error {
	ctx, span := o.cfg.tracer.Start(ctx, "responses.orchestrate.stream")
	defer span.End()

	prior, toolMapEntries, err := o.loadPrior(ctx, req.PreviousResponseID)
	if err != nil {
		return err
	}
	payload, tctx, err := o.cfg.translator.Translate(req, prior)
	if err != nil {
		return err
	}
	restoreToolMap(tctx.ToolMap, toolMapEntries)
	payload.Stream = true

	responseID := "resp_" + uuid.NewString()
	bridge := stream.NewBridge(w, tctx, responseID, tctx.Model, nowUnix())

	// The bridge has not opened yet (no chunk has been processed), so a
	// failure here is reported as a plain error: the HTTP layer is still
	// free to respond with a JSON error body and status code instead of
	// starting an SSE stream.
	session, requestID, err := o.cfg.upstream.Stream(ctx, payload)
	if err != nil {
		return err
	}
	defer session.Close()

	for {
		chunk, done, err := session.Next()
		if err != nil {
			o.cfg.logger.Error(ctx, "stream read failed", "upstream_request_id", requestID, "error", err.Error())
			ae := apperr.FromTransport(err)
			return bridge.Fail(string(ae.Kind()), ae.Code(), ae.Message())
		}
		if done {
			break
		}
		if err := bridge.HandleChunk(chunk); err != nil {
			return err
		}
	}

	obj, err := bridge.Finish()
	if err != nil {
		return err
	}
	o.cfg.metrics.IncCounter("responses.completions.succeeded", 1)

	if o.cfg.store != nil && (obj.Status == "completed" || obj.Status == "incomplete") {
		assistantMsg := chatcompletions.Message{Role: chatcompletions.RoleAssistant}
		for _, item := range obj.Output {
			if msg, ok := item.(responses.MessageOutputItem); ok && len(msg.Content) > 0 {
				assistantMsg.Content = msg.Content[0].Text
			}
		}
		turn := &store.StoredTurn{
			Model:    tctx.Model,
			Messages: append(persistedHistory(payload.Messages, tctx), assistantMsg),
			ToolMap:  dumpToolMap(tctx.ToolMap),
		}
		if err := o.cfg.store.Put(ctx, obj.ID, turn, o.cfg.ttl); err != nil {
			o.cfg.logger.Warn(ctx, "failed to persist conversation turn", "response_id", obj.ID, "error", err.Error())
		}
	}
	return nil
}

// GetResponse projects a stored turn's trailing assistant message back into
// a client-visible Object. It fails with not_found if the id is unknown and
// not_implemented if state is disabled.
func (o *Orchestrator) GetResponse(ctx context.Context, id string) (*responses.Object, error) {
	if o.cfg.store == nil {
		return nil, apperr.New(apperr.NotImplemented, "state_disabled", "conversation state is not enabled", nil)
	}
	turn, err := o.cfg.store.Get(ctx, id)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	obj := &responses.Object{ID: id, Object: "response", Model: turn.Model, Status: "completed"}
	if n := len(turn.Messages); n > 0 {
		last := turn.Messages[n-1]
		if last.Content != "" {
			obj.Output = append(obj.Output, responses.MessageOutputItem{
				ID:   "msg_" + uuid.NewString(),
				Role: "assistant",
				Content: []responses.OutputContentPart{{Type: "output_text", Text: last.Content}},
			})
		}
	}
	return obj, nil
}

// DeleteResponse removes a stored turn. It is idempotent: deleting an
// already-deleted or never-existing id succeeds without error.
func (o *Orchestrator) DeleteResponse(ctx context.Context, id string) error {
	if o.cfg.store == nil {
		return apperr.New(apperr.NotImplemented, "state_disabled", "conversation state is not enabled", nil)
	}
	_, err := o.cfg.store.Delete(ctx, id)
	if err != nil {
		return mapStoreErr(err)
	}
	return nil
}

func (o *Orchestrator) loadPrior(ctx context.Context, previousResponseID string) ([]chatcompletions.Message, []store.ToolMapEntry, error) {
	if previousResponseID == "" {
		return nil, nil, nil
	}
	if o.cfg.store == nil {
		return nil, nil, apperr.New(apperr.NotImplemented, "state_disabled", "conversation state is not enabled", nil)
	}
	turn, err := o.cfg.store.Get(ctx, previousResponseID)
	if err != nil {
		return nil, nil, mapStoreErr(err)
	}
	return turn.Messages, turn.ToolMap, nil
}

func mapStoreErr(err error) error {
	switch err {
	case store.ErrNotFound:
		return apperr.New(apperr.NotFound, "response_not_found", "unknown or expired response id", err)
	case store.ErrUnavailable:
		return apperr.New(apperr.NotImplemented, "state_unavailable", "conversation state backend is unavailable", err)
	default:
		return apperr.New(apperr.Internal, "", err.Error(), err)
	}
}

// persistedHistory drops the system message prepended from `instructions`,
// so a stored turn never carries the previous turn's instructions.
func persistedHistory(messages []chatcompletions.Message, tctx *translate.Context) []chatcompletions.Message {
	if tctx.SystemInjected && len(messages) > 0 {
		return messages[1:]
	}
	return messages
}

func dumpToolMap(m *translate.ToolMap) []store.ToolMapEntry {
	entries := m.Entries()
	out := make([]store.ToolMapEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, store.ToolMapEntry{ExternalType: e.ExternalType, UpstreamName: e.UpstreamName})
	}
	return out
}

func restoreToolMap(m *translate.ToolMap, entries []store.ToolMapEntry) {
	for _, e := range entries {
		if e.ExternalType != "" {
			_ = m.AddBuiltin(e.ExternalType, e.UpstreamName)
		} else {
			_ = m.ReserveFunctionName(e.UpstreamName)
		}
	}
}

func nowUnix() int64 { return time.Now().Unix() }
