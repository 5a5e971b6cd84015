package orchestrator_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"goa.design/responses-bridge/orchestrator"
	"goa.design/responses-bridge/responses"
	"goa.design/responses-bridge/store/memory"
	"goa.design/responses-bridge/tools"
	"goa.design/responses-bridge/translate"
	"goa.design/responses-bridge/upstream"
)

func newOrchestrator(t *testing.T, handler http.HandlerFunc, opts ...orchestrator.Option) (*orchestrator.Orchestrator, *memory.Store) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	reg, err := tools.New(tools.Builtins()...)
	require.NoError(t, err)

	st := memory.New()
	client := upstream.New(upstream.Config{
		BaseURL:          srv.URL,
		APIKey:           "test",
		RequestTimeout:   time.Second,
		RetryMaxAttempts: 1,
		RetryMaxElapsed:  time.Second,
	}, srv.Client())

	base := []orchestrator.Option{
		orchestrator.WithRequestTranslator(translate.NewRequestTranslator(reg, nil, 0)),
		orchestrator.WithResponseTranslator(translate.NewResponseTranslator()),
		orchestrator.WithUpstream(client),
		orchestrator.WithStore(st, time.Hour),
	}
	o, err := orchestrator.New(append(base, opts...)...)
	require.NoError(t, err)
	return o, st
}

func TestHandleNonStreamPersistsTurn(t *testing.T) {
	o, st := newOrchestrator(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"hello"}}]}`)
	})

	obj, err := o.HandleNonStream(context.Background(), &responses.Request{
		Model: "gpt-5",
		Input: responses.Input{Text: "hi"},
	})
	require.NoError(t, err)
	require.Equal(t, "completed", obj.Status)

	turn, err := st.Get(context.Background(), obj.ID)
	require.NoError(t, err)
	require.Equal(t, "gpt-5", turn.Model)
	require.Len(t, turn.Messages, 2)
}

func TestHandleNonStreamUnknownPreviousResponseID(t *testing.T) {
	o, _ := newOrchestrator(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("upstream should not be called when prior state load fails")
	})

	_, err := o.HandleNonStream(context.Background(), &responses.Request{
		Model:              "gpt-5",
		Input:              responses.Input{Text: "hi"},
		PreviousResponseID: "resp_does_not_exist",
	})
	require.Error(t, err)
}

func TestHandleNonStreamChainsPriorTurn(t *testing.T) {
	calls := 0
	o, _ := newOrchestrator(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"turn two"}}]}`)
	})

	first, err := o.HandleNonStream(context.Background(), &responses.Request{
		Model: "gpt-5",
		Input: responses.Input{Text: "turn one"},
	})
	require.NoError(t, err)

	second, err := o.HandleNonStream(context.Background(), &responses.Request{
		Model:              "gpt-5",
		Input:              responses.Input{Text: "follow up"},
		PreviousResponseID: first.ID,
	})
	require.NoError(t, err)
	require.Equal(t, 2, calls)
	require.NotEqual(t, first.ID, second.ID)
}

func TestGetAndDeleteResponse(t *testing.T) {
	o, _ := newOrchestrator(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"hello"}}]}`)
	})

	obj, err := o.HandleNonStream(context.Background(), &responses.Request{
		Model: "gpt-5",
		Input: responses.Input{Text: "hi"},
	})
	require.NoError(t, err)

	fetched, err := o.GetResponse(context.Background(), obj.ID)
	require.NoError(t, err)
	require.Equal(t, obj.ID, fetched.ID)

	require.NoError(t, o.DeleteResponse(context.Background(), obj.ID))
	require.NoError(t, o.DeleteResponse(context.Background(), obj.ID)) // idempotent

	_, err = o.GetResponse(context.Background(), obj.ID)
	require.Error(t, err)
}

func TestGetResponseWithoutStoreIsNotImplemented(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	reg, err := tools.New(tools.Builtins()...)
	require.NoError(t, err)
	o, err := orchestrator.New(
		orchestrator.WithRequestTranslator(translate.NewRequestTranslator(reg, nil, 0)),
		orchestrator.WithResponseTranslator(translate.NewResponseTranslator()),
		orchestrator.WithUpstream(upstream.New(upstream.Config{BaseURL: srv.URL}, srv.Client())),
	)
	require.NoError(t, err)

	_, err = o.GetResponse(context.Background(), "resp_x")
	require.Error(t, err)
}
