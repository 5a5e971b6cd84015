package httpapi_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"goa.design/responses-bridge/httpapi"
	"goa.design/responses-bridge/orchestrator"
	"goa.design/responses-bridge/store/memory"
	"goa.design/responses-bridge/tools"
	"goa.design/responses-bridge/translate"
	"goa.design/responses-bridge/upstream"
)

func newTestServer(t *testing.T, upstreamHandler http.HandlerFunc) *httptest.Server {
	t.Helper()
	upstreamSrv := httptest.NewServer(upstreamHandler)
	t.Cleanup(upstreamSrv.Close)

	reg, err := tools.New(tools.Builtins()...)
	require.NoError(t, err)

	client := upstream.New(upstream.Config{
		BaseURL:          upstreamSrv.URL,
		APIKey:           "test",
		RequestTimeout:   time.Second,
		RetryMaxAttempts: 1,
		RetryMaxElapsed:  time.Second,
	}, upstreamSrv.Client())

	orch, err := orchestrator.New(
		orchestrator.WithRequestTranslator(translate.NewRequestTranslator(reg, nil, 0)),
		orchestrator.WithResponseTranslator(translate.NewResponseTranslator()),
		orchestrator.WithUpstream(client),
		orchestrator.WithStore(memory.New(), time.Hour),
	)
	require.NoError(t, err)

	srv := httptest.NewServer(httpapi.New(orch, nil, "test"))
	t.Cleanup(srv.Close)
	return srv
}

func TestCreateResponseNonStream(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"hi"}}]}`)
	})

	body, _ := json.Marshal(map[string]any{"model": "gpt-5", "input": "hello"})
	resp, err := http.Post(srv.URL+"/v1/responses", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var obj map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&obj))
	require.Equal(t, "completed", obj["status"])
}

func TestGetUnknownResponseIsNotFound(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})

	resp, err := http.Get(srv.URL + "/v1/responses/resp_missing")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteResponseIsIdempotent(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/v1/responses/resp_x", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp2.Body.Close()
	require.Equal(t, http.StatusNoContent, resp2.StatusCode)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
