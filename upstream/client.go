// Package upstream implements the HTTP client that calls the OpenRouter-
// style Chat Completions backend, in both single-shot and streaming modes,
// with retry, timeout, and field-degradation policy.
package upstream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"goa.design/responses-bridge/apperr"
	"goa.design/responses-bridge/chatcompletions"
)

// Config configures retry, timeout, and degradation behavior.
type Config struct {
	BaseURL           string
	APIKey            string
	RequestTimeout    time.Duration
	RetryMaxAttempts  int
	RetryMaxElapsed   time.Duration
	DegradeFields     map[string]bool
	// BurstRPS caps the local dispatch rate of upstream attempts, first
	// tries and retries alike, so a burst of client requests cannot amplify
	// into a retry storm. Zero disables the limiter.
	BurstRPS float64
}

// Client calls {base}/chat/completions over plain HTTP, never hiding the
// raw SSE framing a streaming caller needs to parse itself.
type Client struct {
	http    *http.Client
	cfg     Config
	limiter *rate.Limiter
}

// New constructs a Client. httpClient may be nil to use http.DefaultClient.
func New(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	var limiter *rate.Limiter
	if cfg.BurstRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.BurstRPS), 1)
	}
	return &Client{http: httpClient, cfg: cfg, limiter: limiter}
}

// Call performs one non-streaming chat-completions request, retrying
// transient failures with exponential backoff and jitter, degrading a
// fragile field once on a matching 4xx, and retrying once more on an empty
// completion.
func (c *Client) Call(ctx context.Context, req *chatcompletions.Request) (*chatcompletions.Response, string, error) {
	req.Stream = false
	resp, requestID, err := c.callWithRetry(ctx, req)
	if err != nil {
		return nil, "", err
	}
	budgeted := req.MaxTokens == nil || *req.MaxTokens > 0
	if budgeted && resp.IsEmptyCompletion() {
		resp, requestID, err = c.callWithRetry(ctx, req)
		if err != nil {
			return nil, "", err
		}
		if resp.IsEmptyCompletion() {
			return nil, "", apperr.New(apperr.BadGateway, "empty_completion", "upstream returned an empty completion twice", nil)
		}
	}
	return resp, requestID, nil
}

func (c *Client) callWithRetry(ctx context.Context, req *chatcompletions.Request) (*chatcompletions.Response, string, error) {
	var (
		resp      *chatcompletions.Response
		requestID string
		degraded  bool
	)
	bo := c.newBackoff(ctx)
	attempt := 0
	op := func() error {
		attempt++
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}
		r, id, status, body, err := c.doOnce(ctx, req)
		requestID = id
		if err != nil {
			return err // network error: retriable
		}
		if status >= 500 || status == 429 {
			return fmt.Errorf("upstream: status %d", status)
		}
		if status >= 400 {
			if !degraded {
				if field, ok := c.matchDegradableField(body); ok {
					degraded = true
					degradeField(req, field)
					return fmt.Errorf("upstream: status %d, degrading %q and retrying", status, field)
				}
			}
			return backoff.Permanent(apperr.New(apperr.UpstreamError, "", fmt.Sprintf("upstream status %d: %s", status, string(body)), nil).WithRequestID(id))
		}
		resp = r
		return nil
	}
	if err := backoff.Retry(op, bo); err != nil {
		if attErr, ok := err.(*backoff.PermanentError); ok {
			err = attErr.Err
		}
		if ae, ok := apperr.As(err); ok {
			return nil, requestID, ae
		}
		return nil, requestID, apperr.FromTransport(err).WithRequestID(requestID)
	}
	return resp, requestID, nil
}

func (c *Client) newBackoff(ctx context.Context) backoff.BackOffContext {
	eb := backoff.NewExponentialBackOff()
	eb.MaxElapsedTime = c.cfg.RetryMaxElapsed
	var withMax backoff.BackOff = eb
	if c.cfg.RetryMaxAttempts > 0 {
		withMax = backoff.WithMaxRetries(eb, uint64(c.cfg.RetryMaxAttempts-1))
	}
	return backoff.WithContext(withMax, ctx)
}

func (c *Client) doOnce(ctx context.Context, req *chatcompletions.Request) (*chatcompletions.Response, string, int, []byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, "", 0, nil, backoff.Permanent(err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.cfg.BaseURL, "/")+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, "", 0, nil, backoff.Permanent(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, "", 0, nil, err
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", resp.StatusCode, nil, err
	}
	requestID := resp.Header.Get("X-Request-Id")
	if resp.StatusCode >= 400 {
		return nil, requestID, resp.StatusCode, respBody, nil
	}
	var parsed chatcompletions.Response
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, requestID, resp.StatusCode, respBody, backoff.Permanent(fmt.Errorf("decode response: %w", err))
	}
	return &parsed, requestID, resp.StatusCode, respBody, nil
}

func (c *Client) matchDegradableField(body []byte) (string, bool) {
	for field := range c.cfg.DegradeFields {
		if bytes.Contains(body, []byte(field)) {
			return field, true
		}
	}
	return "", false
}

func degradeField(req *chatcompletions.Request, field string) {
	// Only fields the request translator might set are degradable; each
	// is a pointer or zero-value field that can simply be cleared.
	switch field {
	case "verbosity":
		// chatcompletions.Request has no verbosity field, so there is
		// nothing to clear: the retry that follows resends the same payload.
	case "temperature":
		req.Temperature = nil
	case "top_p":
		req.TopP = nil
	case "parallel_tool_calls":
		req.ParallelToolCalls = nil
	}
}

// StreamSession iterates the `data:` frames of a streamed chat-completions
// response. Next returns (chunk, false, nil) per frame, (zero, true, nil)
// on a clean [DONE], or (zero, true, err) on a transport/decode failure.
type StreamSession struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
}

// Stream opens a streaming chat-completions call. The caller owns the
// returned session's lifetime and must call Close.
func (c *Client) Stream(ctx context.Context, req *chatcompletions.Request) (*StreamSession, string, error) {
	req.Stream = true
	body, err := json.Marshal(req)
	if err != nil {
		return nil, "", apperr.New(apperr.Internal, "", err.Error(), err)
	}

	var (
		resp      *http.Response
		requestID string
	)
	bo := c.newBackoff(ctx)
	op := func() error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.cfg.BaseURL, "/")+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "text/event-stream")
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

		r, err := c.http.Do(httpReq)
		if err != nil {
			return err
		}
		requestID = r.Header.Get("X-Request-Id")
		if r.StatusCode >= 500 || r.StatusCode == 429 {
			r.Body.Close()
			return fmt.Errorf("upstream: status %d", r.StatusCode)
		}
		if r.StatusCode >= 400 {
			defer r.Body.Close()
			errBody, _ := io.ReadAll(r.Body)
			return backoff.Permanent(apperr.New(apperr.UpstreamError, "", fmt.Sprintf("upstream status %d: %s", r.StatusCode, string(errBody)), nil).WithRequestID(requestID))
		}
		resp = r
		return nil
	}
	if err := backoff.Retry(op, bo); err != nil {
		if attErr, ok := err.(*backoff.PermanentError); ok {
			err = attErr.Err
		}
		if ae, ok := apperr.As(err); ok {
			return nil, requestID, ae
		}
		return nil, requestID, apperr.FromTransport(err).WithRequestID(requestID)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &StreamSession{body: resp.Body, scanner: scanner}, requestID, nil
}

// Next reads and decodes the next `data:` frame, skipping blank lines,
// comments, and non-data fields per the SSE framing rules.
func (s *StreamSession) Next() (chatcompletions.StreamChunk, bool, error) {
	for s.scanner.Scan() {
		line := s.scanner.Text()
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == "[DONE]" {
			return chatcompletions.StreamChunk{}, true, nil
		}
		var chunk chatcompletions.StreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return chatcompletions.StreamChunk{}, true, fmt.Errorf("upstream: decode stream chunk: %w", err)
		}
		return chunk, false, nil
	}
	if err := s.scanner.Err(); err != nil {
		return chatcompletions.StreamChunk{}, true, err
	}
	// Upstream closed the connection without a terminal [DONE] frame.
	return chatcompletions.StreamChunk{}, true, io.ErrUnexpectedEOF
}

// Close releases the underlying HTTP response body.
func (s *StreamSession) Close() error {
	return s.body.Close()
}
