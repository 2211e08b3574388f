// Package relay talks to the remote AI relay: a single callable that takes a
// message plus sampling parameters and returns the assistant's text.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"relaychat/internal/infra/config"
)

// maxResponseBody is the maximum response body size we read from the relay.
const maxResponseBody = 4 * 1024 * 1024 // 4 MB

// Parameters are the optional sampling knobs forwarded to the relay.
type Parameters struct {
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"maxTokens,omitempty"`
}

// Request is the callable's input.
type Request struct {
	Message    string     `json:"message"`
	Parameters Parameters `json:"parameters"`
}

// Response is the callable's output.
type Response struct {
	Text string `json:"text"`
}

// Caller invokes the relay callable on behalf of the identity token.
type Caller interface {
	Call(ctx context.Context, token string, req Request) (Response, error)
}

// --- wire envelope ---

type callEnvelope struct {
	Data Request `json:"data"`
}

type resultEnvelope struct {
	Result *Response   `json:"result,omitempty"`
	Error  *errorField `json:"error,omitempty"`
}

type errorField struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// HTTPCaller is a Caller that POSTs to {base_url}/{function}.
type HTTPCaller struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// NewHTTPCaller creates a caller with pooled transport and configured timeouts.
func NewHTTPCaller(cfg config.RelayConfig, logger *slog.Logger) *HTTPCaller {
	base := strings.TrimRight(cfg.BaseURL, "/")
	fn := strings.Trim(cfg.Function, "/")
	return &HTTPCaller{
		url:    base + "/" + fn,
		client: newHTTPClient(cfg.ConnTimeout, cfg.Timeout),
		logger: logger,
	}
}

// Call implements Caller. Transport failures become UNAVAILABLE (or
// DEADLINE_EXCEEDED); context cancellation is returned unchanged.
func (c *HTTPCaller) Call(ctx context.Context, token string, req Request) (Response, error) {
	body, err := json.Marshal(callEnvelope{Data: req})
	if err != nil {
		return Response{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return Response{}, ctx.Err()
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return Response{}, &CallError{Code: CodeDeadlineExceeded, Message: err.Error()}
		}
		return Response{}, &CallError{Code: CodeUnavailable, Message: err.Error()}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
	if err != nil {
		return Response{}, &CallError{Code: CodeUnavailable, Message: fmt.Sprintf("read response: %v", err), HTTPStatus: httpResp.StatusCode}
	}

	var env resultEnvelope
	decodeErr := json.Unmarshal(respBody, &env)

	if httpResp.StatusCode != http.StatusOK || env.Error != nil {
		return Response{}, toCallError(httpResp.StatusCode, env.Error, respBody)
	}
	if decodeErr != nil || env.Result == nil {
		return Response{}, &CallError{Code: CodeInternal, Message: "malformed relay response", HTTPStatus: httpResp.StatusCode}
	}

	c.logger.Debug("relay call completed",
		"status", httpResp.StatusCode,
		"duration", time.Since(start),
		"chars", len(env.Result.Text),
	)
	return *env.Result, nil
}

func toCallError(status int, field *errorField, body []byte) *CallError {
	if field != nil && field.Status != "" {
		return &CallError{Code: Code(strings.ToUpper(field.Status)), Message: field.Message, HTTPStatus: status}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &CallError{Code: codeForStatus(status), Message: msg, HTTPStatus: status}
}

// newHTTPClient creates an *http.Client with a pooled transport suitable for
// a single long-lived relay host.
func newHTTPClient(connTimeout, respTimeout time.Duration) *http.Client {
	if connTimeout == 0 {
		connTimeout = 10 * time.Second
	}
	if respTimeout == 0 {
		respTimeout = 60 * time.Second
	}
	return &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   connTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: respTimeout,
			MaxIdleConns:          4,
			MaxIdleConnsPerHost:   4,
			IdleConnTimeout:       120 * time.Second,
			ForceAttemptHTTP2:     true,
		},
		Timeout: connTimeout + respTimeout,
	}
}
