package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"chatwidget/pkg/config"
	"chatwidget/pkg/logging"
	"chatwidget/pkg/version"
)

const (
	DefaultTimeout = 15 * time.Second
	healthTimeout  = 5 * time.Second
	maxBodyBytes   = 1 << 20
)

// Client handles requests to the remote chat service. Each Send issues exactly
// one request and never retries.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	UserAgent  string

	now func() time.Time
}

// NewClient creates a new chat service client. The timeout is applied per request
// through the request context rather than through http.Client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{},
		Timeout:    timeout,
		UserAgent:  "chatwidget/" + version.Summary(),
		now:        time.Now,
	}
}

// SetTimeout configures the per-request application timeout
func (c *Client) SetTimeout(timeout time.Duration) {
	c.Timeout = timeout
}

// ValidateMessage trims query and checks it against the service's length limits.
// The returned error is always a *Failure with KindInvalidInput.
func ValidateMessage(query string) (string, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return "", &Failure{Kind: KindInvalidInput, Detail: "message cannot be empty"}
	}
	if n := utf8.RuneCountInString(trimmed); n > config.MaxMessageLength {
		return "", &Failure{
			Kind:   KindInvalidInput,
			Detail: fmt.Sprintf("message too long (%d characters, max %d)", n, config.MaxMessageLength),
		}
	}
	return trimmed, nil
}

// Send posts query to the chat endpoint. Any returned error is a *Failure; raw
// transport errors are logged and summarized in Failure.Detail.
func (c *Client) Send(ctx context.Context, query string) (Reply, error) {
	message, err := ValidateMessage(query)
	if err != nil {
		slog.Debug("transport_invalid_input", "error", err)
		return Reply{}, err
	}

	payload, err := json.Marshal(ChatRequest{Message: message})
	if err != nil {
		return Reply{}, &Failure{Kind: KindUnknown, Detail: fmt.Sprintf("failed to marshal request: %v", err)}
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	endpoint := c.BaseURL + "/api/chat"
	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return Reply{}, &Failure{Kind: KindUnknown, Detail: fmt.Sprintf("failed to create request: %v", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.UserAgent)

	slog.Debug("transport_send_start",
		"url", endpoint,
		"message_length", utf8.RuneCountInString(message),
		"timeout", c.Timeout.String(),
	)
	started := c.now()

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		failure := classifyError(err)
		slog.Warn("transport_send_failed", "kind", failure.Kind, "error", err)
		return Reply{}, failure
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		failure := classifyError(err)
		slog.Warn("transport_read_failed", "kind", failure.Kind, "error", err)
		return Reply{}, failure
	}

	logger := slog.Default()
	if logger.Enabled(ctx, logging.LevelTrace) {
		logger.Log(ctx, logging.LevelTrace, "transport_response_body", "status", resp.StatusCode, "body", string(body))
	}

	if resp.StatusCode != http.StatusOK {
		failure := classifyStatus(resp.StatusCode, resp.Header, body)
		slog.Warn("transport_send_rejected",
			"status_code", resp.StatusCode,
			"kind", failure.Kind,
			"detail", preview(failure.Detail, 200),
		)
		return Reply{}, failure
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		slog.Warn("transport_decode_failed", "error", err)
		return Reply{}, &Failure{Kind: KindUnknown, Detail: "malformed response from chat service", Status: resp.StatusCode}
	}
	if strings.TrimSpace(chatResp.Response) == "" {
		return Reply{}, &Failure{Kind: KindUnknown, Detail: "empty response from chat service", Status: resp.StatusCode}
	}

	reply := Reply{
		Text:        chatResp.Response,
		TimestampMs: c.parseTimestamp(chatResp.Timestamp),
	}
	if chatResp.ResponseTimeMs != nil {
		reply.ResponseTimeMs = *chatResp.ResponseTimeMs
	}

	slog.Info("transport_send_done",
		"elapsed_ms", c.now().Sub(started).Milliseconds(),
		"server_time_ms", reply.ResponseTimeMs,
		"response_length", len(reply.Text),
	)
	return reply, nil
}

// CheckHealth probes GET /health. It never returns an error; an unreachable or
// unhealthy service is simply false.
func (c *Client) CheckHealth(ctx context.Context) bool {
	reqCtx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return false
	}
	httpReq.Header.Set("User-Agent", c.UserAgent)

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		slog.Debug("transport_health_failed", "error", err)
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))

	slog.Debug("transport_health", "status_code", resp.StatusCode)
	return resp.StatusCode == http.StatusOK
}

func (c *Client) parseTimestamp(raw string) int64 {
	raw = strings.TrimSpace(raw)
	if raw != "" {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			return ts.UnixMilli()
		}
	}
	return c.now().UnixMilli()
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
