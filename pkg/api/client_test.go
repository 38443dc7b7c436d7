package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestClient(rt roundTripperFunc) *Client {
	c := NewClient("http://chat.test", time.Second)
	c.HTTPClient = &http.Client{Transport: rt}
	return c
}

func newHTTPResponse(req *http.Request, status int, body string) *http.Response {
	return &http.Response{
		Status:     fmt.Sprintf("%d %s", status, http.StatusText(status)),
		StatusCode: status,
		Header:     make(http.Header),
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
		Request:    req,
	}
}

func requireFailure(t *testing.T, err error, want ErrorKind) *Failure {
	t.Helper()
	if err == nil {
		t.Fatalf("Expected failure %s, got nil", want)
	}
	var f *Failure
	if !errors.As(err, &f) {
		t.Fatalf("Expected *Failure, got %T: %v", err, err)
	}
	if f.Kind != want {
		t.Fatalf("Expected kind %s, got %s (detail %q)", want, f.Kind, f.Detail)
	}
	return f
}

func TestSend_Success(t *testing.T) {
	var gotPath, gotMethod, gotContentType string
	var gotBody ChatRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"response":"Hi there","timestamp":"2025-06-01T10:00:00Z","response_time_ms":42}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/", time.Second)
	reply, err := client.Send(context.Background(), "  hello  ")
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}

	if gotPath != "/api/chat" {
		t.Errorf("Expected path /api/chat, got %q", gotPath)
	}
	if gotMethod != http.MethodPost {
		t.Errorf("Expected POST, got %s", gotMethod)
	}
	if gotContentType != "application/json" {
		t.Errorf("Expected JSON content type, got %q", gotContentType)
	}
	if gotBody.Message != "hello" {
		t.Errorf("Expected trimmed message %q, got %q", "hello", gotBody.Message)
	}
	if reply.Text != "Hi there" {
		t.Errorf("Expected reply text %q, got %q", "Hi there", reply.Text)
	}
	want := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC).UnixMilli()
	if reply.TimestampMs != want {
		t.Errorf("Expected timestamp %d, got %d", want, reply.TimestampMs)
	}
	if reply.ResponseTimeMs != 42 {
		t.Errorf("Expected response time 42, got %d", reply.ResponseTimeMs)
	}
}

func TestSend_TimestampFallsBackToClock(t *testing.T) {
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		return newHTTPResponse(req, http.StatusOK, `{"response":"ok","timestamp":"not a time"}`), nil
	})
	client.now = func() time.Time { return fixed }

	reply, err := client.Send(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if reply.TimestampMs != fixed.UnixMilli() {
		t.Errorf("Expected clock timestamp %d, got %d", fixed.UnixMilli(), reply.TimestampMs)
	}
}

func TestSend_InvalidInputMakesNoRequest(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"empty", ""},
		{"whitespace", "   \n\t "},
		{"too long", strings.Repeat("a", 501)},
		{"too long multibyte", strings.Repeat("é", 501)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			client := newTestClient(func(req *http.Request) (*http.Response, error) {
				atomic.AddInt32(&calls, 1)
				return newHTTPResponse(req, http.StatusOK, `{"response":"x"}`), nil
			})

			_, err := client.Send(context.Background(), tt.query)
			requireFailure(t, err, KindInvalidInput)
			if n := atomic.LoadInt32(&calls); n != 0 {
				t.Errorf("Expected zero network calls, got %d", n)
			}
		})
	}
}

func TestValidateMessage_Boundaries(t *testing.T) {
	exact := strings.Repeat("é", 500)
	got, err := ValidateMessage("  " + exact + "  ")
	if err != nil {
		t.Fatalf("Expected 500 characters to be accepted, got %v", err)
	}
	if got != exact {
		t.Error("Expected message to be trimmed")
	}

	if _, err := ValidateMessage("a"); err != nil {
		t.Errorf("Expected single character to be accepted, got %v", err)
	}
}

func TestSend_StatusClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   ErrorKind
	}{
		{"bad request", http.StatusBadRequest, `{"detail":"Message too long"}`, KindInvalidInput},
		{"unprocessable", http.StatusUnprocessableEntity, `{"detail":[{"msg":"field required"}]}`, KindInvalidInput},
		{"caller daily string", http.StatusTooManyRequests, `{"detail":"Daily request limit exceeded for your IP"}`, KindRateLimitPerCallerDaily},
		{"caller hourly string", http.StatusTooManyRequests, `{"detail":"You've reached your hourly limit of 20 requests"}`, KindRateLimitPerCallerHourly},
		{"global daily object", http.StatusTooManyRequests,
			`{"detail":{"error":"Daily request limit exceeded for all users","message":"The API has reached its daily limit of 500 requests. Please try again tomorrow.","window":"daily"}}`,
			KindRateLimitGlobalDaily},
		{"global hourly object", http.StatusTooManyRequests,
			`{"detail":{"error":"Hourly request limit exceeded for all users","message":"The API has reached its hourly limit of 100 requests. Please try again in the next hour."}}`,
			KindRateLimitGlobalHourly},
		{"message only object", http.StatusTooManyRequests, `{"detail":{"message":"Daily request limit exceeded for your IP"}}`, KindRateLimitPerCallerDaily},
		{"unscoped 429", http.StatusTooManyRequests, `{"detail":"Too many requests"}`, KindRateLimitGlobalDaily},
		{"server error", http.StatusInternalServerError, `{"detail":"boom"}`, KindServerError},
		{"bad gateway plain", http.StatusBadGateway, `<html>bad gateway</html>`, KindServerError},
		{"not found", http.StatusNotFound, ``, KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(func(req *http.Request) (*http.Response, error) {
				return newHTTPResponse(req, tt.status, tt.body), nil
			})
			_, err := client.Send(context.Background(), "hello")
			f := requireFailure(t, err, tt.want)
			if f.Status != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, f.Status)
			}
		})
	}
}

func TestSend_RateLimitResetTime(t *testing.T) {
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		return newHTTPResponse(req, http.StatusTooManyRequests,
			`{"detail":{"error":"Daily request limit exceeded for all users","message":"Please try again tomorrow.","reset_time":1750000000}}`), nil
	})
	_, err := client.Send(context.Background(), "hello")
	f := requireFailure(t, err, KindRateLimitGlobalDaily)
	if !f.ResetAt.Equal(time.Unix(1750000000, 0)) {
		t.Errorf("Expected reset time from detail, got %v", f.ResetAt)
	}

	client = newTestClient(func(req *http.Request) (*http.Response, error) {
		resp := newHTTPResponse(req, http.StatusTooManyRequests, `{"detail":"Hourly request limit exceeded for your IP"}`)
		resp.Header.Set("X-RateLimit-Hourly-Reset", "1750003600")
		return resp, nil
	})
	_, err = client.Send(context.Background(), "hello")
	f = requireFailure(t, err, KindRateLimitPerCallerHourly)
	if !f.ResetAt.Equal(time.Unix(1750003600, 0)) {
		t.Errorf("Expected reset time from header, got %v", f.ResetAt)
	}
}

func TestSend_NetworkUnreachable(t *testing.T) {
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		return nil, &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	})
	_, err := client.Send(context.Background(), "hello")
	requireFailure(t, err, KindNetworkUnreachable)
}

func TestSend_Timeout(t *testing.T) {
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		<-req.Context().Done()
		return nil, req.Context().Err()
	})
	client.SetTimeout(20 * time.Millisecond)

	_, err := client.Send(context.Background(), "hello")
	requireFailure(t, err, KindTimeout)
}

func TestSend_CallerCancelIsUnknown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		cancel()
		<-req.Context().Done()
		return nil, req.Context().Err()
	})

	_, err := client.Send(ctx, "hello")
	requireFailure(t, err, KindUnknown)
}

func TestSend_EmptyOrMalformedBody(t *testing.T) {
	for _, body := range []string{`{"response":"   "}`, `not json`} {
		client := newTestClient(func(req *http.Request) (*http.Response, error) {
			return newHTTPResponse(req, http.StatusOK, body), nil
		})
		_, err := client.Send(context.Background(), "hello")
		requireFailure(t, err, KindUnknown)
	}
}

func TestSend_SingleRequestOnFailure(t *testing.T) {
	var calls int32
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		atomic.AddInt32(&calls, 1)
		return newHTTPResponse(req, http.StatusServiceUnavailable, `{"detail":"down"}`), nil
	})
	_, _ = client.Send(context.Background(), "hello")
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("Expected exactly one request, got %d", n)
	}
}

func TestCheckHealth(t *testing.T) {
	var gotPath string
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		gotPath = req.URL.Path
		return newHTTPResponse(req, http.StatusOK, `{"status":"healthy"}`), nil
	})
	if !client.CheckHealth(context.Background()) {
		t.Error("Expected healthy service")
	}
	if gotPath != "/health" {
		t.Errorf("Expected /health, got %q", gotPath)
	}

	client = newTestClient(func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("dial failed")
	})
	if client.CheckHealth(context.Background()) {
		t.Error("Expected unreachable service to be unhealthy")
	}

	client = newTestClient(func(req *http.Request) (*http.Response, error) {
		return newHTTPResponse(req, http.StatusServiceUnavailable, ``), nil
	})
	if client.CheckHealth(context.Background()) {
		t.Error("Expected 503 to be unhealthy")
	}
}

func TestClassifyRateLimit(t *testing.T) {
	tests := []struct {
		text string
		want ErrorKind
	}{
		{"Daily request limit exceeded for your IP", KindRateLimitPerCallerDaily},
		{"Hourly request limit exceeded for your IP", KindRateLimitPerCallerHourly},
		{"Daily request limit exceeded for all users", KindRateLimitGlobalDaily},
		{"Hourly request limit exceeded for all users", KindRateLimitGlobalHourly},
		{"You have made too many requests this hour", KindRateLimitPerCallerHourly},
		{"", KindRateLimitGlobalDaily},
	}
	for _, tt := range tests {
		if got := ClassifyRateLimit(tt.text); got != tt.want {
			t.Errorf("ClassifyRateLimit(%q) = %s, want %s", tt.text, got, tt.want)
		}
	}
}

func TestAsFailure(t *testing.T) {
	if AsFailure(nil) != nil {
		t.Error("Expected nil for nil error")
	}
	wrapped := fmt.Errorf("outer: %w", &Failure{Kind: KindTimeout})
	if f := AsFailure(wrapped); f.Kind != KindTimeout {
		t.Errorf("Expected wrapped kind, got %s", f.Kind)
	}
	if f := AsFailure(errors.New("x")); f.Kind != KindUnknown {
		t.Errorf("Expected unknown kind, got %s", f.Kind)
	}
	if !KindRateLimitGlobalHourly.IsRateLimit() || KindServerError.IsRateLimit() {
		t.Error("IsRateLimit classification mismatch")
	}
}
