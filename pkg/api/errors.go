package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrorKind classifies why a chat request did not produce an answer.
type ErrorKind string

const (
	KindInvalidInput             ErrorKind = "invalid_input"
	KindNetworkUnreachable       ErrorKind = "network_unreachable"
	KindRateLimitPerCallerHourly ErrorKind = "rate_limit_caller_hourly"
	KindRateLimitPerCallerDaily  ErrorKind = "rate_limit_caller_daily"
	KindRateLimitGlobalHourly    ErrorKind = "rate_limit_global_hourly"
	KindRateLimitGlobalDaily     ErrorKind = "rate_limit_global_daily"
	KindServerError              ErrorKind = "server_error"
	KindTimeout                  ErrorKind = "timeout"
	KindUnknown                  ErrorKind = "unknown"
)

// IsRateLimit reports whether k is one of the four quota kinds.
func (k ErrorKind) IsRateLimit() bool {
	switch k {
	case KindRateLimitPerCallerHourly, KindRateLimitPerCallerDaily,
		KindRateLimitGlobalHourly, KindRateLimitGlobalDaily:
		return true
	}
	return false
}

// Failure is the only error type returned by Client.Send.
type Failure struct {
	Kind    ErrorKind
	Detail  string
	Status  int
	ResetAt time.Time
}

func (f *Failure) Error() string {
	if f.Detail == "" {
		return string(f.Kind)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Detail)
}

// AsFailure extracts a *Failure from err, classifying anything else as unknown.
func AsFailure(err error) *Failure {
	if err == nil {
		return nil
	}
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return &Failure{Kind: KindUnknown, Detail: err.Error()}
}

// classifyError maps an error from http.Client.Do to a Failure.
func classifyError(err error) *Failure {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Failure{Kind: KindTimeout, Detail: "request timed out"}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Failure{Kind: KindTimeout, Detail: "request timed out"}
	}
	if errors.Is(err, context.Canceled) {
		return &Failure{Kind: KindUnknown, Detail: "request cancelled"}
	}

	var dnsErr *net.DNSError
	var opErr *net.OpError
	var urlErr *url.Error
	switch {
	case errors.As(err, &dnsErr), errors.As(err, &opErr), errors.As(err, &urlErr):
		return &Failure{Kind: KindNetworkUnreachable, Detail: err.Error()}
	}
	return &Failure{Kind: KindUnknown, Detail: err.Error()}
}

// classifyStatus maps a non-200 response to a Failure.
func classifyStatus(status int, header http.Header, body []byte) *Failure {
	text, rl := parseDetail(body)

	switch {
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return &Failure{Kind: KindInvalidInput, Detail: text, Status: status}
	case status == http.StatusTooManyRequests:
		kind := ClassifyRateLimit(text)
		f := &Failure{Kind: kind, Detail: text, Status: status}
		if rl != nil && rl.ResetTime > 0 {
			f.ResetAt = time.Unix(rl.ResetTime, 0)
		} else {
			f.ResetAt = resetFromHeader(header, kind)
		}
		return f
	case status >= 500:
		return &Failure{Kind: KindServerError, Detail: text, Status: status}
	default:
		if text == "" {
			text = fmt.Sprintf("HTTP %d", status)
		}
		return &Failure{Kind: KindUnknown, Detail: text, Status: status}
	}
}

// parseDetail extracts human-readable text from an error body. The structured
// detail is returned when the body carries one.
func parseDetail(body []byte) (string, *RateLimitDetail) {
	var resp ErrorResponse
	if err := json.Unmarshal(body, &resp); err != nil || len(resp.Detail) == 0 {
		return strings.TrimSpace(string(body)), nil
	}

	var s string
	if err := json.Unmarshal(resp.Detail, &s); err == nil {
		return s, nil
	}

	var rl RateLimitDetail
	if err := json.Unmarshal(resp.Detail, &rl); err == nil {
		parts := make([]string, 0, 2)
		if rl.Error != "" {
			parts = append(parts, rl.Error)
		}
		if rl.Message != "" {
			parts = append(parts, rl.Message)
		}
		return strings.Join(parts, ". "), &rl
	}

	return string(resp.Detail), nil
}

// ClassifyRateLimit picks the quota kind named by a 429 detail text. Text that
// names neither scope is treated as a service-wide limit so the caller is never
// blamed for it; text that names no window is treated as daily.
func ClassifyRateLimit(text string) ErrorKind {
	t := strings.ToLower(text)

	caller := containsAny(t, "your ip", "for your", "you've", "you have", "per ip", "per-ip", "per user", "per caller")

	hourly := false
	switch {
	case strings.Contains(t, "hourly"):
		hourly = true
	case containsAny(t, "daily", "per day", "today", "tomorrow", "24 hours"):
		hourly = false
	case strings.Contains(t, "hour"):
		hourly = true
	}

	switch {
	case caller && hourly:
		return KindRateLimitPerCallerHourly
	case caller:
		return KindRateLimitPerCallerDaily
	case hourly:
		return KindRateLimitGlobalHourly
	default:
		return KindRateLimitGlobalDaily
	}
}

func resetFromHeader(header http.Header, kind ErrorKind) time.Time {
	key := "X-RateLimit-Daily-Reset"
	if kind == KindRateLimitPerCallerHourly || kind == KindRateLimitGlobalHourly {
		key = "X-RateLimit-Hourly-Reset"
	}
	raw := strings.TrimSpace(header.Get(key))
	if raw == "" {
		return time.Time{}
	}
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || secs <= 0 {
		return time.Time{}
	}
	return time.Unix(secs, 0)
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
