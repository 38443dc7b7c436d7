package api

import "encoding/json"

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is the success body of POST /api/chat.
type ChatResponse struct {
	Response       string `json:"response"`
	Timestamp      string `json:"timestamp"`
	ResponseTimeMs *int64 `json:"response_time_ms,omitempty"`
}

// ErrorResponse is the failure body returned by the chat service. Detail is
// either a plain string or a RateLimitDetail object.
type ErrorResponse struct {
	Detail json.RawMessage `json:"detail"`
}

// RateLimitDetail is the structured detail attached to HTTP 429 responses.
type RateLimitDetail struct {
	Error                string `json:"error,omitempty"`
	Message              string `json:"message"`
	HourlyLimit          int    `json:"hourly_limit,omitempty"`
	DailyLimit           int    `json:"daily_limit,omitempty"`
	RequestsUsedThisHour int    `json:"requests_used_this_hour,omitempty"`
	RequestsUsedToday    int    `json:"requests_used_today,omitempty"`
	Window               string `json:"window,omitempty"`
	ResetTime            int64  `json:"reset_time,omitempty"`
}

// Reply is a successful answer from the chat service.
type Reply struct {
	Text           string
	TimestampMs    int64
	ResponseTimeMs int64
}
