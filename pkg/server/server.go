package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"time"

	"chatwidget/pkg/api"
	"chatwidget/pkg/completion"
	"chatwidget/pkg/config"
	"chatwidget/pkg/version"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	serviceName  = "Kunal's Portfolio Chat API"
	maxBodyBytes = 64 << 10

	apologyReply = "Sorry, I ran into a problem answering that. Please try again in a moment."
	emptyReply   = "Sorry, I couldn't come up with an answer. Could you rephrase that?"
)

// Server is the reference chat service behind the widget.
type Server struct {
	cfg      config.ServerConfig
	limits   config.LimitsConfig
	provider completion.Provider
	limiter  *Limiter
	trusted  []netip.Prefix
	now      func() time.Time
}

// New creates a Server. provider may be nil, in which case chat requests are
// answered with a configuration notice.
func New(cfg config.Config, provider completion.Provider, store CounterStore) *Server {
	trusted, err := cfg.Server.TrustedProxyPrefixes()
	if err != nil {
		slog.Warn("trusted_proxies_invalid", "error", err)
	}
	return &Server{
		cfg:      cfg.Server,
		limits:   cfg.Limits,
		provider: provider,
		limiter:  NewLimiter(store, cfg.Limits),
		trusted:  trusted,
		now:      time.Now,
	}
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(RealIP(s.trusted))
	r.Use(RequestID)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(CORS(s.cfg.AllowedOrigins))

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Post("/api/chat", s.handleChat)

	return r
}

type rateLimitInfo struct {
	CallerHourly         int   `json:"caller_hourly_limit"`
	CallerDaily          int   `json:"caller_daily_limit"`
	HourlyLimit          int   `json:"hourly_limit"`
	DailyLimit           int   `json:"daily_limit"`
	RequestsUsedThisHour *int  `json:"requests_used_this_hour,omitempty"`
	RequestsUsedToday    *int  `json:"requests_used_today,omitempty"`
	HourlyReset          int64 `json:"hourly_reset,omitempty"`
	DailyReset           int64 `json:"daily_reset,omitempty"`
}

func (s *Server) rateLimitInfo(u *Usage) rateLimitInfo {
	info := rateLimitInfo{
		CallerHourly: s.limits.CallerHourly,
		CallerDaily:  s.limits.CallerDaily,
		HourlyLimit:  s.limits.GlobalHourly,
		DailyLimit:   s.limits.GlobalDaily,
	}
	if u != nil {
		info.RequestsUsedThisHour = &u.GlobalHour
		info.RequestsUsedToday = &u.GlobalDay
		info.HourlyReset = u.HourReset.Unix()
		info.DailyReset = u.DayReset.Unix()
	}
	return info
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message":    serviceName,
		"version":    version.Summary(),
		"provider":   s.cfg.Provider,
		"model":      s.cfg.Model,
		"status":     "running",
		"rate_limit": s.rateLimitInfo(nil),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	var usage *Usage
	if u, err := s.limiter.Global(r.Context()); err != nil {
		slog.Warn("health_usage_failed", "request_id", GetRequestID(r.Context()), "error", err)
	} else {
		usage = &u
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":              "healthy",
		"timestamp":           s.now().UTC().Format(time.RFC3339Nano),
		"version":             version.Summary(),
		"provider":            s.cfg.Provider,
		"model":               s.cfg.Model,
		"provider_configured": s.provider != nil,
		"rate_limit":          s.rateLimitInfo(usage),
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	start := s.now()
	ctx := r.Context()
	reqID := GetRequestID(ctx)

	var req api.ChatRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Debug("chat_bad_request", "request_id", reqID, "error", err)
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	message, err := api.ValidateMessage(req.Message)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, api.AsFailure(err).Detail)
		return
	}

	caller := callerIP(r)
	usage, rejection, err := s.limiter.Check(ctx, caller)
	switch {
	case err != nil:
		// Counter store outages do not take the chat down.
		slog.Error("rate_limit_check_failed", "request_id", reqID, "error", err)
	case rejection != nil:
		slog.Info("chat_rate_limited", "request_id", reqID, "kind", rejection.Kind, "caller", caller)
		s.limiter.setHeaders(w.Header(), usage)
		writeJSON(w, http.StatusTooManyRequests, map[string]any{"detail": rejection.Detail})
		return
	}

	reply := s.answer(ctx, reqID, message)

	if u, err := s.limiter.Record(ctx, caller); err != nil {
		slog.Error("rate_limit_record_failed", "request_id", reqID, "error", err)
	} else {
		usage = u
	}
	if !usage.HourReset.IsZero() {
		s.limiter.setHeaders(w.Header(), usage)
	}

	elapsed := s.now().Sub(start).Milliseconds()
	writeJSON(w, http.StatusOK, api.ChatResponse{
		Response:       reply,
		Timestamp:      s.now().UTC().Format(time.RFC3339Nano),
		ResponseTimeMs: &elapsed,
	})
}

// answer produces the reply text for message. Backend failures become an
// apologetic reply rather than an HTTP error.
func (s *Server) answer(ctx context.Context, reqID, message string) string {
	if s.provider == nil {
		return fmt.Sprintf("API is running but the %s API key needs to be configured.", s.providerName())
	}

	timeout := time.Duration(s.cfg.TimeoutSeconds) * time.Second
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req := completion.Prompt(s.cfg.SystemPrompt, message)
	req.Model = s.cfg.Model

	slog.Debug("completion_start", "request_id", reqID, "provider", s.cfg.Provider)
	resp, err := s.provider.Complete(ctx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			slog.Warn("completion_timeout", "request_id", reqID, "timeout", timeout)
		} else {
			slog.Error("completion_failed", "request_id", reqID, "error", err)
		}
		return apologyReply
	}
	if resp.Content == "" {
		slog.Warn("completion_empty", "request_id", reqID, "model", resp.Model)
		return emptyReply
	}
	slog.Debug("completion_done", "request_id", reqID, "model", resp.Model, "chars", len(resp.Content))
	return resp.Content
}

func (s *Server) providerName() string {
	if info, ok := completion.DefaultRegistry.GetProviderInfo(completion.ProviderType(s.cfg.Provider)); ok {
		return info.Name
	}
	return s.cfg.Provider
}

// callerIP returns the client address without its port. RealIP has already
// applied forwarding headers from trusted proxies.
func callerIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("write_response_failed", "error", err)
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, api.ErrorResponse{Detail: mustJSON(detail)})
}

func mustJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`""`)
	}
	return data
}
