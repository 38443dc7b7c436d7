package chat

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"chatwidget/pkg/api"
	"chatwidget/pkg/config"

	"golang.org/x/time/rate"
)

// Transport is the part of api.Client the resolver needs.
type Transport interface {
	Send(ctx context.Context, query string) (api.Reply, error)
	CheckHealth(ctx context.Context) bool
}

// Source records where an answer came from.
type Source string

const (
	SourceCanned    Source = "canned"
	SourceKeyword   Source = "keyword"
	SourceTransport Source = "transport"
	SourceLocal     Source = "local"
)

// Resolution is the answer to one query.
type Resolution struct {
	Text          string
	UsedTransport bool
	IsError       bool
	Kind          api.ErrorKind
	Source        Source
}

// Resolver decides whether a query is answered from the prewritten table or
// forwarded to the chat service.
type Resolver struct {
	table     PrewrittenTable
	keywords  KeywordTable
	transport Transport
	limits    config.LimitsConfig
	offline   bool

	warmup   *rate.Limiter
	warmupWG sync.WaitGroup

	now func() time.Time
}

// NewResolver builds a resolver from the catalog and configuration. A nil
// transport behaves like offline mode.
func NewResolver(cat Catalog, transport Transport, cfg config.Config) *Resolver {
	r := &Resolver{
		table:     cat.Table(),
		keywords:  cat.KeywordTable(),
		transport: transport,
		limits:    cfg.Limits,
		offline:   cfg.Offline || transport == nil,
		now:       time.Now,
	}
	if cfg.Warmup.Enabled && !r.offline {
		limit := rate.Inf
		if cfg.Warmup.MinIntervalSeconds > 0 {
			limit = rate.Every(time.Duration(cfg.Warmup.MinIntervalSeconds) * time.Second)
		}
		r.warmup = rate.NewLimiter(limit, 1)
	}
	return r
}

// Offline reports whether the resolver never contacts the chat service.
func (r *Resolver) Offline() bool {
	return r.offline
}

// Resolve answers query. Failures are never returned; they come back as a
// Resolution with IsError set and user-facing text.
func (r *Resolver) Resolve(ctx context.Context, query string) Resolution {
	if res, ok := r.ResolveLocal(ctx, query); ok {
		return res
	}
	return r.resolveRemote(ctx, query)
}

// ResolveLocal answers query without a network round trip when possible:
// canned answers, invalid input and offline keyword matches. It reports false
// when the chat service must be asked.
func (r *Resolver) ResolveLocal(ctx context.Context, query string) (Resolution, bool) {
	if answer, ok := r.table.Lookup(query); ok {
		slog.Debug("resolve_canned", "query_length", len(query))
		r.warmUp(ctx)
		return Resolution{Text: answer, Source: SourceCanned}, true
	}

	if _, err := api.ValidateMessage(query); err != nil {
		f := api.AsFailure(err)
		slog.Debug("resolve_invalid_input", "detail", f.Detail)
		return Resolution{
			Text:    MapError(f, r.limits, r.now()),
			IsError: true,
			Kind:    f.Kind,
			Source:  SourceLocal,
		}, true
	}

	if r.offline {
		m := r.keywords.Match(query)
		slog.Debug("resolve_keyword", "matched", m.Matched(), "keyword", m.Keyword)
		return Resolution{Text: m.Answer, Source: SourceKeyword}, true
	}

	return Resolution{}, false
}

func (r *Resolver) resolveRemote(ctx context.Context, query string) Resolution {
	reply, err := r.transport.Send(ctx, query)
	if err != nil {
		f := api.AsFailure(err)
		slog.Info("resolve_failed", "kind", f.Kind)
		return Resolution{
			Text:          MapError(f, r.limits, r.now()),
			UsedTransport: true,
			IsError:       true,
			Kind:          f.Kind,
			Source:        SourceTransport,
		}
	}
	return Resolution{Text: reply.Text, UsedTransport: true, Source: SourceTransport}
}

// warmUp fires an unawaited health probe so the next real request finds the
// service awake. Probes are throttled and their result is discarded.
func (r *Resolver) warmUp(ctx context.Context) {
	if r.warmup == nil || !r.warmup.Allow() {
		return
	}
	r.warmupWG.Add(1)
	go func() {
		defer r.warmupWG.Done()
		if !r.transport.CheckHealth(ctx) {
			slog.Debug("warmup_failed")
			return
		}
		slog.Debug("warmup_done")
	}()
}

// Wait blocks until in-flight warm-up probes have returned. Callers must make
// sure no Resolve or ResolveLocal call is still running.
func (r *Resolver) Wait() {
	r.warmupWG.Wait()
}
