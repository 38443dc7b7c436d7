package chat

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"chatwidget/pkg/api"
	"chatwidget/pkg/config"
)

// DefaultIntroDelay is how long after Start the greeting appears.
const DefaultIntroDelay = 500 * time.Millisecond

// Widget wires the store, resolver and revealer into one conversation. It never
// returns request failures to its host; they become assistant messages.
type Widget struct {
	store    *Store
	resolver *Resolver
	revealer *Revealer
	catalog  Catalog

	introDelay time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewWidget creates a widget. Pass a nil transport to answer from the
// catalog only.
func NewWidget(cfg config.Config, cat Catalog, transport Transport) *Widget {
	ctx, cancel := context.WithCancel(context.Background())
	store := NewStore()
	return &Widget{
		store:      store,
		resolver:   NewResolver(cat, transport, cfg),
		revealer:   NewRevealer(store, time.Duration(cfg.Reveal.IntervalMs)*time.Millisecond, cfg.Reveal.Step),
		catalog:    cat,
		introDelay: DefaultIntroDelay,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Store exposes the conversation for rendering.
func (w *Widget) Store() *Store {
	return w.store
}

// Catalog returns the copy the widget answers from.
func (w *Widget) Catalog() Catalog {
	return w.catalog
}

// Offline reports whether answers come from the catalog only.
func (w *Widget) Offline() bool {
	return w.resolver.Offline()
}

// Start schedules the greeting. It is skipped if the user speaks first.
func (w *Widget) Start() {
	if w.catalog.Intro == "" {
		return
	}
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.wg.Add(1)
	w.mu.Unlock()
	go func() {
		defer w.wg.Done()
		timer := time.NewTimer(w.introDelay)
		defer timer.Stop()
		select {
		case <-w.ctx.Done():
			return
		case <-timer.C:
		}

		w.mu.Lock()
		defer w.mu.Unlock()
		if w.closed || len(w.store.Snapshot().Messages) > 0 {
			return
		}
		w.store.AppendMessage(RoleAssistant, w.catalog.Intro)
		slog.Debug("intro_shown")
	}()
}

// Submit sends text as the user's next turn. It returns false when the widget
// is busy, closed or text is blank. Local answers start revealing before Submit
// returns; remote ones are fetched in the background.
func (w *Widget) Submit(text string) bool {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return false
	}
	turn, ok := w.store.Submit(text)
	if !ok {
		w.mu.Unlock()
		return false
	}
	// Taken under mu so Close cannot start waiting before this turn is counted.
	w.wg.Add(1)
	w.mu.Unlock()
	slog.Info("chat_submit", "message_id", turn.UserID, "reply_id", turn.ReplyID)

	if res, ok := w.resolver.ResolveLocal(w.ctx, turn.Query); ok {
		w.deliver(turn, res)
		w.wg.Done()
		return true
	}

	go func() {
		defer w.wg.Done()
		w.deliver(turn, w.resolver.Resolve(w.ctx, turn.Query))
	}()
	return true
}

func (w *Widget) deliver(turn Turn, res Resolution) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}

	slog.Debug("chat_resolved",
		"reply_id", turn.ReplyID,
		"source", res.Source,
		"used_transport", res.UsedTransport,
		"is_error", res.IsError,
	)
	if res.IsError {
		w.store.MarkError(turn.ReplyID)
	}
	if res.Kind == api.KindInvalidInput {
		w.revealer.Settle(turn.ReplyID, res.Text)
		return
	}
	w.revealer.Start(w.ctx, turn.ReplyID, res.Text)
}

// WaitIdle blocks until no request or reveal is outstanding. It consumes the
// store's change notifications, so it must not be mixed with another reader of
// Store().Changes().
func (w *Widget) WaitIdle(ctx context.Context) error {
	for w.store.Busy() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.store.Changes():
		}
	}
	return nil
}

// Close tears the widget down: pending greeting, requests, probes and the
// active reveal are all cancelled before Close returns.
func (w *Widget) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.mu.Unlock()

	w.cancel()
	w.revealer.Stop()
	w.wg.Wait()
	w.resolver.Wait()
	slog.Debug("widget_closed")
}
