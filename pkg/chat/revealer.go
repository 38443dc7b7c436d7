package chat

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// RevealState is the lifecycle of a Revealer.
type RevealState int

const (
	RevealIdle RevealState = iota
	Revealing
	RevealDone
)

func (s RevealState) String() string {
	switch s {
	case RevealIdle:
		return "idle"
	case Revealing:
		return "revealing"
	case RevealDone:
		return "done"
	default:
		return "unknown"
	}
}

const (
	DefaultRevealInterval = 20 * time.Millisecond
	DefaultRevealStep     = 3
)

// Revealer shows an already known answer a few characters at a time. It owns
// at most one ticker; Start, Settle and Stop all go through the same disposal
// path, so a superseded or torn down reveal never writes to the store again.
type Revealer struct {
	store    *Store
	interval time.Duration
	step     int

	// ctl serializes Start, Settle and Stop, including the wait for the prior
	// goroutine to exit.
	ctl sync.Mutex

	mu        sync.Mutex
	state     RevealState
	messageID string
	gen       uint64
	cancel    context.CancelFunc
	done      chan struct{}

	active atomic.Int32
}

// NewRevealer creates a revealer writing into store.
func NewRevealer(store *Store, interval time.Duration, step int) *Revealer {
	if interval <= 0 {
		interval = DefaultRevealInterval
	}
	if step <= 0 {
		step = DefaultRevealStep
	}
	return &Revealer{
		store:    store,
		interval: interval,
		step:     step,
	}
}

// State returns the current state and the message it applies to.
func (r *Revealer) State() (RevealState, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state, r.messageID
}

// ActiveTimers returns the number of running reveal tickers; never more than one.
func (r *Revealer) ActiveTimers() int {
	return int(r.active.Load())
}

// Start reveals fullText into message id, cancelling any reveal in progress.
// The returned channel closes when this reveal finishes or is cancelled.
func (r *Revealer) Start(ctx context.Context, id, fullText string) <-chan struct{} {
	r.ctl.Lock()
	defer r.ctl.Unlock()
	r.stopLocked()

	runes := []rune(fullText)
	done := make(chan struct{})

	r.mu.Lock()
	r.gen++
	gen := r.gen
	r.messageID = id
	r.state = Revealing
	r.mu.Unlock()

	slog.Debug("reveal_start", "message_id", id, "length", len(runes))
	r.store.SetTyping(true)

	if len(runes) == 0 {
		r.complete(gen, id, fullText)
		close(done)
		return done
	}

	revealCtx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancel = cancel
	r.done = done
	r.mu.Unlock()

	r.active.Add(1)
	go r.run(revealCtx, gen, id, runes, done)
	return done
}

// Settle writes text into message id at once, without ticking. Any reveal in
// progress is cancelled first.
func (r *Revealer) Settle(id, text string) {
	r.ctl.Lock()
	defer r.ctl.Unlock()
	r.stopLocked()

	r.mu.Lock()
	r.gen++
	gen := r.gen
	r.messageID = id
	r.mu.Unlock()

	r.complete(gen, id, text)
}

// Stop cancels the active reveal, if any, and waits for its ticker to exit.
// The target message keeps whatever prefix was shown.
func (r *Revealer) Stop() {
	r.ctl.Lock()
	defer r.ctl.Unlock()
	r.stopLocked()
}

func (r *Revealer) stopLocked() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	if r.state == Revealing {
		r.state = RevealIdle
	}
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (r *Revealer) run(ctx context.Context, gen uint64, id string, runes []rune, done chan struct{}) {
	defer close(done)
	defer r.active.Add(-1)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	shown := 0
	for {
		select {
		case <-ctx.Done():
			slog.Debug("reveal_cancelled", "message_id", id, "shown", shown)
			return
		case <-ticker.C:
		}

		shown += r.step
		if shown >= len(runes) {
			r.complete(gen, id, string(runes))
			return
		}
		r.store.UpdateContent(id, string(runes[:shown]))
	}
}

func (r *Revealer) complete(gen uint64, id, text string) {
	r.store.FinishReveal(id, text)

	r.mu.Lock()
	if r.gen == gen {
		r.state = RevealDone
		if r.cancel != nil {
			r.cancel()
		}
		r.cancel, r.done = nil, nil
	}
	r.mu.Unlock()
	slog.Debug("reveal_done", "message_id", id)
}
