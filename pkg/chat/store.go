package chat

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Turn holds the IDs of the message pair created by a single submission.
type Turn struct {
	UserID  string
	ReplyID string
	Query   string
}

// Store is the single source of truth for the conversation. Every mutation runs
// in one critical section, so readers of Snapshot never observe a half-applied
// change.
type Store struct {
	mu       sync.Mutex
	messages []Message
	index    map[string]int
	sealed   map[string]bool
	input    string
	busy     bool
	typing   bool

	changes chan struct{}
	newID   func() string
}

// NewStore creates an empty conversation.
func NewStore() *Store {
	return &Store{
		index:   make(map[string]int),
		sealed:  make(map[string]bool),
		changes: make(chan struct{}, 1),
		newID:   newMessageID,
	}
}

func newMessageID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Changes delivers a signal after every mutation. Signals coalesce, so a slow
// reader sees at least one notification but not necessarily one per change.
func (s *Store) Changes() <-chan struct{} {
	return s.changes
}

func (s *Store) notify() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := make([]Message, len(s.messages))
	copy(msgs, s.messages)
	return State{
		Messages: msgs,
		Input:    s.input,
		Busy:     s.busy,
		Typing:   s.typing,
	}
}

// Submit appends the user's message and an empty assistant placeholder, clears
// the input and marks the conversation busy. It is a no-op returning false when
// a request is already in flight or text is blank.
func (s *Store) Submit(text string) (Turn, bool) {
	query := strings.TrimSpace(text)
	if query == "" {
		return Turn{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return Turn{}, false
	}

	turn := Turn{
		UserID:  s.appendLocked(RoleUser, query),
		ReplyID: s.appendLocked(RoleAssistant, ""),
		Query:   query,
	}
	s.sealed[turn.UserID] = true
	s.input = ""
	s.busy = true
	s.notify()
	return turn, true
}

// AppendPlaceholder appends an empty message for role and returns its ID.
func (s *Store) AppendPlaceholder(role Role) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.appendLocked(role, "")
	s.notify()
	return id
}

// AppendMessage appends a complete message that will not be revealed.
func (s *Store) AppendMessage(role Role, content string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.appendLocked(role, content)
	s.sealed[id] = true
	s.notify()
	return id
}

func (s *Store) appendLocked(role Role, content string) string {
	id := s.newID()
	s.index[id] = len(s.messages)
	s.messages = append(s.messages, Message{ID: id, Role: role, Content: content})
	return id
}

// UpdateContent replaces the content of message id. Unknown or finished
// messages are left untouched and false is returned.
func (s *Store) UpdateContent(id, text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok || s.sealed[id] {
		return false
	}
	s.messages[i].Content = text
	s.notify()
	return true
}

// MarkError flags message id as an error explanation.
func (s *Store) MarkError(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.index[id]; ok {
		s.messages[i].Error = true
		s.notify()
	}
}

// FinishReveal writes the final content of message id, freezes it and clears
// the typing and busy flags in one step.
func (s *Store) FinishReveal(id, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.index[id]; ok && !s.sealed[id] {
		s.messages[i].Content = text
		s.sealed[id] = true
	}
	s.typing = false
	s.busy = false
	s.notify()
}

// SetBusy sets the busy flag.
func (s *Store) SetBusy(busy bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = busy
	s.notify()
}

// SetTyping sets the typing flag.
func (s *Store) SetTyping(typing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.typing = typing
	s.notify()
}

// SetInput replaces the draft text.
func (s *Store) SetInput(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.input = text
	s.notify()
}

// Busy reports whether a request or reveal is outstanding.
func (s *Store) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}
