package chat

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry in the conversation log. ID and Role never change once
// the message is created; Content of an assistant message grows while it is
// being revealed and is frozen afterwards.
type Message struct {
	ID      string
	Role    Role
	Content string
	// Error marks assistant messages produced from a failed request.
	Error bool
}

// State is a consistent snapshot of the conversation.
type State struct {
	Messages []Message
	Input    string
	Busy     bool
	Typing   bool
}

// Last returns the most recent message, if any.
func (s State) Last() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// LastAnswer returns the most recent non-empty assistant message.
func (s State) LastAnswer() (Message, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		m := s.Messages[i]
		if m.Role == RoleAssistant && m.Content != "" {
			return m, true
		}
	}
	return Message{}, false
}
