package completion

import "context"

// Message is a single chat message sent to a completion backend.
type Message struct {
	Role    string
	Content string
}

// Request defines the input to a chat completion.
type Request struct {
	Model       string
	Messages    []Message
	Temperature *float64
	MaxTokens   *int
}

// Response is a normalized completion result.
type Response struct {
	Content string
	Model   string
}

// Provider answers chat completions for the reference chat service.
type Provider interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// Prompt builds the two-message request the chat service sends for a query.
func Prompt(system, query string) Request {
	msgs := make([]Message, 0, 2)
	if system != "" {
		msgs = append(msgs, Message{Role: "system", Content: system})
	}
	msgs = append(msgs, Message{Role: "user", Content: query})
	return Request{Messages: msgs}
}
