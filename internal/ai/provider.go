package ai

import "context"

// Message is one turn of a model conversation. Role is "system",
// "user" or "assistant".
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider generates a single assistant reply for a conversation.
type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}
