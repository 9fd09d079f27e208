package provider

import "github.com/rhuss/relaychat/pkg/api"

// ProviderRequest is the backend-facing request.
type ProviderRequest struct {
	Model    string            `json:"model"`
	Messages []ProviderMessage `json:"messages"`
}

// ProviderMessage represents a message in the provider's conversation format.
type ProviderMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// MessagesFromTurns converts a transcript into provider messages,
// preserving order.
func MessagesFromTurns(turns []api.Turn) []ProviderMessage {
	msgs := make([]ProviderMessage, 0, len(turns))
	for _, t := range turns {
		msgs = append(msgs, ProviderMessage{Role: string(t.Role), Content: t.Content})
	}
	return msgs
}

// ProviderEventType classifies a streaming event from the backend.
type ProviderEventType int

const (
	ProviderEventTextDelta ProviderEventType = iota // Incremental text (reasoning + content)
	ProviderEventDone                               // Stream finished
	ProviderEventError                              // Stream failed after it opened
)

// ProviderEvent is a single streaming event from the backend.
type ProviderEvent struct {
	// Type indicates what kind of event this is.
	Type ProviderEventType

	// Delta contains incremental text for ProviderEventTextDelta.
	Delta string

	// Err is populated for ProviderEventError.
	Err error
}

// IsTerminal reports whether the event ends the stream.
func (e ProviderEvent) IsTerminal() bool {
	return e.Type == ProviderEventDone || e.Type == ProviderEventError
}
