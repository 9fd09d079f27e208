package api

import "encoding/json"

// Role identifies the author of a Turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Turn is one role-tagged message in a transcript.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the request body for POST /api/chat.
type ChatRequest struct {
	Messages []Turn `json:"messages"`
}

// DecodeChatRequest parses a request body leniently. A body that is not a
// JSON object, or whose "messages" field is absent or not a list of turns,
// yields an empty transcript rather than an error.
func DecodeChatRequest(data []byte) ChatRequest {
	var envelope struct {
		Messages json.RawMessage `json:"messages"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil || len(envelope.Messages) == 0 {
		return ChatRequest{Messages: []Turn{}}
	}

	var turns []Turn
	if err := json.Unmarshal(envelope.Messages, &turns); err != nil || turns == nil {
		return ChatRequest{Messages: []Turn{}}
	}
	return ChatRequest{Messages: turns}
}
