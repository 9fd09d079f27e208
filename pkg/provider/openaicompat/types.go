package openaicompat

import "encoding/json"

// Chat Completions request/response types. These mirror the subset of the
// OpenAI Chat Completions wire format the relay reads or writes.

// ChatCompletionRequest is the request body for /chat/completions.
type ChatCompletionRequest struct {
	Model    string        `json:"model"`
	Stream   bool          `json:"stream"`
	Messages []ChatMessage `json:"messages"`
}

// ChatMessage represents a message in the Chat Completions format.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionChunk is a single SSE payload in a streaming response.
// Only choices is decoded, and it is kept raw: upstreams disagree on the
// types of id, index and finish_reason, and none of them carry text.
type ChatCompletionChunk struct {
	Choices json.RawMessage `json:"choices"`
}

// chatChunkChoice is the first element of choices. Backends normally send
// an incremental delta; some send a full message instead (or in the first
// chunk). Either may be missing or not an object.
type chatChunkChoice struct {
	Delta   json.RawMessage `json:"delta"`
	Message json.RawMessage `json:"message"`
}

// ChatErrorResponse is the error format returned by Chat Completions backends.
type ChatErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}
