package openaicompat

import (
	"encoding/json"

	"github.com/rhuss/relaychat/pkg/provider"
)

// TranslateToChat converts a ProviderRequest into a streaming
// ChatCompletionRequest. Message order is preserved and an empty transcript
// is sent as an empty list.
func TranslateToChat(req *provider.ProviderRequest) ChatCompletionRequest {
	cr := ChatCompletionRequest{
		Model:    req.Model,
		Stream:   true,
		Messages: make([]ChatMessage, 0, len(req.Messages)),
	}
	for _, pm := range req.Messages {
		cr.Messages = append(cr.Messages, ChatMessage{
			Role:    pm.Role,
			Content: pm.Content,
		})
	}
	return cr
}

// ExtractChunkText returns the text carried by the first choice of a chunk:
// reasoning text (if any) followed by content text.
//
// Content comes from choices[0].delta.content when that field is present,
// otherwise from choices[0].message.content. Reasoning comes from
// choices[0].delta.reasoning, with reasoning_content as a fallback name.
// A delta or message that is not a JSON object counts as absent.
func ExtractChunkText(chunk *ChatCompletionChunk) string {
	var choices []json.RawMessage
	if err := json.Unmarshal(chunk.Choices, &choices); err != nil || len(choices) == 0 {
		return ""
	}
	var choice chatChunkChoice
	if err := json.Unmarshal(choices[0], &choice); err != nil {
		return ""
	}
	delta := decodeObject(choice.Delta)
	message := decodeObject(choice.Message)

	var content string
	switch {
	case delta["content"] != nil:
		content = ExtractContentString(delta["content"])
	case message["content"] != nil:
		content = ExtractContentString(message["content"])
	}

	var reasoning string
	if delta["reasoning"] != nil {
		reasoning = ExtractContentString(delta["reasoning"])
	} else {
		reasoning = ExtractContentString(delta["reasoning_content"])
	}

	return reasoning + content
}

// decodeObject returns raw as a JSON object, or nil when it is missing,
// null or any other JSON type.
func decodeObject(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil
	}
	return obj
}

// ExtractContentString returns content if it is a JSON string, and ""
// for null or structured values.
func ExtractContentString(content any) string {
	if v, ok := content.(string); ok {
		return v
	}
	return ""
}
