// Package openaicompat streams completions from any OpenAI-compatible Chat
// Completions backend (OpenRouter, vLLM, LiteLLM, OpenAI itself).
//
// It handles request serialization, incremental parsing of the backend's
// SSE stream, and error mapping. The parser is deliberately lax: lines that
// are not "data:" events, and events whose payload is not valid JSON, are
// skipped rather than treated as failures.
package openaicompat
