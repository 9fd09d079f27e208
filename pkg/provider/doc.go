// Package provider defines the interface the relay uses to reach an LLM
// completion backend. Adapters (see openaicompat) handle their own wire
// protocol and surface the stream as a channel of ProviderEvent values, so
// the relay never sees backend protocol details.
package provider
