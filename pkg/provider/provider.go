package provider

import "context"

// Provider abstracts a streaming LLM completion backend.
//
// Implementations must be safe for concurrent use by multiple goroutines;
// each Stream call owns its own upstream connection.
type Provider interface {
	// Name returns the provider identifier used in logs and metrics.
	Name() string

	// Stream opens one streaming completion. It returns once the backend
	// has accepted the request, before any content is read. The returned
	// channel receives ProviderEvent values and is closed by the provider
	// after the terminal event, or when ctx is cancelled.
	//
	// An error returned from Stream means the stream never opened.
	Stream(ctx context.Context, req *ProviderRequest) (<-chan ProviderEvent, error)

	// Close releases provider resources (idle HTTP connections).
	Close() error
}
