package ai

import "context"

// Runtime is implemented by every chat backend.
type Runtime interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// Provider identifiers used for runtime selection.
const (
	ProviderOpenRouter = "openrouter"
	ProviderAnthropic  = "anthropic"
	ProviderOllama     = "ollama"
)

// RateLimited is implemented by runtimes that can pace outgoing requests.
type RateLimited interface {
	SetRateLimit(rps float64)
}
