package ai

// PresetCatalog returns a built-in curated catalog for a known provider.
// The catalog can be merged or used to replace the in-memory catalog.
func PresetCatalog(provider string) (map[string]ModelInfo, bool) {
	var names []string
	switch provider {
	case ProviderOpenRouter:
		names = []string{"openai/gpt-4o-mini", "openai/gpt-4o", "openai/gpt-4.1-mini", "anthropic/claude-3.5-haiku", "anthropic/claude-sonnet-4.5", "google/gemini-2.0-flash-001"}
	case ProviderAnthropic:
		names = []string{"claude-haiku-4-5-20251001", "claude-sonnet-4-5-20250929"}
	case ProviderOllama, "local":
		names = []string{"llama3.1:8b", "mistral-nemo:latest", "qwen2.5:7b-instruct"}
	default:
		return nil, false
	}
	out := make(map[string]ModelInfo, len(names))
	for _, n := range names {
		if mi, ok := LookupModel(n); ok {
			out[n] = mi
		}
	}
	return out, true
}

// RecommendModel returns a recommended model name for a given tier and provider.
// If provider is empty, defaults to "openrouter". Tiers: cheap|balanced.
func RecommendModel(provider, tier string) (string, bool) {
	if provider == "" {
		provider = ProviderOpenRouter
	}
	rec := map[string]map[string]string{
		"cheap": {
			ProviderOpenRouter: "openai/gpt-4o-mini",
			ProviderAnthropic:  "claude-haiku-4-5-20251001",
			ProviderOllama:     "llama3.1:8b",
		},
		"balanced": {
			ProviderOpenRouter: "anthropic/claude-sonnet-4.5",
			ProviderAnthropic:  "claude-sonnet-4-5-20250929",
			ProviderOllama:     "qwen2.5:7b-instruct",
		},
	}
	name, ok := rec[tier][provider]
	return name, ok
}
