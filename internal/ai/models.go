package ai

import (
	"encoding/json"
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ModelInfo holds approximate context size and pricing used for cost logging.
// Prices are illustrative; refresh them with `listingloom models sync`.
type ModelInfo struct {
	Name          string
	ContextTokens int     // approximate context window
	InputPerK     float64 // USD per 1K input tokens
	OutputPerK    float64 // USD per 1K output tokens
}

var models = map[string]ModelInfo{
	"openai/gpt-4o-mini": {
		Name:          "openai/gpt-4o-mini",
		ContextTokens: 128000,
		InputPerK:     0.00015,
		OutputPerK:    0.0006,
	},
	"openai/gpt-4o": {
		Name:          "openai/gpt-4o",
		ContextTokens: 128000,
		InputPerK:     0.0025,
		OutputPerK:    0.01,
	},
	"openai/gpt-4.1-mini": {
		Name:          "openai/gpt-4.1-mini",
		ContextTokens: 1000000,
		InputPerK:     0.0004,
		OutputPerK:    0.0016,
	},
	"anthropic/claude-3.5-haiku": {
		Name:          "anthropic/claude-3.5-haiku",
		ContextTokens: 200000,
		InputPerK:     0.0008,
		OutputPerK:    0.004,
	},
	"anthropic/claude-sonnet-4.5": {
		Name:          "anthropic/claude-sonnet-4.5",
		ContextTokens: 200000,
		InputPerK:     0.003,
		OutputPerK:    0.015,
	},
	// Anthropic API names
	"claude-haiku-4-5-20251001": {
		Name:          "claude-haiku-4-5-20251001",
		ContextTokens: 200000,
		InputPerK:     0.0008,
		OutputPerK:    0.004,
	},
	"claude-sonnet-4-5-20250929": {
		Name:          "claude-sonnet-4-5-20250929",
		ContextTokens: 200000,
		InputPerK:     0.003,
		OutputPerK:    0.015,
	},
	"google/gemini-2.0-flash-001": {
		Name:          "google/gemini-2.0-flash-001",
		ContextTokens: 1000000,
		InputPerK:     0.0001,
		OutputPerK:    0.0004,
	},
	"meta-llama/llama-3.1-8b-instruct": {
		Name:          "meta-llama/llama-3.1-8b-instruct",
		ContextTokens: 131072,
	},
	// Common local (Ollama) tags
	"llama3.1:8b": {
		Name:          "llama3.1:8b",
		ContextTokens: 8192,
	},
	"mistral-nemo:latest": {
		Name:          "mistral-nemo:latest",
		ContextTokens: 8192,
	},
	"qwen2.5:7b-instruct": {
		Name:          "qwen2.5:7b-instruct",
		ContextTokens: 32768,
	},
}

// LookupModel returns ModelInfo and ok flag.
func LookupModel(name string) (ModelInfo, bool) {
	mi, ok := models[name]
	return mi, ok
}

// EstimateCostUSD estimates total cost in USD for given tokens using model pricing.
// If the model is unknown, returns 0 and ok=false.
func EstimateCostUSD(model string, promptTokens, completionTokens int) (float64, bool) {
	mi, ok := LookupModel(model)
	if !ok {
		return 0, false
	}
	inCost := (float64(promptTokens) / 1000.0) * mi.InputPerK
	outCost := (float64(completionTokens) / 1000.0) * mi.OutputPerK
	return inCost + outCost, true
}

// LogCost logs token usage with an estimated cost when the model is known.
func LogCost(model string, u Usage) {
	fields := []zap.Field{
		zap.String("model", model),
		zap.Int("prompt_tokens", u.PromptTokens),
		zap.Int("completion_tokens", u.CompletionTokens),
		zap.Int("total_tokens", u.TotalTokens),
	}
	if cost, ok := EstimateCostUSD(model, u.PromptTokens, u.CompletionTokens); ok {
		fields = append(fields, zap.Float64("estimated_cost_usd", cost))
	}
	zap.L().Info("ai: usage", fields...)
}

// LoadCatalogFromJSON loads a JSON object map[string]ModelInfo from a file path.
// Example entry:
// { "openai/gpt-4o-mini": {"Name":"openai/gpt-4o-mini","ContextTokens":128000,"InputPerK":0.00015,"OutputPerK":0.0006} }
func LoadCatalogFromJSON(path string) (map[string]ModelInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ai: open catalog %s", path)
	}
	defer f.Close()
	var m map[string]ModelInfo
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return nil, eris.Wrapf(err, "ai: decode catalog %s", path)
	}
	return m, nil
}

// OverrideCatalog replaces the in-memory catalog entirely.
func OverrideCatalog(m map[string]ModelInfo) {
	if m == nil {
		return
	}
	models = m
}

// MergeCatalog merges/overrides entries in the in-memory catalog.
func MergeCatalog(m map[string]ModelInfo) {
	for k, v := range m {
		models[k] = v
	}
}

// Catalog returns a shallow copy of the current model catalog.
func Catalog() map[string]ModelInfo {
	out := make(map[string]ModelInfo, len(models))
	for k, v := range models {
		out[k] = v
	}
	return out
}

// CatalogNames returns the catalog's model names sorted.
func CatalogNames() []string {
	out := make([]string, 0, len(models))
	for k := range models {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
