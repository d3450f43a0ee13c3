package cmd

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/KaramelBytes/listingloom/internal/ai"
	cfgpkg "github.com/KaramelBytes/listingloom/internal/config"
	"github.com/KaramelBytes/listingloom/internal/format"
	"github.com/KaramelBytes/listingloom/internal/prompt"
	"github.com/KaramelBytes/listingloom/internal/retrieval"
	"github.com/KaramelBytes/listingloom/internal/search"
	"github.com/KaramelBytes/listingloom/internal/store"
	"github.com/KaramelBytes/listingloom/internal/usage"
)

// openStore validates the configuration and opens a migrated store.
func openStore(ctx context.Context, c *cfgpkg.Global) (store.Store, error) {
	if c == nil {
		return nil, eris.New("no configuration loaded")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	zap.L().Debug("opening store", zap.String("driver", c.StoreDriver))
	return store.Open(ctx, c.StoreDriver, c.DatabaseURL)
}

// normalizeProvider maps user-facing aliases to a registered runtime name.
func normalizeProvider(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", ai.ProviderOpenRouter, "openai", "google", "gemini", "meta", "llama":
		return ai.ProviderOpenRouter
	case ai.ProviderOllama, "local":
		return ai.ProviderOllama
	case ai.ProviderAnthropic, "claude":
		return ai.ProviderAnthropic
	}
	return strings.ToLower(strings.TrimSpace(name))
}

// runtimeConfig translates the global configuration for a provider.
func runtimeConfig(c *cfgpkg.Global, provider string) ai.RuntimeConfig {
	rc := ai.RuntimeConfig{
		HTTPTimeout:    time.Duration(c.HTTPTimeoutSec) * time.Second,
		RetryMax:       c.RetryMaxAttempts,
		BaseDelay:      time.Duration(c.RetryBaseDelayMs) * time.Millisecond,
		MaxDelay:       time.Duration(c.RetryMaxDelayMs) * time.Millisecond,
		RequestsPerSec: c.RequestsPerSec,
		APIKey:         c.APIKey,
	}
	switch provider {
	case ai.ProviderAnthropic:
		rc.APIKey = c.AnthropicAPIKey
	case ai.ProviderOllama:
		rc.Host = c.OllamaHost
		if c.OllamaTimeoutSec > 0 {
			rc.HTTPTimeout = time.Duration(c.OllamaTimeoutSec) * time.Second
		}
	}
	return rc
}

// buildRuntime resolves the provider (flag, then config) and constructs it.
func buildRuntime(c *cfgpkg.Global, providerFlag string) (ai.Runtime, string, error) {
	name := providerFlag
	if name == "" {
		name = c.DefaultProvider
	}
	name = normalizeProvider(name)
	rt, err := ai.NewRuntime(name, runtimeConfig(c, name))
	if err != nil {
		return nil, name, err
	}
	return rt, name, nil
}

// selectModel picks the explicit model, then the configured default, then the
// provider's cheap tier. An OpenRouter-style default ("vendor/model") only
// applies to OpenRouter.
func selectModel(c *cfgpkg.Global, provider, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if m := c.DefaultModel; m != "" && (provider == ai.ProviderOpenRouter || !strings.Contains(m, "/")) {
		return m
	}
	if m, ok := ai.RecommendModel(provider, "cheap"); ok {
		return m
	}
	return "openai/gpt-4o-mini"
}

type searchOptions struct {
	Provider string
	Model    string
	// NoLimits skips usage accounting, for operator queries from the CLI.
	NoLimits bool
}

// buildSearch wires the budgeter, prompt, runtime, formatter and limiter.
func buildSearch(c *cfgpkg.Global, st store.Store, opts searchOptions) (*search.Service, string, error) {
	tpl, err := prompt.Load(c.PromptFile)
	if err != nil {
		return nil, "", err
	}
	files, err := retrieval.DirSources(c.DataDir)
	if err != nil {
		return nil, "", err
	}
	sources := retrieval.Ordered(c.SourceOrder, retrieval.NewStoreSource("listings", st), files)

	rt, provider, err := buildRuntime(c, opts.Provider)
	if err != nil {
		return nil, "", err
	}
	model := selectModel(c, provider, opts.Model)

	var limiter search.Limiter
	if !opts.NoLimits {
		limiter = usage.New(st, c.DailyLimit, c.MonthlyLimit)
	}
	svc := search.New(
		limiter,
		retrieval.NewBudgeter(c.CharBudget, sources...),
		prompt.NewAssembler(tpl),
		rt,
		format.New(c.DetailPath, nil),
		search.Options{
			Model:       model,
			MaxTokens:   c.MaxTokens,
			Temperature: c.Temperature,
			Timeout:     time.Duration(c.HTTPTimeoutSec) * time.Second,
		},
	)
	zap.L().Debug("search configured",
		zap.String("provider", provider),
		zap.String("model", model),
		zap.Int("char_budget", c.CharBudget),
		zap.Int("file_sources", len(files)),
	)
	return svc, model, nil
}
