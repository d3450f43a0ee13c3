package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/listingloom/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set ListingLoom configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			fmt.Println("No config loaded")
			return nil
		}
		printConfig(os.Stdout, cfg)
		return nil
	},
}

func printConfig(w io.Writer, c *cfgpkg.Global) {
	fmt.Fprintf(w, "api_key: %s\n", mask(c.APIKey))
	fmt.Fprintf(w, "anthropic_api_key: %s\n", mask(c.AnthropicAPIKey))
	fmt.Fprintf(w, "default_provider: %s\n", c.DefaultProvider)
	fmt.Fprintf(w, "default_model: %s\n", c.DefaultModel)
	fmt.Fprintf(w, "max_tokens: %d\n", c.MaxTokens)
	fmt.Fprintf(w, "temperature: %.3f\n", c.Temperature)
	fmt.Fprintf(w, "char_budget: %d\n", c.CharBudget)
	fmt.Fprintf(w, "source_order: %s\n", c.SourceOrder)
	fmt.Fprintf(w, "data_dir: %s\n", c.DataDir)
	if c.PromptFile != "" {
		fmt.Fprintf(w, "prompt_file: %s\n", c.PromptFile)
	}
	fmt.Fprintf(w, "detail_path: %s\n", c.DetailPath)
	fmt.Fprintf(w, "preview_limit: %d\n", c.PreviewLimit)
	fmt.Fprintf(w, "batch_size: %d\n", c.BatchSize)
	fmt.Fprintf(w, "session_ttl_min: %d\n", c.SessionTTLMin)
	fmt.Fprintf(w, "daily_limit: %d\n", c.DailyLimit)
	fmt.Fprintf(w, "monthly_limit: %d\n", c.MonthlyLimit)
	fmt.Fprintf(w, "store_driver: %s\n", c.StoreDriver)
	if c.StoreDriver == "postgres" {
		fmt.Fprintf(w, "database_url: %s\n", mask(c.DatabaseURL))
	} else {
		fmt.Fprintf(w, "database_url: %s\n", c.DatabaseURL)
	}
	fmt.Fprintf(w, "http_timeout_sec: %d\n", c.HTTPTimeoutSec)
	fmt.Fprintf(w, "retry_max_attempts: %d\n", c.RetryMaxAttempts)
	if c.RequestsPerSec > 0 {
		fmt.Fprintf(w, "requests_per_sec: %.2f\n", c.RequestsPerSec)
	}
	fmt.Fprintf(w, "ollama_host: %s\n", c.OllamaHost)
	fmt.Fprintf(w, "server_port: %d\n", c.ServerPort)
	fmt.Fprintf(w, "log_level: %s\n", c.LogLevel)
	fmt.Fprintf(w, "log_format: %s\n", c.LogFormat)
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			c, err := cfgpkg.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg = c
		}
		if err := setConfigValue(cfg, args[0], args[1]); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := cfgpkg.Save(cfg, cfgFile); err != nil {
			return err
		}
		fmt.Println("Saved config")
		return nil
	},
}

func setConfigValue(c *cfgpkg.Global, key, val string) error {
	atoi := func() (int, error) {
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 {
			return 0, fmt.Errorf("invalid non-negative int for %s: %q", key, val)
		}
		return i, nil
	}
	var err error
	switch key {
	case "api_key":
		c.APIKey = val
	case "anthropic_api_key":
		c.AnthropicAPIKey = val
	case "default_model":
		c.DefaultModel = val
	case "default_provider":
		p := normalizeProvider(val)
		switch p {
		case "openrouter", "anthropic", "ollama":
			c.DefaultProvider = p
		default:
			return fmt.Errorf("invalid default_provider: %s (use openrouter, anthropic or ollama)", val)
		}
	case "max_tokens":
		c.MaxTokens, err = atoi()
	case "temperature":
		f, perr := strconv.ParseFloat(val, 64)
		if perr != nil || f < 0 {
			return fmt.Errorf("invalid float for temperature: %q", val)
		}
		c.Temperature = f
	case "char_budget":
		c.CharBudget, err = atoi()
	case "source_order":
		c.SourceOrder = val
	case "data_dir":
		c.DataDir = val
	case "prompt_file":
		c.PromptFile = val
	case "detail_path":
		c.DetailPath = val
	case "preview_limit":
		c.PreviewLimit, err = atoi()
	case "batch_size":
		c.BatchSize, err = atoi()
	case "session_ttl_min":
		c.SessionTTLMin, err = atoi()
	case "daily_limit":
		c.DailyLimit, err = atoi()
	case "monthly_limit":
		c.MonthlyLimit, err = atoi()
	case "store_driver":
		c.StoreDriver = val
	case "database_url":
		c.DatabaseURL = val
	case "http_timeout_sec":
		c.HTTPTimeoutSec, err = atoi()
	case "retry_max_attempts":
		c.RetryMaxAttempts, err = atoi()
	case "requests_per_sec":
		f, perr := strconv.ParseFloat(val, 64)
		if perr != nil || f < 0 {
			return fmt.Errorf("invalid float for requests_per_sec: %q", val)
		}
		c.RequestsPerSec = f
	case "ollama_host":
		c.OllamaHost = val
	case "server_port":
		c.ServerPort, err = atoi()
	case "log_level":
		c.LogLevel = val
	case "log_format":
		c.LogFormat = val
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return err
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}
