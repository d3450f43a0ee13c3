package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/listingloom/internal/utils"
)

// Source orderings for the context budgeter.
const (
	OrderStoreFirst = "store_first"
	OrderFilesFirst = "files_first"
)

// Global configuration structure. It is loaded once and passed explicitly to
// every component constructor.
type Global struct {
	APIKey          string  `mapstructure:"api_key" yaml:"api_key"`
	AnthropicAPIKey string  `mapstructure:"anthropic_api_key" yaml:"anthropic_api_key"`
	DefaultModel    string  `mapstructure:"default_model" yaml:"default_model"`
	DefaultProvider string  `mapstructure:"default_provider" yaml:"default_provider"`
	MaxTokens       int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature     float64 `mapstructure:"temperature" yaml:"temperature"`

	// Context assembly
	CharBudget  int    `mapstructure:"char_budget" yaml:"char_budget"`
	SourceOrder string `mapstructure:"source_order" yaml:"source_order"`
	DataDir     string `mapstructure:"data_dir" yaml:"data_dir"`
	PromptFile  string `mapstructure:"prompt_file" yaml:"prompt_file"`
	DetailPath  string `mapstructure:"detail_path" yaml:"detail_path"`

	// Import
	PreviewLimit  int `mapstructure:"preview_limit" yaml:"preview_limit"`
	BatchSize     int `mapstructure:"batch_size" yaml:"batch_size"`
	SessionTTLMin int `mapstructure:"session_ttl_min" yaml:"session_ttl_min"`

	// Usage ceilings, 0 disables a window
	DailyLimit   int `mapstructure:"daily_limit" yaml:"daily_limit"`
	MonthlyLimit int `mapstructure:"monthly_limit" yaml:"monthly_limit"`

	// Storage
	StoreDriver string `mapstructure:"store_driver" yaml:"store_driver"`
	DatabaseURL string `mapstructure:"database_url" yaml:"database_url"`

	// HTTP/Retry configuration
	HTTPTimeoutSec   int     `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts int     `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int     `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int     `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`
	RequestsPerSec   float64 `mapstructure:"requests_per_sec" yaml:"requests_per_sec"`

	// Local runtimes (Ollama)
	OllamaHost       string `mapstructure:"ollama_host" yaml:"ollama_host"`
	OllamaTimeoutSec int    `mapstructure:"ollama_timeout_sec" yaml:"ollama_timeout_sec"`

	// Server and logging
	ServerPort int    `mapstructure:"server_port" yaml:"server_port"`
	LogLevel   string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat  string `mapstructure:"log_format" yaml:"log_format"`
}

// Validate checks values that would otherwise fail deep inside a component.
func (c *Global) Validate() error {
	switch c.SourceOrder {
	case OrderStoreFirst, OrderFilesFirst:
	default:
		return eris.Errorf("config: source_order must be %s or %s, got %q", OrderStoreFirst, OrderFilesFirst, c.SourceOrder)
	}
	switch c.StoreDriver {
	case "sqlite", "postgres":
	default:
		return eris.Errorf("config: store_driver must be sqlite or postgres, got %q", c.StoreDriver)
	}
	if c.StoreDriver == "postgres" && c.DatabaseURL == "" {
		return eris.New("config: database_url is required for postgres")
	}
	if c.CharBudget <= 0 {
		return eris.New("config: char_budget must be positive")
	}
	if c.BatchSize <= 0 {
		return eris.New("config: batch_size must be positive")
	}
	if c.DailyLimit < 0 || c.MonthlyLimit < 0 {
		return eris.New("config: usage limits cannot be negative")
	}
	return nil
}

// HomeDir is ~/.listingloom.
func HomeDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", eris.Wrap(err, "config: resolve home dir")
	}
	return filepath.Join(home, ".listingloom"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.listingloom/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := HomeDir()
		if err != nil {
			return err
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return eris.Wrap(err, "config: marshal yaml")
	}
	if err := utils.SafeWriteFile(path, b); err != nil {
		return eris.Wrap(err, "config: write config")
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("LISTINGLOOM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	dir, err := HomeDir()
	if err != nil {
		return nil, err
	}
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read
	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) && !errors.Is(err, fs.ErrNotExist) {
			return nil, eris.Wrap(err, "config: read config file")
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	if c.DataDir == "" {
		c.DataDir = filepath.Join(dir, "data")
	}
	if c.StoreDriver == "sqlite" && c.DatabaseURL == "" {
		c.DatabaseURL = filepath.Join(dir, "listingloom.db")
	}
	return &c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("default_model", "openai/gpt-4o-mini")
	v.SetDefault("default_provider", "openrouter")
	v.SetDefault("max_tokens", 800)
	v.SetDefault("temperature", 0.3)
	v.SetDefault("char_budget", 12000)
	v.SetDefault("source_order", OrderStoreFirst)
	v.SetDefault("detail_path", "/listings/")
	v.SetDefault("preview_limit", 200)
	v.SetDefault("batch_size", 20)
	v.SetDefault("session_ttl_min", 30)
	v.SetDefault("daily_limit", 50)
	v.SetDefault("monthly_limit", 1000)
	v.SetDefault("store_driver", "sqlite")
	// HTTP/retry defaults
	v.SetDefault("http_timeout_sec", 30)
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_base_delay_ms", 500)
	v.SetDefault("retry_max_delay_ms", 4000)
	v.SetDefault("requests_per_sec", 0)
	// Ollama defaults
	v.SetDefault("ollama_host", "http://127.0.0.1:11434")
	v.SetDefault("ollama_timeout_sec", 60)
	v.SetDefault("server_port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
}
