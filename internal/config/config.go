package config

import (
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	Ollama   OllamaConfig
	LLM      LLMConfig
	Store    StoreConfig
	Server   ServerConfig
	LogLevel string `mapstructure:"log_level"`
}

// OllamaConfig holds the Ollama server configuration
type OllamaConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	DefaultModel   string `mapstructure:"default_model"`
	SystemPrompt   string `mapstructure:"system_prompt"`
}

// Timeout returns the request timeout for non-streaming calls.
func (c OllamaConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// LLMConfig selects the chat backend. Provider "ollama" (default) uses
// the native API; "openai" routes through the OpenAI-compatible surface.
type LLMConfig struct {
	Provider string `mapstructure:"provider"`
	BaseURL  string `mapstructure:"base_url"`
	APIKey   string `mapstructure:"api_key"`
	Model    string `mapstructure:"model"`
}

// StoreConfig holds the persistence configuration
type StoreConfig struct {
	Path          string `mapstructure:"path"`
	RetentionDays int    `mapstructure:"retention_days"`
	HistoryLimit  int    `mapstructure:"history_limit"`
}

// ServerConfig holds the server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

// Load loads the configuration from config.yaml in the working directory,
// or from the file named by CONFIG_PATH when set.
func Load() (*Config, error) {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	viper.SetDefault("ollama.base_url", "http://localhost:11434")
	viper.SetDefault("ollama.timeout_seconds", 30)
	viper.SetDefault("ollama.default_model", "llama2")
	viper.SetDefault("store.path", "assistant.db")
	viper.SetDefault("store.retention_days", 30)
	viper.SetDefault("store.history_limit", 20)
	viper.SetDefault("server.host", "127.0.0.1")
	viper.SetDefault("server.port", "7861")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
