// Package llm wraps the OpenAI-compatible chat surface some model
// servers expose alongside their native API (Ollama serves it at /v1).
package llm

import (
	"github.com/sashabaranov/go-openai"

	"github.com/sdwebui/ollama-assistant/internal/config"
)

// NewClient creates a chat-completion client for an OpenAI-compatible
// endpoint.
func NewClient(cfg config.LLMConfig) *openai.Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(clientConfig)
}
