package ollama

import (
	"context"
	"sort"
	"strings"

	"github.com/sdwebui/ollama-assistant/internal/logger"
)

// The methods in this file form the degraded tier of the client: every
// failure is logged and rendered as an empty or boolean result, so UI
// paths never see an error value.

// Ping reports whether the server answers a version check.
func (c *Client) Ping(ctx context.Context) bool {
	_, err := c.Version(ctx)
	return err == nil
}

// Models returns the available models, or an empty slice on any failure.
func (c *Client) Models(ctx context.Context) []ModelInfo {
	models, err := c.Tags(ctx)
	if err != nil {
		logger.L.Warn("failed to list models", "error", err)
		return nil
	}
	return models
}

// RunningModels returns the loaded models, or an empty slice on failure.
func (c *Client) RunningModels(ctx context.Context) []ModelInfo {
	models, err := c.Running(ctx)
	if err != nil {
		logger.L.Warn("failed to list running models", "error", err)
		return nil
	}
	return models
}

// Embed returns the embedding for text, or an empty slice on failure.
func (c *Client) Embed(ctx context.Context, text, model string) []float64 {
	embedding, err := c.Embeddings(ctx, text, model)
	if err != nil {
		logger.L.Warn("failed to embed text", "model", model, "error", err)
		return nil
	}
	return embedding
}

// DeleteModel removes a model, reporting success as a boolean.
func (c *Client) DeleteModel(ctx context.Context, name string) bool {
	if err := c.Delete(ctx, name); err != nil {
		logger.L.Warn("failed to delete model", "name", name, "error", err)
		return false
	}
	return true
}

// CopyModel duplicates a model, reporting success as a boolean.
func (c *Client) CopyModel(ctx context.Context, src, dst string) bool {
	if err := c.Copy(ctx, src, dst); err != nil {
		logger.L.Warn("failed to copy model", "source", src, "destination", dst, "error", err)
		return false
	}
	return true
}

// ModelExists reports whether any known model name starts with name.
func (c *Client) ModelExists(ctx context.Context, name string) bool {
	for _, model := range c.Models(ctx) {
		if strings.HasPrefix(model.Name, name) {
			return true
		}
	}
	return false
}

// ModelSuggestions returns the base names (tag suffix stripped) of models
// whose name contains partial, case-insensitive, de-duplicated and in
// ascending order.
func (c *Client) ModelSuggestions(ctx context.Context, partial string) []string {
	needle := strings.ToLower(partial)
	seen := make(map[string]bool)
	var suggestions []string
	for _, model := range c.Models(ctx) {
		if !strings.Contains(strings.ToLower(model.Name), needle) {
			continue
		}
		base, _, _ := strings.Cut(model.Name, ":")
		if base == "" || seen[base] {
			continue
		}
		seen[base] = true
		suggestions = append(suggestions, base)
	}
	sort.Strings(suggestions)
	return suggestions
}

// HealthCheck aggregates ping, version, available models and running
// models into one snapshot. Sub-failures degrade the affected fields;
// the call itself never fails.
func (c *Client) HealthCheck(ctx context.Context) Health {
	health := Health{
		ModelsAvailable: []string{},
		RunningModels:   []string{},
	}

	version, err := c.Version(ctx)
	if err != nil {
		health.Err = err.Error()
		return health
	}
	health.ServerRunning = true
	health.Version = version

	for _, model := range c.Models(ctx) {
		health.ModelsAvailable = append(health.ModelsAvailable, model.Name)
	}
	for _, model := range c.RunningModels(ctx) {
		health.RunningModels = append(health.RunningModels, model.Name)
	}
	return health
}
