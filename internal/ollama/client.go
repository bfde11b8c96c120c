package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client provides methods to communicate with an Ollama server.
//
// Low-level methods propagate the error taxonomy (ErrNotRunning,
// ErrTimeout, *StatusError, wrapped ErrConnectionFailed). The
// convenience methods in convenience.go swallow failures and degrade to
// empty or boolean results instead.
type Client struct {
	baseURL    string
	httpClient *http.Client
	// Streaming requests carry no client timeout; the request context
	// governs their lifetime instead.
	streamClient *http.Client
}

// New creates a client for the given base address. A zero timeout falls
// back to 30 seconds for non-streaming requests.
func New(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{Timeout: timeout},
		streamClient: &http.Client{},
	}
}

// BaseURL returns the configured server address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) newRequest(ctx context.Context, method, path string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// doJSON performs a non-streaming request and decodes the response body
// into out when out is non-nil.
func (c *Client) doJSON(ctx context.Context, method, path string, payload, out any) error {
	req, err := c.newRequest(ctx, method, path, payload)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// doStream performs a streaming request and returns the open response
// body. The caller owns the body and must close it.
func (c *Client) doStream(ctx context.Context, method, path string, payload any) (io.ReadCloser, error) {
	req, err := c.newRequest(ctx, method, path, payload)
	if err != nil {
		return nil, err
	}

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, classifyError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := statusError(resp)
		resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

// Version returns the server version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	var resp versionResponse
	if err := c.doJSON(ctx, http.MethodGet, endpointVersion, nil, &resp); err != nil {
		return "", err
	}
	return resp.Version, nil
}

// messages builds the ordered message list: system first (if set), then
// prior history in given order, then the new user message.
func (r ChatRequest) messages() []Message {
	msgs := make([]Message, 0, len(r.History)+2)
	if r.System != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: r.System})
	}
	msgs = append(msgs, r.History...)
	msgs = append(msgs, Message{Role: RoleUser, Content: r.Message})
	return msgs
}

func (r ChatRequest) model() string {
	if r.Model == "" {
		return DefaultModel
	}
	return r.Model
}

// Chat submits a chat exchange and returns the full reply text.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (string, error) {
	payload := chatPayload{Model: req.model(), Messages: req.messages()}
	var resp chatResponse
	if err := c.doJSON(ctx, http.MethodPost, endpointChat, payload, &resp); err != nil {
		return "", err
	}
	return resp.Message.Content, nil
}

// ChatStream submits a chat exchange and returns a stream of incremental
// reply fragments. The caller must drain or close the stream.
func (c *Client) ChatStream(ctx context.Context, req ChatRequest) (*Stream, error) {
	payload := chatPayload{Model: req.model(), Messages: req.messages(), Stream: true}
	body, err := c.doStream(ctx, http.MethodPost, endpointChat, payload)
	if err != nil {
		return nil, err
	}
	return newStream(body, chatExtract), nil
}

func (r GenerateRequest) payload(stream bool) generatePayload {
	model := r.Model
	if model == "" {
		model = DefaultModel
	}
	return generatePayload{
		Model:   model,
		Prompt:  r.Prompt,
		System:  r.System,
		Context: r.Context,
		Stream:  stream,
	}
}

// Generate runs a single-prompt completion and returns the full text.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	var resp generateResponse
	if err := c.doJSON(ctx, http.MethodPost, endpointGenerate, req.payload(false), &resp); err != nil {
		return "", err
	}
	return resp.Response, nil
}

// GenerateStream runs a single-prompt completion and returns a stream of
// incremental text fragments.
func (c *Client) GenerateStream(ctx context.Context, req GenerateRequest) (*Stream, error) {
	body, err := c.doStream(ctx, http.MethodPost, endpointGenerate, req.payload(true))
	if err != nil {
		return nil, err
	}
	return newStream(body, generateExtract), nil
}

// Embeddings returns the embedding vector for the given text.
func (c *Client) Embeddings(ctx context.Context, text, model string) ([]float64, error) {
	if model == "" {
		model = DefaultModel
	}
	var resp embeddingsResponse
	payload := embeddingsPayload{Model: model, Prompt: text}
	if err := c.doJSON(ctx, http.MethodPost, endpointEmbeddings, payload, &resp); err != nil {
		return nil, err
	}
	return resp.Embedding, nil
}

// Tags lists the models available on the server.
func (c *Client) Tags(ctx context.Context) ([]ModelInfo, error) {
	var resp tagsResponse
	if err := c.doJSON(ctx, http.MethodGet, endpointTags, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Models, nil
}

// Running lists the models currently loaded on the server.
func (c *Client) Running(ctx context.Context) ([]ModelInfo, error) {
	var resp tagsResponse
	if err := c.doJSON(ctx, http.MethodGet, endpointPs, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Models, nil
}

// Pull downloads a model from the registry, returning a stream of
// progress updates.
func (c *Client) Pull(ctx context.Context, name string) (*ProgressStream, error) {
	body, err := c.doStream(ctx, http.MethodPost, endpointPull, namePayload{Name: name})
	if err != nil {
		return nil, err
	}
	return newProgressStream(body), nil
}

// Create builds a custom model from a modelfile definition, returning a
// stream of status updates.
func (c *Client) Create(ctx context.Context, name, modelfile, base string) (*ProgressStream, error) {
	payload := createPayload{Name: name, Modelfile: modelfile, From: base}
	body, err := c.doStream(ctx, http.MethodPost, endpointCreate, payload)
	if err != nil {
		return nil, err
	}
	return newProgressStream(body), nil
}

// Show returns the detailed descriptor for a model.
func (c *Client) Show(ctx context.Context, name string) (ModelDetails, error) {
	var details ModelDetails
	err := c.doJSON(ctx, http.MethodPost, endpointShow, namePayload{Name: name}, &details)
	return details, err
}

// Delete removes a model from the server.
func (c *Client) Delete(ctx context.Context, name string) error {
	return c.doJSON(ctx, http.MethodDelete, endpointDelete, namePayload{Name: name}, nil)
}

// Copy duplicates a model under a new name.
func (c *Client) Copy(ctx context.Context, src, dst string) error {
	payload := copyPayload{Source: src, Destination: dst}
	return c.doJSON(ctx, http.MethodPost, endpointCopy, payload, nil)
}
