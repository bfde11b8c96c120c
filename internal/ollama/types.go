// Package ollama provides a client for the HTTP API of a local or remote
// Ollama model server: chat, text generation, embeddings, and model
// management, with optional streamed responses.
package ollama

// Default configuration constants
const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "llama2"
)

// API endpoints
const (
	endpointVersion    = "/api/version"
	endpointChat       = "/api/chat"
	endpointGenerate   = "/api/generate"
	endpointEmbeddings = "/api/embeddings"
	endpointTags       = "/api/tags"
	endpointPs         = "/api/ps"
	endpointPull       = "/api/pull"
	endpointCreate     = "/api/create"
	endpointShow       = "/api/show"
	endpointDelete     = "/api/delete"
	endpointCopy       = "/api/copy"
)

// Message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single message in a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest describes a chat exchange. The submitted message list is
// built in order: System (if set), History as given, then Message.
type ChatRequest struct {
	Model   string
	Message string
	System  string
	History []Message
}

// GenerateRequest describes a single-prompt completion. Context carries
// the numeric context vector from a prior call to maintain continuity.
type GenerateRequest struct {
	Model   string
	Prompt  string
	System  string
	Context []int
}

type chatPayload struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type chatResponse struct {
	Message Message `json:"message"`
	Done    bool    `json:"done"`
}

type generatePayload struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	System  string `json:"system,omitempty"`
	Context []int  `json:"context,omitempty"`
	Stream  bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type embeddingsPayload struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embeddingsResponse struct {
	Embedding []float64 `json:"embedding"`
}

type versionResponse struct {
	Version string `json:"version"`
}

// ModelInfo describes an available or running model as reported by the
// /api/tags and /api/ps endpoints.
type ModelInfo struct {
	Name       string `json:"name"`
	ModifiedAt string `json:"modified_at,omitempty"`
	Size       int64  `json:"size,omitempty"`
	Digest     string `json:"digest,omitempty"`
}

type tagsResponse struct {
	Models []ModelInfo `json:"models"`
}

// ModelDetails is the detailed descriptor returned by /api/show.
type ModelDetails struct {
	Modelfile  string            `json:"modelfile,omitempty"`
	Parameters string            `json:"parameters,omitempty"`
	Template   string            `json:"template,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
}

// ProgressUpdate is one status object from a streaming pull or create.
type ProgressUpdate struct {
	Status    string `json:"status"`
	Digest    string `json:"digest,omitempty"`
	Total     int64  `json:"total,omitempty"`
	Completed int64  `json:"completed,omitempty"`
}

type namePayload struct {
	Name string `json:"name"`
}

type createPayload struct {
	Name      string `json:"name"`
	Modelfile string `json:"modelfile"`
	From      string `json:"from,omitempty"`
}

type copyPayload struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
}

// Health is a point-in-time snapshot of server state. Sub-failures leave
// the affected fields empty rather than failing the snapshot.
type Health struct {
	ServerRunning   bool     `json:"server_running"`
	Version         string   `json:"version"`
	ModelsAvailable []string `json:"models_available"`
	RunningModels   []string `json:"running_models"`
	Err             string   `json:"error,omitempty"`
}
