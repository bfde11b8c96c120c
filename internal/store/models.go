package store

// Conversation is one completed chat exchange. Records are append-only;
// only retention cleanup removes them.
type Conversation struct {
	ID            int64  `json:"id"`
	Timestamp     string `json:"timestamp"`
	UserMessage   string `json:"user_message"`
	ModelResponse string `json:"model_response"`
	ModelName     string `json:"model_name"`
	SessionID     string `json:"session_id,omitempty"`
}

// ModelEntry is one row of the model availability registry.
type ModelEntry struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Size        string `json:"size,omitempty"`
	LastUsed    string `json:"last_used"`
}
