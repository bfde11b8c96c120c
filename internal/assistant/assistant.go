// Package assistant composes the model server client and the local
// store, mediating chat exchanges and prompt-helper queries for the UI.
package assistant

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/qmuntal/stateless"
	"github.com/sashabaranov/go-openai"

	"github.com/sdwebui/ollama-assistant/internal/config"
	"github.com/sdwebui/ollama-assistant/internal/llm"
	"github.com/sdwebui/ollama-assistant/internal/logger"
	"github.com/sdwebui/ollama-assistant/internal/ollama"
	"github.com/sdwebui/ollama-assistant/internal/store"
)

// Exchange FSM states
type exchangeState stateless.State

var (
	stateReady         exchangeState = "Ready"
	stateAwaitingReply exchangeState = "AwaitingReply"
	statePersisting    exchangeState = "Persisting"
	stateDone          exchangeState = "Done"
	stateError         exchangeState = "Error"
)

// Exchange FSM triggers
type exchangeTrigger stateless.Trigger

var (
	triggerSubmit        exchangeTrigger = "Submit"
	triggerReplyReceived exchangeTrigger = "ReplyReceived"
	triggerReplyFailed   exchangeTrigger = "ReplyFailed"
	triggerPersisted     exchangeTrigger = "Persisted"
	triggerPersistFailed exchangeTrigger = "PersistFailed"
)

// exchangeContext carries one exchange's data through the FSM actions.
type exchangeContext struct {
	message string
	model   string
	reply   string
	err     error
}

// newExchangeMachine builds the per-exchange FSM. The model call and the
// persistence step run as OnEntry actions of their states; each action
// fires the trigger matching its outcome, so the terminal state reflects
// what actually happened.
func (a *Assistant) newExchangeMachine(exch *exchangeContext) *stateless.StateMachine {
	machine := stateless.NewStateMachine(stateReady)

	machine.Configure(stateReady).
		Permit(triggerSubmit, stateAwaitingReply)

	machine.Configure(stateAwaitingReply).
		Permit(triggerReplyReceived, statePersisting).
		Permit(triggerReplyFailed, stateError).
		OnEntry(func(ctx context.Context, _ ...any) error {
			reply, err := a.complete(ctx, exch.message, exch.model)
			if err != nil {
				exch.err = err
				return machine.FireCtx(ctx, triggerReplyFailed)
			}
			exch.reply = reply
			return machine.FireCtx(ctx, triggerReplyReceived)
		})

	machine.Configure(statePersisting).
		Permit(triggerPersisted, stateDone).
		Permit(triggerPersistFailed, stateError).
		OnEntry(func(ctx context.Context, _ ...any) error {
			if _, err := a.store.SaveConversation(exch.message, exch.reply, exch.model, a.sessionID, nil); err != nil {
				exch.err = err
				return machine.FireCtx(ctx, triggerPersistFailed)
			}
			return machine.FireCtx(ctx, triggerPersisted)
		})

	return machine
}

// ChatClient is the subset of the ollama client the assistant uses; it
// is easy to mock in tests.
type ChatClient interface {
	Chat(ctx context.Context, req ollama.ChatRequest) (string, error)
	Tags(ctx context.Context) ([]ollama.ModelInfo, error)
	HealthCheck(ctx context.Context) ollama.Health
}

// Assistant owns one client and one store for its lifetime. It is
// constructed explicitly by whatever composes the UI; there is no
// process-wide instance.
type Assistant struct {
	client    ChatClient
	compat    llm.Client
	store     *store.Store
	cfg       *config.Config
	sessionID string
}

// New creates an assistant. When cfg.LLM.Provider is "openai", chat
// exchanges route through the OpenAI-compatible surface instead of the
// native API; everything else is unaffected.
func New(client ChatClient, st *store.Store, cfg *config.Config) *Assistant {
	a := &Assistant{
		client:    client,
		store:     st,
		cfg:       cfg,
		sessionID: uuid.NewString(),
	}
	if cfg.LLM.Provider == "openai" {
		a.compat = llm.NewClient(cfg.LLM)
	}
	return a
}

// SessionID returns the id stamped on conversations saved by this
// assistant instance.
func (a *Assistant) SessionID() string {
	return a.sessionID
}

// Chat runs one exchange through the FSM: recent history is loaded from
// the store, the model is called, and the completed exchange is
// persisted. The result is derived from the terminal state. On a client
// failure the returned string is a printable message for the UI and the
// error carries the cause. A persistence failure ends the machine in its
// error state but does not discard the reply; it is logged and the
// reply is still returned.
func (a *Assistant) Chat(ctx context.Context, message, model string) (string, error) {
	if model == "" {
		model = a.cfg.Ollama.DefaultModel
	}

	exch := &exchangeContext{message: message, model: model}
	machine := a.newExchangeMachine(exch)
	if err := machine.FireCtx(ctx, triggerSubmit); err != nil {
		return "", fmt.Errorf("exchange state machine: %w", err)
	}

	terminal, err := machine.State(ctx)
	if err != nil {
		return "", fmt.Errorf("exchange state machine: %w", err)
	}
	switch terminal {
	case stateDone:
		return exch.reply, nil
	case stateError:
		if exch.reply != "" {
			// The model answered; only persistence failed.
			logger.L.Error("failed to persist exchange", "model", model, "error", exch.err)
			return exch.reply, nil
		}
		logger.L.Error("chat exchange failed", "model", model, "error", exch.err)
		return fmt.Sprintf("Error: could not reach %s (%v)", model, exch.err), exch.err
	}
	return "", fmt.Errorf("exchange ended in unexpected state: %v", terminal)
}

func (a *Assistant) complete(ctx context.Context, message, model string) (string, error) {
	history := a.recentHistory(model)

	if a.compat != nil {
		return a.completeCompat(ctx, message, model, history)
	}

	return a.client.Chat(ctx, ollama.ChatRequest{
		Model:   model,
		Message: message,
		System:  a.cfg.Ollama.SystemPrompt,
		History: history,
	})
}

func (a *Assistant) completeCompat(ctx context.Context, message, model string, history []ollama.Message) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	if a.cfg.Ollama.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: a.cfg.Ollama.SystemPrompt,
		})
	}
	for _, msg := range history {
		messages = append(messages, openai.ChatCompletionMessage{Role: msg.Role, Content: msg.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: message,
	})

	compatModel := a.cfg.LLM.Model
	if compatModel == "" {
		compatModel = model
	}
	resp, err := a.compat.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    compatModel,
		Messages: messages,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no completion choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// recentHistory converts the newest-first store records into a
// chronological user/assistant message list for the next request.
func (a *Assistant) recentHistory(model string) []ollama.Message {
	limit := a.cfg.Store.HistoryLimit
	if limit <= 0 {
		limit = 20
	}
	records, err := a.store.ConversationHistory(limit, model)
	if err != nil {
		logger.L.Warn("failed to load conversation history", "error", err)
		return nil
	}

	messages := make([]ollama.Message, 0, len(records)*2)
	for i := len(records) - 1; i >= 0; i-- {
		messages = append(messages,
			ollama.Message{Role: ollama.RoleUser, Content: records[i].UserMessage},
			ollama.Message{Role: ollama.RoleAssistant, Content: records[i].ModelResponse},
		)
	}
	return messages
}

// PromptSuggestions returns stored prompts matching partial, empty on
// any storage failure.
func (a *Assistant) PromptSuggestions(partial string) []string {
	suggestions, err := a.store.PromptSuggestions(partial, 10)
	if err != nil {
		logger.L.Warn("failed to load prompt suggestions", "error", err)
		return nil
	}
	return suggestions
}

// RecordPrompt saves (or bumps) a prompt, reporting success as a boolean.
func (a *Assistant) RecordPrompt(text, category string) bool {
	if err := a.store.SavePrompt(text, category); err != nil {
		logger.L.Warn("failed to record prompt", "error", err)
		return false
	}
	return true
}

// History returns recent conversations, empty on any storage failure.
func (a *Assistant) History(limit int, model string) []store.Conversation {
	records, err := a.store.ConversationHistory(limit, model)
	if err != nil {
		logger.L.Warn("failed to load history", "error", err)
		return nil
	}
	return records
}

// RefreshModels pulls the server's model list into the local registry
// and returns the number of entries refreshed.
func (a *Assistant) RefreshModels(ctx context.Context) int {
	models, err := a.client.Tags(ctx)
	if err != nil {
		logger.L.Warn("failed to refresh models", "error", err)
		return 0
	}
	refreshed := 0
	for _, model := range models {
		size := ""
		if model.Size > 0 {
			size = humanize.Bytes(uint64(model.Size))
		}
		if err := a.store.UpdateModelInfo(model.Name, "", size, true); err != nil {
			logger.L.Warn("failed to update model registry", "name", model.Name, "error", err)
			continue
		}
		refreshed++
	}
	return refreshed
}

// Health returns the client's server snapshot.
func (a *Assistant) Health(ctx context.Context) ollama.Health {
	return a.client.HealthCheck(ctx)
}

// Cleanup applies the configured retention to stored conversations and
// returns the number of records removed.
func (a *Assistant) Cleanup() (int64, error) {
	days := a.cfg.Store.RetentionDays
	if days <= 0 {
		days = 30
	}
	return a.store.CleanupOldData(days)
}
