package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sdwebui/ollama-assistant/internal/assistant"
	"github.com/sdwebui/ollama-assistant/internal/config"
	"github.com/sdwebui/ollama-assistant/internal/logger"
	"github.com/sdwebui/ollama-assistant/internal/ollama"
	"github.com/sdwebui/ollama-assistant/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		return
	}
	logger.SetLevel(cfg.LogLevel)

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		logger.L.Error("failed to open store", "path", cfg.Store.Path, "error", err)
		return
	}
	defer st.Close()

	client := ollama.New(cfg.Ollama.BaseURL, cfg.Ollama.Timeout())
	asst := assistant.New(client, st, cfg)

	if deleted, err := asst.Cleanup(); err != nil {
		logger.L.Warn("retention cleanup failed", "error", err)
	} else if deleted > 0 {
		logger.L.Info("retention cleanup", "deleted", deleted)
	}

	mux := http.NewServeMux()

	// main chat endpoint
	mux.HandleFunc("POST /", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			logger.L.Error("read body error", "error", err)
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}

		model := r.URL.Query().Get("model")
		reply, err := asst.Chat(r.Context(), string(body), model)
		if err != nil {
			logger.L.Error("chat error", "error", err)
			// reply is the printable degradation of the failure
		}
		w.Write([]byte(reply))
	})

	mux.HandleFunc("GET /suggestions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, asst.PromptSuggestions(r.URL.Query().Get("q")))
	})

	mux.HandleFunc("POST /prompts", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}
		if !asst.RecordPrompt(string(body), r.URL.Query().Get("category")) {
			http.Error(w, "failed to save prompt", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /history", func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if limit <= 0 {
			limit = 50
		}
		writeJSON(w, asst.History(limit, r.URL.Query().Get("model")))
	})

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, asst.Health(r.Context()))
	})

	mux.HandleFunc("POST /models/refresh", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]int{"refreshed": asst.RefreshModels(r.Context())})
	})

	go warmRegistry(asst)

	serverAddr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	logger.L.Info("starting server", "address", serverAddr)
	if err := http.ListenAndServe(serverAddr, mux); err != nil {
		logger.L.Error("failed to start server", "error", err)
	}
}

func warmRegistry(asst *assistant.Assistant) {
	if n := asst.RefreshModels(context.Background()); n > 0 {
		logger.L.Info("model registry refreshed", "count", n)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.L.Error("failed to encode response", "error", err)
	}
}
