package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestClient(handler http.Handler) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	return New(server.URL, 5*time.Second), server
}

func TestChat_BuildsOrderedMessageList(t *testing.T) {
	var got chatPayload
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, endpointChat, r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(chatResponse{
			Message: Message{Role: RoleAssistant, Content: "hello back"},
			Done:    true,
		})
	}))
	defer server.Close()

	reply, err := client.Chat(context.Background(), ChatRequest{
		Model:   "llama2",
		Message: "hi",
		System:  "be terse",
		History: []Message{
			{Role: RoleUser, Content: "earlier"},
			{Role: RoleAssistant, Content: "noted"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "hello back", reply)

	require.Equal(t, []Message{
		{Role: RoleSystem, Content: "be terse"},
		{Role: RoleUser, Content: "earlier"},
		{Role: RoleAssistant, Content: "noted"},
		{Role: RoleUser, Content: "hi"},
	}, got.Messages)
	require.False(t, got.Stream)
}

func TestChatStream_SkipsMalformedLines(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":{"content":"Hel"}}` + "\n"))
		w.Write([]byte("garbage\n"))
		w.Write([]byte(`{"message":{"content":"lo"}}` + "\n"))
		w.Write([]byte(`{"message":{"content":""},"done":true}` + "\n"))
	}))
	defer server.Close()

	stream, err := client.ChatStream(context.Background(), ChatRequest{Model: "llama2", Message: "hi"})
	require.NoError(t, err)
	defer stream.Close()

	var fragments []string
	for {
		fragment, more := stream.Next()
		if !more {
			break
		}
		fragments = append(fragments, fragment)
	}
	require.NoError(t, stream.Err())
	require.Equal(t, []string{"Hel", "lo"}, fragments)
}

func TestGenerateStream_CollectsText(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, endpointGenerate, r.URL.Path)
		var payload generatePayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.True(t, payload.Stream)
		require.Equal(t, []int{1, 2, 3}, payload.Context)

		w.Write([]byte(`{"response":"a "}` + "\n"))
		w.Write([]byte(`{"response":"portrait","done":true}` + "\n"))
	}))
	defer server.Close()

	stream, err := client.GenerateStream(context.Background(), GenerateRequest{
		Model:   "llama2",
		Prompt:  "describe",
		Context: []int{1, 2, 3},
	})
	require.NoError(t, err)

	text, err := stream.Text()
	require.NoError(t, err)
	require.Equal(t, "a portrait", text)
}

func TestPing(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(versionResponse{Version: "0.5.1"})
	}))
	require.True(t, client.Ping(context.Background()))
	server.Close()
	require.False(t, client.Ping(context.Background()), "ping must degrade to false once the server is gone")
}

func TestNonOKStatus_SurfacesStatusError(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	_, err := client.Chat(context.Background(), ChatRequest{Model: "nope", Message: "hi"})
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusNotFound, statusErr.Code)
	require.Contains(t, statusErr.Body, "model not found")
}

func TestUnreachableServer_ClassifiedNotRunning(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	_, err := client.Version(context.Background())
	require.ErrorIs(t, err, ErrNotRunning)
}

func tagsHandler(names ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var models []ModelInfo
		for _, name := range names {
			models = append(models, ModelInfo{Name: name, Size: 1 << 30})
		}
		json.NewEncoder(w).Encode(tagsResponse{Models: models})
	}
}

func TestModelSuggestions_DedupedSortedBaseNames(t *testing.T) {
	client, server := newTestClient(tagsHandler("llama2:7b", "llama2:13b", "codellama:7b"))
	defer server.Close()

	require.Equal(t, []string{"codellama", "llama2"}, client.ModelSuggestions(context.Background(), "lla"))
}

func TestModelExists_PrefixMatch(t *testing.T) {
	client, server := newTestClient(tagsHandler("llama2:7b", "codellama:7b"))
	defer server.Close()

	ctx := context.Background()
	require.True(t, client.ModelExists(ctx, "llama2"))
	require.True(t, client.ModelExists(ctx, "codellama:7b"))
	require.False(t, client.ModelExists(ctx, "mistral"))
}

func TestModels_EmptyOnFailure(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	require.Empty(t, client.Models(context.Background()))
	require.Empty(t, client.Embed(context.Background(), "text", "llama2"))
	require.False(t, client.DeleteModel(context.Background(), "llama2"))
	require.False(t, client.CopyModel(context.Background(), "a", "b"))
}

func TestEmbeddings(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, endpointEmbeddings, r.URL.Path)
		var payload embeddingsPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Equal(t, "a castle", payload.Prompt)
		json.NewEncoder(w).Encode(embeddingsResponse{Embedding: []float64{0.1, 0.2}})
	}))
	defer server.Close()

	embedding, err := client.Embeddings(context.Background(), "a castle", "llama2")
	require.NoError(t, err)
	require.Equal(t, []float64{0.1, 0.2}, embedding)
}

func TestPull_StreamsProgress(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, endpointPull, r.URL.Path)
		w.Write([]byte(`{"status":"pulling manifest"}` + "\n"))
		w.Write([]byte("not json\n"))
		w.Write([]byte(`{"status":"downloading","digest":"sha256:ab","total":100,"completed":40}` + "\n"))
		w.Write([]byte(`{"status":"success"}` + "\n"))
	}))
	defer server.Close()

	stream, err := client.Pull(context.Background(), "llama2")
	require.NoError(t, err)
	defer stream.Close()

	var statuses []string
	for {
		update, more := stream.Next()
		if !more {
			break
		}
		statuses = append(statuses, update.Status)
	}
	require.NoError(t, stream.Err())
	require.Equal(t, []string{"pulling manifest", "downloading", "success"}, statuses)
}

func TestDeleteAndCopy(t *testing.T) {
	var deleteReq namePayload
	var copyReq copyPayload
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case endpointDelete:
			require.Equal(t, http.MethodDelete, r.Method)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&deleteReq))
		case endpointCopy:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&copyReq))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	ctx := context.Background()
	require.True(t, client.DeleteModel(ctx, "old-model"))
	require.Equal(t, "old-model", deleteReq.Name)
	require.True(t, client.CopyModel(ctx, "llama2", "llama2-backup"))
	require.Equal(t, "llama2", copyReq.Source)
	require.Equal(t, "llama2-backup", copyReq.Destination)
}

func TestHealthCheck_Aggregates(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case endpointVersion:
			json.NewEncoder(w).Encode(versionResponse{Version: "0.5.1"})
		case endpointTags:
			tagsHandler("llama2:7b", "codellama:7b")(w, r)
		case endpointPs:
			tagsHandler("llama2:7b")(w, r)
		}
	}))
	defer server.Close()

	health := client.HealthCheck(context.Background())
	require.True(t, health.ServerRunning)
	require.Equal(t, "0.5.1", health.Version)
	require.Equal(t, []string{"llama2:7b", "codellama:7b"}, health.ModelsAvailable)
	require.Equal(t, []string{"llama2:7b"}, health.RunningModels)
	require.Empty(t, health.Err)
}

func TestHealthCheck_DegradesWhenDown(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	health := client.HealthCheck(context.Background())
	require.False(t, health.ServerRunning)
	require.NotEmpty(t, health.Err)
	require.Empty(t, health.ModelsAvailable)
	require.Empty(t, health.RunningModels)
}

func TestTimeout_Classified(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := client.Version(ctx)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded))
}
