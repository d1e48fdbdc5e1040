package gigachat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestServer(t *testing.T, chatHandler http.HandlerFunc) (*Client, *atomic.Int64) {
	t.Helper()

	var tokenRequests atomic.Int64

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth", func(w http.ResponseWriter, r *http.Request) {
		tokenRequests.Add(1)

		if r.Header.Get("Authorization") != "Basic test-credentials" {
			http.Error(w, "bad authorization", http.StatusUnauthorized)
			return
		}
		if r.Header.Get("RqUID") == "" {
			http.Error(w, "missing RqUID", http.StatusBadRequest)
			return
		}
		if r.FormValue("scope") != "GIGACHAT_API_PERS" {
			http.Error(w, "bad scope", http.StatusBadRequest)
			return
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "test-token",
			"expires_at":   time.Now().Add(30*time.Minute).UnixMilli(),
		})
	})
	mux.HandleFunc("/chat/completions", chatHandler)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client, err := New(Config{
		Credentials: "test-credentials",
		OAuthURL:    server.URL + "/oauth",
		APIURL:      server.URL,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("creating client: %v", err)
	}

	return client, &tokenRequests
}

func TestGenerate(t *testing.T) {
	var gotRequest chatRequest

	client, tokenRequests := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			http.Error(w, "bad token", http.StatusUnauthorized)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&gotRequest); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": " {\"H1\": 1} "}},
			},
		})
	})

	out, err := client.Generate(context.Background(), "system text", "user text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != `{"H1": 1}` {
		t.Fatalf("unexpected output: %q", out)
	}

	if len(gotRequest.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(gotRequest.Messages))
	}
	if gotRequest.Messages[0].Role != "system" || gotRequest.Messages[0].Content != "system text" {
		t.Fatalf("unexpected system message: %+v", gotRequest.Messages[0])
	}
	if gotRequest.Messages[1].Role != "user" || gotRequest.Messages[1].Content != "user text" {
		t.Fatalf("unexpected user message: %+v", gotRequest.Messages[1])
	}
	if gotRequest.Model != defaultModel {
		t.Fatalf("expected default model, got %q", gotRequest.Model)
	}

	// Second call must reuse the cached token.
	if _, err := client.Generate(context.Background(), "system text", "user text"); err != nil {
		t.Fatalf("unexpected error on second call: %v", err)
	}
	if got := tokenRequests.Load(); got != 1 {
		t.Fatalf("expected a single token request, got %d", got)
	}
}

func TestGenerateRetriesExpiredToken(t *testing.T) {
	var chatCalls atomic.Int64

	client, tokenRequests := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if chatCalls.Add(1) == 1 {
			http.Error(w, "token expired", http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "ok"}},
			},
		})
	})
	client.maxRetries = 1

	out, err := client.Generate(context.Background(), "", "user text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "ok" {
		t.Fatalf("unexpected output: %q", out)
	}
	if got := tokenRequests.Load(); got != 2 {
		t.Fatalf("expected a fresh token after 401, got %d token requests", got)
	}
}

func TestGenerateSurfacesPermanentAPIError(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	})
	client.maxRetries = 2

	_, err := client.Generate(context.Background(), "", "user text")
	var apiErr *apiError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected api error, got %v", err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("unexpected status: %d", apiErr.StatusCode)
	}
}

func TestGenerateRejectsEmptyPrompt(t *testing.T) {
	client, err := New(Config{Credentials: "x"}, nil)
	if err != nil {
		t.Fatalf("creating client: %v", err)
	}
	if _, err := client.Generate(context.Background(), "system", "   "); err == nil {
		t.Fatal("expected error for empty prompt")
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	if _, err := New(Config{}, nil); err == nil {
		t.Fatal("expected error for missing credentials")
	}
}
