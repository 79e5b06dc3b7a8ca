package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaProvider_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path: %s", r.URL.Path)
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}

		var req ollamaChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		assert.Equal(t, "llama2", req.Model)
		assert.False(t, req.Stream)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "hi", req.Messages[1].Content)

		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"hello there"}}`))
	}))
	defer server.Close()

	p := NewOllamaProvider(server.URL+"/", "", time.Second)
	res := p.Chat(context.Background(), []Message{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleUser, Content: "hi"},
	}, "")

	assert.Equal(t, Success{Content: "hello there"}, res)
}

func TestOllamaProvider_ModelOverride(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaChatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		assert.Equal(t, "mistral", req.Model)
		_, _ = w.Write([]byte(`{"message":{"content":""}}`))
	}))
	defer server.Close()

	p := NewOllamaProvider(server.URL, "llama3", time.Second)
	res := p.Chat(context.Background(), []Message{{Role: RoleUser, Content: "x"}}, "mistral")
	assert.Equal(t, Success{Content: ""}, res)
}

func TestOllamaProvider_MissingContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"done":true}`))
	}))
	defer server.Close()

	p := NewOllamaProvider(server.URL, "", time.Second)
	res := p.Chat(context.Background(), []Message{{Role: RoleUser, Content: "x"}}, "")
	assert.Equal(t, Failure{Category: FailureUnknown, Message: "Invalid response shape"}, res)
}

func TestOllamaProvider_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	p := NewOllamaProvider(server.URL, "", 50*time.Millisecond)
	res := p.Chat(context.Background(), []Message{{Role: RoleUser, Content: "x"}}, "")
	assert.Equal(t, Failure{Category: FailureTimeout, Message: "Request timed out"}, res)
}

func TestOllamaProvider_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	p := NewOllamaProvider(url, "", time.Second)
	res := p.Chat(context.Background(), []Message{{Role: RoleUser, Content: "x"}}, "")
	f, ok := res.(Failure)
	require.True(t, ok)
	assert.Equal(t, FailureUnknown, f.Category)
	assert.NotEmpty(t, f.Message)
}
