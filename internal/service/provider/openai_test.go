package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIProvider_MissingKeyNeverCallsNetwork(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	p := NewOpenAIProvider("", server.URL, "", time.Second)
	res := p.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, "")

	assert.Equal(t, Failure{Category: FailureAuth, Message: "OPENAI_API_KEY not set"}, res)
	assert.Zero(t, calls.Load())
}

func TestOpenAIProvider_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req openAIChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-3.5-turbo", req.Model)

		_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"42"}}]}`))
	}))
	defer server.Close()

	p := NewOpenAIProvider("sk-test", server.URL+"/", "", time.Second)
	res := p.Chat(context.Background(), []Message{{Role: RoleUser, Content: "meaning of life?"}}, "")
	assert.Equal(t, Success{Content: "42"}, res)
}

func TestOpenAIProvider_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   Failure
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":"bad key"}`, Failure{Category: FailureAuth, Message: "Unauthorized"}},
		{"bad request", http.StatusBadRequest, "model not found", Failure{Category: FailureClient, Message: "model not found"}},
		{"rate limited", http.StatusTooManyRequests, "slow down", Failure{Category: FailureClient, Message: "slow down"}},
		{"server error", http.StatusInternalServerError, "boom", Failure{Category: FailureServer, Message: "boom"}},
		{"bad gateway empty body", http.StatusBadGateway, "", Failure{Category: FailureServer}},
		{"accepted", http.StatusAccepted, "queued", Failure{Category: FailureUnknown, Message: "queued"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			p := NewOpenAIProvider("sk-test", server.URL, "", time.Second)
			res := p.Chat(context.Background(), []Message{{Role: RoleUser, Content: "x"}}, "")
			assert.Equal(t, tt.want, res)
		})
	}
}

func TestOpenAIProvider_InvalidShape(t *testing.T) {
	for name, body := range map[string]string{
		"no choices": `{"choices":[]}`,
		"no message": `{"choices":[{"index":0}]}`,
		"no content": `{"choices":[{"message":{"role":"assistant"}}]}`,
		"not json":   `<html>oops</html>`,
		"wrong type": `{"choices":"nope"}`,
	} {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer server.Close()

			p := NewOpenAIProvider("sk-test", server.URL, "", time.Second)
			res := p.Chat(context.Background(), []Message{{Role: RoleUser, Content: "x"}}, "")
			assert.Equal(t, Failure{Category: FailureUnknown, Message: "Invalid response shape"}, res)
		})
	}
}

func TestOpenAIProvider_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	p := NewOpenAIProvider("sk-test", server.URL, "", 50*time.Millisecond)
	res := p.Chat(context.Background(), []Message{{Role: RoleUser, Content: "x"}}, "")
	assert.Equal(t, Failure{Category: FailureTimeout, Message: "Request timed out"}, res)
}
