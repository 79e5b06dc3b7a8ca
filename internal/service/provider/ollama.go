package provider

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// DefaultOllamaModel is used when neither the caller nor the config names one.
const DefaultOllamaModel = "llama2"

// OllamaProvider talks to a local Ollama server's /api/chat endpoint.
// Prompts sent here never leave the host network.
type OllamaProvider struct {
	baseURL      string
	defaultModel string
	httpClient   *http.Client
}

// NewOllamaProvider creates the local adapter. A zero timeout means 60s.
func NewOllamaProvider(baseURL, defaultModel string, timeout time.Duration) *OllamaProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if defaultModel == "" {
		defaultModel = DefaultOllamaModel
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OllamaProvider{
		baseURL:      strings.TrimRight(baseURL, "/"),
		defaultModel: defaultModel,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

type ollamaChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type ollamaChatResponse struct {
	Message *struct {
		Content *string `json:"content"`
	} `json:"message"`
}

// Chat sends messages to Ollama with streaming disabled.
func (p *OllamaProvider) Chat(ctx context.Context, messages []Message, model string) ChatResult {
	if model == "" {
		model = p.defaultModel
	}

	var out ollamaChatResponse
	if f := postJSON(ctx, p.httpClient, p.baseURL+"/api/chat", nil,
		ollamaChatRequest{Model: model, Messages: messages, Stream: false}, &out); f != nil {
		return *f
	}

	if out.Message == nil || out.Message.Content == nil {
		return Failure{Category: FailureUnknown, Message: invalidShapeMessage}
	}
	return Success{Content: *out.Message.Content}
}
