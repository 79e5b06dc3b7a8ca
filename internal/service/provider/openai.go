package provider

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// Defaults for the OpenAI-compatible adapter.
const (
	DefaultOpenAIBaseURL = "https://api.openai.com"
	DefaultOpenAIModel   = "gpt-3.5-turbo"
)

// OpenAIProvider calls an OpenAI-compatible /v1/chat/completions endpoint.
type OpenAIProvider struct {
	apiKey       string
	baseURL      string
	defaultModel string
	httpClient   *http.Client
}

// NewOpenAIProvider creates the cloud adapter. An empty apiKey is allowed;
// every call then fails with auth_error without touching the network.
func NewOpenAIProvider(apiKey, baseURL, defaultModel string, timeout time.Duration) *OpenAIProvider {
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	if defaultModel == "" {
		defaultModel = DefaultOpenAIModel
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAIProvider{
		apiKey:       apiKey,
		baseURL:      strings.TrimRight(baseURL, "/"),
		defaultModel: defaultModel,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

type openAIChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message *struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Chat sends messages to the completions endpoint.
func (p *OpenAIProvider) Chat(ctx context.Context, messages []Message, model string) ChatResult {
	if p.apiKey == "" {
		return Failure{Category: FailureAuth, Message: "OPENAI_API_KEY not set"}
	}
	if model == "" {
		model = p.defaultModel
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+p.apiKey)

	var out openAIChatResponse
	if f := postJSON(ctx, p.httpClient, p.baseURL+"/v1/chat/completions", header,
		openAIChatRequest{Model: model, Messages: messages}, &out); f != nil {
		return *f
	}

	if len(out.Choices) == 0 || out.Choices[0].Message == nil || out.Choices[0].Message.Content == nil {
		return Failure{Category: FailureUnknown, Message: invalidShapeMessage}
	}
	return Success{Content: *out.Choices[0].Message.Content}
}
