package policymesh

import "time"

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Provider names returned in ChatResponse.Provider.
const (
	ProviderLocal = "local"
	ProviderCloud = "cloud"
)

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of POST /v1/chat.
type ChatRequest struct {
	Messages []Message `json:"messages"`
	Model    string    `json:"model,omitempty"`
}

// ChatResponse is the routed reply. Exactly one of Content and Error is set.
// A provider failure is not a Go error: check Failed.
type ChatResponse struct {
	RequestID   string   `json:"request_id"`
	Provider    string   `json:"provider"`
	ReasonCodes []string `json:"reason_codes"`
	Content     *string  `json:"content,omitempty"`
	Error       *string  `json:"error,omitempty"`
}

// Failed reports whether the selected provider failed.
func (r *ChatResponse) Failed() bool {
	return r.Error != nil
}

// Text returns the reply content, or "" on failure.
func (r *ChatResponse) Text() string {
	if r.Content == nil {
		return ""
	}
	return *r.Content
}

// Routes describes the server's effective routing policy. The USD fields
// are set only when CostUSDMode is true.
type Routes struct {
	RuleOrder                   []string `json:"rule_order"`
	SensitivityKeywordCount     int      `json:"sensitivity_keyword_count"`
	CostMaxPromptLengthForLocal int      `json:"cost_max_prompt_length_for_local"`
	DefaultProvider             string   `json:"default_provider"`
	CostUSDMode                 bool     `json:"cost_usd_mode"`
	CostMaxUSDForLocal          *float64 `json:"cost_max_usd_for_local,omitempty"`
	CloudInputUSDPer1KTokens    *float64 `json:"cloud_input_usd_per_1k_tokens,omitempty"`
	CostCharsPerToken           *int     `json:"cost_chars_per_token,omitempty"`
	ReasonCodes                 []string `json:"reason_codes"`
}

// AuditEvent is the privacy-safe audit record of one chat request.
type AuditEvent struct {
	RequestID       string    `json:"request_id"`
	Decision        string    `json:"decision"`
	Status          string    `json:"status"`
	LatencyMs       float64   `json:"latency_ms"`
	FailureCategory *string   `json:"failure_category,omitempty"`
	PromptHash      *string   `json:"prompt_hash,omitempty"`
	PromptLength    *int      `json:"prompt_length,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Health is the body of GET /v1/health.
type Health struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	Audit         string `json:"audit"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}
