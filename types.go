package policymesh

import (
	"github.com/ashita-ai/policymesh/internal/decision"
	"github.com/ashita-ai/policymesh/internal/service/provider"
)

// Message is one turn of a conversation passed to a ChatProvider.
type Message struct {
	Role    string
	Content string
}

// Message roles.
const (
	RoleUser      = provider.RoleUser
	RoleAssistant = provider.RoleAssistant
	RoleSystem    = provider.RoleSystem
)

// FailureCategory classifies a failed provider call in the audit trail and
// in metrics.
type FailureCategory string

const (
	FailureTimeout FailureCategory = FailureCategory(provider.FailureTimeout)
	FailureAuth    FailureCategory = FailureCategory(provider.FailureAuth)
	FailureClient  FailureCategory = FailureCategory(provider.FailureClient)
	FailureServer  FailureCategory = FailureCategory(provider.FailureServer)
	FailureUnknown FailureCategory = FailureCategory(provider.FailureUnknown)
)

// ProviderError is returned by a custom ChatProvider to report a categorized
// failure. Any other error is recorded as FailureUnknown, or FailureTimeout
// when it wraps context.DeadlineExceeded.
type ProviderError struct {
	Category FailureCategory
	Message  string
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Category)
}

// Provider names accepted by Policy.DefaultProvider.
const (
	ProviderLocal = string(decision.ProviderLocal)
	ProviderCloud = string(decision.ProviderCloud)
)

// Policy is a fixed routing policy. Passing one through WithPolicy stops the
// App from re-reading routing settings from the environment.
//
// Unset fields take the same defaults as the environment: a 1000 character
// length threshold, 4 characters per token and the cloud default provider.
// A zero CostMaxPromptLengthForLocal is a real threshold that only treats
// empty prompts as cheap; leave it nil for the default.
type Policy struct {
	SensitivityKeywords         []string
	CostMaxPromptLengthForLocal *int
	DefaultProvider             string

	// Both must be set to compare estimated USD cost instead of length.
	CostMaxUSDForLocal       *float64
	CloudInputUSDPer1KTokens *float64
	CostCharsPerToken        int
}

func (p Policy) toConfig() decision.PolicyConfig {
	cfg := decision.DefaultPolicy()
	cfg.SensitivityKeywords = decision.NormalizeKeywords(p.SensitivityKeywords)
	if p.CostMaxPromptLengthForLocal != nil {
		cfg.CostMaxPromptLengthForLocal = *p.CostMaxPromptLengthForLocal
	}
	if dp, ok := decision.ParseProvider(p.DefaultProvider); ok {
		cfg.DefaultProvider = dp
	}
	cfg.CostMaxUSDForLocal = p.CostMaxUSDForLocal
	cfg.CloudInputUSDPer1KTokens = p.CloudInputUSDPer1KTokens
	if p.CostCharsPerToken > 0 {
		cfg.CostCharsPerToken = p.CostCharsPerToken
	}
	return cfg
}
