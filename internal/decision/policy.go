// Package decision implements the routing policy: which provider serves a
// prompt, and why.
//
// Evaluation is pure. Callers pass a PolicyConfig snapshot and get back a
// Result; nothing here reads the environment, the clock, or the network.
package decision

import "strings"

// Provider identifies a backend class. Only two exist.
type Provider string

const (
	ProviderLocal Provider = "local"
	ProviderCloud Provider = "cloud"
)

// ParseProvider maps a configuration value onto a Provider. "openai" is
// accepted as an alias for cloud. Unknown values report false.
func ParseProvider(s string) (Provider, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "local", "ollama":
		return ProviderLocal, true
	case "cloud", "openai":
		return ProviderCloud, true
	}
	return "", false
}

// Reason codes explain a decision. The literals are part of the audit
// contract and must not change.
const (
	ReasonSensitiveKeywordMatch = "sensitive_keyword_match"
	ReasonCostPreferLocal       = "cost_prefer_local"
	ReasonDefaultOpenAI         = "default_openai"
)

// AllReasonCodes lists every reason code Decide can emit.
var AllReasonCodes = []string{
	ReasonSensitiveKeywordMatch,
	ReasonCostPreferLocal,
	ReasonDefaultOpenAI,
}

// Rule names in evaluation order.
const (
	RuleSensitivity = "sensitivity"
	RuleCost        = "cost"
	RuleDefault     = "default"
)

// RuleOrder returns the fixed order in which Decide applies its rules.
func RuleOrder() []string {
	return []string{RuleSensitivity, RuleCost, RuleDefault}
}

// Defaults used when a policy value is absent or malformed.
const (
	DefaultMaxPromptLengthForLocal = 1000
	DefaultCharsPerToken           = 4
	DefaultDefaultProvider         = ProviderCloud
)

// PolicyConfig is an immutable snapshot of routing policy. Build a new one
// rather than mutating a shared value.
type PolicyConfig struct {
	// SensitivityKeywords are lowercase substrings that force local routing.
	SensitivityKeywords []string

	// CostMaxPromptLengthForLocal is the character threshold for length mode.
	CostMaxPromptLengthForLocal int

	DefaultProvider Provider

	// USD mode is active only when both of these are set.
	CostMaxUSDForLocal       *float64
	CloudInputUSDPer1KTokens *float64

	CostCharsPerToken int
}

// DefaultPolicy returns the policy used when nothing is configured.
func DefaultPolicy() PolicyConfig {
	return PolicyConfig{
		CostMaxPromptLengthForLocal: DefaultMaxPromptLengthForLocal,
		DefaultProvider:             DefaultDefaultProvider,
		CostCharsPerToken:           DefaultCharsPerToken,
	}
}

// USDModeActive reports whether the cost rule compares an estimated USD
// cost instead of prompt length.
func (c PolicyConfig) USDModeActive() bool {
	return c.CostMaxUSDForLocal != nil && c.CloudInputUSDPer1KTokens != nil
}

// NormalizeKeywords trims, lowercases, and drops empty entries.
func NormalizeKeywords(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, k := range raw {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			out = append(out, k)
		}
	}
	return out
}
