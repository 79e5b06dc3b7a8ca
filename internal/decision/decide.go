package decision

import "strings"

// Result is the outcome of Decide. ReasonCodes is never empty.
type Result struct {
	Provider    Provider `json:"provider"`
	ReasonCodes []string `json:"reason_codes"`
}

// String renders the result in the form stored on audit records:
// "provider=<p>,reason_codes=<a,b>".
func (r Result) String() string {
	return "provider=" + string(r.Provider) + ",reason_codes=" + strings.Join(r.ReasonCodes, ",")
}

// Decide applies sensitivity, cost and default rules in that order and
// returns the first match. Negative prompt lengths are treated as zero.
func Decide(prompt string, promptLength int, cfg PolicyConfig) Result {
	if promptLength < 0 {
		promptLength = 0
	}

	if SensitivityMatch(prompt, cfg.SensitivityKeywords) {
		return Result{Provider: ProviderLocal, ReasonCodes: []string{ReasonSensitiveKeywordMatch}}
	}

	if CostPreferLocal(promptLength, cfg.CostMaxPromptLengthForLocal,
		cfg.CostMaxUSDForLocal, cfg.CloudInputUSDPer1KTokens, cfg.CostCharsPerToken) {
		return Result{Provider: ProviderLocal, ReasonCodes: []string{ReasonCostPreferLocal}}
	}

	p := cfg.DefaultProvider
	if p == "" {
		p = DefaultDefaultProvider
	}
	// The token is historical and is emitted whichever provider is the default.
	return Result{Provider: p, ReasonCodes: []string{ReasonDefaultOpenAI}}
}
