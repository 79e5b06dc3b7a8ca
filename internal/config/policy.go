package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/ashita-ai/policymesh/internal/decision"
)

// LoadPolicy reads the routing policy from the environment. It never fails:
// a malformed value falls back to its default so a typo cannot take routing
// down. Call it once per decision to pick up changes without a restart.
func LoadPolicy() decision.PolicyConfig {
	cfg := decision.DefaultPolicy()

	if raw := os.Getenv("SENSITIVITY_KEYWORDS"); raw != "" {
		cfg.SensitivityKeywords = decision.NormalizeKeywords(strings.Split(raw, ","))
	}
	if n, ok := lenientInt("COST_MAX_PROMPT_LENGTH_FOR_LOCAL"); ok {
		cfg.CostMaxPromptLengthForLocal = n
	}
	if p, ok := decision.ParseProvider(os.Getenv("DEFAULT_PROVIDER")); ok {
		cfg.DefaultProvider = p
	}
	if f, ok := lenientFloat("COST_MAX_USD_FOR_LOCAL"); ok {
		cfg.CostMaxUSDForLocal = &f
	}
	if f, ok := lenientFloat("OPENAI_INPUT_USD_PER_1K_TOKENS"); ok {
		cfg.CloudInputUSDPer1KTokens = &f
	}
	if n, ok := lenientInt("COST_CHARS_PER_TOKEN"); ok && n > 0 {
		cfg.CostCharsPerToken = n
	}
	return cfg
}

// PolicySource returns the current routing policy.
type PolicySource func() decision.PolicyConfig

// EnvPolicySource re-reads the environment on every call.
var EnvPolicySource PolicySource = LoadPolicy

// StaticPolicySource always returns cfg.
func StaticPolicySource(cfg decision.PolicyConfig) PolicySource {
	return func() decision.PolicyConfig { return cfg }
}

func lenientInt(key string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func lenientFloat(key string) (float64, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
