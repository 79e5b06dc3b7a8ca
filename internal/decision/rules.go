package decision

import "strings"

// SensitivityMatch reports whether prompt contains any keyword as a
// case-insensitive substring. An empty prompt or keyword set never matches.
func SensitivityMatch(prompt string, keywords []string) bool {
	if prompt == "" || len(keywords) == 0 {
		return false
	}
	lower := strings.ToLower(prompt)
	for _, k := range keywords {
		if k == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

// CostPreferLocal reports whether the cost rule routes a prompt of the given
// length to the local provider.
//
// When both maxUSD and pricePer1K are set the estimate is
// (promptLength / charsPerToken) / 1000 * pricePer1K and length mode is not
// consulted. Otherwise the prompt must be no longer than maxLength, and a
// negative maxLength never prefers local.
func CostPreferLocal(promptLength, maxLength int, maxUSD, pricePer1K *float64, charsPerToken int) bool {
	if maxUSD != nil && pricePer1K != nil {
		return EstimateCloudUSD(promptLength, *pricePer1K, charsPerToken) <= *maxUSD
	}
	return maxLength >= 0 && promptLength <= maxLength
}

// EstimateCloudUSD estimates the input cost of sending promptLength
// characters to the cloud provider.
func EstimateCloudUSD(promptLength int, pricePer1K float64, charsPerToken int) float64 {
	if charsPerToken <= 0 {
		charsPerToken = DefaultCharsPerToken
	}
	tokens := float64(promptLength) / float64(charsPerToken)
	if tokens < 0 {
		tokens = 0
	}
	return tokens / 1000 * pricePer1K
}
