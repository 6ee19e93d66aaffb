package builder

import (
	"regexp"
	"strconv"
	"strings"
)

// Usage is the detected usage profile for a build request.
type Usage string

const (
	UsageGaming    Usage = "gaming"
	UsageWork      Usage = "work"
	UsageStreaming Usage = "streaming"
)

var budgetPattern = regexp.MustCompile(`\d{4,6}`)

// ExtractBudget pulls a numeric budget out of free text: the first 4-6 digit
// run wins. hint is the caller-supplied budget field; fallback is the
// configured default.
func ExtractBudget(prompt string, hint, fallback float64) float64 {
	if m := budgetPattern.FindString(prompt); m != "" {
		if v, err := strconv.ParseFloat(m, 64); err == nil && v > 0 {
			return v
		}
	}
	if hint > 0 {
		return hint
	}
	return fallback
}

var workKeywords = []string{
	"办公", "生产力", "设计", "剪辑", "渲染", "代码", "编程",
	"office", "work", "design", "editing", "render", "coding",
}

var streamingKeywords = []string{
	"直播", "推流", "录制", "obs",
	"stream", "recording", "broadcast",
}

// DetectUsage classifies usage intent from keyword presence. The explicit
// usage field wins over keyword detection; gaming is the default. Advisory
// context only, never a hard constraint.
func DetectUsage(prompt, explicit string) Usage {
	switch Usage(strings.ToLower(explicit)) {
	case UsageGaming, UsageWork, UsageStreaming:
		return Usage(strings.ToLower(explicit))
	}

	lower := strings.ToLower(prompt)
	for _, kw := range streamingKeywords {
		if strings.Contains(lower, kw) {
			return UsageStreaming
		}
	}
	for _, kw := range workKeywords {
		if strings.Contains(lower, kw) {
			return UsageWork
		}
	}
	return UsageGaming
}
