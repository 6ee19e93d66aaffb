package builder

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractBudget(t *testing.T) {
	tests := []struct {
		name   string
		prompt string
		hint   float64
		want   float64
	}{
		{"digits in text", "我想配一台6000元的游戏主机", 0, 6000},
		{"first run wins", "预算8000，最多10000", 0, 8000},
		{"five digits", "打算花12000装机", 0, 12000},
		{"no digits, hint", "a quiet office machine", 7500, 7500},
		{"no digits, no hint", "something nice", 0, 6000},
		{"short runs ignored", "i7 with 32 GB ram", 0, 6000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractBudget(tt.prompt, tt.hint, 6000))
		})
	}
}

func TestDetectUsage(t *testing.T) {
	tests := []struct {
		name     string
		prompt   string
		explicit string
		want     Usage
	}{
		{"default gaming", "6000元装机", "", UsageGaming},
		{"office keyword", "办公用的电脑", "", UsageWork},
		{"coding keyword", "主要写代码", "", UsageWork},
		{"english design", "for design and editing work", "", UsageWork},
		{"obs keyword", "要用OBS推流", "", UsageStreaming},
		{"english stream", "I want to stream on twitch", "", UsageStreaming},
		{"explicit wins", "办公电脑", "gaming", UsageGaming},
		{"explicit invalid falls through", "直播机", "potato", UsageStreaming},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectUsage(tt.prompt, tt.explicit))
		})
	}
}

func TestCleanJSON(t *testing.T) {
	want := `{"items":{}}`
	assert.Equal(t, want, cleanJSON("```json\n{\"items\":{}}\n```"))
	assert.Equal(t, want, cleanJSON("```\n{\"items\":{}}\n```"))
	assert.Equal(t, want, cleanJSON("Sure, here you go: {\"items\":{}} hope it helps"))
	assert.Equal(t, want, cleanJSON(want))
}
