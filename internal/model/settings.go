package model

// SettingsKeyAI is the settings-store key holding the AISettings document.
const SettingsKeyAI = "ai"

// AISettings is the admin-managed completion-service configuration. The HTTP
// layer reads it once per generation request and hands it to the builder at
// construction; the builder itself never queries settings state.
type AISettings struct {
	Enabled bool   `json:"enabled"`
	APIKey  string `json:"apiKey"`
	BaseURL string `json:"baseUrl,omitempty"`
	Model   string `json:"model"`
}

// Configured reports whether the completion service can be called at all.
func (s AISettings) Configured() bool {
	return s.Enabled && s.APIKey != ""
}
