package settings

import (
	"errors"
	"strings"
)

// ErrNotConfigured means the backend base URL or credential is missing.
var ErrNotConfigured = errors.New("backend base URL and API key must be configured")

// Settings is the user-editable backend configuration.
type Settings struct {
	BaseURL         string `json:"baseUrl" validate:"omitempty,url"`
	APIKey          string `json:"apiKey"`
	MockMode        bool   `json:"mockMode"`
	RequireSelenium bool   `json:"requireSelenium"`

	// Client-credentials grant used instead of APIKey when TokenURL is set.
	TokenURL     string `json:"tokenUrl,omitempty" validate:"omitempty,url"`
	ClientID     string `json:"clientId,omitempty" validate:"required_with=TokenURL"`
	ClientSecret string `json:"clientSecret,omitempty" validate:"required_with=TokenURL"`
}

// UsesClientCredentials reports whether bearer tokens come from TokenURL.
func (s Settings) UsesClientCredentials() bool {
	return strings.TrimSpace(s.TokenURL) != ""
}

// Configured reports whether a backend call may be attempted.
func (s Settings) Configured() bool {
	if strings.TrimSpace(s.BaseURL) == "" {
		return false
	}
	if s.UsesClientCredentials() {
		return s.ClientID != "" && s.ClientSecret != ""
	}
	return strings.TrimSpace(s.APIKey) != ""
}

// Redacted returns a copy safe to show in a UI or log line.
func (s Settings) Redacted() Settings {
	s.APIKey = mask(s.APIKey)
	s.ClientSecret = mask(s.ClientSecret)
	return s
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}

// normalize trims whitespace and the trailing slash from BaseURL.
func (s Settings) normalize() Settings {
	s.BaseURL = strings.TrimRight(strings.TrimSpace(s.BaseURL), "/")
	s.APIKey = strings.TrimSpace(s.APIKey)
	s.TokenURL = strings.TrimSpace(s.TokenURL)
	s.ClientID = strings.TrimSpace(s.ClientID)
	return s
}
