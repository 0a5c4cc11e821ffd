package httpclient

import "net/http"

// AuthType identifies the authentication method.
type AuthType string

const (
	// AuthNone disables authentication.
	AuthNone AuthType = ""
	// AuthBearer sends "Authorization: Bearer <token>".
	AuthBearer AuthType = "bearer"
	// AuthAPIKey sends the token in a named header.
	AuthAPIKey AuthType = "api_key"
)

// DefaultAPIKeyHeader is used by AuthAPIKey when Header is empty.
const DefaultAPIKeyHeader = "X-API-Key"

// AuthConfig configures request authentication.
type AuthConfig struct {
	Type  AuthType `yaml:"type" mapstructure:"type" validate:"omitempty,oneof=bearer api_key"`
	Token string   `yaml:"token" mapstructure:"token"`
	// Header names the API key header (AuthAPIKey).
	Header string `yaml:"header" mapstructure:"header"`
}

// BearerAuth creates a bearer token auth config.
func BearerAuth(token string) *AuthConfig {
	return &AuthConfig{Type: AuthBearer, Token: token}
}

// APIKeyAuth creates an API key auth config with a custom header name.
func APIKeyAuth(key, header string) *AuthConfig {
	return &AuthConfig{Type: AuthAPIKey, Token: key, Header: header}
}

func (a *AuthConfig) apply(req *http.Request) {
	if a == nil || a.Token == "" {
		return
	}
	switch a.Type {
	case AuthBearer:
		req.Header.Set("Authorization", "Bearer "+a.Token)
	case AuthAPIKey:
		name := a.Header
		if name == "" {
			name = DefaultAPIKeyHeader
		}
		req.Header.Set(name, a.Token)
	}
}
