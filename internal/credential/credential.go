// Package credential defines the shared credential data model: the
// transient result of resolving a credential, the managed record format
// persisted per provider and profile, and the error taxonomy used across
// the resolution and application paths.
package credential

import (
	"encoding/json"
	"errors"
	"time"
)

// Sentinel errors for credential resolution and application.
var (
	// ErrNotFound means no credential could be resolved for a
	// provider+profile pair. Recoverable: re-authenticate.
	ErrNotFound = errors.New("no credential found")

	// ErrExpired means a credential resolved but is past its expiry.
	// Recoverable: re-authenticate.
	ErrExpired = errors.New("credential expired")

	// ErrMalformed means a credential file failed to parse. During
	// resolution this is treated as "not found"; during application it
	// is surfaced.
	ErrMalformed = errors.New("malformed credential file")
)

// Source identifies where a resolved credential came from.
type Source string

const (
	// SourceManaged is a credential copy owned by this tool.
	SourceManaged Source = "managed"

	// SourceNative is the provider CLI's own credential state.
	SourceNative Source = "native"

	// SourceEnv is a credential carried by an environment variable.
	SourceEnv Source = "env"
)

// Info is the result of resolving a credential. It is transient:
// recomputed on every resolution and never persisted.
type Info struct {
	Source       Source `json:"source"`
	LocationPath string `json:"locationPath,omitempty"`
	EnvVarName   string `json:"envVarName,omitempty"`
	ProviderID   string `json:"providerId"`
	ProfileName  string `json:"profileName"`

	// ExpiresAt is the expiry as epoch milliseconds, or 0 when unknown.
	ExpiresAt int64 `json:"expiresAt,omitempty"`
}

// Valid reports whether the credential is usable: an unknown expiry is
// treated as valid, otherwise the expiry must be in the future.
func (i Info) Valid(now time.Time) bool {
	if i.ExpiresAt == 0 {
		return true
	}
	return i.ExpiresAt > now.UnixMilli()
}

// Kind classifies the payload of a managed record.
type Kind string

const (
	// KindAPIKey is a record carrying a plain API key.
	KindAPIKey Kind = "api-key"

	// KindOAuth is a record carrying an OAuth token envelope.
	KindOAuth Kind = "oauth"

	// KindEnvVar is a record carrying an environment variable binding.
	KindEnvVar Kind = "env-var"

	// KindUnknown is a record with no recognizable payload.
	KindUnknown Kind = "unknown"
)

// Record is the managed credential persisted per (provider, profile).
// It is a discriminated union: exactly one of the API-key, OAuth, or
// env-var field groups should be populated. Classify reports which.
type Record struct {
	// API-key payload.
	APIKey  string `json:"apiKey,omitempty"`
	BaseURL string `json:"baseUrl,omitempty"`

	// OAuth payload, kept verbatim in the provider's own envelope shape.
	OAuthTokens json.RawMessage `json:"oauthTokens,omitempty"`

	// Environment-variable payload.
	EnvVarName  string `json:"envVarName,omitempty"`
	EnvVarValue string `json:"envVarValue,omitempty"`

	CreatedAt time.Time         `json:"createdAt"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Classify returns the record's payload kind. The checks are ordered so
// that a record accidentally carrying multiple payloads resolves the same
// way everywhere.
func (r *Record) Classify() Kind {
	switch {
	case r.APIKey != "":
		return KindAPIKey
	case len(r.OAuthTokens) > 0:
		return KindOAuth
	case r.EnvVarName != "":
		return KindEnvVar
	default:
		return KindUnknown
	}
}

// Meta returns a metadata value, or "" when absent.
func (r *Record) Meta(key string) string {
	if r.Metadata == nil {
		return ""
	}
	return r.Metadata[key]
}
