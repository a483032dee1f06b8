package credstore

import (
	"encoding/json"
	"os"
	"time"

	"github.com/ljyou001/multicoder/internal/credential"
	"github.com/ljyou001/multicoder/internal/provider"
)

// Expiry extraction is provider-specific and computed once at resolution
// time, never cached across calls. A payload with no recognizable expiry
// field is treated as non-expiring (0).

// recordExpiry extracts the expiry from a managed record. Only OAuth
// payloads carry one; API keys and env-var bindings do not expire.
func recordExpiry(providerID string, rec *credential.Record) int64 {
	if rec.Classify() != credential.KindOAuth {
		return 0
	}
	return extractExpiry(providerID, rec.OAuthTokens)
}

// fileExpiry extracts the expiry from a native credential file. Read and
// parse failures yield 0: during resolution a bad file is simply a
// credential with unknown expiry.
func fileExpiry(providerID, path string) int64 {
	data, err := os.ReadFile(path) //nolint:gosec // Provider-owned path from the static registry
	if err != nil {
		return 0
	}
	return extractExpiry(providerID, data)
}

// extractExpiry parses a provider's credential payload for its expiry,
// normalized to epoch milliseconds.
func extractExpiry(providerID string, data []byte) int64 {
	switch providerID {
	case provider.Claude:
		// OAuth envelope nests the expiry under "oauth".
		var payload struct {
			OAuth struct {
				ExpiresAt int64 `json:"expiresAt"`
			} `json:"oauth"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			return 0
		}
		return payload.OAuth.ExpiresAt

	case provider.Gemini:
		// Native cache exposes a millisecond Unix timestamp.
		var payload struct {
			ExpiryDate int64 `json:"expiry_date"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			return 0
		}
		return payload.ExpiryDate

	case provider.Codex:
		// Direct expiresAt on the payload.
		var payload struct {
			ExpiresAt int64 `json:"expiresAt"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			return 0
		}
		return payload.ExpiresAt

	case provider.AmazonQ:
		// AWS-SSO-style cache stores an ISO-8601 string.
		var payload struct {
			ExpiresAt string `json:"expiresAt"`
		}
		if err := json.Unmarshal(data, &payload); err != nil || payload.ExpiresAt == "" {
			return 0
		}
		ts, err := time.Parse(time.RFC3339, payload.ExpiresAt)
		if err != nil {
			return 0
		}
		return ts.UnixMilli()

	default:
		return 0
	}
}
