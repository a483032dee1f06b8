// Package provider holds the static registry of AI-provider descriptors.
// A descriptor records where a provider's own CLI keeps its native
// credential state and which environment variables it honors. Descriptors
// are pure configuration; all behavior lives in the translators.
package provider

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Provider identifiers.
const (
	Claude  = "claude"
	Gemini  = "gemini"
	Codex   = "codex"
	AmazonQ = "amazonq"
)

// ErrUnknownProvider is returned when a provider id is not registered.
var ErrUnknownProvider = errors.New("unknown provider")

// Descriptor describes one provider's native credential surface.
type Descriptor struct {
	// ID is the provider identifier (e.g. "claude").
	ID string

	// DisplayName is the human-readable provider name used in messages.
	DisplayName string

	// Binary is the provider's own CLI binary name.
	Binary string

	// LoginArgs are the arguments that start the provider CLI's own
	// OAuth login flow.
	LoginArgs []string

	// NativeCredentialPath is the provider's single native credential
	// file, if it has one. Empty when the provider only uses a cache dir.
	NativeCredentialPath string

	// OAuthCacheDir is a directory of cached OAuth material scanned
	// during resolution. Empty when unused.
	OAuthCacheDir string

	// CandidateCredentialPaths are additional native credential file
	// locations probed in order when NativeCredentialPath is absent.
	CandidateCredentialPaths []string

	// EnvVarPrimary is the environment variable the provider reads its
	// API key from.
	EnvVarPrimary string

	// EnvVarAlias is an alternate environment variable honored by the
	// provider, if any.
	EnvVarAlias string

	// SupportsAPIKey reports whether the provider accepts API-key auth.
	SupportsAPIKey bool

	// SupportsOAuth reports whether the provider accepts OAuth auth.
	SupportsOAuth bool
}

// EnvVarNames returns every environment variable name associated with the
// provider, primary first.
func (d Descriptor) EnvVarNames() []string {
	var names []string
	if d.EnvVarPrimary != "" {
		names = append(names, d.EnvVarPrimary)
	}
	if d.EnvVarAlias != "" {
		names = append(names, d.EnvVarAlias)
	}
	return names
}

// Registry is a lookup table of provider descriptors. It is constructed
// explicitly and passed to whatever needs it; there is no package-level
// shared instance.
type Registry struct {
	descriptors map[string]Descriptor
}

// NewRegistry builds the default registry with descriptors for all four
// supported providers, anchored at the user's home directory.
func NewRegistry() (*Registry, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("get home directory: %w", err)
	}
	return NewRegistryAt(home), nil
}

// NewRegistryAt builds the default registry with all native paths resolved
// relative to the given home directory. Split out for tests.
func NewRegistryAt(home string) *Registry {
	descriptors := []Descriptor{
		{
			ID:                   Claude,
			DisplayName:          "Claude Code",
			Binary:               "claude",
			LoginArgs:            []string{"setup-token"},
			NativeCredentialPath: filepath.Join(home, ".claude", ".credentials.json"),
			EnvVarPrimary:        "ANTHROPIC_API_KEY",
			EnvVarAlias:          "ANTHROPIC_AUTH_TOKEN",
			SupportsAPIKey:       true,
			SupportsOAuth:        true,
		},
		{
			ID:                   Gemini,
			DisplayName:          "Gemini CLI",
			Binary:               "gemini",
			LoginArgs:            nil,
			NativeCredentialPath: filepath.Join(home, ".gemini", "oauth_creds.json"),
			EnvVarPrimary:        "GEMINI_API_KEY",
			EnvVarAlias:          "GOOGLE_API_KEY",
			SupportsAPIKey:       true,
			SupportsOAuth:        true,
		},
		{
			ID:                   Codex,
			DisplayName:          "OpenAI Codex",
			Binary:               "codex",
			LoginArgs:            []string{"login"},
			NativeCredentialPath: filepath.Join(home, ".codex", "auth.json"),
			EnvVarPrimary:        "OPENAI_API_KEY",
			EnvVarAlias:          "OPENAI_BASE_URL",
			SupportsAPIKey:       true,
			SupportsOAuth:        true,
		},
		{
			ID:          AmazonQ,
			DisplayName: "Amazon Q",
			Binary:      "q",
			LoginArgs:   []string{"login"},
			CandidateCredentialPaths: []string{
				filepath.Join(home, ".aws", "amazonq", "cache", "credentials.json"),
				filepath.Join(home, ".local", "share", "amazon-q", "credentials.json"),
			},
			OAuthCacheDir: filepath.Join(home, ".aws", "sso", "cache"),
			SupportsOAuth: true,
		},
	}

	m := make(map[string]Descriptor, len(descriptors))
	for _, d := range descriptors {
		m[d.ID] = d
	}
	return &Registry{descriptors: m}
}

// Get returns the descriptor for a provider id.
// Returns ErrUnknownProvider if the id is not registered.
func (r *Registry) Get(id string) (Descriptor, error) {
	d, ok := r.descriptors[id]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrUnknownProvider, id)
	}
	return d, nil
}

// Has reports whether a provider id is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.descriptors[id]
	return ok
}

// IDs returns all registered provider ids in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.descriptors))
	for id := range r.descriptors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
