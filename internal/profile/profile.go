// Package profile maintains the durable registry of named profiles: each
// profile binds one or more providers to a credential source plus
// per-profile preferences, and the registry tracks which profile is
// current.
package profile

import (
	"errors"
	"time"

	"github.com/ljyou001/multicoder/internal/credential"
)

// Registry errors.
var (
	ErrNotFound      = errors.New("profile not found")
	ErrAlreadyExists = errors.New("profile already exists")
	ErrInvalidName   = errors.New("invalid profile name")
	ErrLockTimeout   = errors.New("timeout acquiring registry lock")
)

// PermissionMode controls how much autonomy a provider session gets.
type PermissionMode string

const (
	PermissionAsk  PermissionMode = "ask"
	PermissionAuto PermissionMode = "auto"
	PermissionDeny PermissionMode = "deny"
)

// Binding attaches a provider to a profile with its credential source.
type Binding struct {
	CredentialSource credential.Source `json:"credentialSource"`
	CredentialPath   string            `json:"credentialPath,omitempty"`
	LastAuth         *time.Time        `json:"lastAuth,omitempty"`

	// ExpiresAt is the binding's last known expiry as epoch
	// milliseconds, 0 when unknown.
	ExpiresAt int64 `json:"expiresAt,omitempty"`
}

// Record is one named profile. Names are case-sensitive unique keys.
type Record struct {
	Name           string             `json:"name"`
	Providers      map[string]Binding `json:"providers"`
	LastProvider   string             `json:"lastProvider,omitempty"`
	PermissionMode PermissionMode     `json:"permissionMode"`
	Model          string             `json:"model,omitempty"`
	CreatedAt      time.Time          `json:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt"`
	LastUsedAt     *time.Time         `json:"lastUsedAt,omitempty"`
}

// clone returns a deep copy so callers cannot mutate the store's view.
func (r Record) clone() Record {
	out := r
	if r.Providers != nil {
		out.Providers = make(map[string]Binding, len(r.Providers))
		for k, v := range r.Providers {
			out.Providers[k] = v
		}
	}
	return out
}
