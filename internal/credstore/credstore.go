// Package credstore owns the managed credential files and the precedence
// rule deciding which credential is authoritative for a provider+profile
// pair: the profile's own managed copy always wins over whatever the
// provider's global CLI state currently is, so switching profiles is
// deterministic regardless of what the last `provider login` left behind.
package credstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/ljyou001/multicoder/internal/credential"
	"github.com/ljyou001/multicoder/internal/paths"
	"github.com/ljyou001/multicoder/internal/provider"
)

// Store resolves and persists managed credential records.
type Store struct {
	configDir string
	registry  *provider.Registry

	// now is overridable in tests.
	now func() time.Time
}

// New creates a credential store rooted at the given config directory.
func New(configDir string, registry *provider.Registry) *Store {
	return &Store{
		configDir: configDir,
		registry:  registry,
		now:       time.Now,
	}
}

// recordPath returns the main managed record file for a provider+profile.
func (s *Store) recordPath(providerID, profileName string) string {
	return paths.CredentialFile(s.configDir, providerID, profileName)
}

// envRecordPath returns the sibling environment-variable record file.
func (s *Store) envRecordPath(providerID, profileName string) string {
	return filepath.Join(s.configDir, paths.CredentialsDir, providerID, profileName+".env.json")
}

// Resolve decides which credential is authoritative for a provider and
// profile. Precedence, first match wins: the managed record, the
// provider's OAuth cache directory (most recent entry), then the
// provider's native credential file. Read and parse failures during
// resolution are swallowed so precedence falls through to the next
// source; returns credential.ErrNotFound when nothing matches.
func (s *Store) Resolve(providerID, profileName string) (*credential.Info, error) {
	desc, err := s.registry.Get(providerID)
	if err != nil {
		return nil, err
	}

	// 1. Managed record for this exact provider+profile.
	if info := s.resolveManaged(desc, profileName); info != nil {
		return info, nil
	}

	// 2. OAuth cache directory: lexicographically-last file is most recent.
	if info := s.resolveOAuthCache(desc, profileName); info != nil {
		return info, nil
	}

	// 3. The provider's single native credential file.
	if info := s.resolveNativeFile(desc, profileName); info != nil {
		return info, nil
	}

	return nil, fmt.Errorf("%w for provider %s, profile %s",
		credential.ErrNotFound, providerID, profileName)
}

func (s *Store) resolveManaged(desc provider.Descriptor, profileName string) *credential.Info {
	mainPath := s.recordPath(desc.ID, profileName)
	if rec, err := readRecord(mainPath); err == nil {
		return &credential.Info{
			Source:       credential.SourceManaged,
			LocationPath: mainPath,
			ProviderID:   desc.ID,
			ProfileName:  profileName,
			ExpiresAt:    recordExpiry(desc.ID, rec),
		}
	}

	envPath := s.envRecordPath(desc.ID, profileName)
	if rec, err := readRecord(envPath); err == nil && rec.Classify() == credential.KindEnvVar {
		return &credential.Info{
			Source:       credential.SourceEnv,
			LocationPath: envPath,
			EnvVarName:   rec.EnvVarName,
			ProviderID:   desc.ID,
			ProfileName:  profileName,
		}
	}
	return nil
}

func (s *Store) resolveOAuthCache(desc provider.Descriptor, profileName string) *credential.Info {
	if desc.OAuthCacheDir == "" {
		return nil
	}
	entries, err := os.ReadDir(desc.OAuthCacheDir)
	if err != nil {
		return nil
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return nil
	}
	sort.Strings(names)
	latest := filepath.Join(desc.OAuthCacheDir, names[len(names)-1])

	return &credential.Info{
		Source:       credential.SourceNative,
		LocationPath: latest,
		ProviderID:   desc.ID,
		ProfileName:  profileName,
		ExpiresAt:    fileExpiry(desc.ID, latest),
	}
}

func (s *Store) resolveNativeFile(desc provider.Descriptor, profileName string) *credential.Info {
	candidates := desc.CandidateCredentialPaths
	if desc.NativeCredentialPath != "" {
		candidates = append([]string{desc.NativeCredentialPath}, candidates...)
	}
	for _, path := range candidates {
		if info, err := os.Stat(path); err != nil || info.IsDir() {
			continue
		}
		return &credential.Info{
			Source:       credential.SourceNative,
			LocationPath: path,
			ProviderID:   desc.ID,
			ProfileName:  profileName,
			ExpiresAt:    fileExpiry(desc.ID, path),
		}
	}
	return nil
}

// IsValid reports whether a resolved credential is usable. Unknown expiry
// is treated as valid.
func (s *Store) IsValid(info *credential.Info) bool {
	return info.Valid(s.now())
}

// Load reads the managed record for a provider+profile. Unlike Resolve,
// parse failures here are surfaced: once a source has been chosen, silent
// fallback would apply the wrong credential.
func (s *Store) Load(providerID, profileName string) (*credential.Record, error) {
	if !s.registry.Has(providerID) {
		return nil, fmt.Errorf("%w: %s", provider.ErrUnknownProvider, providerID)
	}

	rec, err := readRecord(s.recordPath(providerID, profileName))
	if err == nil {
		return rec, nil
	}
	if os.IsNotExist(err) {
		if rec, envErr := readRecord(s.envRecordPath(providerID, profileName)); envErr == nil {
			return rec, nil
		}
		return nil, fmt.Errorf("%w for provider %s, profile %s",
			credential.ErrNotFound, providerID, profileName)
	}
	return nil, err
}

// Save persists a managed record, creating the per-provider directory with
// owner-only permissions. Overwrites unconditionally; callers warn users
// about overwrites. Environment-variable records go to the sibling file so
// they can coexist with a main record.
func (s *Store) Save(providerID, profileName string, rec *credential.Record) error {
	if !s.registry.Has(providerID) {
		return fmt.Errorf("%w: %s", provider.ErrUnknownProvider, providerID)
	}

	path := s.recordPath(providerID, profileName)
	if rec.Classify() == credential.KindEnvVar {
		path = s.envRecordPath(providerID, profileName)
	}

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create credential directory: %w", err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal credential record: %w", err)
	}
	return writeFileAtomic(path, data, 0o600)
}

// Clear deletes the main record and any sibling environment-variable
// record. Idempotent: clearing a provider+profile that has none is a no-op.
func (s *Store) Clear(providerID, profileName string) error {
	if !s.registry.Has(providerID) {
		return fmt.Errorf("%w: %s", provider.ErrUnknownProvider, providerID)
	}

	for _, path := range []string{
		s.recordPath(providerID, profileName),
		s.envRecordPath(providerID, profileName),
	} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove credential record: %w", err)
		}
	}
	return nil
}

// readRecord reads and parses a managed record file. The returned error is
// os.IsNotExist-compatible for a missing file.
func readRecord(path string) (*credential.Record, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Managed file under our config dir
	if err != nil {
		return nil, err
	}
	var rec credential.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", credential.ErrMalformed, path, err)
	}
	return &rec, nil
}

// writeFileAtomic writes via a temp file and rename so a crash mid-write
// cannot leave a truncated record.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".record-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if tmpPath != "" {
			os.Remove(tmpPath)
		}
	}()

	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write credential record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename credential record: %w", err)
	}
	tmpPath = ""
	return nil
}
