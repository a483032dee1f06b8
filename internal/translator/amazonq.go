package translator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ljyou001/multicoder/internal/credential"
	"github.com/ljyou001/multicoder/internal/provider"
)

// AmazonQ auth option ids.
const amazonQOptionSSO = "sso"

// AmazonQ is detection-only: the q CLI owns its credential files and the
// AWS SSO cache, so there is no managed write path. Login is fully
// delegated to the CLI subprocess and success is verified by scanning for
// a fresh token afterwards.
type AmazonQ struct {
	base
}

// NewAmazonQ creates the Amazon Q translator.
func NewAmazonQ(deps Deps) *AmazonQ {
	return &AmazonQ{base: newBase(deps, provider.AmazonQ)}
}

// Options lists Amazon Q's auth options.
func (t *AmazonQ) Options() []AuthOption {
	return []AuthOption{
		{ID: amazonQOptionSSO, Name: "AWS Builder ID / SSO", Description: "Sign in through the q CLI's own login flow"},
	}
}

// Authenticate runs `q login` and verifies a usable token exists
// afterwards. Nothing is stored: resolution always reads the CLI's own
// state.
func (t *AmazonQ) Authenticate(ctx context.Context, optionID, _ string) error {
	if optionID != amazonQOptionSSO {
		return fmt.Errorf("unknown auth option for amazonq: %s", optionID)
	}
	if err := runProviderLogin(ctx, t.deps.Executor, t.desc); err != nil {
		return err
	}
	if _, ok := t.detectToken(time.Now()); !ok {
		return errors.New("q login finished but no valid Amazon Q credential was found")
	}
	return nil
}

// Apply has nothing to materialize for native credentials; only
// environment-variable records carry state this tool owns.
func (t *AmazonQ) Apply(_ context.Context, profileName string, rec *credential.Record) (ApplyResult, error) {
	if rec.Classify() == credential.KindEnvVar {
		return t.applyEnvRecord(rec)
	}
	return ApplyResult{}, fmt.Errorf(
		"amazonq credentials are managed by the q CLI; run 'q login' to authenticate (profile %s)", profileName)
}

// Logout removes any managed record; the CLI's own signed-in state is
// left for `q logout` to handle.
func (t *AmazonQ) Logout(_ context.Context, profileName string) error {
	if err := t.clearProviderEnv(); err != nil {
		return err
	}
	return t.deps.Creds.Clear(t.desc.ID, profileName)
}

// detectToken scans the candidate credential files and then the SSO cache
// for the first non-expired, token-bearing entry.
func (t *AmazonQ) detectToken(now time.Time) (string, bool) {
	for _, path := range t.desc.CandidateCredentialPaths {
		if amazonQTokenValid(path, now) {
			return path, true
		}
	}

	entries, err := os.ReadDir(t.desc.OAuthCacheDir)
	if err != nil {
		return "", false
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		path := filepath.Join(t.desc.OAuthCacheDir, name)
		if amazonQTokenValid(path, now) {
			return path, true
		}
	}
	return "", false
}

// amazonQTokenValid reports whether a file holds a token that has not
// expired. Unreadable or malformed files are simply not matches.
func amazonQTokenValid(path string, now time.Time) bool {
	data, err := os.ReadFile(path) //nolint:gosec // Provider-owned path
	if err != nil {
		return false
	}

	var doc struct {
		AccessToken string `json:"accessToken"`
		ExpiresAt   string `json:"expiresAt"`
	}
	if err := json.Unmarshal(data, &doc); err != nil || doc.AccessToken == "" {
		return false
	}
	if doc.ExpiresAt == "" {
		return true
	}
	expiry, err := time.Parse(time.RFC3339, doc.ExpiresAt)
	if err != nil {
		return false
	}
	return expiry.After(now)
}
