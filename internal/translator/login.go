package translator

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ljyou001/multicoder/internal/exec"
	"github.com/ljyou001/multicoder/internal/provider"
	"github.com/ljyou001/multicoder/internal/spinner"
)

// OAuth cache polling: the provider CLI writes its cache file at an
// unpredictable moment after the browser flow completes, so we poll with
// a hard timeout rather than block indefinitely.
const (
	cachePollTimeout  = 30 * time.Second
	cachePollInterval = 500 * time.Millisecond
)

// runProviderLogin spawns the provider CLI's own login flow with inherited
// stdio so the user can drive it (including Ctrl-C). Success is inferred
// only from a zero exit code; callers verify the expected native file
// afterwards.
func runProviderLogin(ctx context.Context, executor exec.Executor, desc provider.Descriptor) error {
	if _, err := executor.LookPath(desc.Binary); err != nil {
		return fmt.Errorf("%s CLI not found in PATH: install %s first: %w",
			desc.Binary, desc.DisplayName, err)
	}

	_, err := executor.Run(ctx, exec.RunOptions{
		Name:        desc.Binary,
		Args:        desc.LoginArgs,
		Interactive: true,
	})
	if err != nil {
		return fmt.Errorf("%s login failed: %w", desc.DisplayName, err)
	}
	return nil
}

// pollForFile waits for a file to appear, checking every interval until
// the timeout, then fails with an explicit error rather than hanging. A
// spinner shows progress while waiting.
func pollForFile(ctx context.Context, path string, timeout, interval time.Duration) error {
	if fileExists(path) {
		return nil
	}

	sp := spinner.New(os.Stderr)
	go func() {
		_ = sp.Start() //nolint:errcheck // Display only
	}()
	fmt.Fprintf(sp.Writer(), "waiting for %s\n", path)
	defer sp.Stop()

	deadline := time.Now().Add(timeout)
	for {
		if fileExists(path) {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timed out after %s waiting for %s; the login may not have completed", timeout, path)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}
