//go:build windows

package translator

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

// runLoginCapture on Windows runs the login with inherited stdio and no
// output capture; callers fall back to reading the native credential file
// the CLI writes.
func runLoginCapture(ctx context.Context, name string, args []string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec // Provider binary from the static registry
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s exited with error: %w", name, err)
	}
	return "", nil
}
