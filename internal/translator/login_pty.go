//go:build !windows

package translator

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/creack/pty"
	"golang.org/x/term"
)

// runLoginCapture runs a provider CLI login over a PTY, mirroring its
// interface to the user while capturing the output for token extraction.
// Some provider CLIs (Claude's Ink UI in particular) require a real TTY.
func runLoginCapture(ctx context.Context, name string, args []string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec // Provider binary from the static registry

	ptmx, err := pty.Start(cmd)
	if err != nil {
		return "", fmt.Errorf("start pty: %w", err)
	}
	defer ptmx.Close()

	// Handle PTY size changes
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGWINCH)
	go func() {
		for range ch {
			_ = pty.InheritSize(os.Stdin, ptmx) //nolint:errcheck // Best-effort resize
		}
	}()
	ch <- syscall.SIGWINCH // Initial resize
	defer func() { signal.Stop(ch); close(ch) }()

	// Set stdin in raw mode so we pass through all keystrokes
	oldState, err := term.MakeRaw(int(os.Stdin.Fd()))
	if err != nil {
		return "", fmt.Errorf("set raw mode: %w", err)
	}
	defer func() { _ = term.Restore(int(os.Stdin.Fd()), oldState) }()

	// Buffer to capture output for token extraction
	var outputBuf bytes.Buffer

	// Copy stdin to the pty (user input)
	go func() {
		_, _ = io.Copy(ptmx, os.Stdin) //nolint:errcheck // Best-effort stdin forwarding
	}()

	// Copy pty output to both stdout (display) and our buffer (capture)
	_, _ = io.Copy(io.MultiWriter(os.Stdout, &outputBuf), ptmx) //nolint:errcheck // EOF expected

	if err := cmd.Wait(); err != nil {
		return "", fmt.Errorf("%s exited with error: %w", name, err)
	}

	return outputBuf.String(), nil
}
