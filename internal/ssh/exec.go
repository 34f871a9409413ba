package ssh

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/ssh"
)

// RemoteCommandError reports a command that reached the remote host but
// exited non-zero. Output carries the raw combined stdout/stderr for
// diagnostics; the caller decides what, if anything, to parse out of it.
type RemoteCommandError struct {
	Command  string
	ExitCode int
	Output   string
}

func (e *RemoteCommandError) Error() string {
	out := strings.TrimSpace(e.Output)
	if out == "" {
		return fmt.Sprintf("remote command failed (exit %d): %s", e.ExitCode, e.Command)
	}
	return fmt.Sprintf("remote command failed (exit %d): %s: %s", e.ExitCode, e.Command, out)
}

// Run executes one command on a fresh exec channel over the persistent
// connection and returns its combined output. Each command gets its own
// channel, so the exit status is structural rather than parsed out of
// the output text. Cancelling the context closes the channel, which
// unblocks the wait but cannot abort work already started remotely.
func (c *Client) Run(ctx context.Context, command string) (string, error) {
	if c == nil || c.conn == nil {
		return "", fmt.Errorf("ssh client not connected")
	}

	session, err := c.conn.NewSession()
	if err != nil {
		return "", fmt.Errorf("failed to open exec channel: %w", err)
	}
	defer session.Close()

	type execResult struct {
		output []byte
		err    error
	}

	done := make(chan execResult, 1)
	go func() {
		output, err := session.CombinedOutput(command)
		done <- execResult{output: output, err: err}
	}()

	select {
	case <-ctx.Done():
		session.Close()
		<-done
		return "", ctx.Err()
	case res := <-done:
		output := string(res.output)
		if res.err != nil {
			var exitErr *ssh.ExitError
			if errors.As(res.err, &exitErr) {
				return output, &RemoteCommandError{
					Command:  command,
					ExitCode: exitErr.ExitStatus(),
					Output:   output,
				}
			}
			return output, fmt.Errorf("remote command %q: %w", command, res.err)
		}
		return output, nil
	}
}
