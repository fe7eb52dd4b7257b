// Package executor implements the capability groups behind the router:
// kubernetes, system, security, and insights. Executors shell out to the
// operator's own CLI tooling so their output matches what a human would see.
package executor

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes an external command and returns its output. Tests swap it
// for a scripted fake.
type Runner func(ctx context.Context, name string, args ...string) (string, error)

// runCommand is the production Runner. Failure surfaces stderr as the
// error so the model sees what the tool actually printed.
func runCommand(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("%s: %s", name, msg)
	}

	out := stdout.String()
	if strings.TrimSpace(out) == "" {
		out = "(no output)"
	}
	return out, nil
}

func unsupported(group, op string) error {
	return fmt.Errorf("%s executor: unsupported operation %q", group, op)
}
