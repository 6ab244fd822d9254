// Package pass keeps API tokens in the user's password-store through the
// pass CLI.
package pass

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/bnema/taskdump/internal/domain"
	"github.com/bnema/taskdump/internal/ports"
)

const defaultBinary = "pass"

var (
	ErrUnavailable  = errors.New("pass command unavailable")
	ErrInvalidValue = errors.New("invalid secret value")
)

// CommandError is a pass invocation that exited with an error.
type CommandError struct {
	Op     string
	Key    string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("pass %s %q: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("pass %s %q: %v: %s", e.Op, e.Key, e.Err, e.Stderr)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// missing reports pass's answer for an entry that does not exist.
func (e *CommandError) missing() bool {
	return strings.Contains(e.Stderr, "is not in the password store")
}

type invocation struct {
	args  []string
	stdin string
}

type runner func(ctx context.Context, binary string, inv invocation) (stdout string, stderr string, err error)

type Store struct {
	binary string
	run    runner
}

var _ ports.SecretStore = (*Store)(nil)

func NewStore() *Store {
	return &Store{binary: defaultBinary, run: execPass}
}

// Put inserts or overwrites a single-line token.
func (s *Store) Put(ctx context.Context, key string, value string) error {
	value = strings.TrimSpace(value)
	if strings.ContainsAny(value, "\r\n") {
		return fmt.Errorf("%w: %s spans several lines", ErrInvalidValue, key)
	}

	_, err := s.call(ctx, "put", key, invocation{
		args:  []string{"insert", "--multiline", "--force", key},
		stdin: value + "\n",
	})
	return err
}

// Get returns the first line of the entry; later lines are pass metadata.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	stdout, err := s.call(ctx, "get", key, invocation{args: []string{"show", key}})
	if err != nil {
		var cmdErr *CommandError
		if errors.As(err, &cmdErr) && cmdErr.missing() {
			return "", fmt.Errorf("pass get %q: %w", key, domain.ErrSecretNotFound)
		}
		return "", err
	}

	line, _, _ := strings.Cut(stdout, "\n")
	if line = strings.TrimSpace(line); line == "" {
		return "", fmt.Errorf("pass get %q: %w", key, domain.ErrSecretNotFound)
	}
	return line, nil
}

// Delete removes the entry. A missing entry is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.call(ctx, "delete", key, invocation{args: []string{"rm", "--force", key}})
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) && cmdErr.missing() {
		return nil
	}
	return err
}

func (s *Store) call(ctx context.Context, op, key string, inv invocation) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	binary := s.binary
	if binary == "" {
		binary = defaultBinary
	}

	stdout, stderr, err := s.run(ctx, binary, inv)
	switch {
	case err == nil:
		return stdout, nil
	case errors.Is(err, ErrUnavailable):
		return "", err
	default:
		return "", &CommandError{Op: op, Key: key, Stderr: stderr, Err: err}
	}
}

func execPass(ctx context.Context, binary string, inv invocation) (string, string, error) {
	path, err := exec.LookPath(binary)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", "", ErrUnavailable
		}
		return "", "", fmt.Errorf("locate %s: %w", binary, err)
	}

	cmd := exec.CommandContext(ctx, path, inv.args...)
	if inv.stdin != "" {
		cmd.Stdin = strings.NewReader(inv.stdin)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	return stdout.String(), strings.TrimSpace(stderr.String()), err
}
