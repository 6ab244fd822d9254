// Package env exposes secrets from environment variables. It is read-only.
package env

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/bnema/taskdump/internal/domain"
	"github.com/bnema/taskdump/internal/ports"
)

var ErrReadOnly = errors.New("environment secret store is read-only")

type Store struct {
	vars   map[string]string
	lookup func(string) (string, bool)
}

var _ ports.SecretStore = (*Store)(nil)

// NewStore maps secret keys onto environment variable names.
func NewStore(vars map[string]string) *Store {
	copied := make(map[string]string, len(vars))
	for key, name := range vars {
		copied[key] = name
	}
	return &Store{vars: copied, lookup: os.LookupEnv}
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name, ok := s.vars[key]
	if !ok {
		return "", fmt.Errorf("env secret %q: %w", key, domain.ErrSecretNotFound)
	}
	value, ok := s.lookup(name)
	value = strings.TrimSpace(value)
	if !ok || value == "" {
		return "", fmt.Errorf("env secret %s: %w", name, domain.ErrSecretNotFound)
	}
	return value, nil
}

func (s *Store) Put(context.Context, string, string) error {
	return ErrReadOnly
}

func (s *Store) Delete(context.Context, string) error {
	return ErrReadOnly
}

// Variable reports the environment variable backing key, if any.
func (s *Store) Variable(key string) (string, bool) {
	name, ok := s.vars[key]
	return name, ok
}
