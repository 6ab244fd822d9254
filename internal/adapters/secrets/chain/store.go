// Package chain layers secret stores: reads take the first store that has
// the key, writes land in the first store that accepts them.
package chain

import (
	"context"
	"errors"
	"fmt"

	envstore "github.com/bnema/taskdump/internal/adapters/secrets/env"
	filestore "github.com/bnema/taskdump/internal/adapters/secrets/file"
	passstore "github.com/bnema/taskdump/internal/adapters/secrets/pass"
	"github.com/bnema/taskdump/internal/domain"
	"github.com/bnema/taskdump/internal/ports"
)

type Store struct {
	stores []ports.SecretStore
}

var _ ports.SecretStore = (*Store)(nil)

var (
	errNoStores = errors.New("secret chain needs at least one store")
	errNilStore = errors.New("secret store is nil")
)

func NewStore(stores ...ports.SecretStore) *Store {
	store, err := NewStoreChecked(stores...)
	if err != nil {
		panic(err)
	}

	return store
}

func NewStoreChecked(stores ...ports.SecretStore) (*Store, error) {
	if len(stores) == 0 {
		return nil, errNoStores
	}
	for i, store := range stores {
		if store == nil {
			return nil, fmt.Errorf("store %d: %w", i+1, errNilStore)
		}
	}

	return &Store{stores: append([]ports.SecretStore(nil), stores...)}, nil
}

// NewDefault reads environment variables first, then pass, then files
// under fileRoot. Writes go to pass and fall back to files.
func NewDefault(fileRoot string, envVars map[string]string) (*Store, error) {
	return NewStoreChecked(envstore.NewStore(envVars), passstore.NewStore(), filestore.NewStore(fileRoot))
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var errs []error
	for i, store := range s.stores {
		value, err := store.Get(ctx, key)
		if err == nil {
			return value, nil
		}
		if shouldStop(err) {
			return "", err
		}
		errs = append(errs, fmt.Errorf("backend %d: %w", i+1, err))
	}

	if allNotFound(errs) {
		return "", fmt.Errorf("secret %q: %w", key, domain.ErrSecretNotFound)
	}
	return "", fmt.Errorf("get secret %q: %w", key, errors.Join(errs...))
}

func (s *Store) Put(ctx context.Context, key string, value string) error {
	var errs []error
	for i, store := range s.stores {
		err := store.Put(ctx, key, value)
		if err == nil {
			return nil
		}
		if shouldStop(err) {
			return err
		}
		if errors.Is(err, envstore.ErrReadOnly) {
			continue
		}
		errs = append(errs, fmt.Errorf("backend %d: %w", i+1, err))
	}

	if len(errs) == 0 {
		return fmt.Errorf("put secret %q: no writable backend", key)
	}
	return fmt.Errorf("put secret %q: %w", key, errors.Join(errs...))
}

// Delete removes the key from every writable backend.
func (s *Store) Delete(ctx context.Context, key string) error {
	var errs []error
	for i, store := range s.stores {
		err := store.Delete(ctx, key)
		if err == nil || errors.Is(err, envstore.ErrReadOnly) {
			continue
		}
		if shouldStop(err) {
			return err
		}
		if errors.Is(err, passstore.ErrUnavailable) {
			continue
		}
		errs = append(errs, fmt.Errorf("backend %d: %w", i+1, err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("delete secret %q: %w", key, errors.Join(errs...))
	}
	return nil
}

func allNotFound(errs []error) bool {
	for _, err := range errs {
		if !errors.Is(err, domain.ErrSecretNotFound) && !errors.Is(err, passstore.ErrUnavailable) {
			return false
		}
	}
	return true
}

func shouldStop(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
