package chain

import (
	"context"
	"errors"
	"testing"

	envstore "github.com/bnema/taskdump/internal/adapters/secrets/env"
	passstore "github.com/bnema/taskdump/internal/adapters/secrets/pass"
	"github.com/bnema/taskdump/internal/domain"
	portmocks "github.com/bnema/taskdump/internal/ports/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const tokenKey = "taskdump/todoist/api_token"

func TestStoreGetUsesFirstStoreThatHasTheKey(t *testing.T) {
	t.Parallel()

	env := portmocks.NewMockSecretStore(t)
	pass := portmocks.NewMockSecretStore(t)
	file := portmocks.NewMockSecretStore(t)
	store := NewStore(env, pass, file)

	env.EXPECT().Get(mock.Anything, tokenKey).Return("", domain.ErrSecretNotFound).Once()
	pass.EXPECT().Get(mock.Anything, tokenKey).Return("from-pass", nil).Once()

	value, err := store.Get(context.Background(), tokenKey)
	require.NoError(t, err)
	assert.Equal(t, "from-pass", value)
}

func TestStoreGetFallsBackWhenPassIsUnavailable(t *testing.T) {
	t.Parallel()

	pass := portmocks.NewMockSecretStore(t)
	file := portmocks.NewMockSecretStore(t)
	store := NewStore(pass, file)

	pass.EXPECT().Get(mock.Anything, tokenKey).Return("", passstore.ErrUnavailable).Once()
	file.EXPECT().Get(mock.Anything, tokenKey).Return("from-file", nil).Once()

	value, err := store.Get(context.Background(), tokenKey)
	require.NoError(t, err)
	assert.Equal(t, "from-file", value)
}

func TestStoreGetReportsNotFoundWhenNoBackendHasTheKey(t *testing.T) {
	t.Parallel()

	pass := portmocks.NewMockSecretStore(t)
	file := portmocks.NewMockSecretStore(t)
	store := NewStore(pass, file)

	pass.EXPECT().Get(mock.Anything, tokenKey).Return("", passstore.ErrUnavailable).Once()
	file.EXPECT().Get(mock.Anything, tokenKey).Return("", domain.ErrSecretNotFound).Once()

	_, err := store.Get(context.Background(), tokenKey)
	require.ErrorIs(t, err, domain.ErrSecretNotFound)
}

func TestStoreGetReturnsCombinedErrorWhenBackendsFail(t *testing.T) {
	t.Parallel()

	pass := portmocks.NewMockSecretStore(t)
	file := portmocks.NewMockSecretStore(t)
	store := NewStore(pass, file)

	pass.EXPECT().Get(mock.Anything, tokenKey).Return("", errors.New("gpg failed")).Once()
	file.EXPECT().Get(mock.Anything, tokenKey).Return("", errors.New("permission denied")).Once()

	_, err := store.Get(context.Background(), tokenKey)
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrSecretNotFound))
	assert.ErrorContains(t, err, "backend 1: gpg failed")
	assert.ErrorContains(t, err, "backend 2: permission denied")
}

func TestStoreGetDoesNotFallbackOnCanceledContextError(t *testing.T) {
	t.Parallel()

	pass := portmocks.NewMockSecretStore(t)
	file := portmocks.NewMockSecretStore(t)
	store := NewStore(pass, file)

	pass.EXPECT().Get(mock.Anything, tokenKey).Return("", context.Canceled).Once()

	_, err := store.Get(context.Background(), tokenKey)
	require.ErrorIs(t, err, context.Canceled)
}

func TestStorePutSkipsReadOnlyAndFallsBack(t *testing.T) {
	t.Parallel()

	env := portmocks.NewMockSecretStore(t)
	pass := portmocks.NewMockSecretStore(t)
	file := portmocks.NewMockSecretStore(t)
	store := NewStore(env, pass, file)

	env.EXPECT().Put(mock.Anything, tokenKey, "secret").Return(envstore.ErrReadOnly).Once()
	pass.EXPECT().Put(mock.Anything, tokenKey, "secret").Return(passstore.ErrUnavailable).Once()
	file.EXPECT().Put(mock.Anything, tokenKey, "secret").Return(nil).Once()

	require.NoError(t, store.Put(context.Background(), tokenKey, "secret"))
}

func TestStorePutStopsAtFirstSuccess(t *testing.T) {
	t.Parallel()

	pass := portmocks.NewMockSecretStore(t)
	file := portmocks.NewMockSecretStore(t)
	store := NewStore(pass, file)

	pass.EXPECT().Put(mock.Anything, tokenKey, "secret").Return(nil).Once()

	require.NoError(t, store.Put(context.Background(), tokenKey, "secret"))
}

func TestStoreDeleteRemovesFromEveryWritableBackend(t *testing.T) {
	t.Parallel()

	env := portmocks.NewMockSecretStore(t)
	pass := portmocks.NewMockSecretStore(t)
	file := portmocks.NewMockSecretStore(t)
	store := NewStore(env, pass, file)

	env.EXPECT().Delete(mock.Anything, tokenKey).Return(envstore.ErrReadOnly).Once()
	pass.EXPECT().Delete(mock.Anything, tokenKey).Return(nil).Once()
	file.EXPECT().Delete(mock.Anything, tokenKey).Return(nil).Once()

	require.NoError(t, store.Delete(context.Background(), tokenKey))
}

func TestNewStoreCheckedRejectsEmptyAndNil(t *testing.T) {
	t.Parallel()

	_, err := NewStoreChecked()
	require.Error(t, err)

	_, err = NewStoreChecked(portmocks.NewMockSecretStore(t), nil)
	require.ErrorContains(t, err, "store 2")
}
