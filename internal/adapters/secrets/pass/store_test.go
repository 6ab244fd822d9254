package pass

import (
	"context"
	"errors"
	"testing"

	"github.com/bnema/taskdump/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const keyName = "taskdump/openai/api_key"

const missingEntry = "Error: taskdump/openai/api_key is not in the password store."

// scripted answers each invocation with the next canned reply.
type scripted struct {
	t       *testing.T
	replies []reply
	calls   []invocation
}

type reply struct {
	stdout string
	stderr string
	err    error
}

func (s *scripted) store() *Store {
	return &Store{binary: "pass", run: s.run}
}

func (s *scripted) run(_ context.Context, binary string, inv invocation) (string, string, error) {
	assert.Equal(s.t, "pass", binary)
	s.calls = append(s.calls, inv)
	if len(s.replies) == 0 {
		s.t.Fatalf("unexpected pass call %v", inv.args)
	}
	next := s.replies[0]
	s.replies = s.replies[1:]
	return next.stdout, next.stderr, next.err
}

func TestStorePutInsertsSingleLineToken(t *testing.T) {
	t.Parallel()

	script := &scripted{t: t, replies: []reply{{}}}
	require.NoError(t, script.store().Put(context.Background(), keyName, " sk-live\n"))

	require.Len(t, script.calls, 1)
	assert.Equal(t, []string{"insert", "--multiline", "--force", keyName}, script.calls[0].args)
	assert.Equal(t, "sk-live\n", script.calls[0].stdin)
}

func TestStorePutRejectsMultilineTokens(t *testing.T) {
	t.Parallel()

	script := &scripted{t: t}
	err := script.store().Put(context.Background(), keyName, "sk-live\nsecond")

	require.ErrorIs(t, err, ErrInvalidValue)
	assert.Empty(t, script.calls)
}

func TestStoreGet(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		reply       reply
		want        string
		wantErr     error
		errContains string
	}{
		{name: "first line", reply: reply{stdout: "sk-live\r\nurl: https://platform.openai.com\n"}, want: "sk-live"},
		{name: "missing entry", reply: reply{stderr: missingEntry, err: errors.New("exit status 1")}, wantErr: domain.ErrSecretNotFound},
		{name: "blank entry", reply: reply{stdout: "\nnotes\n"}, wantErr: domain.ErrSecretNotFound},
		{name: "decrypt failure", reply: reply{stderr: "gpg: decryption failed: No secret key", err: errors.New("exit status 2")}, errContains: "decryption failed"},
		{name: "not installed", reply: reply{err: ErrUnavailable}, wantErr: ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			script := &scripted{t: t, replies: []reply{tt.reply}}
			got, err := script.store().Get(context.Background(), keyName)

			require.Len(t, script.calls, 1)
			assert.Equal(t, []string{"show", keyName}, script.calls[0].args)
			assert.Empty(t, script.calls[0].stdin)

			switch {
			case tt.wantErr != nil:
				require.ErrorIs(t, err, tt.wantErr)
			case tt.errContains != "":
				var cmdErr *CommandError
				require.ErrorAs(t, err, &cmdErr)
				assert.Equal(t, "get", cmdErr.Op)
				assert.Equal(t, keyName, cmdErr.Key)
				assert.ErrorContains(t, err, tt.errContains)
				assert.False(t, errors.Is(err, domain.ErrSecretNotFound))
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestStoreDeleteIgnoresMissingEntry(t *testing.T) {
	t.Parallel()

	script := &scripted{t: t, replies: []reply{{}, {stderr: missingEntry, err: errors.New("exit status 1")}}}
	store := script.store()

	require.NoError(t, store.Delete(context.Background(), keyName))
	require.NoError(t, store.Delete(context.Background(), keyName))

	require.Len(t, script.calls, 2)
	assert.Equal(t, []string{"rm", "--force", keyName}, script.calls[1].args)
}

func TestStoreSkipsWorkOnCanceledContext(t *testing.T) {
	t.Parallel()

	script := &scripted{t: t}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := script.store().Get(ctx, keyName)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, script.calls)
}
