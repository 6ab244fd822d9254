package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucketForMinutes(t *testing.T) {
	tests := []struct {
		name    string
		minutes int
		want    DurationBucket
	}{
		{name: "zero has no bucket", minutes: 0, want: BucketNone},
		{name: "one minute", minutes: 1, want: BucketQuick},
		{name: "quick upper bound", minutes: 5, want: BucketQuick},
		{name: "short lower bound", minutes: 6, want: BucketShort},
		{name: "short upper bound", minutes: 15, want: BucketShort},
		{name: "long lower bound", minutes: 16, want: BucketLong},
		{name: "hours", minutes: 120, want: BucketLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BucketForMinutes(tt.minutes))
		})
	}
}

func TestBucketLabels(t *testing.T) {
	assert.Equal(t, "2min", BucketQuick.Label())
	assert.Equal(t, "10min", BucketShort.Label())
	assert.Equal(t, "30+min", BucketLong.Label())
	assert.Equal(t, "", BucketNone.Label())
}

func TestParsedTaskWithDurationFlagsLongTasks(t *testing.T) {
	task := ParsedTask{Title: "review contracts", DurationBucket: BucketShort}

	updated := task.WithDuration(45)

	minutes, ok := updated.Minutes()
	require.True(t, ok)
	assert.Equal(t, 45, minutes)
	assert.Equal(t, BucketLong, updated.DurationBucket)
	assert.True(t, updated.IsProjectCandidate)
	assert.Equal(t, BucketShort, task.DurationBucket)
}

func TestParsedTaskValidateRejectsNestedSubtasks(t *testing.T) {
	task := ParsedTask{
		Title: "launch site",
		Subtasks: []ParsedTask{
			{Title: "research", Subtasks: []ParsedTask{{Title: "too deep"}}},
		},
	}

	err := task.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nested subtasks")
}

func TestCloneTasksDoesNotShareMinutes(t *testing.T) {
	original := []ParsedTask{{Title: "email team", ExplicitMinutes: IntPtr(2)}}

	cloned := CloneTasks(original)
	*cloned[0].ExplicitMinutes = 10

	assert.Equal(t, 2, *original[0].ExplicitMinutes)
}

func TestSessionStatusTransitions(t *testing.T) {
	assert.True(t, SessionPending.CanTransition(SessionAccepted))
	assert.True(t, SessionPending.CanTransition(SessionDiscarded))
	assert.True(t, SessionAccepted.CanTransition(SessionPushed))
	assert.True(t, SessionAccepted.CanTransition(SessionPending))
	assert.False(t, SessionPushed.CanTransition(SessionPending))
	assert.False(t, SessionDiscarded.CanTransition(SessionPending))
	assert.False(t, SessionDiscarded.CanTransition(SessionPushed))
	assert.True(t, SessionPushed.Terminal())
	assert.True(t, SessionDiscarded.Terminal())
	assert.True(t, SessionPending.Resumable())
	assert.True(t, SessionAccepted.Resumable())
	assert.False(t, SessionPushed.Resumable())
	assert.False(t, SessionDiscarded.Resumable())
	assert.False(t, SessionPending.Terminal())
}

func TestSessionTaskIsOneBased(t *testing.T) {
	session := Session{Tasks: []ParsedTask{{Title: "a"}, {Title: "b"}}}

	task, err := session.Task(2)
	require.NoError(t, err)
	assert.Equal(t, "b", task.Title)

	_, err = session.Task(3)
	require.ErrorIs(t, err, ErrTaskNotFound)
	_, err = session.Task(0)
	require.ErrorIs(t, err, ErrTaskNotFound)
}

func TestContentHashIsStableAndScoped(t *testing.T) {
	one := ContentHash("s-1", "email team", BucketShort)
	again := ContentHash("s-1", "email team", BucketShort)
	otherSession := ContentHash("s-2", "email team", BucketShort)
	otherBucket := ContentHash("s-1", "email team", BucketQuick)

	assert.Equal(t, one, again)
	assert.NotEqual(t, one, otherSession)
	assert.NotEqual(t, one, otherBucket)
	assert.Len(t, one, 64)
}

func TestConversationContextApplyIsMergePatch(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ctx := ConversationContext{
		UserID:        "u-1",
		ChannelID:     "c-1",
		LastIntent:    IntentOrganize,
		LastTaskTitle: "email team",
		LastTopic:     "invoices",
		UpdatedAt:     start,
	}

	later := start.Add(5 * time.Minute)
	updated := ctx.Apply(ContextPatch{LastIntent: IntentPtr(IntentAccept), LastCreatedTaskRef: StringPtr("ext-9")}, later)

	assert.Equal(t, IntentAccept, updated.LastIntent)
	assert.Equal(t, "ext-9", updated.LastCreatedTaskRef)
	assert.Equal(t, "email team", updated.LastTaskTitle)
	assert.Equal(t, "invoices", updated.LastTopic)
	assert.Equal(t, later, updated.UpdatedAt)
}

func TestConversationContextExpiry(t *testing.T) {
	updated := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ctx := ConversationContext{UpdatedAt: updated}

	assert.False(t, ctx.Expired(updated.Add(30*time.Minute), DefaultContextTTL))
	assert.True(t, ctx.Expired(updated.Add(31*time.Minute), DefaultContextTTL))
	assert.True(t, ctx.Expired(updated.Add(31*time.Minute), 0))
}
