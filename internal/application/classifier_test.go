package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bnema/taskdump/internal/domain"
	"github.com/bnema/taskdump/internal/parse"
	"github.com/bnema/taskdump/internal/ports"
	"github.com/bnema/taskdump/internal/ports/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func sampleTasks() []domain.ParsedTask {
	return parse.Preprocess("1) remind me to emial Aaron about invoice 2) review contracts - 30 minutes 3) plan offsite")
}

func TestClassifierRefinesTitlesAndKeepsDurations(t *testing.T) {
	model := mocks.NewMockTextModel(t)
	classifier := NewClassifier(model, nil, time.Second)
	tasks := sampleTasks()
	require.Len(t, tasks, 3)

	model.EXPECT().Complete(mockAnyContext(), mock.MatchedBy(func(req ports.CompletionRequest) bool {
		payload := gjson.Parse(req.User)
		return req.System == classifySystemPrompt &&
			payload.Get("tasks.#").Int() == 3 &&
			payload.Get("tasks.1.explicitMinutes").Int() == 30 &&
			payload.Get("tasks.1.matchedExpression").String() == "30 minutes" &&
			!payload.Get("tasks.2.explicitMinutes").Exists()
	})).Return("```json\n"+`{"tasks":[
		{"title":"Email Aaron about invoice","isProjectCandidate":false,"durationBucket":"LONG","explicitMinutes":99},
		{"title":"Review contracts","isProjectCandidate":false},
		{"title":"Plan offsite","isProjectCandidate":true}
	]}`+"\n```", nil)

	got := classifier.Classify(context.Background(), tasks)

	require.False(t, got.Degraded)
	require.Len(t, got.Tasks, 3)
	assert.Equal(t, "Email Aaron about invoice", got.Tasks[0].Title)
	assert.Equal(t, "Review contracts", got.Tasks[1].Title)
	assert.Equal(t, "Plan offsite", got.Tasks[2].Title)

	for i := range tasks {
		assert.Equal(t, tasks[i].DurationBucket, got.Tasks[i].DurationBucket, "bucket of task %d", i+1)
		assert.Equal(t, tasks[i].ExplicitMinutes, got.Tasks[i].ExplicitMinutes, "minutes of task %d", i+1)
	}
	assert.False(t, got.Tasks[0].IsProjectCandidate)
	assert.True(t, got.Tasks[1].IsProjectCandidate, "LONG tasks stay project candidates")
	assert.True(t, got.Tasks[2].IsProjectCandidate)
}

func TestClassifierKeepsParserTitleWhenModelReinsertsDuration(t *testing.T) {
	model := mocks.NewMockTextModel(t)
	classifier := NewClassifier(model, nil, time.Second)
	tasks := parse.Preprocess("review contracts - 30 minutes")

	model.EXPECT().Complete(mockAnyContext(), mock.Anything).
		Return(`[{"title":"Review contracts (30 minutes)","isProjectCandidate":true}]`, nil)

	got := classifier.Classify(context.Background(), tasks)

	require.False(t, got.Degraded)
	assert.Equal(t, "review contracts", got.Tasks[0].Title)
}

func TestClassifierFallback(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		err   error
	}{
		{name: "call error", err: errors.New("connection refused")},
		{name: "timeout", err: context.DeadlineExceeded},
		{name: "not json", reply: "Sure! Here are your tasks."},
		{name: "length mismatch", reply: `{"tasks":[{"title":"only one"}]}`},
		{name: "empty title", reply: `{"tasks":[{"title":"a"},{"title":"  "},{"title":"c"}]}`},
		{name: "element not an object", reply: `{"tasks":["a","b","c"]}`},
		{name: "flag not boolean", reply: `{"tasks":[{"title":"a"},{"title":"b","isProjectCandidate":"yes"},{"title":"c"}]}`},
		{name: "missing array", reply: `{"items":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := mocks.NewMockTextModel(t)
			classifier := NewClassifier(model, nil, time.Second)
			tasks := sampleTasks()

			model.EXPECT().Complete(mockAnyContext(), mock.Anything).Return(tt.reply, tt.err)

			got := classifier.Classify(context.Background(), tasks)

			assert.True(t, got.Degraded)
			assert.NotEmpty(t, got.Reason)
			require.Len(t, got.Tasks, len(tasks))
			for i := range tasks {
				assert.Equal(t, tasks[i].Title, got.Tasks[i].Title)
				assert.Equal(t, tasks[i].DurationBucket, got.Tasks[i].DurationBucket)
				assert.Equal(t, tasks[i].DurationBucket == domain.BucketLong, got.Tasks[i].IsProjectCandidate)
			}
		})
	}
}

func TestClassifierWithoutModelDegrades(t *testing.T) {
	classifier := NewClassifier(nil, nil, 0)

	got := classifier.Classify(context.Background(), sampleTasks())

	assert.True(t, got.Degraded)
	assert.Len(t, got.Tasks, 3)
}

func TestClassifierAppliesTimeout(t *testing.T) {
	model := mocks.NewMockTextModel(t)
	classifier := NewClassifier(model, nil, 20*time.Millisecond)

	model.EXPECT().Complete(mockAnyContext(), mock.Anything).
		RunAndReturn(func(ctx context.Context, _ ports.CompletionRequest) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		})

	got := classifier.Classify(context.Background(), sampleTasks())

	assert.True(t, got.Degraded)
	assert.Contains(t, got.Reason, "deadline exceeded")
}

func TestClassifierBreakdown(t *testing.T) {
	model := mocks.NewMockTextModel(t)
	classifier := NewClassifier(model, nil, time.Second)
	parent := parse.PreprocessLine("launch newsletter p2 - 2 hours")

	model.EXPECT().Complete(mockAnyContext(), mock.MatchedBy(func(req ports.CompletionRequest) bool {
		return req.System == breakdownSystemPrompt && gjson.Get(req.User, "task.title").String() == "launch newsletter"
	})).Return(`{"subtasks":[
		{"title":"Research competitor newsletters","minutes":30},
		{"title":"Draft first issue","minutes":45},
		{"title":"Review draft with Sam","durationBucket":"SHORT"},
		"Finalize and schedule send 5 min"
	]}`, nil)

	subtasks, err := classifier.Breakdown(context.Background(), parent)

	require.NoError(t, err)
	require.Len(t, subtasks, 4)
	assert.Equal(t, "Research competitor newsletters", subtasks[0].Title)
	assert.Equal(t, domain.BucketLong, subtasks[0].DurationBucket)
	assert.Equal(t, domain.BucketShort, subtasks[2].DurationBucket)
	assert.Equal(t, "Finalize and schedule send", subtasks[3].Title)
	assert.Equal(t, domain.BucketQuick, subtasks[3].DurationBucket)
	for _, subtask := range subtasks {
		assert.Empty(t, subtask.Subtasks)
		assert.False(t, subtask.IsProjectCandidate)
		assert.Equal(t, domain.PriorityP2, subtask.Priority)
	}
}

func TestClassifierBreakdownFailures(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		err   error
	}{
		{name: "call error", err: errors.New("boom")},
		{name: "empty list", reply: `{"subtasks":[]}`},
		{name: "too few", reply: `{"subtasks":[{"title":"a"},{"title":"b"}]}`},
		{name: "garbage", reply: "no idea"},
		{name: "blank title", reply: `{"subtasks":[{"title":"a"},{"title":""},{"title":"c"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := mocks.NewMockTextModel(t)
			classifier := NewClassifier(model, nil, time.Second)
			model.EXPECT().Complete(mockAnyContext(), mock.Anything).Return(tt.reply, tt.err)

			_, err := classifier.Breakdown(context.Background(), parse.PreprocessLine("write grant - 3 hours"))

			require.ErrorIs(t, err, domain.ErrBreakdownFailed)
		})
	}
}

func TestClassifierBreakdownCapsAtSix(t *testing.T) {
	model := mocks.NewMockTextModel(t)
	classifier := NewClassifier(model, nil, time.Second)
	model.EXPECT().Complete(mockAnyContext(), mock.Anything).
		Return(`["one thing","two thing","three thing","four thing","five thing","six thing","seven thing"]`, nil)

	subtasks, err := classifier.Breakdown(context.Background(), parse.PreprocessLine("move house"))

	require.NoError(t, err)
	assert.Len(t, subtasks, 6)
}
