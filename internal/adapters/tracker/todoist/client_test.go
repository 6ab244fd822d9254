package todoist

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bnema/taskdump/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func newTestClient(server *httptest.Server) (*Client, *[]time.Duration) {
	var (
		mu    sync.Mutex
		waits []time.Duration
	)
	client := &Client{
		BaseURL:    server.URL + "/rest/v2",
		Token:      StaticToken("secret-token"),
		HTTPClient: server.Client(),
		Backoff:    100 * time.Millisecond,
		MaxBackoff: 2 * time.Second,
		sleep: func(_ context.Context, d time.Duration) error {
			mu.Lock()
			defer mu.Unlock()
			waits = append(waits, d)
			return nil
		},
	}
	return client, &waits
}

func TestCreateTaskSendsLabelPriorityAndParent(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rest/v2/tasks", r.URL.Path)
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("X-Request-Id"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		payload := gjson.ParseBytes(body)
		assert.Equal(t, "Pay rent", payload.Get("content").String())
		assert.Equal(t, `["2min"]`, payload.Get("labels").Raw)
		assert.Equal(t, int64(4), payload.Get("priority").Int(), "P1 maps to the most urgent API value")
		assert.Equal(t, "parent-7", payload.Get("parent_id").String())

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"8123","content":"Pay rent","labels":["2min"],"parent_id":"parent-7"}`))
	}))
	t.Cleanup(server.Close)

	client, _ := newTestClient(server)
	task, err := client.CreateTask(context.Background(), domain.TrackerTaskInput{
		Content:       "Pay rent",
		DurationLabel: "2min",
		ParentRef:     "parent-7",
		Priority:      domain.PriorityP1,
	})

	require.NoError(t, err)
	assert.Equal(t, domain.TrackerTask{Ref: "8123", Content: "Pay rent", Labels: []string{"2min"}, ParentRef: "parent-7"}, task)
}

func TestCreateTaskOmitsUnsetFields(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		payload := gjson.ParseBytes(body)
		assert.False(t, payload.Get("priority").Exists())
		assert.False(t, payload.Get("parent_id").Exists())
		assert.Equal(t, "[]", payload.Get("labels").Raw)

		_, _ = w.Write([]byte(`{"id":"1","content":"plan offsite"}`))
	}))
	t.Cleanup(server.Close)

	client, _ := newTestClient(server)
	task, err := client.CreateTask(context.Background(), domain.TrackerTaskInput{Content: "plan offsite"})

	require.NoError(t, err)
	assert.Equal(t, "1", task.Ref)
}

func TestCreateTaskRetriesRateLimitAndServerErrors(t *testing.T) {
	t.Parallel()

	var (
		calls      atomic.Int32
		requestIDs sync.Map
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestIDs.Store(r.Header.Get("X-Request-Id"), struct{}{})
		switch calls.Add(1) {
		case 1:
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.WriteHeader(http.StatusBadGateway)
		default:
			_, _ = w.Write([]byte(`{"id":"42","content":"email Aaron"}`))
		}
	}))
	t.Cleanup(server.Close)

	client, waits := newTestClient(server)
	task, err := client.CreateTask(context.Background(), domain.TrackerTaskInput{Content: "email Aaron"})

	require.NoError(t, err)
	assert.Equal(t, "42", task.Ref)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []time.Duration{time.Second, 200 * time.Millisecond}, *waits, "Retry-After first, then exponential backoff")

	distinct := 0
	requestIDs.Range(func(_, _ any) bool { distinct++; return true })
	assert.Equal(t, 1, distinct, "retries reuse the request id")
}

func TestCreateTaskGivesUpAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("maintenance"))
	}))
	t.Cleanup(server.Close)

	client, _ := newTestClient(server)
	client.MaxAttempts = 2
	_, err := client.CreateTask(context.Background(), domain.TrackerTaskInput{Content: "x"})

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	assert.Equal(t, "maintenance", statusErr.Message)
	assert.Equal(t, int32(2), calls.Load())
	assert.False(t, errors.Is(err, domain.ErrTrackerOffline))
}

func TestCreateTaskDoesNotRetryClientErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	t.Cleanup(server.Close)

	client, waits := newTestClient(server)
	_, err := client.CreateTask(context.Background(), domain.TrackerTaskInput{Content: "x"})

	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Empty(t, *waits)
}

func TestCreateTaskMapsDialFailureToOffline(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	client, _ := newTestClient(server)
	server.Close()

	_, err := client.CreateTask(context.Background(), domain.TrackerTaskInput{Content: "x"})

	require.ErrorIs(t, err, domain.ErrTrackerOffline)
}

func TestCreateTaskAppliesRequestTimeoutUnderLongerCallerDeadline(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	t.Cleanup(server.Close)

	client, _ := newTestClient(server)
	client.RequestTimeout = 50 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
	defer cancel()

	started := time.Now()
	_, err := client.CreateTask(ctx, domain.TrackerTaskInput{Content: "x"})

	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(started), 2*time.Second)
}

func TestCreateTaskWithoutToken(t *testing.T) {
	t.Parallel()

	client := &Client{BaseURL: "https://example.com/rest/v2/", Token: StaticToken(" ")}
	_, err := client.CreateTask(context.Background(), domain.TrackerTaskInput{Content: "x"})

	require.ErrorIs(t, err, domain.ErrSecretNotFound)
}

func TestUpdateTaskReplacesDurationLabel(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v2/tasks/99", r.URL.Path)
		switch r.Method {
		case http.MethodGet:
			_, _ = w.Write([]byte(`{"id":"99","content":"review contract","labels":["work","30+min"]}`))
		case http.MethodPost:
			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			payload := gjson.ParseBytes(body)
			assert.Equal(t, `["work","2min"]`, payload.Get("labels").Raw)
			assert.False(t, payload.Get("content").Exists())
			_, _ = w.Write([]byte(`{"id":"99","content":"review contract","labels":["work","2min"]}`))
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	}))
	t.Cleanup(server.Close)

	client, _ := newTestClient(server)
	task, err := client.UpdateTask(context.Background(), "99", domain.TrackerTaskUpdate{DurationLabel: domain.StringPtr("2min")})

	require.NoError(t, err)
	assert.Equal(t, []string{"work", "2min"}, task.Labels)
}

func TestBuildAPIURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		base    string
		want    string
		wantErr bool
	}{
		{name: "trailing slash", base: "https://api.todoist.com/rest/v2/", want: "https://api.todoist.com/rest/v2/tasks"},
		{name: "no trailing slash", base: "https://api.todoist.com/rest/v2", want: "https://api.todoist.com/rest/v2/tasks"},
		{name: "bad scheme", base: "ftp://api.todoist.com/", wantErr: true},
		{name: "no host", base: "https:///rest", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildAPIURL(tt.base, "tasks")
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
