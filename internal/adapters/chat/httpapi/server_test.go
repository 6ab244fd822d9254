package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bnema/taskdump/internal/application"
	"github.com/bnema/taskdump/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	return c.now
}

type fakeService struct {
	organizeCalls int
	lastOrganize  application.OrganizeCommand
	lastBreakdown application.BreakdownCommand
	err           error
	accept        application.AcceptResult
	session       domain.Session
}

func (f *fakeService) Organize(_ context.Context, cmd application.OrganizeCommand) (application.OrganizeResult, error) {
	f.organizeCalls++
	f.lastOrganize = cmd
	if f.err != nil {
		return application.OrganizeResult{}, f.err
	}
	return application.OrganizeResult{
		Status:    domain.SessionPending,
		SessionID: "s1",
		Tasks: []domain.ParsedTask{
			(domain.ParsedTask{Title: "call mom"}).WithDuration(5),
			{Title: "plan offsite", Priority: domain.PriorityP2},
		},
		NeedsEstimate: []int{2},
	}, nil
}

func (f *fakeService) Accept(context.Context, application.AcceptCommand) (application.AcceptResult, error) {
	return f.accept, f.err
}

func (f *fakeService) Breakdown(_ context.Context, cmd application.BreakdownCommand) (application.BreakdownResult, error) {
	f.lastBreakdown = cmd
	if f.err != nil {
		return application.BreakdownResult{}, f.err
	}
	return application.BreakdownResult{
		SessionID: "s1",
		Index:     2,
		Parent:    domain.ParsedTask{Title: "plan offsite"},
		Subtasks: []domain.ParsedTask{
			(domain.ParsedTask{Title: "pick dates"}).WithDuration(10),
			(domain.ParsedTask{Title: "book venue"}).WithDuration(30),
			(domain.ParsedTask{Title: "send invites"}).WithDuration(2),
		},
	}, nil
}

func (f *fakeService) Resume(context.Context, domain.UserID, domain.ChannelID) (domain.Session, error) {
	return f.session, f.err
}

func (f *fakeService) Discard(context.Context, domain.UserID, domain.ChannelID) (domain.Session, error) {
	if f.err != nil {
		return domain.Session{}, f.err
	}
	discarded := f.session
	discarded.Status = domain.SessionDiscarded
	return discarded, nil
}

func (f *fakeService) CorrectLastTaskTime(context.Context, application.CorrectTimeCommand) (application.CorrectTimeResult, error) {
	if f.err != nil {
		return application.CorrectTimeResult{}, f.err
	}
	return application.CorrectTimeResult{Title: "call mom", Minutes: 2, Bucket: domain.BucketQuick, SessionID: "s1"}, nil
}

func newTestServer(service Service, clock *fixedClock) *Server {
	return NewServer(service, Options{Clock: clock, DedupeTTL: time.Minute})
}

func post(t *testing.T, s *Server, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := newTestServer(&fakeService{}, &fixedClock{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestOrganizeReturnsTasks(t *testing.T) {
	service := &fakeService{}
	s := newTestServer(service, &fixedClock{})

	rec := post(t, s, "/v1/organize", `{"user_id":"u1","channel_id":"c1","text":"call mom 5 min, plan offsite"}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := gjson.Parse(rec.Body.String())
	assert.Equal(t, "s1", body.Get("session_id").String())
	assert.Equal(t, "PENDING", body.Get("status").String())
	assert.Equal(t, int64(5), body.Get("tasks.0.minutes").Int())
	assert.Equal(t, "2min", body.Get("tasks.0.label").String())
	assert.True(t, body.Get("tasks.1.needs_estimate").Bool())
	assert.Equal(t, "P2", body.Get("tasks.1.priority").String())
	assert.Equal(t, `[2]`, body.Get("needs_estimate").Raw)

	assert.Equal(t, domain.UserID("u1"), service.lastOrganize.UserID)
	assert.Equal(t, domain.ChannelID("c1"), service.lastOrganize.ChannelID)
}

func TestOrganizeRejectsInvalidBodies(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "missing user", body: `{"text":"x"}`},
		{name: "missing text", body: `{"user_id":"u1"}`},
		{name: "not json", body: `call mom`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := &fakeService{}
			rec := post(t, newTestServer(service, &fixedClock{}), "/v1/organize", tt.body, nil)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Zero(t, service.organizeCalls)
		})
	}
}

func TestRetriesAreAcknowledgedWithoutWork(t *testing.T) {
	service := &fakeService{}
	s := newTestServer(service, &fixedClock{})

	rec := post(t, s, "/v1/organize", `{"user_id":"u1","text":"x"}`, map[string]string{"X-Slack-Retry-Num": "1"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ignored":"retry"}`, rec.Body.String())
	assert.Zero(t, service.organizeCalls)
}

func TestDuplicateEventsAreDroppedWithinTTL(t *testing.T) {
	service := &fakeService{}
	clock := &fixedClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	s := newTestServer(service, clock)
	headers := map[string]string{"X-Event-Id": "ev-1"}
	body := `{"user_id":"u1","text":"call mom"}`

	first := post(t, s, "/v1/organize", body, headers)
	second := post(t, s, "/v1/organize", body, headers)

	assert.Equal(t, http.StatusOK, first.Code)
	assert.JSONEq(t, `{"ignored":"duplicate"}`, second.Body.String())
	assert.Equal(t, 1, service.organizeCalls)

	clock.now = clock.now.Add(2 * time.Minute)
	third := post(t, s, "/v1/organize", body, headers)
	assert.NotContains(t, third.Body.String(), "ignored")
	assert.Equal(t, 2, service.organizeCalls)
}

func TestAcceptOfflineReturnsServiceUnavailableWithProgress(t *testing.T) {
	service := &fakeService{accept: application.AcceptResult{
		SessionID:    "s1",
		CreatedCount: 1,
		Remaining:    2,
		Offline:      true,
	}}

	rec := post(t, newTestServer(service, &fixedClock{}), "/v1/accept", `{"user_id":"u1"}`, nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := gjson.Parse(rec.Body.String())
	assert.Equal(t, int64(1), body.Get("created_count").Int())
	assert.Equal(t, int64(2), body.Get("remaining").Int())
	assert.Equal(t, "[]", body.Get("failed").Raw)
}

func TestBreakdownPassesIndex(t *testing.T) {
	service := &fakeService{}

	rec := post(t, newTestServer(service, &fixedClock{}), "/v1/breakdown", `{"user_id":"u1","task":2}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, service.lastBreakdown.TaskIndex)
	body := gjson.Parse(rec.Body.String())
	assert.Equal(t, "plan offsite", body.Get("parent").String())
	assert.Len(t, body.Get("subtasks").Array(), 3)
	assert.False(t, body.Get("subtasks.0.index").Exists())

	rec = post(t, newTestServer(service, &fixedClock{}), "/v1/breakdown", `{"user_id":"u1","task":-1}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResumeAndDiscard(t *testing.T) {
	service := &fakeService{session: domain.Session{
		ID:        "s1",
		UserID:    "u1",
		InputText: "call mom",
		Status:    domain.SessionPending,
		Tasks:     []domain.ParsedTask{{Title: "call mom"}},
	}}
	s := newTestServer(service, &fixedClock{})

	rec := post(t, s, "/v1/resume", `{"user_id":"u1"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "call mom", gjson.Get(rec.Body.String(), "tasks.0.title").String())
	assert.Equal(t, "[]", gjson.Get(rec.Body.String(), "created_task_refs").Raw)

	rec = post(t, s, "/v1/discard", `{"user_id":"u1"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "DISCARDED", gjson.Get(rec.Body.String(), "status").String())
}

func TestCorrectTimeReturnsLabel(t *testing.T) {
	rec := post(t, newTestServer(&fakeService{}, &fixedClock{}), "/v1/correct-time", `{"user_id":"u1","text":"actually 2 min"}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := gjson.Parse(rec.Body.String())
	assert.Equal(t, "2min", body.Get("label").String())
	assert.Equal(t, int64(2), body.Get("minutes").Int())
}

func TestErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "no session", err: fmt.Errorf("resume: %w", domain.ErrSessionNotFound), want: http.StatusNotFound},
		{name: "no context", err: domain.ErrContextNotFound, want: http.StatusNotFound},
		{name: "nothing to correct", err: domain.ErrNothingToCorrect, want: http.StatusNotFound},
		{name: "bad task index", err: domain.ErrTaskNotFound, want: http.StatusNotFound},
		{name: "terminal session", err: domain.ErrInvalidTransition, want: http.StatusConflict},
		{name: "empty input", err: domain.ErrEmptyInput, want: http.StatusBadRequest},
		{name: "bad duration", err: domain.ErrInvalidDuration, want: http.StatusBadRequest},
		{name: "breakdown failed", err: domain.ErrBreakdownFailed, want: http.StatusBadGateway},
		{name: "offline", err: domain.ErrTrackerOffline, want: http.StatusServiceUnavailable},
		{name: "unknown", err: errors.New("disk full"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(&fakeService{err: tt.err}, &fixedClock{})

			rec := post(t, s, "/v1/resume", `{"user_id":"u1"}`, nil)

			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, tt.err.Error(), gjson.Get(rec.Body.String(), "error").String())
		})
	}
}
