// Package todoist creates and updates tasks through the Todoist REST API.
package todoist

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bnema/taskdump/internal/domain"
	"github.com/bnema/taskdump/internal/ports"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	DefaultBaseURL = "https://api.todoist.com/rest/v2/"

	maxResponseBytes   = 1 << 20
	defaultTimeout     = 10 * time.Second
	defaultMaxAttempts = 3
	defaultBackoff     = time.Second
	defaultMaxBackoff  = 60 * time.Second
)

// durationLabels are replaced, never accumulated, when a task is re-timed.
var durationLabels = map[string]struct{}{
	domain.BucketQuick.Label(): {},
	domain.BucketShort.Label(): {},
	domain.BucketLong.Label():  {},
}

// TokenSource resolves the API token at call time.
type TokenSource func(ctx context.Context) (string, error)

type Client struct {
	BaseURL        string
	Token          TokenSource
	HTTPClient     *http.Client
	RequestTimeout time.Duration
	MaxAttempts    int
	Backoff        time.Duration
	MaxBackoff     time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

var _ ports.TaskTracker = (*Client)(nil)

// StatusError is a non-2xx answer that was not retried or ran out of
// attempts.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("status %d", e.StatusCode)
	}
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
}

func StaticToken(token string) TokenSource {
	return func(context.Context) (string, error) {
		return token, nil
	}
}

func (c *Client) CreateTask(ctx context.Context, input domain.TrackerTaskInput) (domain.TrackerTask, error) {
	if strings.TrimSpace(input.Content) == "" {
		return domain.TrackerTask{}, errors.New("task content is required")
	}

	body, err := createBody(input)
	if err != nil {
		return domain.TrackerTask{}, fmt.Errorf("build create request: %w", err)
	}

	// The same request id across retries lets Todoist drop duplicates.
	raw, err := c.do(ctx, http.MethodPost, "tasks", body, uuid.NewString())
	if err != nil {
		return domain.TrackerTask{}, fmt.Errorf("create task: %w", err)
	}
	return parseTask(raw)
}

// UpdateTask swaps the duration label while keeping the task's other labels.
func (c *Client) UpdateTask(ctx context.Context, ref string, update domain.TrackerTaskUpdate) (domain.TrackerTask, error) {
	if strings.TrimSpace(ref) == "" {
		return domain.TrackerTask{}, errors.New("task ref is required")
	}

	path := "tasks/" + url.PathEscape(ref)
	body := "{}"
	var err error

	if update.Content != nil {
		body, err = sjson.Set(body, "content", *update.Content)
		if err != nil {
			return domain.TrackerTask{}, fmt.Errorf("build update request: %w", err)
		}
	}
	if update.DurationLabel != nil {
		raw, err := c.do(ctx, http.MethodGet, path, "", "")
		if err != nil {
			return domain.TrackerTask{}, fmt.Errorf("get task: %w", err)
		}
		current, err := parseTask(raw)
		if err != nil {
			return domain.TrackerTask{}, err
		}

		body, err = sjson.Set(body, "labels", replaceDurationLabel(current.Labels, *update.DurationLabel))
		if err != nil {
			return domain.TrackerTask{}, fmt.Errorf("build update request: %w", err)
		}
	}

	raw, err := c.do(ctx, http.MethodPost, path, body, uuid.NewString())
	if err != nil {
		return domain.TrackerTask{}, fmt.Errorf("update task: %w", err)
	}
	return parseTask(raw)
}

func createBody(input domain.TrackerTaskInput) (string, error) {
	body, err := sjson.Set("{}", "content", input.Content)
	if err != nil {
		return "", err
	}
	labels := []string{}
	if input.DurationLabel != "" {
		labels = append(labels, input.DurationLabel)
	}
	if body, err = sjson.Set(body, "labels", labels); err != nil {
		return "", err
	}
	if input.Priority != domain.PriorityUnset {
		if body, err = sjson.Set(body, "priority", todoistPriority(input.Priority)); err != nil {
			return "", err
		}
	}
	if input.ParentRef != "" {
		if body, err = sjson.Set(body, "parent_id", input.ParentRef); err != nil {
			return "", err
		}
	}
	return body, nil
}

// todoistPriority inverts P1..P4 onto the API scale where 4 is most urgent.
func todoistPriority(p domain.Priority) int {
	return 5 - int(p)
}

func replaceDurationLabel(labels []string, label string) []string {
	out := make([]string, 0, len(labels)+1)
	for _, existing := range labels {
		if _, ok := durationLabels[existing]; ok {
			continue
		}
		out = append(out, existing)
	}
	if label != "" {
		out = append(out, label)
	}
	return out
}

func parseTask(raw string) (domain.TrackerTask, error) {
	if !gjson.Valid(raw) {
		return domain.TrackerTask{}, errors.New("decode task response: invalid json")
	}

	parsed := gjson.Parse(raw)
	id := parsed.Get("id")
	if !id.Exists() || id.String() == "" {
		return domain.TrackerTask{}, errors.New("task response missing id")
	}

	task := domain.TrackerTask{
		Ref:       id.String(),
		Content:   parsed.Get("content").String(),
		ParentRef: parsed.Get("parent_id").String(),
	}
	for _, label := range parsed.Get("labels").Array() {
		task.Labels = append(task.Labels, label.String())
	}
	return task, nil
}

// do runs one logical request, retrying 429 and 5xx answers with
// exponential backoff inside the request timeout.
func (c *Client) do(ctx context.Context, method, path, body, requestID string) (string, error) {
	endpoint, err := buildAPIURL(c.baseURL(), path)
	if err != nil {
		return "", err
	}

	token, err := c.token(ctx)
	if err != nil {
		return "", err
	}

	requestCtx, cancel := c.requestContext(ctx)
	defer cancel()

	attempts := c.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		raw, retryAfter, err := c.once(requestCtx, method, endpoint, body, token, requestID)
		if err == nil {
			return raw, nil
		}
		lastErr = err

		var statusErr *StatusError
		if !errors.As(err, &statusErr) || !retryable(statusErr.StatusCode) || attempt == attempts {
			return "", err
		}

		wait := c.backoff(attempt, retryAfter)
		if deadline, ok := requestCtx.Deadline(); ok && time.Until(deadline) < wait {
			return "", err
		}
		if err := c.wait(requestCtx, wait); err != nil {
			return "", err
		}
	}
	return "", lastErr
}

func (c *Client) once(ctx context.Context, method, endpoint, body, token, requestID string) (string, time.Duration, error) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return "", 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if requestID != "" {
		req.Header.Set("X-Request-Id", requestID)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		if isOffline(err) {
			return "", 0, fmt.Errorf("%w: %v", domain.ErrTrackerOffline, err)
		}
		return "", 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", 0, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", retryAfter(resp.Header.Get("Retry-After")), &StatusError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(data)),
		}
	}
	return string(data), 0, nil
}

func (c *Client) backoff(attempt int, retryAfter time.Duration) time.Duration {
	maxBackoff := c.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = defaultMaxBackoff
	}

	wait := retryAfter
	if wait <= 0 {
		base := c.Backoff
		if base <= 0 {
			base = defaultBackoff
		}
		wait = base << (attempt - 1)
	}
	if wait > maxBackoff {
		wait = maxBackoff
	}
	return wait
}

func (c *Client) wait(ctx context.Context, d time.Duration) error {
	if c.sleep != nil {
		return c.sleep(ctx, d)
	}

	timer := time.NewTimer(d)
	select {
	case <-ctx.Done():
		if !timer.Stop() {
			<-timer.C
		}
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) token(ctx context.Context) (string, error) {
	if c.Token == nil {
		return "", fmt.Errorf("todoist token: %w", domain.ErrSecretNotFound)
	}
	token, err := c.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("todoist token: %w", err)
	}
	if strings.TrimSpace(token) == "" {
		return "", fmt.Errorf("todoist token: %w", domain.ErrSecretNotFound)
	}
	return token, nil
}

func (c *Client) baseURL() string {
	if c.BaseURL == "" {
		return DefaultBaseURL
	}
	return c.BaseURL
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// requestContext bounds one logical request by RequestTimeout; an earlier
// caller deadline still wins.
func (c *Client) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	requestTimeout := c.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = defaultTimeout
	}

	return context.WithTimeout(ctx, requestTimeout)
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

func retryAfter(header string) time.Duration {
	seconds, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// isOffline reports failures to reach the service at all.
func isOffline(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

func buildAPIURL(baseURL string, path string) (string, error) {
	if path == "" {
		return "", errors.New("api path is required")
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse api base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", errors.New("api base url must use http or https")
	}
	if parsed.Host == "" {
		return "", errors.New("api base url host is required")
	}
	if !strings.HasSuffix(parsed.Path, "/") {
		parsed.Path += "/"
	}

	endpoint, err := parsed.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parse api path: %w", err)
	}
	return endpoint.String(), nil
}
