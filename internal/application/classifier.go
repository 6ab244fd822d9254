package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bnema/taskdump/internal/domain"
	"github.com/bnema/taskdump/internal/logging"
	"github.com/bnema/taskdump/internal/parse"
	"github.com/bnema/taskdump/internal/ports"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	DefaultModelTimeout = 15 * time.Second

	minSubtasks = 3
	maxSubtasks = 6
)

var (
	errModelUnavailable = errors.New("text model not configured")
	errNoJSONPayload    = errors.New("json payload not found")
)

const classifySystemPrompt = `You clean up task titles for a personal task list.
You receive a JSON object {"tasks":[...]}. Each task has an index, the raw line, a pre-cleaned title, and the duration fields already extracted from it.
Rules:
- Return exactly one entry per input task, in the same order.
- Never change, add or remove durations. explicitMinutes and durationBucket are fixed and must not appear in your output.
- Never put back a time expression that was already stripped (see matchedExpression).
- You may only remove meta language ("remind me to", "I need to"), fix obvious typos and grammar, and move the action verb to the front.
- Keep names, numbers and facts exactly as written.
- Set isProjectCandidate to true when durationBucket is LONG or the task clearly has several steps.
Reply with JSON only: {"tasks":[{"title":"...","isProjectCandidate":false}]}`

const breakdownSystemPrompt = `You break one project into concrete next actions.
Return between 3 and 6 ordered subtasks that follow a research, draft, review, finalize shape.
Each subtask has a short imperative title and an estimate in minutes.
Reply with JSON only: {"subtasks":[{"title":"...","minutes":15}]}`

// Classification is the classifier output. Degraded is set when the
// deterministic fallback was used.
type Classification struct {
	Tasks    []domain.ParsedTask
	Degraded bool
	Reason   string
}

// Classifier refines pre-processed tasks through the text model. Durations
// set by the parser are never taken from the model.
type Classifier struct {
	model   ports.TextModel
	logger  *logging.Logger
	timeout time.Duration
}

func NewClassifier(model ports.TextModel, logger *logging.Logger, timeout time.Duration) *Classifier {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if timeout <= 0 {
		timeout = DefaultModelTimeout
	}

	return &Classifier{model: model, logger: logger, timeout: timeout}
}

// Classify never fails. Any model error, timeout, or malformed reply yields
// the input tasks with isProjectCandidate derived from the bucket.
func (c *Classifier) Classify(ctx context.Context, tasks []domain.ParsedTask) Classification {
	if len(tasks) == 0 {
		return Classification{Tasks: []domain.ParsedTask{}}
	}

	refined, err := c.classify(ctx, tasks)
	if err != nil {
		c.logger.Warn("classification degraded", "reason", err.Error(), "tasks", len(tasks))
		return Classification{Tasks: fallbackTasks(tasks), Degraded: true, Reason: err.Error()}
	}

	return Classification{Tasks: refined}
}

func (c *Classifier) classify(ctx context.Context, tasks []domain.ParsedTask) ([]domain.ParsedTask, error) {
	if c.model == nil {
		return nil, errModelUnavailable
	}

	payload, err := buildClassifyPayload(tasks)
	if err != nil {
		return nil, fmt.Errorf("build classify payload: %w", err)
	}

	reply, err := c.complete(ctx, ports.CompletionRequest{System: classifySystemPrompt, User: payload})
	if err != nil {
		return nil, fmt.Errorf("classify call: %w", err)
	}

	return parseClassifyReply(reply, tasks)
}

// Breakdown asks the model for subtasks of one task. Unlike Classify there
// is no fallback: every failure is reported as ErrBreakdownFailed.
func (c *Classifier) Breakdown(ctx context.Context, task domain.ParsedTask) ([]domain.ParsedTask, error) {
	if c.model == nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrBreakdownFailed, errModelUnavailable)
	}

	payload, err := buildBreakdownPayload(task)
	if err != nil {
		return nil, fmt.Errorf("%w: build payload: %v", domain.ErrBreakdownFailed, err)
	}

	reply, err := c.complete(ctx, ports.CompletionRequest{System: breakdownSystemPrompt, User: payload})
	if err != nil {
		c.logger.Warn("breakdown call failed", "title", task.Title, "error", err.Error())
		return nil, fmt.Errorf("%w: %v", domain.ErrBreakdownFailed, err)
	}

	subtasks, err := parseBreakdownReply(reply, task)
	if err != nil {
		c.logger.Warn("breakdown reply rejected", "title", task.Title, "error", err.Error())
		return nil, fmt.Errorf("%w: %v", domain.ErrBreakdownFailed, err)
	}

	return subtasks, nil
}

func (c *Classifier) complete(ctx context.Context, req ports.CompletionRequest) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	return c.model.Complete(callCtx, req)
}

func fallbackTasks(tasks []domain.ParsedTask) []domain.ParsedTask {
	out := domain.CloneTasks(tasks)
	for i := range out {
		out[i].IsProjectCandidate = out[i].DurationBucket == domain.BucketLong
	}
	return out
}

func buildClassifyPayload(tasks []domain.ParsedTask) (string, error) {
	payload := `{"tasks":[]}`
	for i, task := range tasks {
		item, err := taskJSON(i, task)
		if err != nil {
			return "", err
		}
		payload, err = sjson.SetRaw(payload, "tasks.-1", item)
		if err != nil {
			return "", err
		}
	}
	return payload, nil
}

func buildBreakdownPayload(task domain.ParsedTask) (string, error) {
	item, err := taskJSON(0, task)
	if err != nil {
		return "", err
	}
	return sjson.SetRaw(`{}`, "task", item)
}

func taskJSON(index int, task domain.ParsedTask) (string, error) {
	item := `{}`
	var err error
	set := func(path string, value any) {
		if err != nil {
			return
		}
		item, err = sjson.Set(item, path, value)
	}

	set("index", index)
	set("raw", task.Raw)
	set("title", task.Title)
	set("durationBucket", string(task.DurationBucket))
	set("matchedExpression", task.MatchedExpression)
	if minutes, ok := task.Minutes(); ok {
		set("explicitMinutes", minutes)
	}

	return item, err
}

func parseClassifyReply(reply string, tasks []domain.ParsedTask) ([]domain.ParsedTask, error) {
	items, err := replyArray(reply, "tasks")
	if err != nil {
		return nil, err
	}
	if len(items) != len(tasks) {
		return nil, fmt.Errorf("length mismatch: got %d tasks, want %d", len(items), len(tasks))
	}

	out := domain.CloneTasks(tasks)
	for i, item := range items {
		if !item.IsObject() {
			return nil, fmt.Errorf("task %d: not an object", i+1)
		}
		title := strings.TrimSpace(item.Get("title").String())
		if title == "" {
			return nil, fmt.Errorf("task %d: empty title", i+1)
		}

		flag := item.Get("isProjectCandidate")
		if flag.Exists() && !flag.IsBool() {
			return nil, fmt.Errorf("task %d: isProjectCandidate is not a boolean", i+1)
		}

		// A title that regained a stripped duration keeps the parser's version.
		if parse.HasTimeExpression(title) && !parse.HasTimeExpression(tasks[i].Title) {
			title = tasks[i].Title
		}

		out[i].Title = title
		out[i].IsProjectCandidate = flag.Bool() || out[i].DurationBucket == domain.BucketLong
	}

	return out, nil
}

func parseBreakdownReply(reply string, parent domain.ParsedTask) ([]domain.ParsedTask, error) {
	items, err := replyArray(reply, "subtasks")
	if err != nil {
		return nil, err
	}
	if len(items) < minSubtasks {
		return nil, fmt.Errorf("got %d subtasks, want at least %d", len(items), minSubtasks)
	}
	if len(items) > maxSubtasks {
		items = items[:maxSubtasks]
	}

	subtasks := make([]domain.ParsedTask, 0, len(items))
	for i, item := range items {
		subtask, err := subtaskFromReply(item, parent)
		if err != nil {
			return nil, fmt.Errorf("subtask %d: %w", i+1, err)
		}
		subtasks = append(subtasks, subtask)
	}

	return subtasks, nil
}

func subtaskFromReply(item gjson.Result, parent domain.ParsedTask) (domain.ParsedTask, error) {
	var title string
	switch {
	case item.Type == gjson.String:
		title = item.String()
	case item.IsObject():
		title = item.Get("title").String()
	default:
		return domain.ParsedTask{}, errors.New("unexpected element type")
	}
	if strings.TrimSpace(title) == "" {
		return domain.ParsedTask{}, errors.New("empty title")
	}

	subtask := parse.PreprocessLine(title)
	if minutes := item.Get("minutes").Int(); minutes > 0 {
		subtask = subtask.WithDuration(int(minutes))
	} else if subtask.DurationBucket == domain.BucketNone {
		if bucket, err := domain.ParseBucket(item.Get("durationBucket").String()); err == nil {
			subtask.DurationBucket = bucket
		}
	}
	subtask.IsProjectCandidate = false
	subtask.Subtasks = nil
	if subtask.Priority == domain.PriorityUnset {
		subtask.Priority = parent.Priority
	}

	return subtask, nil
}

// replyArray finds the array under key, or a top-level array, in a reply
// that may be wrapped in prose or code fences.
func replyArray(reply string, key string) ([]gjson.Result, error) {
	payload, err := extractJSON(reply)
	if err != nil {
		return nil, err
	}

	parsed := gjson.Parse(payload)
	if parsed.IsArray() {
		return parsed.Array(), nil
	}

	list := parsed.Get(key)
	if !list.IsArray() {
		return nil, fmt.Errorf("%q array missing", key)
	}
	return list.Array(), nil
}

func extractJSON(text string) (string, error) {
	text = strings.TrimSpace(text)
	if gjson.Valid(text) {
		return text, nil
	}

	for _, pair := range [][2]string{{"{", "}"}, {"[", "]"}} {
		start := strings.Index(text, pair[0])
		end := strings.LastIndex(text, pair[1])
		if start == -1 || end <= start {
			continue
		}
		if candidate := text[start : end+1]; gjson.Valid(candidate) {
			return candidate, nil
		}
	}

	return "", errNoJSONPayload
}
