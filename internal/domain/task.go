package domain

import (
	"fmt"
	"strings"
)

type DurationBucket string

const (
	BucketNone  DurationBucket = ""
	BucketQuick DurationBucket = "QUICK"
	BucketShort DurationBucket = "SHORT"
	BucketLong  DurationBucket = "LONG"
)

const (
	quickMaxMinutes = 5
	shortMaxMinutes = 15
)

// BucketForMinutes maps an explicit duration onto its coarse bucket.
func BucketForMinutes(minutes int) DurationBucket {
	switch {
	case minutes <= 0:
		return BucketNone
	case minutes <= quickMaxMinutes:
		return BucketQuick
	case minutes <= shortMaxMinutes:
		return BucketShort
	default:
		return BucketLong
	}
}

func ParseBucket(raw string) (DurationBucket, error) {
	switch DurationBucket(strings.ToUpper(strings.TrimSpace(raw))) {
	case BucketNone:
		return BucketNone, nil
	case BucketQuick:
		return BucketQuick, nil
	case BucketShort:
		return BucketShort, nil
	case BucketLong:
		return BucketLong, nil
	default:
		return BucketNone, fmt.Errorf("unknown duration bucket %q", raw)
	}
}

// Label is the tracker label attached to tasks of this bucket.
func (b DurationBucket) Label() string {
	switch b {
	case BucketQuick:
		return "2min"
	case BucketShort:
		return "10min"
	case BucketLong:
		return "30+min"
	default:
		return ""
	}
}

// Priority follows the P1 (highest) .. P4 scale. Zero means unset.
type Priority int

const (
	PriorityUnset Priority = 0
	PriorityP1    Priority = 1
	PriorityP2    Priority = 2
	PriorityP3    Priority = 3
	PriorityP4    Priority = 4
)

func (p Priority) Valid() bool {
	return p >= PriorityUnset && p <= PriorityP4
}

func (p Priority) String() string {
	if p == PriorityUnset {
		return ""
	}
	return fmt.Sprintf("P%d", int(p))
}

type ParsedTask struct {
	Raw                string
	Title              string
	ExplicitMinutes    *int
	DurationBucket     DurationBucket
	MatchedExpression  string
	IsProjectCandidate bool
	Priority           Priority
	Subtasks           []ParsedTask
}

// NeedsEstimate reports a task with no time signal at all.
func (t ParsedTask) NeedsEstimate() bool {
	return t.DurationBucket == BucketNone
}

func (t ParsedTask) Minutes() (int, bool) {
	if t.ExplicitMinutes == nil {
		return 0, false
	}
	return *t.ExplicitMinutes, true
}

// WithDuration returns a copy carrying a new explicit duration and the
// bucket derived from it.
func (t ParsedTask) WithDuration(minutes int) ParsedTask {
	value := minutes
	t.ExplicitMinutes = &value
	t.DurationBucket = BucketForMinutes(minutes)
	if t.DurationBucket == BucketLong {
		t.IsProjectCandidate = true
	}
	return t
}

func (t ParsedTask) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if _, err := ParseBucket(string(t.DurationBucket)); err != nil {
		return err
	}
	if t.ExplicitMinutes != nil && *t.ExplicitMinutes <= 0 {
		return fmt.Errorf("explicit minutes must be positive")
	}
	if !t.Priority.Valid() {
		return fmt.Errorf("invalid priority %d", t.Priority)
	}
	for i, sub := range t.Subtasks {
		if len(sub.Subtasks) > 0 {
			return fmt.Errorf("subtask %d: nested subtasks are not supported", i+1)
		}
		if err := sub.Validate(); err != nil {
			return fmt.Errorf("subtask %d: %w", i+1, err)
		}
	}
	return nil
}

func CloneTasks(tasks []ParsedTask) []ParsedTask {
	if tasks == nil {
		return nil
	}
	cloned := make([]ParsedTask, len(tasks))
	for i, task := range tasks {
		if task.ExplicitMinutes != nil {
			minutes := *task.ExplicitMinutes
			task.ExplicitMinutes = &minutes
		}
		task.Subtasks = CloneTasks(task.Subtasks)
		cloned[i] = task
	}
	return cloned
}

func IntPtr(v int) *int {
	return &v
}
