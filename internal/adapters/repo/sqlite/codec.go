package sqlite

import (
	"encoding/json"
	"fmt"

	"github.com/bnema/taskdump/internal/domain"
)

// taskRecord is the JSON shape of one task inside sessions.tasks_json.
type taskRecord struct {
	Raw                string       `json:"raw"`
	Title              string       `json:"title"`
	ExplicitMinutes    *int         `json:"explicitMinutes,omitempty"`
	DurationBucket     string       `json:"durationBucket,omitempty"`
	MatchedExpression  string       `json:"matchedExpression,omitempty"`
	IsProjectCandidate bool         `json:"isProjectCandidate"`
	Priority           int          `json:"priority,omitempty"`
	Subtasks           []taskRecord `json:"subtasks,omitempty"`
}

func encodeTasks(tasks []domain.ParsedTask) (string, error) {
	records := make([]taskRecord, 0, len(tasks))
	for _, task := range tasks {
		records = append(records, toTaskRecord(task))
	}

	data, err := json.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("marshal tasks: %w", err)
	}
	return string(data), nil
}

func decodeTasks(raw string) ([]domain.ParsedTask, error) {
	var records []taskRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return nil, fmt.Errorf("unmarshal tasks: %w", err)
	}

	tasks := make([]domain.ParsedTask, 0, len(records))
	for _, record := range records {
		task, err := fromTaskRecord(record)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func toTaskRecord(task domain.ParsedTask) taskRecord {
	record := taskRecord{
		Raw:                task.Raw,
		Title:              task.Title,
		DurationBucket:     string(task.DurationBucket),
		MatchedExpression:  task.MatchedExpression,
		IsProjectCandidate: task.IsProjectCandidate,
		Priority:           int(task.Priority),
	}
	if minutes, ok := task.Minutes(); ok {
		record.ExplicitMinutes = domain.IntPtr(minutes)
	}
	for _, subtask := range task.Subtasks {
		record.Subtasks = append(record.Subtasks, toTaskRecord(subtask))
	}
	return record
}

func fromTaskRecord(record taskRecord) (domain.ParsedTask, error) {
	bucket, err := domain.ParseBucket(record.DurationBucket)
	if err != nil {
		return domain.ParsedTask{}, err
	}

	task := domain.ParsedTask{
		Raw:                record.Raw,
		Title:              record.Title,
		DurationBucket:     bucket,
		MatchedExpression:  record.MatchedExpression,
		IsProjectCandidate: record.IsProjectCandidate,
		Priority:           domain.Priority(record.Priority),
	}
	if record.ExplicitMinutes != nil {
		task.ExplicitMinutes = domain.IntPtr(*record.ExplicitMinutes)
	}
	for _, sub := range record.Subtasks {
		subtask, err := fromTaskRecord(sub)
		if err != nil {
			return domain.ParsedTask{}, err
		}
		task.Subtasks = append(task.Subtasks, subtask)
	}
	return task, nil
}
