package session

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bnema/taskdump/internal/application"
	"github.com/bnema/taskdump/internal/domain"
	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown format %q (want text, json or yaml)", raw)
	}
}

type sessionDoc struct {
	ID          string    `json:"id" yaml:"id"`
	UserID      string    `json:"userId" yaml:"user_id"`
	Status      string    `json:"status" yaml:"status"`
	InputText   string    `json:"inputText" yaml:"input_text"`
	Tasks       []taskDoc `json:"tasks" yaml:"tasks"`
	CreatedRefs []string  `json:"createdTaskRefs,omitempty" yaml:"created_task_refs,omitempty"`
	CreatedAt   string    `json:"createdAt" yaml:"created_at"`
	UpdatedAt   string    `json:"updatedAt" yaml:"updated_at"`
}

type taskDoc struct {
	Title              string    `json:"title" yaml:"title"`
	ExplicitMinutes    *int      `json:"explicitMinutes,omitempty" yaml:"explicit_minutes,omitempty"`
	DurationBucket     string    `json:"durationBucket,omitempty" yaml:"duration_bucket,omitempty"`
	Label              string    `json:"label,omitempty" yaml:"label,omitempty"`
	NeedsEstimate      bool      `json:"needsEstimate,omitempty" yaml:"needs_estimate,omitempty"`
	IsProjectCandidate bool      `json:"isProjectCandidate" yaml:"is_project_candidate"`
	Priority           string    `json:"priority,omitempty" yaml:"priority,omitempty"`
	Subtasks           []taskDoc `json:"subtasks,omitempty" yaml:"subtasks,omitempty"`
}

// Export writes the session in format. Text goes through the terminal
// renderer.
func Export(w io.Writer, session domain.Session, format Format) error {
	switch format {
	case FormatText, "":
		out, err := Session(session)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, out)
		return err
	case FormatJSON:
		data, err := json.MarshalIndent(toSessionDoc(session), "", "  ")
		if err != nil {
			return fmt.Errorf("encode session json: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case FormatYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(toSessionDoc(session)); err != nil {
			return fmt.Errorf("encode session yaml: %w", err)
		}
		return encoder.Close()
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

type organizedDoc struct {
	SessionID     string    `json:"sessionId"`
	Status        string    `json:"status"`
	Degraded      bool      `json:"degraded"`
	NeedsEstimate []int     `json:"needsEstimate"`
	Tasks         []taskDoc `json:"tasks"`
}

// OrganizedJSON writes the organize result for scripts.
func OrganizedJSON(w io.Writer, result application.OrganizeResult) error {
	needs := result.NeedsEstimate
	if needs == nil {
		needs = []int{}
	}
	data, err := json.MarshalIndent(organizedDoc{
		SessionID:     string(result.SessionID),
		Status:        string(result.Status),
		Degraded:      result.Degraded,
		NeedsEstimate: needs,
		Tasks:         toTaskDocs(result.Tasks),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode organize json: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func toSessionDoc(session domain.Session) sessionDoc {
	return sessionDoc{
		ID:          string(session.ID),
		UserID:      string(session.UserID),
		Status:      string(session.Status),
		InputText:   session.InputText,
		Tasks:       toTaskDocs(session.Tasks),
		CreatedRefs: session.CreatedTaskRefs,
		CreatedAt:   session.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   session.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toTaskDocs(tasks []domain.ParsedTask) []taskDoc {
	docs := make([]taskDoc, 0, len(tasks))
	for _, task := range tasks {
		doc := taskDoc{
			Title:              task.Title,
			DurationBucket:     string(task.DurationBucket),
			Label:              task.DurationBucket.Label(),
			NeedsEstimate:      task.NeedsEstimate(),
			IsProjectCandidate: task.IsProjectCandidate,
			Priority:           task.Priority.String(),
		}
		if minutes, ok := task.Minutes(); ok {
			doc.ExplicitMinutes = domain.IntPtr(minutes)
		}
		if len(task.Subtasks) > 0 {
			doc.Subtasks = toTaskDocs(task.Subtasks)
		}
		docs = append(docs, doc)
	}
	return docs
}
