package toml

import "fmt"

const (
	currentSessionsVersion = 1
	currentContextsVersion = 1
)

type sessionsFileSchema struct {
	Version  int             `toml:"version"`
	Sessions []sessionSchema `toml:"sessions"`
}

func (s *sessionsFileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSessionsVersion
	}
}

func (s sessionsFileSchema) validateVersion() error {
	if s.Version > currentSessionsVersion {
		return fmt.Errorf("unsupported sessions schema version %d (current %d)", s.Version, currentSessionsVersion)
	}

	return nil
}

type sessionSchema struct {
	ID        string         `toml:"id"`
	UserID    string         `toml:"user_id"`
	InputText string         `toml:"input_text"`
	Status    string         `toml:"status"`
	CreatedAt string         `toml:"created_at"`
	UpdatedAt string         `toml:"updated_at"`
	Tasks     []taskSchema   `toml:"tasks,omitempty"`
	Ledger    []ledgerSchema `toml:"ledger,omitempty"`
}

type taskSchema struct {
	Raw                string       `toml:"raw"`
	Title              string       `toml:"title"`
	ExplicitMinutes    *int         `toml:"explicit_minutes,omitempty"`
	DurationBucket     string       `toml:"duration_bucket,omitempty"`
	MatchedExpression  string       `toml:"matched_expression,omitempty"`
	IsProjectCandidate bool         `toml:"is_project_candidate"`
	Priority           int          `toml:"priority,omitempty"`
	Subtasks           []taskSchema `toml:"subtasks,omitempty"`
}

// ledgerSchema rows are kept in insertion order; created refs derive from it.
type ledgerSchema struct {
	ContentHash string `toml:"content_hash"`
	ExternalRef string `toml:"external_ref"`
	CreatedAt   string `toml:"created_at"`
}

type contextsFileSchema struct {
	Version  int             `toml:"version"`
	Contexts []contextSchema `toml:"contexts"`
}

func (s *contextsFileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentContextsVersion
	}
}

func (s contextsFileSchema) validateVersion() error {
	if s.Version > currentContextsVersion {
		return fmt.Errorf("unsupported contexts schema version %d (current %d)", s.Version, currentContextsVersion)
	}

	return nil
}

type contextSchema struct {
	UserID             string `toml:"user_id"`
	ChannelID          string `toml:"channel_id"`
	LastIntent         string `toml:"last_intent,omitempty"`
	LastCreatedTaskRef string `toml:"last_created_task_ref,omitempty"`
	LastSessionID      string `toml:"last_session_id,omitempty"`
	LastTaskTitle      string `toml:"last_task_title,omitempty"`
	LastTopic          string `toml:"last_topic,omitempty"`
	FreeformContext    string `toml:"freeform_context,omitempty"`
	UpdatedAt          string `toml:"updated_at"`
}
