package domain

import (
	"fmt"
	"strings"
	"time"
)

type SessionID string
type UserID string
type ChannelID string

type SessionStatus string

const (
	SessionPending   SessionStatus = "PENDING"
	SessionAccepted  SessionStatus = "ACCEPTED"
	SessionPushed    SessionStatus = "PUSHED"
	SessionDiscarded SessionStatus = "DISCARDED"
)

// Session is one staged batch of parsed tasks awaiting confirmation.
type Session struct {
	ID              SessionID
	UserID          UserID
	InputText       string
	Tasks           []ParsedTask
	Status          SessionStatus
	CreatedTaskRefs []string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func ParseSessionStatus(raw string) (SessionStatus, error) {
	switch SessionStatus(strings.ToUpper(strings.TrimSpace(raw))) {
	case SessionPending:
		return SessionPending, nil
	case SessionAccepted:
		return SessionAccepted, nil
	case SessionPushed:
		return SessionPushed, nil
	case SessionDiscarded:
		return SessionDiscarded, nil
	default:
		return "", fmt.Errorf("unknown session status %q", raw)
	}
}

// Terminal reports statuses a session never leaves.
func (s SessionStatus) Terminal() bool {
	return s == SessionPushed || s == SessionDiscarded
}

// Resumable reports sessions a user can still accept, resume or discard.
// ACCEPTED is included so a push cut short before its final status write
// is not lost.
func (s SessionStatus) Resumable() bool {
	return s == SessionPending || s == SessionAccepted
}

// CanTransition encodes PENDING -> ACCEPTED -> {PUSHED, PENDING} and
// {PENDING, ACCEPTED} -> DISCARDED.
func (s SessionStatus) CanTransition(to SessionStatus) bool {
	switch s {
	case SessionPending:
		return to == SessionAccepted || to == SessionDiscarded || to == SessionPushed
	case SessionAccepted:
		return to == SessionPushed || to == SessionPending || to == SessionDiscarded
	default:
		return false
	}
}

func (s Session) Validate() error {
	if strings.TrimSpace(string(s.ID)) == "" {
		return fmt.Errorf("id is required")
	}
	if strings.TrimSpace(string(s.UserID)) == "" {
		return fmt.Errorf("user id is required")
	}
	if _, err := ParseSessionStatus(string(s.Status)); err != nil {
		return err
	}
	for i, task := range s.Tasks {
		if err := task.Validate(); err != nil {
			return fmt.Errorf("task %d: %w", i+1, err)
		}
	}
	return nil
}

// Task returns the 1-based task at index n.
func (s Session) Task(n int) (ParsedTask, error) {
	if n < 1 || n > len(s.Tasks) {
		return ParsedTask{}, fmt.Errorf("%w: task %d of %d", ErrTaskNotFound, n, len(s.Tasks))
	}
	return s.Tasks[n-1], nil
}

// TaskCount counts tasks plus their subtasks, the unit of external creation.
func (s Session) TaskCount() int {
	count := 0
	for _, task := range s.Tasks {
		count += 1 + len(task.Subtasks)
	}
	return count
}
