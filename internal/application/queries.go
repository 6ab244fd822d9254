package application

import "github.com/bnema/taskdump/internal/domain"

type OrganizeResult struct {
	Status    domain.SessionStatus
	SessionID domain.SessionID
	Tasks     []domain.ParsedTask
	Degraded  bool

	// NeedsEstimate lists 1-based positions of tasks with no time signal.
	NeedsEstimate []int
}

type FailedTask struct {
	Index  int
	Title  string
	Reason string
}

type AcceptResult struct {
	SessionID    domain.SessionID
	CreatedCount int
	Skipped      int
	Remaining    int
	Failed       []FailedTask
	Pushed       bool
	Offline      bool

	// Duplicates counts tasks repeated within the same dump. They share a
	// content hash with an earlier task and are not created twice.
	Duplicates int
}

type BreakdownResult struct {
	SessionID domain.SessionID
	Index     int
	Parent    domain.ParsedTask
	Subtasks  []domain.ParsedTask
}

type CorrectTimeResult struct {
	Title      string
	Minutes    int
	Bucket     domain.DurationBucket
	SessionID  domain.SessionID
	TrackerRef string
}
