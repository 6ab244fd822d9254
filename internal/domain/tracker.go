package domain

// TrackerTaskInput is what the task-tracking service receives for one task.
type TrackerTaskInput struct {
	Content       string
	DurationLabel string
	ParentRef     string
	Priority      Priority
}

type TrackerTask struct {
	Ref       string
	Content   string
	Labels    []string
	ParentRef string
}

type TrackerTaskUpdate struct {
	Content       *string
	DurationLabel *string
}
