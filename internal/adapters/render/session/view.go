package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/bnema/taskdump/internal/application"
	"github.com/bnema/taskdump/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

const needsEstimateLabel = "needs time estimate"

// Organized renders the staged preview returned by organize.
func Organized(result application.OrganizeResult) (string, error) {
	return render(func(s styles) string {
		lines := []string{
			s.title.Render(fmt.Sprintf("Staged %s", plural(len(result.Tasks), "task"))),
			s.header.Render(fmt.Sprintf("session: %s  status: %s", result.SessionID, result.Status)),
		}
		if result.Degraded {
			lines = append(lines, s.warning.Render("AI refinement unavailable, showing parsed titles."))
		}
		lines = append(lines, s.section.Render(taskBlock(result.Tasks, s)))
		if len(result.NeedsEstimate) > 0 {
			lines = append(lines, s.section.Render(s.estimate.Render(
				fmt.Sprintf("No time found for %s. Reply with an estimate (td fix-time \"10 min\").", joinIndexes(result.NeedsEstimate)),
			)))
		}
		lines = append(lines, s.hint.Render("td accept to push, td breakdown <n> to split, td discard to drop."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	})
}

// Session renders a stored session with its tasks.
func Session(session domain.Session) (string, error) {
	return render(func(s styles) string {
		lines := []string{
			s.title.Render(fmt.Sprintf("Session %s", session.ID)),
			s.header.Render(fmt.Sprintf("status: %s  tasks: %d  created: %d  updated: %s",
				session.Status, session.TaskCount(), len(session.CreatedTaskRefs), session.UpdatedAt.Format(time.RFC3339))),
			s.section.Render(taskBlock(session.Tasks, s)),
		}
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	})
}

func Accepted(result application.AcceptResult) (string, error) {
	return render(func(s styles) string {
		var lines []string
		switch {
		case result.Pushed && result.CreatedCount == 0 && result.Skipped == 0 && result.Duplicates == 0:
			lines = append(lines, s.success.Render("Already pushed, nothing to do."))
		case result.Pushed:
			lines = append(lines, s.success.Render(fmt.Sprintf("Pushed %s.", plural(result.CreatedCount, "task"))))
		default:
			lines = append(lines, s.title.Render(fmt.Sprintf("Created %s.", plural(result.CreatedCount, "task"))))
		}
		if result.Skipped > 0 {
			lines = append(lines, s.header.Render(fmt.Sprintf("%d already created earlier, skipped.", result.Skipped)))
		}
		if result.Duplicates > 0 {
			lines = append(lines, s.hint.Render(fmt.Sprintf("%s repeated in the list, created once.", plural(result.Duplicates, "task"))))
		}
		if result.Offline {
			lines = append(lines, s.warning.Render("Task tracker unreachable. The session stays pending, run td accept again later."))
		}
		for _, failed := range result.Failed {
			lines = append(lines, s.warning.Render(fmt.Sprintf("%d. %s failed: %s", failed.Index, failed.Title, failed.Reason)))
		}
		if result.Remaining > 0 {
			lines = append(lines, s.hint.Render(fmt.Sprintf("%s still to create in session %s.", plural(result.Remaining, "task"), result.SessionID)))
		}
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	})
}

func BrokenDown(result application.BreakdownResult) (string, error) {
	return render(func(s styles) string {
		parent := result.Parent
		parent.Subtasks = result.Subtasks
		lines := []string{
			s.title.Render(fmt.Sprintf("Broke task %d into %s", result.Index, plural(len(result.Subtasks), "step"))),
			s.section.Render(taskLine(result.Index, parent, s)),
		}
		for _, subtask := range result.Subtasks {
			lines = append(lines, subtaskLine(subtask, s))
		}
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	})
}

func TimeCorrected(result application.CorrectTimeResult) (string, error) {
	return render(func(s styles) string {
		where := fmt.Sprintf("in session %s", result.SessionID)
		if result.TrackerRef != "" {
			where = fmt.Sprintf("in the tracker (%s)", result.TrackerRef)
		}
		return lipgloss.JoinVertical(lipgloss.Left,
			s.success.Render(fmt.Sprintf("Updated %q to %d min", result.Title, result.Minutes)),
			s.header.Render(fmt.Sprintf("%s %s", s.forBucket(result.Bucket).Render("["+bucketText(result.Bucket)+"]"), where)),
		)
	})
}

func Sessions(sessions []domain.Session) (string, error) {
	return render(func(s styles) string {
		lines := []string{
			s.title.Render("Sessions"),
			s.header.Render(fmt.Sprintf("sessions: %d", len(sessions))),
		}
		if len(sessions) == 0 {
			lines = append(lines, s.empty.Render("No sessions yet."))
			return lipgloss.JoinVertical(lipgloss.Left, lines...)
		}

		for _, session := range sessions {
			lines = append(lines, fmt.Sprintf("%s  %-9s  %s  %s",
				s.index.Render(string(session.ID)),
				string(session.Status),
				s.header.Render(session.UpdatedAt.Format("2006-01-02 15:04")),
				s.task.Render(sessionSummary(session)),
			))
		}
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	})
}

func Context(conversation domain.ConversationContext, now time.Time, ttl time.Duration) (string, error) {
	return render(func(s styles) string {
		if ttl <= 0 {
			ttl = domain.DefaultContextTTL
		}
		expiresIn := conversation.UpdatedAt.Add(ttl).Sub(now).Round(time.Second)
		lines := []string{
			s.title.Render(fmt.Sprintf("Context %s/%s", conversation.UserID, conversation.ChannelID)),
			s.header.Render(fmt.Sprintf("expires in %s", expiresIn)),
		}
		fields := []struct {
			key   string
			value string
		}{
			{"last intent", string(conversation.LastIntent)},
			{"last session", string(conversation.LastSessionID)},
			{"last task", conversation.LastTaskTitle},
			{"last created ref", conversation.LastCreatedTaskRef},
			{"topic", conversation.LastTopic},
			{"notes", conversation.FreeformContext},
		}
		for _, field := range fields {
			if field.value == "" {
				continue
			}
			lines = append(lines, fmt.Sprintf("%s %s", s.index.Render(field.key+":"), s.task.Render(field.value)))
		}
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	})
}

func taskBlock(tasks []domain.ParsedTask, s styles) string {
	if len(tasks) == 0 {
		return s.empty.Render("No tasks.")
	}

	lines := make([]string, 0, len(tasks))
	for i, task := range tasks {
		lines = append(lines, taskLine(i+1, task, s))
		for _, subtask := range task.Subtasks {
			lines = append(lines, subtaskLine(subtask, s))
		}
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func taskLine(index int, task domain.ParsedTask, s styles) string {
	parts := []string{
		s.index.Render(fmt.Sprintf("%2d.", index)),
		s.task.Render(task.Title),
		s.forBucket(task.DurationBucket).Render("[" + bucketText(task.DurationBucket) + "]"),
	}
	if task.Priority != domain.PriorityUnset {
		parts = append(parts, s.priority.Render(task.Priority.String()))
	}
	if task.IsProjectCandidate && len(task.Subtasks) == 0 {
		parts = append(parts, s.project.Render("(project?)"))
	}
	return strings.Join(parts, " ")
}

func subtaskLine(task domain.ParsedTask, s styles) string {
	return strings.Join([]string{
		"    -",
		s.subtask.Render(task.Title),
		s.forBucket(task.DurationBucket).Render("[" + bucketText(task.DurationBucket) + "]"),
	}, " ")
}

func bucketText(bucket domain.DurationBucket) string {
	if label := bucket.Label(); label != "" {
		return label
	}
	return needsEstimateLabel
}

func sessionSummary(session domain.Session) string {
	titles := make([]string, 0, len(session.Tasks))
	for _, task := range session.Tasks {
		titles = append(titles, task.Title)
	}
	summary := strings.Join(titles, ", ")
	if runes := []rune(summary); len(runes) > 60 {
		summary = string(runes[:57]) + "..."
	}
	return summary
}

func joinIndexes(indexes []int) string {
	parts := make([]string, 0, len(indexes))
	for _, index := range indexes {
		parts = append(parts, fmt.Sprintf("#%d", index))
	}
	return strings.Join(parts, ", ")
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
