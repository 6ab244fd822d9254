package httpapi

import (
	"errors"
	"net/http"

	"github.com/bnema/taskdump/internal/application"
	"github.com/bnema/taskdump/internal/domain"
	"github.com/gin-gonic/gin"
)

type userRequest struct {
	UserID    string `json:"user_id" binding:"required"`
	ChannelID string `json:"channel_id"`
}

type textRequest struct {
	userRequest
	Text string `json:"text" binding:"required"`
}

type acceptRequest struct {
	userRequest
	SessionID string `json:"session_id"`
}

type breakdownRequest struct {
	userRequest
	Task int `json:"task"`
}

type taskJSON struct {
	Index            int        `json:"index,omitempty"`
	Title            string     `json:"title"`
	Minutes          *int       `json:"minutes,omitempty"`
	DurationBucket   string     `json:"duration_bucket,omitempty"`
	Label            string     `json:"label,omitempty"`
	NeedsEstimate    bool       `json:"needs_estimate"`
	ProjectCandidate bool       `json:"project_candidate"`
	Priority         string     `json:"priority,omitempty"`
	Subtasks         []taskJSON `json:"subtasks,omitempty"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleOrganize(c *gin.Context) {
	var req textRequest
	if !bind(c, &req) {
		return
	}

	result, err := s.service.Organize(c.Request.Context(), application.OrganizeCommand{
		Text:      req.Text,
		UserID:    domain.UserID(req.UserID),
		ChannelID: domain.ChannelID(req.ChannelID),
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id":     result.SessionID,
		"status":         result.Status,
		"degraded":       result.Degraded,
		"needs_estimate": nonNilInts(result.NeedsEstimate),
		"tasks":          toTaskJSON(result.Tasks, true),
	})
}

func (s *Server) handleAccept(c *gin.Context) {
	var req acceptRequest
	if !bind(c, &req) {
		return
	}

	result, err := s.service.Accept(c.Request.Context(), application.AcceptCommand{
		UserID:    domain.UserID(req.UserID),
		ChannelID: domain.ChannelID(req.ChannelID),
		SessionID: domain.SessionID(req.SessionID),
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	failed := make([]gin.H, 0, len(result.Failed))
	for _, f := range result.Failed {
		failed = append(failed, gin.H{"index": f.Index, "title": f.Title, "reason": f.Reason})
	}

	status := http.StatusOK
	if result.Offline {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"session_id":    result.SessionID,
		"created_count": result.CreatedCount,
		"skipped":       result.Skipped,
		"duplicates":    result.Duplicates,
		"remaining":     result.Remaining,
		"failed":        failed,
		"pushed":        result.Pushed,
		"offline":       result.Offline,
	})
}

func (s *Server) handleBreakdown(c *gin.Context) {
	var req breakdownRequest
	if !bind(c, &req) {
		return
	}
	if req.Task < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "task must be a 1-based index or 0 for the last task"})
		return
	}

	result, err := s.service.Breakdown(c.Request.Context(), application.BreakdownCommand{
		UserID:    domain.UserID(req.UserID),
		ChannelID: domain.ChannelID(req.ChannelID),
		TaskIndex: req.Task,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": result.SessionID,
		"index":      result.Index,
		"parent":     result.Parent.Title,
		"subtasks":   toTaskJSON(result.Subtasks, false),
	})
}

func (s *Server) handleResume(c *gin.Context) {
	var req userRequest
	if !bind(c, &req) {
		return
	}

	session, err := s.service.Resume(c.Request.Context(), domain.UserID(req.UserID), domain.ChannelID(req.ChannelID))
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, sessionJSON(session))
}

func (s *Server) handleDiscard(c *gin.Context) {
	var req userRequest
	if !bind(c, &req) {
		return
	}

	session, err := s.service.Discard(c.Request.Context(), domain.UserID(req.UserID), domain.ChannelID(req.ChannelID))
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"session_id": session.ID, "status": session.Status})
}

func (s *Server) handleCorrectTime(c *gin.Context) {
	var req textRequest
	if !bind(c, &req) {
		return
	}

	result, err := s.service.CorrectLastTaskTime(c.Request.Context(), application.CorrectTimeCommand{
		Text:      req.Text,
		UserID:    domain.UserID(req.UserID),
		ChannelID: domain.ChannelID(req.ChannelID),
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"title":       result.Title,
		"minutes":     result.Minutes,
		"label":       result.Bucket.Label(),
		"session_id":  result.SessionID,
		"tracker_ref": result.TrackerRef,
	})
}

func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return false
	}
	return true
}

func (s *Server) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.FullPath(), "error", err.Error())
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrContextNotFound),
		errors.Is(err, domain.ErrNothingToCorrect),
		errors.Is(err, domain.ErrTaskNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, domain.ErrEmptyInput),
		errors.Is(err, domain.ErrInvalidDuration):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrBreakdownFailed):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrTrackerOffline):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func sessionJSON(session domain.Session) gin.H {
	return gin.H{
		"session_id":        session.ID,
		"status":            session.Status,
		"input_text":        session.InputText,
		"tasks":             toTaskJSON(session.Tasks, true),
		"created_task_refs": nonNilStrings(session.CreatedTaskRefs),
		"updated_at":        session.UpdatedAt,
	}
}

func toTaskJSON(tasks []domain.ParsedTask, indexed bool) []taskJSON {
	out := make([]taskJSON, 0, len(tasks))
	for i, task := range tasks {
		entry := taskJSON{
			Title:            task.Title,
			DurationBucket:   string(task.DurationBucket),
			Label:            task.DurationBucket.Label(),
			NeedsEstimate:    task.NeedsEstimate(),
			ProjectCandidate: task.IsProjectCandidate,
			Priority:         task.Priority.String(),
		}
		if indexed {
			entry.Index = i + 1
		}
		if minutes, ok := task.Minutes(); ok {
			entry.Minutes = domain.IntPtr(minutes)
		}
		if len(task.Subtasks) > 0 {
			entry.Subtasks = toTaskJSON(task.Subtasks, false)
		}
		out = append(out, entry)
	}
	return out
}

func nonNilInts(values []int) []int {
	if values == nil {
		return []int{}
	}
	return values
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
