package toml

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bnema/taskdump/internal/domain"
	"github.com/bnema/taskdump/internal/ports"
	"github.com/spf13/viper"
)

type SessionRepository struct {
	path string
	mu   *sync.RWMutex
}

var _ ports.SessionRepository = (*SessionRepository)(nil)

func NewSessionRepository(cfg *viper.Viper) (*SessionRepository, error) {
	path, err := resolvePath(cfg, sessionsFileName)
	if err != nil {
		return nil, err
	}

	return &SessionRepository{path: path, mu: lockForPath(path)}, nil
}

func (r *SessionRepository) Path() string {
	return r.path
}

func (r *SessionRepository) Create(ctx context.Context, session domain.Session) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("validate session: %w", err)
	}

	return r.mutate(ctx, func(file *sessionsFileSchema) error {
		for _, entry := range file.Sessions {
			if entry.ID == string(session.ID) {
				return fmt.Errorf("session %s already exists", session.ID)
			}
		}
		file.Sessions = append(file.Sessions, toSessionSchema(session))
		return nil
	})
}

func (r *SessionRepository) GetByID(ctx context.Context, id domain.SessionID) (domain.Session, error) {
	file, err := r.load(ctx)
	if err != nil {
		return domain.Session{}, err
	}

	for _, entry := range file.Sessions {
		if entry.ID == string(id) {
			return fromSessionSchema(entry)
		}
	}

	return domain.Session{}, domain.ErrSessionNotFound
}

func (r *SessionRepository) GetLastPending(ctx context.Context, userID domain.UserID) (domain.Session, error) {
	sessions, err := r.userSessions(ctx, userID)
	if err != nil {
		return domain.Session{}, err
	}

	for _, session := range sessions {
		if session.Status.Resumable() {
			return session, nil
		}
	}

	return domain.Session{}, domain.ErrSessionNotFound
}

func (r *SessionRepository) ListByUser(ctx context.Context, userID domain.UserID, limit int) ([]domain.Session, error) {
	if limit <= 0 {
		limit = 20
	}

	sessions, err := r.userSessions(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(sessions) > limit {
		sessions = sessions[:limit]
	}
	return sessions, nil
}

func (r *SessionRepository) UpdateStatus(ctx context.Context, id domain.SessionID, status domain.SessionStatus, at time.Time) error {
	if _, err := domain.ParseSessionStatus(string(status)); err != nil {
		return err
	}

	return r.update(ctx, id, func(entry *sessionSchema) error {
		entry.Status = string(status)
		entry.UpdatedAt = formatTime(at)
		return nil
	})
}

func (r *SessionRepository) UpdateTasks(ctx context.Context, id domain.SessionID, tasks []domain.ParsedTask, at time.Time) error {
	return r.update(ctx, id, func(entry *sessionSchema) error {
		entry.Tasks = toTaskSchemas(tasks)
		entry.UpdatedAt = formatTime(at)
		return nil
	})
}

func (r *SessionRepository) RecordCreated(ctx context.Context, entry domain.LedgerEntry) error {
	return r.update(ctx, entry.SessionID, func(session *sessionSchema) error {
		for _, existing := range session.Ledger {
			if existing.ContentHash == entry.ContentHash {
				return nil
			}
		}
		session.Ledger = append(session.Ledger, ledgerSchema{
			ContentHash: entry.ContentHash,
			ExternalRef: entry.ExternalTaskRef,
			CreatedAt:   formatTime(entry.CreatedAt),
		})
		return nil
	})
}

func (r *SessionRepository) LedgerEntries(ctx context.Context, id domain.SessionID) ([]domain.LedgerEntry, error) {
	file, err := r.load(ctx)
	if err != nil {
		return nil, err
	}

	for _, session := range file.Sessions {
		if session.ID != string(id) {
			continue
		}
		var entries []domain.LedgerEntry
		for _, row := range session.Ledger {
			entries = append(entries, domain.LedgerEntry{
				SessionID:       id,
				ContentHash:     row.ContentHash,
				ExternalTaskRef: row.ExternalRef,
				CreatedAt:       parseTime(row.CreatedAt),
			})
		}
		return entries, nil
	}

	return nil, nil
}

// userSessions returns the user's sessions, most recently updated first.
func (r *SessionRepository) userSessions(ctx context.Context, userID domain.UserID) ([]domain.Session, error) {
	file, err := r.load(ctx)
	if err != nil {
		return nil, err
	}

	var sessions []domain.Session
	for _, entry := range file.Sessions {
		if entry.UserID != string(userID) {
			continue
		}
		session, err := fromSessionSchema(entry)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}

	// Later appends win ties on updated_at.
	for i, j := 0, len(sessions)-1; i < j; i, j = i+1, j-1 {
		sessions[i], sessions[j] = sessions[j], sessions[i]
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	return sessions, nil
}

func (r *SessionRepository) load(ctx context.Context) (sessionsFileSchema, error) {
	if err := ctx.Err(); err != nil {
		return sessionsFileSchema{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.readSchema()
}

func (r *SessionRepository) update(ctx context.Context, id domain.SessionID, fn func(*sessionSchema) error) error {
	return r.mutate(ctx, func(file *sessionsFileSchema) error {
		for i := range file.Sessions {
			if file.Sessions[i].ID == string(id) {
				return fn(&file.Sessions[i])
			}
		}
		return domain.ErrSessionNotFound
	})
}

func (r *SessionRepository) mutate(ctx context.Context, fn func(*sessionsFileSchema) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := r.readSchema()
	if err != nil {
		return err
	}
	if err := fn(&file); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	file.applyDefaults()
	return writeTOMLFile(r.path, file)
}

func (r *SessionRepository) readSchema() (sessionsFileSchema, error) {
	var file sessionsFileSchema
	if err := readTOMLFile(r.path, &file); err != nil {
		return sessionsFileSchema{}, err
	}
	if err := file.validateVersion(); err != nil {
		return sessionsFileSchema{}, err
	}
	file.applyDefaults()

	return file, nil
}

func toSessionSchema(session domain.Session) sessionSchema {
	return sessionSchema{
		ID:        string(session.ID),
		UserID:    string(session.UserID),
		InputText: session.InputText,
		Status:    string(session.Status),
		CreatedAt: formatTime(session.CreatedAt),
		UpdatedAt: formatTime(session.UpdatedAt),
		Tasks:     toTaskSchemas(session.Tasks),
	}
}

func fromSessionSchema(entry sessionSchema) (domain.Session, error) {
	status, err := domain.ParseSessionStatus(entry.Status)
	if err != nil {
		return domain.Session{}, fmt.Errorf("session %s: %w", entry.ID, err)
	}
	tasks, err := fromTaskSchemas(entry.Tasks)
	if err != nil {
		return domain.Session{}, fmt.Errorf("session %s: %w", entry.ID, err)
	}

	session := domain.Session{
		ID:        domain.SessionID(entry.ID),
		UserID:    domain.UserID(entry.UserID),
		InputText: entry.InputText,
		Tasks:     tasks,
		Status:    status,
		CreatedAt: parseTime(entry.CreatedAt),
		UpdatedAt: parseTime(entry.UpdatedAt),
	}
	for _, row := range entry.Ledger {
		if row.ExternalRef != "" {
			session.CreatedTaskRefs = append(session.CreatedTaskRefs, row.ExternalRef)
		}
	}
	return session, nil
}

func toTaskSchemas(tasks []domain.ParsedTask) []taskSchema {
	if len(tasks) == 0 {
		return nil
	}

	out := make([]taskSchema, 0, len(tasks))
	for _, task := range tasks {
		entry := taskSchema{
			Raw:                task.Raw,
			Title:              task.Title,
			DurationBucket:     string(task.DurationBucket),
			MatchedExpression:  task.MatchedExpression,
			IsProjectCandidate: task.IsProjectCandidate,
			Priority:           int(task.Priority),
			Subtasks:           toTaskSchemas(task.Subtasks),
		}
		if minutes, ok := task.Minutes(); ok {
			entry.ExplicitMinutes = domain.IntPtr(minutes)
		}
		out = append(out, entry)
	}
	return out
}

func fromTaskSchemas(entries []taskSchema) ([]domain.ParsedTask, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	tasks := make([]domain.ParsedTask, 0, len(entries))
	for _, entry := range entries {
		bucket, err := domain.ParseBucket(entry.DurationBucket)
		if err != nil {
			return nil, err
		}
		subtasks, err := fromTaskSchemas(entry.Subtasks)
		if err != nil {
			return nil, err
		}

		task := domain.ParsedTask{
			Raw:                entry.Raw,
			Title:              entry.Title,
			DurationBucket:     bucket,
			MatchedExpression:  entry.MatchedExpression,
			IsProjectCandidate: entry.IsProjectCandidate,
			Priority:           domain.Priority(entry.Priority),
			Subtasks:           subtasks,
		}
		if entry.ExplicitMinutes != nil {
			task.ExplicitMinutes = domain.IntPtr(*entry.ExplicitMinutes)
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}
