package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bnema/taskdump/internal/domain"
	"github.com/bnema/taskdump/internal/ports"
)

const sessionColumns = `id, user_id, input_text, tasks_json, status, created_at, updated_at`

type SessionRepository struct {
	db *DB
}

var _ ports.SessionRepository = (*SessionRepository)(nil)

func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, session domain.Session) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("validate session: %w", err)
	}

	tasksJSON, err := encodeTasks(session.Tasks)
	if err != nil {
		return err
	}

	_, err = r.db.Conn().ExecContext(ctx,
		`INSERT INTO sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(session.ID),
		string(session.UserID),
		session.InputText,
		tasksJSON,
		string(session.Status),
		toUnixNano(session.CreatedAt),
		toUnixNano(session.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *SessionRepository) GetByID(ctx context.Context, id domain.SessionID) (domain.Session, error) {
	row := r.db.Conn().QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, string(id))
	return r.loadSession(ctx, row)
}

// GetLastPending returns the most recently updated PENDING or ACCEPTED
// session.
func (r *SessionRepository) GetLastPending(ctx context.Context, userID domain.UserID) (domain.Session, error) {
	row := r.db.Conn().QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE user_id = ? AND status IN (?, ?) ORDER BY updated_at DESC, rowid DESC LIMIT 1`,
		string(userID), string(domain.SessionPending), string(domain.SessionAccepted),
	)
	return r.loadSession(ctx, row)
}

func (r *SessionRepository) ListByUser(ctx context.Context, userID domain.UserID, limit int) ([]domain.Session, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.Conn().QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE user_id = ? ORDER BY updated_at DESC, rowid DESC LIMIT ?`,
		string(userID), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}

	var sessions []domain.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	// Close before the ref lookups: the pool holds a single connection.
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("close session rows: %w", err)
	}

	for i := range sessions {
		refs, err := r.createdRefs(ctx, sessions[i].ID)
		if err != nil {
			return nil, err
		}
		sessions[i].CreatedTaskRefs = refs
	}
	return sessions, nil
}

func (r *SessionRepository) UpdateStatus(ctx context.Context, id domain.SessionID, status domain.SessionStatus, at time.Time) error {
	if _, err := domain.ParseSessionStatus(string(status)); err != nil {
		return err
	}

	result, err := r.db.Conn().ExecContext(ctx,
		`UPDATE sessions SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), toUnixNano(at), string(id),
	)
	if err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	return requireAffected(result)
}

func (r *SessionRepository) UpdateTasks(ctx context.Context, id domain.SessionID, tasks []domain.ParsedTask, at time.Time) error {
	tasksJSON, err := encodeTasks(tasks)
	if err != nil {
		return err
	}

	result, err := r.db.Conn().ExecContext(ctx,
		`UPDATE sessions SET tasks_json = ?, updated_at = ? WHERE id = ?`,
		tasksJSON, toUnixNano(at), string(id),
	)
	if err != nil {
		return fmt.Errorf("update session tasks: %w", err)
	}
	return requireAffected(result)
}

// RecordCreated inserts the ledger row unless the hash is already present.
// The session's created refs are read back from the ledger in insertion
// order, so the insert is the append.
func (r *SessionRepository) RecordCreated(ctx context.Context, entry domain.LedgerEntry) error {
	tx, err := r.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger write: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, string(entry.SessionID)).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("check session: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO ledger_entries (session_id, content_hash, external_ref, created_at) VALUES (?, ?, ?, ?)
ON CONFLICT(session_id, content_hash) DO NOTHING`,
		string(entry.SessionID), entry.ContentHash, entry.ExternalTaskRef, toUnixNano(entry.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger write: %w", err)
	}
	return nil
}

func (r *SessionRepository) LedgerEntries(ctx context.Context, id domain.SessionID) ([]domain.LedgerEntry, error) {
	rows, err := r.db.Conn().QueryContext(ctx,
		`SELECT session_id, content_hash, external_ref, created_at FROM ledger_entries WHERE session_id = ? ORDER BY created_at ASC, rowid ASC`,
		string(id),
	)
	if err != nil {
		return nil, fmt.Errorf("query ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var (
			entry     domain.LedgerEntry
			sessionID string
			createdAt int64
		)
		if err := rows.Scan(&sessionID, &entry.ContentHash, &entry.ExternalTaskRef, &createdAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entry.SessionID = domain.SessionID(sessionID)
		entry.CreatedAt = fromUnixNano(createdAt)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger entries: %w", err)
	}
	return entries, nil
}

func (r *SessionRepository) loadSession(ctx context.Context, row *sql.Row) (domain.Session, error) {
	session, err := scanSession(row)
	if err != nil {
		return domain.Session{}, err
	}

	refs, err := r.createdRefs(ctx, session.ID)
	if err != nil {
		return domain.Session{}, err
	}
	session.CreatedTaskRefs = refs
	return session, nil
}

func (r *SessionRepository) createdRefs(ctx context.Context, id domain.SessionID) ([]string, error) {
	entries, err := r.LedgerEntries(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}

	refs := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.ExternalTaskRef != "" {
			refs = append(refs, entry.ExternalTaskRef)
		}
	}
	return refs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (domain.Session, error) {
	var (
		id, userID, inputText, tasksJSON, status string
		createdAt, updatedAt                     int64
	)
	err := row.Scan(&id, &userID, &inputText, &tasksJSON, &status, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("scan session: %w", err)
	}

	tasks, err := decodeTasks(tasksJSON)
	if err != nil {
		return domain.Session{}, fmt.Errorf("session %s: %w", id, err)
	}
	parsedStatus, err := domain.ParseSessionStatus(status)
	if err != nil {
		return domain.Session{}, fmt.Errorf("session %s: %w", id, err)
	}

	return domain.Session{
		ID:        domain.SessionID(id),
		UserID:    domain.UserID(userID),
		InputText: inputText,
		Tasks:     tasks,
		Status:    parsedStatus,
		CreatedAt: fromUnixNano(createdAt),
		UpdatedAt: fromUnixNano(updatedAt),
	}, nil
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}
