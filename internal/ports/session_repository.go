package ports

import (
	"context"
	"time"

	"github.com/bnema/taskdump/internal/domain"
)

// SessionRepository persists sessions together with their idempotency
// ledger. Callers serialize organize per user; the store does not lock.
type SessionRepository interface {
	Create(ctx context.Context, session domain.Session) error
	GetByID(ctx context.Context, id domain.SessionID) (domain.Session, error)
	// GetLastPending also returns ACCEPTED sessions left by an interrupted push.
	GetLastPending(ctx context.Context, userID domain.UserID) (domain.Session, error)
	ListByUser(ctx context.Context, userID domain.UserID, limit int) ([]domain.Session, error)
	UpdateStatus(ctx context.Context, id domain.SessionID, status domain.SessionStatus, at time.Time) error
	UpdateTasks(ctx context.Context, id domain.SessionID, tasks []domain.ParsedTask, at time.Time) error

	// RecordCreated writes the ledger entry and appends the external ref to
	// the session in one step. Recording an existing hash is a no-op.
	RecordCreated(ctx context.Context, entry domain.LedgerEntry) error
	LedgerEntries(ctx context.Context, id domain.SessionID) ([]domain.LedgerEntry, error)
}
