package application

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bnema/taskdump/internal/domain"
	"github.com/stretchr/testify/mock"
)

func mockAnyContext() interface{} {
	return mock.Anything
}

type fixedClock struct {
	now time.Time
}

func (f fixedClock) Now() time.Time {
	return f.now
}

type steppingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *steppingClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type sequenceIDs struct {
	ids []string
	i   int
}

func (s *sequenceIDs) NewID() string {
	id := s.ids[s.i%len(s.ids)]
	s.i++
	return id
}

type memorySessionRepo struct {
	mu        sync.Mutex
	sessions  map[domain.SessionID]domain.Session
	ledger    map[domain.SessionID][]domain.LedgerEntry
	recordErr error
}

func newMemorySessionRepo() *memorySessionRepo {
	return &memorySessionRepo{
		sessions: map[domain.SessionID]domain.Session{},
		ledger:   map[domain.SessionID][]domain.LedgerEntry{},
	}
}

func (r *memorySessionRepo) Create(_ context.Context, session domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session.Tasks = domain.CloneTasks(session.Tasks)
	r.sessions[session.ID] = session
	return nil
}

func (r *memorySessionRepo) GetByID(_ context.Context, id domain.SessionID) (domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	session.Tasks = domain.CloneTasks(session.Tasks)
	session.CreatedTaskRefs = append([]string(nil), session.CreatedTaskRefs...)
	return session, nil
}

func (r *memorySessionRepo) GetLastPending(_ context.Context, userID domain.UserID) (domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var found *domain.Session
	for _, session := range r.sessions {
		if session.UserID != userID || !session.Status.Resumable() {
			continue
		}
		if found == nil || session.UpdatedAt.After(found.UpdatedAt) {
			candidate := session
			found = &candidate
		}
	}
	if found == nil {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	found.Tasks = domain.CloneTasks(found.Tasks)
	return *found, nil
}

func (r *memorySessionRepo) ListByUser(_ context.Context, userID domain.UserID, limit int) ([]domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Session
	for _, session := range r.sessions {
		if session.UserID == userID {
			out = append(out, session)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memorySessionRepo) UpdateStatus(ctx context.Context, id domain.SessionID, status domain.SessionStatus, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return domain.ErrSessionNotFound
	}
	session.Status = status
	session.UpdatedAt = at
	r.sessions[id] = session
	return nil
}

func (r *memorySessionRepo) UpdateTasks(_ context.Context, id domain.SessionID, tasks []domain.ParsedTask, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return domain.ErrSessionNotFound
	}
	session.Tasks = domain.CloneTasks(tasks)
	session.UpdatedAt = at
	r.sessions[id] = session
	return nil
}

func (r *memorySessionRepo) RecordCreated(ctx context.Context, entry domain.LedgerEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recordErr != nil {
		return r.recordErr
	}
	for _, existing := range r.ledger[entry.SessionID] {
		if existing.ContentHash == entry.ContentHash {
			return nil
		}
	}
	session, ok := r.sessions[entry.SessionID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	r.ledger[entry.SessionID] = append(r.ledger[entry.SessionID], entry)
	session.CreatedTaskRefs = append(session.CreatedTaskRefs, entry.ExternalTaskRef)
	r.sessions[entry.SessionID] = session
	return nil
}

func (r *memorySessionRepo) LedgerEntries(_ context.Context, id domain.SessionID) ([]domain.LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.LedgerEntry(nil), r.ledger[id]...), nil
}

type memoryConversationRepo struct {
	mu      sync.Mutex
	entries map[string]domain.ConversationContext
	gets    int
	deletes int
}

func newMemoryConversationRepo() *memoryConversationRepo {
	return &memoryConversationRepo{entries: map[string]domain.ConversationContext{}}
}

func conversationRepoKey(userID domain.UserID, channelID domain.ChannelID) string {
	return string(userID) + "|" + string(channelID)
}

func (r *memoryConversationRepo) Get(_ context.Context, userID domain.UserID, channelID domain.ChannelID) (domain.ConversationContext, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gets++
	entry, ok := r.entries[conversationRepoKey(userID, channelID)]
	if !ok {
		return domain.ConversationContext{}, domain.ErrContextNotFound
	}
	return entry, nil
}

func (r *memoryConversationRepo) Save(_ context.Context, conversation domain.ConversationContext) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[conversationRepoKey(conversation.UserID, conversation.ChannelID)] = conversation
	return nil
}

func (r *memoryConversationRepo) Delete(_ context.Context, userID domain.UserID, channelID domain.ChannelID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deletes++
	delete(r.entries, conversationRepoKey(userID, channelID))
	return nil
}
