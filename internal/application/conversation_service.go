package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bnema/taskdump/internal/domain"
	"github.com/bnema/taskdump/internal/ports"
)

type conversationKey struct {
	user    domain.UserID
	channel domain.ChannelID
}

// ConversationService is a cache-aside layer over the context repository.
// Entries older than the TTL read as absent and are deleted on that read.
type ConversationService struct {
	repo  ports.ConversationRepository
	clock ports.Clock
	ttl   time.Duration

	mu    sync.Mutex
	cache map[conversationKey]domain.ConversationContext
}

func NewConversationService(repo ports.ConversationRepository, ttl time.Duration, clock ports.Clock) *ConversationService {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if ttl <= 0 {
		ttl = domain.DefaultContextTTL
	}

	return &ConversationService{
		repo:  repo,
		clock: clock,
		ttl:   ttl,
		cache: map[conversationKey]domain.ConversationContext{},
	}
}

// Get returns the live context or domain.ErrContextNotFound.
func (s *ConversationService) Get(ctx context.Context, userID domain.UserID, channelID domain.ChannelID) (domain.ConversationContext, error) {
	key := conversationKey{user: userID, channel: channelID}
	now := s.clock.Now()

	s.mu.Lock()
	cached, ok := s.cache[key]
	s.mu.Unlock()

	if !ok {
		loaded, err := s.repo.Get(ctx, userID, channelID)
		if err != nil {
			if errors.Is(err, domain.ErrContextNotFound) {
				return domain.ConversationContext{}, domain.ErrContextNotFound
			}
			return domain.ConversationContext{}, fmt.Errorf("load conversation context: %w", err)
		}
		cached = loaded
	}

	if cached.Expired(now, s.ttl) {
		if err := s.purge(ctx, key); err != nil {
			return domain.ConversationContext{}, err
		}
		return domain.ConversationContext{}, domain.ErrContextNotFound
	}

	s.mu.Lock()
	s.cache[key] = cached
	s.mu.Unlock()

	return cached, nil
}

// Update merges patch over the current context, creating it when absent.
func (s *ConversationService) Update(ctx context.Context, userID domain.UserID, channelID domain.ChannelID, patch domain.ContextPatch) (domain.ConversationContext, error) {
	current, err := s.Get(ctx, userID, channelID)
	if err != nil {
		if !errors.Is(err, domain.ErrContextNotFound) {
			return domain.ConversationContext{}, err
		}
		current = domain.ConversationContext{UserID: userID, ChannelID: channelID}
	}

	next := current.Apply(patch, s.clock.Now())
	if err := s.repo.Save(ctx, next); err != nil {
		return domain.ConversationContext{}, fmt.Errorf("save conversation context: %w", err)
	}

	s.mu.Lock()
	s.cache[conversationKey{user: userID, channel: channelID}] = next
	s.mu.Unlock()

	return next, nil
}

func (s *ConversationService) purge(ctx context.Context, key conversationKey) error {
	s.mu.Lock()
	delete(s.cache, key)
	s.mu.Unlock()

	if err := s.repo.Delete(ctx, key.user, key.channel); err != nil && !errors.Is(err, domain.ErrContextNotFound) {
		return fmt.Errorf("delete conversation context: %w", err)
	}
	return nil
}
