package toml

import (
	"context"
	"fmt"
	"sync"

	"github.com/bnema/taskdump/internal/domain"
	"github.com/bnema/taskdump/internal/ports"
	"github.com/spf13/viper"
)

type ConversationRepository struct {
	path string
	mu   *sync.RWMutex
}

var _ ports.ConversationRepository = (*ConversationRepository)(nil)

func NewConversationRepository(cfg *viper.Viper) (*ConversationRepository, error) {
	path, err := resolvePath(cfg, contextsFileName)
	if err != nil {
		return nil, err
	}

	return &ConversationRepository{path: path, mu: lockForPath(path)}, nil
}

func (r *ConversationRepository) Get(ctx context.Context, userID domain.UserID, channelID domain.ChannelID) (domain.ConversationContext, error) {
	if err := ctx.Err(); err != nil {
		return domain.ConversationContext{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return domain.ConversationContext{}, err
	}

	for _, entry := range file.Contexts {
		if entry.UserID == string(userID) && entry.ChannelID == string(channelID) {
			return fromContextSchema(entry), nil
		}
	}

	return domain.ConversationContext{}, domain.ErrContextNotFound
}

func (r *ConversationRepository) Save(ctx context.Context, conversation domain.ConversationContext) error {
	if conversation.UserID == "" {
		return fmt.Errorf("save conversation context: user id is required")
	}

	return r.mutate(ctx, func(file *contextsFileSchema) error {
		encoded := toContextSchema(conversation)
		for i := range file.Contexts {
			if file.Contexts[i].UserID == encoded.UserID && file.Contexts[i].ChannelID == encoded.ChannelID {
				file.Contexts[i] = encoded
				return nil
			}
		}
		file.Contexts = append(file.Contexts, encoded)
		return nil
	})
}

func (r *ConversationRepository) Delete(ctx context.Context, userID domain.UserID, channelID domain.ChannelID) error {
	return r.mutate(ctx, func(file *contextsFileSchema) error {
		for i, entry := range file.Contexts {
			if entry.UserID == string(userID) && entry.ChannelID == string(channelID) {
				file.Contexts = append(file.Contexts[:i], file.Contexts[i+1:]...)
				return nil
			}
		}
		return domain.ErrContextNotFound
	})
}

func (r *ConversationRepository) mutate(ctx context.Context, fn func(*contextsFileSchema) error) error {
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

	file.applyDefaults()
	return writeTOMLFile(r.path, file)
}

func (r *ConversationRepository) readSchema() (contextsFileSchema, error) {
	var file contextsFileSchema
	if err := readTOMLFile(r.path, &file); err != nil {
		return contextsFileSchema{}, err
	}
	if err := file.validateVersion(); err != nil {
		return contextsFileSchema{}, err
	}
	file.applyDefaults()

	return file, nil
}

func toContextSchema(conversation domain.ConversationContext) contextSchema {
	return contextSchema{
		UserID:             string(conversation.UserID),
		ChannelID:          string(conversation.ChannelID),
		LastIntent:         string(conversation.LastIntent),
		LastCreatedTaskRef: conversation.LastCreatedTaskRef,
		LastSessionID:      string(conversation.LastSessionID),
		LastTaskTitle:      conversation.LastTaskTitle,
		LastTopic:          conversation.LastTopic,
		FreeformContext:    conversation.FreeformContext,
		UpdatedAt:          formatTime(conversation.UpdatedAt),
	}
}

func fromContextSchema(entry contextSchema) domain.ConversationContext {
	return domain.ConversationContext{
		UserID:             domain.UserID(entry.UserID),
		ChannelID:          domain.ChannelID(entry.ChannelID),
		LastIntent:         domain.Intent(entry.LastIntent),
		LastCreatedTaskRef: entry.LastCreatedTaskRef,
		LastSessionID:      domain.SessionID(entry.LastSessionID),
		LastTaskTitle:      entry.LastTaskTitle,
		LastTopic:          entry.LastTopic,
		FreeformContext:    entry.FreeformContext,
		UpdatedAt:          parseTime(entry.UpdatedAt),
	}
}
