package ports

import (
	"context"

	"github.com/bnema/taskdump/internal/domain"
)

type ConversationRepository interface {
	Get(ctx context.Context, userID domain.UserID, channelID domain.ChannelID) (domain.ConversationContext, error)
	Save(ctx context.Context, conversation domain.ConversationContext) error
	Delete(ctx context.Context, userID domain.UserID, channelID domain.ChannelID) error
}
