package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bnema/taskdump/internal/domain"
	"github.com/bnema/taskdump/internal/ports"
)

type ConversationRepository struct {
	db *DB
}

var _ ports.ConversationRepository = (*ConversationRepository)(nil)

func NewConversationRepository(db *DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) Get(ctx context.Context, userID domain.UserID, channelID domain.ChannelID) (domain.ConversationContext, error) {
	var (
		conversation domain.ConversationContext
		intent       string
		sessionID    string
		updatedAt    int64
	)
	err := r.db.Conn().QueryRowContext(ctx, `
SELECT last_intent, last_created_task_ref, last_session_id, last_task_title, last_topic, freeform_context, updated_at
FROM conversation_contexts WHERE user_id = ? AND channel_id = ?`,
		string(userID), string(channelID),
	).Scan(
		&intent,
		&conversation.LastCreatedTaskRef,
		&sessionID,
		&conversation.LastTaskTitle,
		&conversation.LastTopic,
		&conversation.FreeformContext,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ConversationContext{}, domain.ErrContextNotFound
	}
	if err != nil {
		return domain.ConversationContext{}, fmt.Errorf("load conversation context: %w", err)
	}

	conversation.UserID = userID
	conversation.ChannelID = channelID
	conversation.LastIntent = domain.Intent(intent)
	conversation.LastSessionID = domain.SessionID(sessionID)
	conversation.UpdatedAt = fromUnixNano(updatedAt)
	return conversation, nil
}

func (r *ConversationRepository) Save(ctx context.Context, conversation domain.ConversationContext) error {
	if conversation.UserID == "" {
		return fmt.Errorf("save conversation context: user id is required")
	}

	_, err := r.db.Conn().ExecContext(ctx, `
INSERT INTO conversation_contexts (
	user_id, channel_id, last_intent, last_created_task_ref, last_session_id,
	last_task_title, last_topic, freeform_context, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(user_id, channel_id) DO UPDATE SET
	last_intent = excluded.last_intent,
	last_created_task_ref = excluded.last_created_task_ref,
	last_session_id = excluded.last_session_id,
	last_task_title = excluded.last_task_title,
	last_topic = excluded.last_topic,
	freeform_context = excluded.freeform_context,
	updated_at = excluded.updated_at`,
		string(conversation.UserID),
		string(conversation.ChannelID),
		string(conversation.LastIntent),
		conversation.LastCreatedTaskRef,
		string(conversation.LastSessionID),
		conversation.LastTaskTitle,
		conversation.LastTopic,
		conversation.FreeformContext,
		toUnixNano(conversation.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save conversation context: %w", err)
	}
	return nil
}

func (r *ConversationRepository) Delete(ctx context.Context, userID domain.UserID, channelID domain.ChannelID) error {
	result, err := r.db.Conn().ExecContext(ctx,
		`DELETE FROM conversation_contexts WHERE user_id = ? AND channel_id = ?`,
		string(userID), string(channelID),
	)
	if err != nil {
		return fmt.Errorf("delete conversation context: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrContextNotFound
	}
	return nil
}
