package application

import "github.com/bnema/taskdump/internal/domain"

type OrganizeCommand struct {
	Text      string
	UserID    domain.UserID
	ChannelID domain.ChannelID
}

// AcceptCommand targets SessionID, or the user's last pending session when
// SessionID is empty.
type AcceptCommand struct {
	UserID    domain.UserID
	ChannelID domain.ChannelID
	SessionID domain.SessionID
}

// BreakdownCommand names a task by its 1-based position in the last pending
// session. Zero means the task last discussed in this conversation.
type BreakdownCommand struct {
	UserID    domain.UserID
	ChannelID domain.ChannelID
	TaskIndex int
}

type CorrectTimeCommand struct {
	Text      string
	UserID    domain.UserID
	ChannelID domain.ChannelID
}
