package domain

import "time"

type Intent string

const (
	IntentOrganize     Intent = "organize"
	IntentAccept       Intent = "accept"
	IntentBreakdown    Intent = "breakdown"
	IntentResume       Intent = "resume"
	IntentDiscard      Intent = "discard"
	IntentCorrectTime  Intent = "correct_time"
	IntentNeedEstimate Intent = "need_estimate"
)

const DefaultContextTTL = 30 * time.Minute

// ConversationContext is the short-lived memory for one (user, channel).
type ConversationContext struct {
	UserID             UserID
	ChannelID          ChannelID
	LastIntent         Intent
	LastCreatedTaskRef string
	LastSessionID      SessionID
	LastTaskTitle      string
	LastTopic          string
	FreeformContext    string
	UpdatedAt          time.Time
}

// ContextPatch carries optional fields. Nil fields keep their previous value.
type ContextPatch struct {
	LastIntent         *Intent
	LastCreatedTaskRef *string
	LastSessionID      *SessionID
	LastTaskTitle      *string
	LastTopic          *string
	FreeformContext    *string
}

func (c ConversationContext) Apply(patch ContextPatch, now time.Time) ConversationContext {
	if patch.LastIntent != nil {
		c.LastIntent = *patch.LastIntent
	}
	if patch.LastCreatedTaskRef != nil {
		c.LastCreatedTaskRef = *patch.LastCreatedTaskRef
	}
	if patch.LastSessionID != nil {
		c.LastSessionID = *patch.LastSessionID
	}
	if patch.LastTaskTitle != nil {
		c.LastTaskTitle = *patch.LastTaskTitle
	}
	if patch.LastTopic != nil {
		c.LastTopic = *patch.LastTopic
	}
	if patch.FreeformContext != nil {
		c.FreeformContext = *patch.FreeformContext
	}
	c.UpdatedAt = now
	return c
}

func (c ConversationContext) Expired(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		ttl = DefaultContextTTL
	}
	return now.Sub(c.UpdatedAt) > ttl
}

func StringPtr(v string) *string {
	return &v
}

func IntentPtr(v Intent) *Intent {
	return &v
}
