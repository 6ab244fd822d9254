package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

type LedgerEntry struct {
	SessionID       SessionID
	ContentHash     string
	ExternalTaskRef string
	CreatedAt       time.Time
}

// ContentHash is stable for one logical task within one session, so a
// re-run of accept recognizes tasks it already created.
func ContentHash(sessionID SessionID, title string, bucket DurationBucket) string {
	sum := sha256.Sum256([]byte(string(sessionID) + "\x1f" + title + "\x1f" + string(bucket)))
	return hex.EncodeToString(sum[:])
}

// SubtaskHash keys a subtask under its parent's title.
func SubtaskHash(sessionID SessionID, parentTitle string, subtask ParsedTask) string {
	return ContentHash(sessionID, parentTitle+" > "+subtask.Title, subtask.DurationBucket)
}
