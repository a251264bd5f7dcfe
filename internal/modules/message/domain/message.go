package domain

import "time"

// Message is one record of the audit trail. CreatedAt is assigned server
// side in UTC, never taken from the client, and at most one row exists per
// (SourceKey, ContentFingerprint) pair.
type Message struct {
	ID                 int64     `json:"id"`
	SourceKey          string    `json:"source_key"`
	UserKey            string    `json:"user_key"`
	Content            string    `json:"content"`
	ContentFingerprint string    `json:"content_fingerprint"`
	CreatedAt          time.Time `json:"created_at"`
}
