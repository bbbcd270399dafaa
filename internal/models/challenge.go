package models

import "time"

// ChallengeKind separates registration challenges from authentication
// challenges so a nonce issued for one ceremony can never complete the other.
type ChallengeKind string

const (
	ChallengeRegistration   ChallengeKind = "registration"
	ChallengeAuthentication ChallengeKind = "authentication"
)

// Challenge is a single-use nonce bound to one ceremony attempt. At most one
// live challenge exists per key; issuing a new one supersedes any prior
// unconsumed challenge for the same key.
type Challenge struct {
	Nonce         string        `json:"nonce"`
	Kind          ChallengeKind `json:"kind"`
	SubjectUserID string        `json:"subjectUserId"`
	ExpiresAt     time.Time     `json:"expiresAt"`
}

// Expired reports whether the challenge deadline has passed.
func (c *Challenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
