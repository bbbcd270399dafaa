// Package audit records terminal ceremony outcomes in append-only object
// storage. Credentials are never hard-deleted, and the trail keeps enough
// context to reconstruct who enrolled, authenticated or revoked what, when.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
)

// Event kinds.
const (
	KindRegistration   = "registration"
	KindAuthentication = "authentication"
	KindRevocation     = "revocation"
)

// Outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
)

// Event is one terminal ceremony outcome.
type Event struct {
	ID           string    `json:"id"`
	Kind         string    `json:"kind"`
	Outcome      string    `json:"outcome"`
	Reason       string    `json:"reason,omitempty"`
	UserID       string    `json:"userId,omitempty"`
	Email        string    `json:"email,omitempty"`
	CredentialID string    `json:"credentialId,omitempty"`
	At           time.Time `json:"at"`
}

// Recorder accepts audit events. Implementations must never block a ceremony
// on recording failures; callers log and continue.
type Recorder interface {
	Record(ctx context.Context, event Event) error
}

// Trail writes events as JSON objects to an S3-compatible bucket, one object
// per event, partitioned by day.
type Trail struct {
	client *minio.Client
	bucket string
}

func NewTrail(client *minio.Client, bucket string) *Trail {
	return &Trail{client: client, bucket: bucket}
}

func (t *Trail) Record(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}

	key := fmt.Sprintf("audit/biometric/%s/%s.json", event.At.UTC().Format("2006/01/02"), event.ID)
	_, err = t.client.PutObject(ctx, t.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("failed to write audit event: %w", err)
	}
	return nil
}

// Nop discards events. Used when no audit bucket is configured and in tests.
type Nop struct{}

func (Nop) Record(ctx context.Context, event Event) error { return nil }
