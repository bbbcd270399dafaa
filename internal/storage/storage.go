package storage

import (
	"context"
	"errors"
	"time"

	"github.com/amirmansour-aghdasy/hikaweb-back-sub003/internal/models"
)

// Sentinel errors shared by all store implementations. Callers match with
// errors.Is.
var (
	ErrUserNotFound          = errors.New("user not found")
	ErrCredentialNotFound    = errors.New("credential not found")
	ErrDuplicateCredential   = errors.New("credential already registered")
	ErrStaleCounter          = errors.New("stored counter is not behind the reported counter")
	ErrChallengeNotFound     = errors.New("challenge not found")
	ErrChallengeExpired      = errors.New("challenge expired")
	ErrChallengeKindMismatch = errors.New("challenge kind mismatch")
)

// CredentialStore persists authenticator enrollments. Credentials are never
// hard-deleted; revocation flips IsActive and keeps the record for audit.
type CredentialStore interface {
	// ListActive returns the enabled credentials for a user, used to build
	// exclusion lists at registration and allow lists at authentication.
	ListActive(ctx context.Context, ownerUserID string) ([]*models.Credential, error)

	// Create stores a new credential. Returns ErrDuplicateCredential if the
	// (ownerUserId, id) pair already exists.
	Create(ctx context.Context, cred *models.Credential) error

	// FindActive resolves an authentication response to a stored credential,
	// scoped to the owner. Returns ErrCredentialNotFound if there is no
	// active match.
	FindActive(ctx context.Context, ownerUserID string, credentialID []byte) (*models.Credential, error)

	// UpdateCounterAndActivity advances the replay counter and the last-used
	// timestamp with a compare-and-set: it fails with ErrStaleCounter unless
	// the stored counter is strictly below newCounter.
	UpdateCounterAndActivity(ctx context.Context, ownerUserID string, credentialID []byte, newCounter uint32, usedAt time.Time) error

	// Revoke soft-revokes a credential. Returns ErrCredentialNotFound if no
	// active credential matches both the id and the owner.
	Revoke(ctx context.Context, ownerUserID string, credentialID []byte) error
}

// ChallengeStore is the short-lived, single-use nonce registry. There is no
// side-effect-free read: callers can only consume, so a challenge can never
// be used twice even under retried finish calls.
type ChallengeStore interface {
	// Issue stores a challenge under key, atomically replacing any existing
	// challenge for the same key (last issuer wins).
	Issue(ctx context.Context, key string, challenge *models.Challenge) error

	// Consume atomically reads and deletes the challenge for key. It fails
	// with ErrChallengeNotFound if absent, ErrChallengeExpired if past its
	// deadline, or ErrChallengeKindMismatch if the kind does not match.
	// In every failure case the challenge is gone afterwards.
	Consume(ctx context.Context, key string, expected models.ChallengeKind) (*models.Challenge, error)
}

// UserDirectory is the identity collaborator. The main record store owns
// accounts; this interface is the narrow slice the biometric service needs.
type UserDirectory interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	TouchLastLogin(ctx context.Context, id string, at time.Time) error

	// Put upserts a user record. Used by startup seeding.
	Put(ctx context.Context, user *models.User) error
}
