package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/amirmansour-aghdasy/hikaweb-back-sub003/internal/models"
)

// RedisChallengeStore keeps ceremony challenges in a shared expiring cache so
// every worker process sees the same challenge state. Expiry is enforced
// both by the key TTL and by the deadline embedded in the record.
type RedisChallengeStore struct {
	client *redis.Client
}

func NewRedisChallengeStore(client *redis.Client) *RedisChallengeStore {
	return &RedisChallengeStore{client: client}
}

func challengeKey(key string) string {
	return fmt.Sprintf("biometric_challenge:%s", key)
}

func (r *RedisChallengeStore) Issue(ctx context.Context, key string, challenge *models.Challenge) error {
	data, err := json.Marshal(challenge)
	if err != nil {
		return fmt.Errorf("failed to marshal challenge: %w", err)
	}

	ttl := time.Until(challenge.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("challenge already expired")
	}

	// Plain SET: a new challenge for the same key supersedes the old one.
	if err := r.client.Set(ctx, challengeKey(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save challenge: %w", err)
	}
	return nil
}

func (r *RedisChallengeStore) Consume(ctx context.Context, key string, expected models.ChallengeKind) (*models.Challenge, error) {
	// GETDEL makes the read-and-delete atomic: concurrent or retried finish
	// calls can never both observe the same challenge.
	data, err := r.client.GetDel(ctx, challengeKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrChallengeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume challenge: %w", err)
	}

	var challenge models.Challenge
	if err := json.Unmarshal([]byte(data), &challenge); err != nil {
		return nil, fmt.Errorf("failed to unmarshal challenge: %w", err)
	}

	if challenge.Expired(time.Now()) {
		return nil, ErrChallengeExpired
	}
	if challenge.Kind != expected {
		return nil, ErrChallengeKindMismatch
	}
	return &challenge, nil
}

// RedisCredentialStore persists credentials in a hash per owner, keyed by the
// transport-encoded credential id. Counter updates run inside a WATCH
// transaction so concurrent authentications cannot both advance the counter.
type RedisCredentialStore struct {
	client *redis.Client
}

func NewRedisCredentialStore(client *redis.Client) *RedisCredentialStore {
	return &RedisCredentialStore{client: client}
}

func credentialsKey(ownerUserID string) string {
	return fmt.Sprintf("biometric_credentials:%s", ownerUserID)
}

func (r *RedisCredentialStore) ListActive(ctx context.Context, ownerUserID string) ([]*models.Credential, error) {
	fields, err := r.client.HGetAll(ctx, credentialsKey(ownerUserID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}

	var out []*models.Credential
	for _, raw := range fields {
		var cred models.Credential
		if err := json.Unmarshal([]byte(raw), &cred); err != nil {
			return nil, fmt.Errorf("failed to unmarshal credential: %w", err)
		}
		if cred.IsActive {
			out = append(out, &cred)
		}
	}
	return out, nil
}

func (r *RedisCredentialStore) Create(ctx context.Context, cred *models.Credential) error {
	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("failed to marshal credential: %w", err)
	}

	created, err := r.client.HSetNX(ctx, credentialsKey(cred.OwnerUserID), models.EncodeCredentialID(cred.ID), data).Result()
	if err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	if !created {
		return ErrDuplicateCredential
	}
	return nil
}

func (r *RedisCredentialStore) FindActive(ctx context.Context, ownerUserID string, credentialID []byte) (*models.Credential, error) {
	raw, err := r.client.HGet(ctx, credentialsKey(ownerUserID), models.EncodeCredentialID(credentialID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCredentialNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}

	var cred models.Credential
	if err := json.Unmarshal([]byte(raw), &cred); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credential: %w", err)
	}
	if !cred.IsActive {
		return nil, ErrCredentialNotFound
	}
	return &cred, nil
}

func (r *RedisCredentialStore) UpdateCounterAndActivity(ctx context.Context, ownerUserID string, credentialID []byte, newCounter uint32, usedAt time.Time) error {
	key := credentialsKey(ownerUserID)
	field := models.EncodeCredentialID(credentialID)

	txn := func(tx *redis.Tx) error {
		raw, err := tx.HGet(ctx, key, field).Result()
		if errors.Is(err, redis.Nil) {
			return ErrCredentialNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get credential: %w", err)
		}

		var cred models.Credential
		if err := json.Unmarshal([]byte(raw), &cred); err != nil {
			return fmt.Errorf("failed to unmarshal credential: %w", err)
		}
		if !cred.IsActive {
			return ErrCredentialNotFound
		}
		if cred.Counter >= newCounter {
			return ErrStaleCounter
		}

		cred.Counter = newCounter
		used := usedAt
		cred.LastUsedAt = &used

		data, err := json.Marshal(&cred)
		if err != nil {
			return fmt.Errorf("failed to marshal credential: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, field, data)
			return nil
		})
		return err
	}

	// Retry on WATCH conflicts; a conflicting writer that advanced the
	// counter past ours turns into ErrStaleCounter on the next attempt.
	for i := 0; i < 3; i++ {
		err := r.client.Watch(ctx, txn, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return ErrStaleCounter
}

func (r *RedisCredentialStore) Revoke(ctx context.Context, ownerUserID string, credentialID []byte) error {
	key := credentialsKey(ownerUserID)
	field := models.EncodeCredentialID(credentialID)

	txn := func(tx *redis.Tx) error {
		raw, err := tx.HGet(ctx, key, field).Result()
		if errors.Is(err, redis.Nil) {
			return ErrCredentialNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get credential: %w", err)
		}

		var cred models.Credential
		if err := json.Unmarshal([]byte(raw), &cred); err != nil {
			return fmt.Errorf("failed to unmarshal credential: %w", err)
		}
		if !cred.IsActive {
			return ErrCredentialNotFound
		}

		cred.IsActive = false
		now := time.Now().UTC()
		cred.RevokedAt = &now

		data, err := json.Marshal(&cred)
		if err != nil {
			return fmt.Errorf("failed to marshal credential: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, field, data)
			return nil
		})
		return err
	}

	for i := 0; i < 3; i++ {
		err := r.client.Watch(ctx, txn, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return ErrCredentialNotFound
}

// RedisUserDirectory is a directory implementation backed by the shared
// cache, seeded at startup. Real deployments replace this with an adapter
// over the main record store.
type RedisUserDirectory struct {
	client *redis.Client
}

func NewRedisUserDirectory(client *redis.Client) *RedisUserDirectory {
	return &RedisUserDirectory{client: client}
}

func userKey(id string) string {
	return fmt.Sprintf("user:id:%s", id)
}

func userEmailKey(email string) string {
	return fmt.Sprintf("user:email:%s", normalizeEmail(email))
}

func (r *RedisUserDirectory) FindByID(ctx context.Context, id string) (*models.User, error) {
	raw, err := r.client.Get(ctx, userKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	var user models.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}
	return &user, nil
}

func (r *RedisUserDirectory) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	id, err := r.client.Get(ctx, userEmailKey(email)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve email: %w", err)
	}
	return r.FindByID(ctx, id)
}

func (r *RedisUserDirectory) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	user, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	ts := at
	user.LastLoginAt = &ts
	return r.Put(ctx, user)
}

func (r *RedisUserDirectory) Put(ctx context.Context, user *models.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}
	if err := r.client.Set(ctx, userKey(user.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	if err := r.client.Set(ctx, userEmailKey(user.Email), user.ID, 0).Err(); err != nil {
		return fmt.Errorf("failed to save email index: %w", err)
	}
	return nil
}
