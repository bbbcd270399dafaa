package storage

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/amirmansour-aghdasy/hikaweb-back-sub003/internal/models"
)

// MemoryCredentialStore is an in-process credential store for development
// and tests. Production deployments use the redis-backed store.
type MemoryCredentialStore struct {
	mu sync.RWMutex
	// ownerUserID -> credentialID (storage encoding) -> record
	creds map[string]map[string]*models.Credential
}

func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{
		creds: make(map[string]map[string]*models.Credential),
	}
}

func (m *MemoryCredentialStore) ListActive(ctx context.Context, ownerUserID string) ([]*models.Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.Credential
	for _, cred := range m.creds[ownerUserID] {
		if cred.IsActive {
			out = append(out, copyCredential(cred))
		}
	}
	return out, nil
}

func (m *MemoryCredentialStore) Create(ctx context.Context, cred *models.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	byID, ok := m.creds[cred.OwnerUserID]
	if !ok {
		byID = make(map[string]*models.Credential)
		m.creds[cred.OwnerUserID] = byID
	}

	key := models.EncodeCredentialID(cred.ID)
	if _, exists := byID[key]; exists {
		return ErrDuplicateCredential
	}
	byID[key] = copyCredential(cred)
	return nil
}

func (m *MemoryCredentialStore) FindActive(ctx context.Context, ownerUserID string, credentialID []byte) (*models.Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cred, ok := m.creds[ownerUserID][models.EncodeCredentialID(credentialID)]
	if !ok || !cred.IsActive {
		return nil, ErrCredentialNotFound
	}
	return copyCredential(cred), nil
}

func (m *MemoryCredentialStore) UpdateCounterAndActivity(ctx context.Context, ownerUserID string, credentialID []byte, newCounter uint32, usedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cred, ok := m.creds[ownerUserID][models.EncodeCredentialID(credentialID)]
	if !ok || !cred.IsActive {
		return ErrCredentialNotFound
	}
	if cred.Counter >= newCounter {
		return ErrStaleCounter
	}
	cred.Counter = newCounter
	used := usedAt
	cred.LastUsedAt = &used
	return nil
}

func (m *MemoryCredentialStore) Revoke(ctx context.Context, ownerUserID string, credentialID []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cred, ok := m.creds[ownerUserID][models.EncodeCredentialID(credentialID)]
	if !ok || !cred.IsActive {
		return ErrCredentialNotFound
	}
	cred.IsActive = false
	now := time.Now().UTC()
	cred.RevokedAt = &now
	return nil
}

func copyCredential(cred *models.Credential) *models.Credential {
	dup := *cred
	return &dup
}

// MemoryChallengeStore keeps challenges in a mutex-guarded map with the same
// consume-once semantics as the redis store. A background janitor drops
// expired entries that were never consumed.
type MemoryChallengeStore struct {
	mu         sync.Mutex
	challenges map[string]*models.Challenge
}

func NewMemoryChallengeStore() *MemoryChallengeStore {
	s := &MemoryChallengeStore{
		challenges: make(map[string]*models.Challenge),
	}
	go s.janitor()
	return s
}

func (m *MemoryChallengeStore) Issue(ctx context.Context, key string, challenge *models.Challenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	dup := *challenge
	m.challenges[key] = &dup
	return nil
}

func (m *MemoryChallengeStore) Consume(ctx context.Context, key string, expected models.ChallengeKind) (*models.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	challenge, ok := m.challenges[key]
	if !ok {
		return nil, ErrChallengeNotFound
	}
	// Read-and-delete before any checks: a failed attempt burns the
	// challenge too.
	delete(m.challenges, key)

	if challenge.Expired(time.Now()) {
		return nil, ErrChallengeExpired
	}
	if challenge.Kind != expected {
		return nil, ErrChallengeKindMismatch
	}
	return challenge, nil
}

func (m *MemoryChallengeStore) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now()
		m.mu.Lock()
		for key, challenge := range m.challenges {
			if challenge.Expired(now) {
				delete(m.challenges, key)
			}
		}
		m.mu.Unlock()
	}
}

// MemoryUserDirectory is an in-process user directory for development and
// tests, seeded from the security policy file at startup.
type MemoryUserDirectory struct {
	mu      sync.RWMutex
	byID    map[string]*models.User
	byEmail map[string]string
}

func NewMemoryUserDirectory() *MemoryUserDirectory {
	return &MemoryUserDirectory{
		byID:    make(map[string]*models.User),
		byEmail: make(map[string]string),
	}
}

func (m *MemoryUserDirectory) FindByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return copyUser(user), nil
}

func (m *MemoryUserDirectory) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, ErrUserNotFound
	}
	return copyUser(m.byID[id]), nil
}

func (m *MemoryUserDirectory) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	ts := at
	user.LastLoginAt = &ts
	return nil
}

func (m *MemoryUserDirectory) Put(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.byID[user.ID] = copyUser(user)
	m.byEmail[normalizeEmail(user.Email)] = user.ID
	return nil
}

func copyUser(user *models.User) *models.User {
	dup := *user
	return &dup
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
