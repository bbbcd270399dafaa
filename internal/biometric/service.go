// Package biometric implements the passwordless WebAuthn registration and
// authentication ceremonies for the admin panel. The engine is stateless
// between calls: all ceremony state lives in the challenge and credential
// stores.
package biometric

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/sirupsen/logrus"

	"github.com/amirmansour-aghdasy/hikaweb-back-sub003/internal/audit"
	"github.com/amirmansour-aghdasy/hikaweb-back-sub003/internal/models"
	"github.com/amirmansour-aghdasy/hikaweb-back-sub003/internal/storage"
)

// DefaultChallengeTTL is how long a ceremony may sit between begin and
// finish before its challenge expires.
const DefaultChallengeTTL = 5 * time.Minute

// DefaultPrivilegedRoles is the fallback privileged set when the security
// policy does not define one.
var DefaultPrivilegedRoles = []models.Role{
	models.RoleSuperAdmin,
	models.RoleAdmin,
	models.RoleEditor,
	models.RoleModerator,
}

// CredentialSummary is what callers see after registration and when listing
// enrollments. The public key never leaves the store.
type CredentialSummary struct {
	ID                string                   `json:"id"`
	DeviceName        string                   `json:"deviceName"`
	DeviceType        string                   `json:"deviceType,omitempty"`
	AuthenticatorType models.AuthenticatorType `json:"authenticatorType"`
	RegisteredAt      time.Time                `json:"registeredAt"`
	LastUsedAt        *time.Time               `json:"lastUsedAt,omitempty"`
}

// Params contains the engine's collaborators. All state is injected; the
// engine holds no ambient globals.
type Params struct {
	Verifier        Verifier
	Users           storage.UserDirectory
	Credentials     storage.CredentialStore
	Challenges      storage.ChallengeStore
	Audit           audit.Recorder
	Logger          *logrus.Logger
	ChallengeTTL    time.Duration
	PrivilegedRoles []models.Role
}

type Service struct {
	verifier     Verifier
	users        storage.UserDirectory
	credentials  storage.CredentialStore
	challenges   storage.ChallengeStore
	audit        audit.Recorder
	log          *logrus.Logger
	challengeTTL time.Duration
	privileged   map[models.Role]struct{}
}

func NewService(p Params) (*Service, error) {
	if p.Verifier == nil || p.Users == nil || p.Credentials == nil || p.Challenges == nil {
		return nil, fmt.Errorf("verifier and all stores are required")
	}
	if p.Audit == nil {
		p.Audit = audit.Nop{}
	}
	if p.Logger == nil {
		p.Logger = logrus.StandardLogger()
	}
	if p.ChallengeTTL <= 0 {
		p.ChallengeTTL = DefaultChallengeTTL
	}
	roles := p.PrivilegedRoles
	if len(roles) == 0 {
		roles = DefaultPrivilegedRoles
	}
	privileged := make(map[models.Role]struct{}, len(roles))
	for _, role := range roles {
		privileged[role] = struct{}{}
	}

	return &Service{
		verifier:     p.Verifier,
		users:        p.Users,
		credentials:  p.Credentials,
		challenges:   p.Challenges,
		audit:        p.Audit,
		log:          p.Logger,
		challengeTTL: p.ChallengeTTL,
		privileged:   privileged,
	}, nil
}

func registrationKey(userID string) string {
	return "register:" + userID
}

func authenticationKey(email string) string {
	return "login:" + strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) isPrivileged(role models.Role) bool {
	_, ok := s.privileged[role]
	return ok
}

// BeginRegistration starts the enrollment ceremony for a privileged user and
// returns the credential-creation options to hand to the authenticator.
func (s *Service) BeginRegistration(ctx context.Context, userID string) (*protocol.CredentialCreation, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	if !s.isPrivileged(user.Role) {
		return nil, ErrNotPrivileged
	}

	active, err := s.credentials.ListActive(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}

	// Exclusion list stops an authenticator from enrolling itself twice.
	exclusions := make([]protocol.CredentialDescriptor, len(active))
	for i, cred := range active {
		exclusions[i] = cred.Descriptor()
	}

	options, nonce, err := s.verifier.RegistrationOptions(newCeremonyUser(user, active), exclusions)
	if err != nil {
		return nil, err
	}

	challenge := &models.Challenge{
		Nonce:         nonce,
		Kind:          models.ChallengeRegistration,
		SubjectUserID: user.ID,
		ExpiresAt:     time.Now().Add(s.challengeTTL),
	}
	if err := s.challenges.Issue(ctx, registrationKey(user.ID), challenge); err != nil {
		return nil, fmt.Errorf("failed to issue challenge: %w", err)
	}

	return options, nil
}

// FinishRegistration consumes the pending registration challenge, verifies
// the attestation response and stores the new credential. Returns a summary;
// the raw public key is never returned.
func (s *Service) FinishRegistration(ctx context.Context, userID string, response *protocol.ParsedCredentialCreationData, deviceName string) (*CredentialSummary, error) {
	challenge, err := s.challenges.Consume(ctx, registrationKey(userID), models.ChallengeRegistration)
	if err != nil {
		return nil, ErrChallengeInvalid
	}

	// The ceremony subject comes from the consumed challenge, not the
	// request, so a response cannot be bound to a different account.
	user, err := s.users.FindByID(ctx, challenge.SubjectUserID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	webcred, err := s.verifier.VerifyRegistration(newCeremonyUser(user, nil), challenge.Nonce, response)
	if err != nil {
		s.record(ctx, audit.Event{
			Kind: audit.KindRegistration, Outcome: audit.OutcomeRejected,
			Reason: "verification failed", UserID: user.ID, Email: user.Email,
		})
		s.log.WithError(err).WithField("userId", user.ID).Warn("biometric registration verification failed")
		return nil, ErrVerificationFailed
	}

	cred := &models.Credential{
		ID:                webcred.ID,
		OwnerUserID:       user.ID,
		PublicKey:         webcred.PublicKey,
		AttestationType:   webcred.AttestationType,
		Transport:         webcred.Transport,
		Counter:           webcred.Authenticator.SignCount,
		DeviceName:        deviceNameOrDefault(deviceName),
		DeviceType:        deviceTypeFromTransports(webcred.Transport),
		AuthenticatorType: attachmentType(webcred.Authenticator.Attachment),
		IsActive:          true,
		RegisteredAt:      time.Now().UTC(),
	}

	if err := s.credentials.Create(ctx, cred); err != nil {
		if errors.Is(err, storage.ErrDuplicateCredential) {
			return nil, ErrDuplicateCredential
		}
		return nil, fmt.Errorf("failed to store credential: %w", err)
	}

	s.record(ctx, audit.Event{
		Kind: audit.KindRegistration, Outcome: audit.OutcomeSuccess,
		UserID: user.ID, Email: user.Email,
		CredentialID: models.EncodeCredentialID(cred.ID),
	})
	s.log.WithFields(logrus.Fields{
		"userId": user.ID, "credentialId": models.EncodeCredentialID(cred.ID),
	}).Info("biometric credential registered")

	return summarize(cred), nil
}

// BeginAuthentication starts the login ceremony for an account identified by
// email. Unknown accounts and unprivileged accounts fail identically.
func (s *Service) BeginAuthentication(ctx context.Context, email string) (*protocol.CredentialAssertion, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if !s.isPrivileged(user.Role) {
		return nil, ErrInvalidCredentials
	}

	active, err := s.credentials.ListActive(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	if len(active) == 0 {
		return nil, ErrNoCredentials
	}

	options, nonce, err := s.verifier.AuthenticationOptions(newCeremonyUser(user, active))
	if err != nil {
		return nil, err
	}

	challenge := &models.Challenge{
		Nonce:         nonce,
		Kind:          models.ChallengeAuthentication,
		SubjectUserID: user.ID,
		ExpiresAt:     time.Now().Add(s.challengeTTL),
	}
	if err := s.challenges.Issue(ctx, authenticationKey(email), challenge); err != nil {
		return nil, fmt.Errorf("failed to issue challenge: %w", err)
	}

	return options, nil
}

// FinishAuthentication consumes the pending login challenge, verifies the
// assertion and advances the replay counter. A counter that does not move
// strictly forward indicates a cloned authenticator and rejects the login
// without touching storage.
func (s *Service) FinishAuthentication(ctx context.Context, email string, response *protocol.ParsedCredentialAssertionData) (*models.User, error) {
	challenge, err := s.challenges.Consume(ctx, authenticationKey(email), models.ChallengeAuthentication)
	if err != nil {
		return nil, ErrChallengeInvalid
	}

	// Resolve the subject from the consumed challenge, never from the
	// request body.
	user, err := s.users.FindByID(ctx, challenge.SubjectUserID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	stored, err := s.credentials.FindActive(ctx, user.ID, response.RawID)
	if err != nil {
		return nil, ErrCredentialNotFound
	}

	if _, err := s.verifier.VerifyAuthentication(newCeremonyUser(user, []*models.Credential{stored}), challenge.Nonce, response); err != nil {
		s.record(ctx, audit.Event{
			Kind: audit.KindAuthentication, Outcome: audit.OutcomeRejected,
			Reason: "verification failed", UserID: user.ID, Email: user.Email,
			CredentialID: models.EncodeCredentialID(stored.ID),
		})
		s.log.WithError(err).WithField("userId", user.ID).Warn("biometric login verification failed")
		return nil, ErrVerificationFailed
	}

	newCounter := response.Response.AuthenticatorData.Counter
	if newCounter <= stored.Counter {
		s.record(ctx, audit.Event{
			Kind: audit.KindAuthentication, Outcome: audit.OutcomeRejected,
			Reason: "counter did not advance", UserID: user.ID, Email: user.Email,
			CredentialID: models.EncodeCredentialID(stored.ID),
		})
		s.log.WithFields(logrus.Fields{
			"userId": user.ID, "stored": stored.Counter, "reported": newCounter,
		}).Warn("possible cloned authenticator rejected")
		return nil, ErrClonedAuthenticator
	}

	now := time.Now().UTC()
	if err := s.credentials.UpdateCounterAndActivity(ctx, user.ID, stored.ID, newCounter, now); err != nil {
		if errors.Is(err, storage.ErrStaleCounter) {
			// A concurrent authentication advanced the counter first.
			return nil, ErrClonedAuthenticator
		}
		return nil, fmt.Errorf("failed to update credential: %w", err)
	}

	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		// Bookkeeping only; never mask a verified login.
		s.log.WithError(err).WithField("userId", user.ID).Error("failed to update last login")
	}
	user.LastLoginAt = &now

	s.record(ctx, audit.Event{
		Kind: audit.KindAuthentication, Outcome: audit.OutcomeSuccess,
		UserID: user.ID, Email: user.Email,
		CredentialID: models.EncodeCredentialID(stored.ID),
	})
	s.log.WithField("userId", user.ID).Info("biometric login succeeded")

	return user, nil
}

// ListCredentials returns summaries of a user's active enrollments.
func (s *Service) ListCredentials(ctx context.Context, userID string) ([]*CredentialSummary, error) {
	active, err := s.credentials.ListActive(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	summaries := make([]*CredentialSummary, len(active))
	for i, cred := range active {
		summaries[i] = summarize(cred)
	}
	return summaries, nil
}

// RevokeCredential soft-revokes one of the caller's own credentials. The
// record is retained for audit; it is excluded from all future ceremonies.
func (s *Service) RevokeCredential(ctx context.Context, userID, encodedCredentialID string) error {
	credentialID, err := models.DecodeCredentialID(encodedCredentialID)
	if err != nil {
		return ErrCredentialNotFound
	}

	if err := s.credentials.Revoke(ctx, userID, credentialID); err != nil {
		if errors.Is(err, storage.ErrCredentialNotFound) {
			return ErrCredentialNotFound
		}
		return fmt.Errorf("failed to revoke credential: %w", err)
	}

	s.record(ctx, audit.Event{
		Kind: audit.KindRevocation, Outcome: audit.OutcomeSuccess,
		UserID: userID, CredentialID: encodedCredentialID,
	})
	s.log.WithFields(logrus.Fields{
		"userId": userID, "credentialId": encodedCredentialID,
	}).Info("biometric credential revoked")
	return nil
}

func (s *Service) record(ctx context.Context, event audit.Event) {
	if err := s.audit.Record(ctx, event); err != nil {
		s.log.WithError(err).Error("failed to record audit event")
	}
}

func summarize(cred *models.Credential) *CredentialSummary {
	return &CredentialSummary{
		ID:                models.EncodeCredentialID(cred.ID),
		DeviceName:        cred.DeviceName,
		DeviceType:        cred.DeviceType,
		AuthenticatorType: cred.AuthenticatorType,
		RegisteredAt:      cred.RegisteredAt,
		LastUsedAt:        cred.LastUsedAt,
	}
}

func deviceNameOrDefault(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "Biometric device"
	}
	return name
}

func attachmentType(attachment protocol.AuthenticatorAttachment) models.AuthenticatorType {
	switch attachment {
	case protocol.Platform:
		return models.AuthenticatorPlatform
	case protocol.CrossPlatform:
		return models.AuthenticatorCrossPlatform
	default:
		return models.AuthenticatorUnknown
	}
}

func deviceTypeFromTransports(transports []protocol.AuthenticatorTransport) string {
	if len(transports) == 0 {
		return ""
	}
	parts := make([]string, len(transports))
	for i, t := range transports {
		parts[i] = string(t)
	}
	return strings.Join(parts, ",")
}
