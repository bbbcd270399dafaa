package biometric

import "errors"

// Ceremony error taxonomy. Controllers map these to HTTP statuses. All
// cryptographic and challenge failures are terminal for the attempt: the
// challenge is already consumed and the caller must restart from begin.
var (
	// ErrUserNotFound is returned when the registration subject does not
	// exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrNotPrivileged is returned when a user's role is outside the
	// privileged set allowed to enroll biometric credentials.
	ErrNotPrivileged = errors.New("only privileged accounts may enroll a biometric credential")

	// ErrInvalidCredentials is the generic authentication failure. It is
	// deliberately identical for unknown accounts and known-but-unprivileged
	// accounts so responses cannot be used to enumerate users.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrNoCredentials is returned when authentication begins for an account
	// with no enrolled credentials.
	ErrNoCredentials = errors.New("no biometric credentials enrolled")

	// ErrChallengeInvalid collapses missing, expired and wrong-kind
	// challenges into one user-facing failure.
	ErrChallengeInvalid = errors.New("challenge is missing, expired or of the wrong kind")

	// ErrVerificationFailed covers signature, origin, relying-party and
	// user-verification mismatches in the authenticator response.
	ErrVerificationFailed = errors.New("authenticator response verification failed")

	// ErrCredentialNotFound is returned when an assertion references a
	// credential the subject does not own or that has been revoked.
	ErrCredentialNotFound = errors.New("credential not found")

	// ErrDuplicateCredential is returned when an authenticator attempts to
	// register the same credential twice.
	ErrDuplicateCredential = errors.New("credential already registered")

	// ErrClonedAuthenticator is returned when a verified assertion reports a
	// counter that did not advance past the stored value.
	ErrClonedAuthenticator = errors.New("authenticator counter did not advance; possible cloned authenticator")
)
