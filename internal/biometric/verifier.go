package biometric

import (
	"fmt"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

// Verifier is the cryptographic capability behind the ceremony engine:
// building options and verifying authenticator responses. Keeping it as an
// interface means the primitive implementation is swappable without touching
// ceremony logic.
type Verifier interface {
	// RegistrationOptions builds credential-creation options for the user,
	// with the given exclusion list, and returns the challenge nonce that
	// was embedded in them.
	RegistrationOptions(user webauthn.User, exclusions []protocol.CredentialDescriptor) (*protocol.CredentialCreation, string, error)

	// VerifyRegistration verifies an attestation response against the
	// expected nonce, origin and relying-party id, requiring that user
	// verification was performed. Returns the new credential on success.
	VerifyRegistration(user webauthn.User, nonce string, response *protocol.ParsedCredentialCreationData) (*webauthn.Credential, error)

	// AuthenticationOptions builds assertion options whose allow list is
	// derived from the user's credentials, and returns the challenge nonce.
	AuthenticationOptions(user webauthn.User) (*protocol.CredentialAssertion, string, error)

	// VerifyAuthentication verifies an assertion against the stored public
	// key, the expected nonce, origin and relying-party id, requiring user
	// verification.
	VerifyAuthentication(user webauthn.User, nonce string, response *protocol.ParsedCredentialAssertionData) (*webauthn.Credential, error)
}

// RelyingParty identifies this service to authenticators. Loaded once at
// process start; environment-specific.
type RelyingParty struct {
	ID          string
	DisplayName string
	Origins     []string
}

// webauthnVerifier implements Verifier on top of go-webauthn. Options prefer
// platform (on-device) authenticators with preferred user verification;
// verification reconstructs the ceremony session from the consumed challenge
// and requires that user verification actually happened.
type webauthnVerifier struct {
	webauthn *webauthn.WebAuthn
}

func NewVerifier(rp RelyingParty) (Verifier, error) {
	wa, err := webauthn.New(&webauthn.Config{
		RPID:          rp.ID,
		RPDisplayName: rp.DisplayName,
		RPOrigins:     rp.Origins,
		AuthenticatorSelection: protocol.AuthenticatorSelection{
			AuthenticatorAttachment: protocol.Platform,
			ResidentKey:             protocol.ResidentKeyRequirementPreferred,
			UserVerification:        protocol.VerificationPreferred,
		},
		AttestationPreference: protocol.PreferNoAttestation,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create webauthn instance: %w", err)
	}
	return &webauthnVerifier{webauthn: wa}, nil
}

func (v *webauthnVerifier) RegistrationOptions(user webauthn.User, exclusions []protocol.CredentialDescriptor) (*protocol.CredentialCreation, string, error) {
	options, session, err := v.webauthn.BeginRegistration(user,
		webauthn.WithExclusions(exclusions),
	)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build registration options: %w", err)
	}
	return options, session.Challenge, nil
}

func (v *webauthnVerifier) VerifyRegistration(user webauthn.User, nonce string, response *protocol.ParsedCredentialCreationData) (*webauthn.Credential, error) {
	session := webauthn.SessionData{
		Challenge:        nonce,
		UserID:           user.WebAuthnID(),
		UserVerification: protocol.VerificationRequired,
	}
	return v.webauthn.CreateCredential(user, session, response)
}

func (v *webauthnVerifier) AuthenticationOptions(user webauthn.User) (*protocol.CredentialAssertion, string, error) {
	options, session, err := v.webauthn.BeginLogin(user)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build authentication options: %w", err)
	}
	return options, session.Challenge, nil
}

func (v *webauthnVerifier) VerifyAuthentication(user webauthn.User, nonce string, response *protocol.ParsedCredentialAssertionData) (*webauthn.Credential, error) {
	session := webauthn.SessionData{
		Challenge:        nonce,
		UserID:           user.WebAuthnID(),
		UserVerification: protocol.VerificationRequired,
	}
	return v.webauthn.ValidateLogin(user, session, response)
}
