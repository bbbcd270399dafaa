package models

import (
	"encoding/base64"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

// AuthenticatorType describes how the authenticator is attached to the
// user's device. Best-effort metadata inferred from the registration
// response; never relied on for security decisions.
type AuthenticatorType string

const (
	AuthenticatorPlatform      AuthenticatorType = "platform"
	AuthenticatorCrossPlatform AuthenticatorType = "cross-platform"
	AuthenticatorUnknown       AuthenticatorType = "unknown"
)

// Credential is one authenticator enrollment for a user. The ID is the raw
// credential identifier generated by the authenticator; it travels over the
// wire base64url-encoded and is stored as bytes.
type Credential struct {
	ID                []byte                            `json:"id"`
	OwnerUserID       string                            `json:"ownerUserId"`
	PublicKey         []byte                            `json:"publicKey"`
	AttestationType   string                            `json:"attestationType,omitempty"`
	Transport         []protocol.AuthenticatorTransport `json:"transport,omitempty"`
	Counter           uint32                            `json:"counter"`
	DeviceName        string                            `json:"deviceName"`
	DeviceType        string                            `json:"deviceType,omitempty"`
	AuthenticatorType AuthenticatorType                 `json:"authenticatorType"`
	IsActive          bool                              `json:"isActive"`
	RegisteredAt      time.Time                         `json:"registeredAt"`
	LastUsedAt        *time.Time                        `json:"lastUsedAt,omitempty"`
	RevokedAt         *time.Time                        `json:"revokedAt,omitempty"`
}

// WebAuthnCredential converts the stored record into the go-webauthn type
// used for allow lists and signature verification.
func (c *Credential) WebAuthnCredential() webauthn.Credential {
	return webauthn.Credential{
		ID:              c.ID,
		PublicKey:       c.PublicKey,
		AttestationType: c.AttestationType,
		Transport:       c.Transport,
		Authenticator: webauthn.Authenticator{
			SignCount: c.Counter,
		},
	}
}

// Descriptor returns the credential descriptor used in exclusion and
// allow lists.
func (c *Credential) Descriptor() protocol.CredentialDescriptor {
	return protocol.CredentialDescriptor{
		Type:         protocol.PublicKeyCredentialType,
		CredentialID: c.ID,
		Transport:    c.Transport,
	}
}

// EncodeCredentialID renders a raw credential id in the transport encoding
// (unpadded base64url, as sent by browsers).
func EncodeCredentialID(id []byte) string {
	return base64.RawURLEncoding.EncodeToString(id)
}

// DecodeCredentialID canonicalizes a transport-encoded credential id back to
// the storage encoding.
func DecodeCredentialID(encoded string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(encoded)
}
