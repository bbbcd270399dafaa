package biometric

import (
	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/amirmansour-aghdasy/hikaweb-back-sub003/internal/models"
)

// ceremonyUser adapts a directory user and their stored credentials to the
// webauthn.User interface for the duration of one ceremony call.
type ceremonyUser struct {
	user        *models.User
	credentials []*models.Credential
}

func newCeremonyUser(user *models.User, credentials []*models.Credential) *ceremonyUser {
	return &ceremonyUser{user: user, credentials: credentials}
}

func (u *ceremonyUser) WebAuthnID() []byte {
	return []byte(u.user.ID)
}

func (u *ceremonyUser) WebAuthnName() string {
	return u.user.Email
}

func (u *ceremonyUser) WebAuthnDisplayName() string {
	if u.user.Name != "" {
		return u.user.Name
	}
	return u.user.Email
}

func (u *ceremonyUser) WebAuthnCredentials() []webauthn.Credential {
	creds := make([]webauthn.Credential, len(u.credentials))
	for i, c := range u.credentials {
		creds[i] = c.WebAuthnCredential()
	}
	return creds
}

func (u *ceremonyUser) WebAuthnIcon() string {
	return ""
}
