package api

import (
	"encoding/json"
	"time"

	"github.com/amirmansour-aghdasy/hikaweb-back-sub003/internal/biometric"
)

type finishRegistrationRequest struct {
	DeviceName string `json:"deviceName" validate:"omitempty,max=100"`
	// Credential is the authenticator's attestation response, passed through
	// verbatim to the protocol parser.
	Credential json.RawMessage `json:"credential" validate:"required"`
}

type beginLoginRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type finishLoginRequest struct {
	Email      string          `json:"email" validate:"required,email"`
	Credential json.RawMessage `json:"credential" validate:"required"`
}

type loginResponse struct {
	UserID      string     `json:"userId"`
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	Role        string     `json:"role"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
	AccessToken string     `json:"accessToken"`
}

type credentialsResponse struct {
	Credentials []*biometric.CredentialSummary `json:"credentials"`
}

type errorResponse struct {
	Error string `json:"error"`
}
