package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/amirmansour-aghdasy/hikaweb-back-sub003/internal/biometric"
)

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}

// ceremonyStatus maps engine errors to HTTP statuses. Generic failures keep
// generic messages; in particular "invalid credentials" is identical for
// every cause so responses cannot distinguish accounts.
func ceremonyStatus(err error) (int, string) {
	switch {
	case errors.Is(err, biometric.ErrUserNotFound):
		return http.StatusNotFound, biometric.ErrUserNotFound.Error()
	case errors.Is(err, biometric.ErrNotPrivileged):
		return http.StatusForbidden, biometric.ErrNotPrivileged.Error()
	case errors.Is(err, biometric.ErrInvalidCredentials):
		return http.StatusUnauthorized, biometric.ErrInvalidCredentials.Error()
	case errors.Is(err, biometric.ErrNoCredentials):
		return http.StatusBadRequest, biometric.ErrNoCredentials.Error()
	case errors.Is(err, biometric.ErrChallengeInvalid):
		return http.StatusBadRequest, biometric.ErrChallengeInvalid.Error()
	case errors.Is(err, biometric.ErrVerificationFailed):
		return http.StatusBadRequest, biometric.ErrVerificationFailed.Error()
	case errors.Is(err, biometric.ErrCredentialNotFound):
		return http.StatusBadRequest, biometric.ErrCredentialNotFound.Error()
	case errors.Is(err, biometric.ErrDuplicateCredential):
		return http.StatusConflict, biometric.ErrDuplicateCredential.Error()
	case errors.Is(err, biometric.ErrClonedAuthenticator):
		return http.StatusUnauthorized, biometric.ErrClonedAuthenticator.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
