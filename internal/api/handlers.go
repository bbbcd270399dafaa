// Package api exposes the biometric ceremonies over HTTP to the admin panel.
package api

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/amirmansour-aghdasy/hikaweb-back-sub003/internal/biometric"
	"github.com/amirmansour-aghdasy/hikaweb-back-sub003/internal/token"
)

var validate = validator.New()

type Controller struct {
	engine *biometric.Service
	tokens *token.Service
	log    *logrus.Logger
}

func NewController(engine *biometric.Service, tokens *token.Service, log *logrus.Logger) *Controller {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Controller{engine: engine, tokens: tokens, log: log}
}

// Routes mounts the biometric endpoints on the router. Registration and
// management require a bearer token; login is the entry point and does not.
func (c *Controller) Routes(r *mux.Router) {
	r.HandleFunc("/health", c.Health).Methods(http.MethodGet)

	v1 := r.PathPrefix("/auth/v1/biometric").Subrouter()
	v1.HandleFunc("/login/begin", c.BeginLogin).Methods(http.MethodPost)
	v1.HandleFunc("/login/finish", c.FinishLogin).Methods(http.MethodPost)

	authed := v1.NewRoute().Subrouter()
	authed.Use(RequireAuth(c.tokens))
	authed.HandleFunc("/register/begin", c.BeginRegistration).Methods(http.MethodPost)
	authed.HandleFunc("/register/finish", c.FinishRegistration).Methods(http.MethodPost)
	authed.HandleFunc("/credentials", c.ListCredentials).Methods(http.MethodGet)
	authed.HandleFunc("/credentials/{credentialId}", c.RevokeCredential).Methods(http.MethodDelete)
}

func (c *Controller) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (c *Controller) BeginRegistration(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	options, err := c.engine.BeginRegistration(r.Context(), claims.Subject)
	if err != nil {
		status, message := ceremonyStatus(err)
		respondError(w, status, message)
		return
	}
	respondJSON(w, http.StatusOK, options)
}

func (c *Controller) FinishRegistration(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	var req finishRegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "validation error")
		return
	}

	response, err := protocol.ParseCredentialCreationResponseBody(bytes.NewReader(req.Credential))
	if err != nil {
		respondError(w, http.StatusBadRequest, "malformed authenticator response")
		return
	}

	summary, err := c.engine.FinishRegistration(r.Context(), claims.Subject, response, req.DeviceName)
	if err != nil {
		status, message := ceremonyStatus(err)
		respondError(w, status, message)
		return
	}
	respondJSON(w, http.StatusCreated, summary)
}

func (c *Controller) BeginLogin(w http.ResponseWriter, r *http.Request) {
	var req beginLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "validation error")
		return
	}

	options, err := c.engine.BeginAuthentication(r.Context(), req.Email)
	if err != nil {
		status, message := ceremonyStatus(err)
		respondError(w, status, message)
		return
	}
	respondJSON(w, http.StatusOK, options)
}

func (c *Controller) FinishLogin(w http.ResponseWriter, r *http.Request) {
	var req finishLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "validation error")
		return
	}

	response, err := protocol.ParseCredentialRequestResponseBody(bytes.NewReader(req.Credential))
	if err != nil {
		respondError(w, http.StatusBadRequest, "malformed authenticator response")
		return
	}

	user, err := c.engine.FinishAuthentication(r.Context(), req.Email, response)
	if err != nil {
		status, message := ceremonyStatus(err)
		respondError(w, status, message)
		return
	}

	accessToken, err := c.tokens.Issue(user)
	if err != nil {
		c.log.WithError(err).Error("failed to issue access token")
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	respondJSON(w, http.StatusOK, loginResponse{
		UserID:      user.ID,
		Email:       user.Email,
		Name:        user.Name,
		Role:        string(user.Role),
		LastLoginAt: user.LastLoginAt,
		AccessToken: accessToken,
	})
}

func (c *Controller) ListCredentials(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	summaries, err := c.engine.ListCredentials(r.Context(), claims.Subject)
	if err != nil {
		status, message := ceremonyStatus(err)
		respondError(w, status, message)
		return
	}
	respondJSON(w, http.StatusOK, credentialsResponse{Credentials: summaries})
}

func (c *Controller) RevokeCredential(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	credentialID := mux.Vars(r)["credentialId"]
	if credentialID == "" {
		respondError(w, http.StatusBadRequest, "credential id required")
		return
	}

	if err := c.engine.RevokeCredential(r.Context(), claims.Subject, credentialID); err != nil {
		status, message := ceremonyStatus(err)
		respondError(w, status, message)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
