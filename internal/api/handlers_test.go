package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/descope/virtualwebauthn"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirmansour-aghdasy/hikaweb-back-sub003/internal/biometric"
	"github.com/amirmansour-aghdasy/hikaweb-back-sub003/internal/models"
	"github.com/amirmansour-aghdasy/hikaweb-back-sub003/internal/storage"
	"github.com/amirmansour-aghdasy/hikaweb-back-sub003/internal/token"
)

type apiFixture struct {
	t      *testing.T
	server *httptest.Server
	tokens *token.Service
	users  *storage.MemoryUserDirectory
	rp     virtualwebauthn.RelyingParty
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	verifier, err := biometric.NewVerifier(biometric.RelyingParty{
		ID:          "example.com",
		DisplayName: "Example Admin",
		Origins:     []string{"https://example.com"},
	})
	require.NoError(t, err)

	users := storage.NewMemoryUserDirectory()
	engine, err := biometric.NewService(biometric.Params{
		Verifier:    verifier,
		Users:       users,
		Credentials: storage.NewMemoryCredentialStore(),
		Challenges:  storage.NewMemoryChallengeStore(),
	})
	require.NoError(t, err)

	tokens, err := token.NewService("test-secret", "test-issuer", time.Minute)
	require.NoError(t, err)

	log := logrus.New()
	log.SetOutput(bytes.NewBuffer(nil))

	router := mux.NewRouter()
	NewController(engine, tokens, log).Routes(router)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &apiFixture{
		t:      t,
		server: server,
		tokens: tokens,
		users:  users,
		rp: virtualwebauthn.RelyingParty{
			Name:   "Example Admin",
			ID:     "example.com",
			Origin: "https://example.com",
		},
	}
}

func (f *apiFixture) seedUser(id, email string, role models.Role) string {
	f.t.Helper()
	require.NoError(f.t, f.users.Put(context.Background(), &models.User{
		ID:    id,
		Email: email,
		Name:  "Test User",
		Role:  role,
	}))
	bearer, err := f.tokens.Issue(&models.User{ID: id, Email: email, Role: role})
	require.NoError(f.t, err)
	return bearer
}

func (f *apiFixture) do(method, path, bearer string, body interface{}) *http.Response {
	f.t.Helper()

	var payload bytes.Buffer
	if body != nil {
		require.NoError(f.t, json.NewEncoder(&payload).Encode(body))
	}
	req, err := http.NewRequest(method, f.server.URL+path, &payload)
	require.NoError(f.t, err)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := f.server.Client().Do(req)
	require.NoError(f.t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

// enroll drives the registration ceremony over HTTP with a virtual
// authenticator and returns the stored credential's summary.
func (f *apiFixture) enroll(bearer string, authenticator *virtualwebauthn.Authenticator, credential *virtualwebauthn.Credential) *biometric.CredentialSummary {
	f.t.Helper()

	resp := f.do(http.MethodPost, "/auth/v1/biometric/register/begin", bearer, nil)
	require.Equal(f.t, http.StatusOK, resp.StatusCode)

	var options protocol.CredentialCreation
	decodeBody(f.t, resp, &options)

	optionsJSON, err := json.Marshal(options.Response)
	require.NoError(f.t, err)
	parsedOptions, err := virtualwebauthn.ParseAttestationOptions(string(optionsJSON))
	require.NoError(f.t, err)
	attestation := virtualwebauthn.CreateAttestationResponse(f.rp, *authenticator, *credential, *parsedOptions)

	resp = f.do(http.MethodPost, "/auth/v1/biometric/register/finish", bearer, map[string]interface{}{
		"deviceName": "Test device",
		"credential": json.RawMessage(attestation),
	})
	require.Equal(f.t, http.StatusCreated, resp.StatusCode)

	summary := &biometric.CredentialSummary{}
	decodeBody(f.t, resp, summary)
	authenticator.AddCredential(*credential)
	return summary
}

func TestRegisterAndLoginOverHTTP(t *testing.T) {
	f := newAPIFixture(t)
	bearer := f.seedUser("admin-1", "admin@example.com", models.RoleAdmin)

	authenticator := virtualwebauthn.NewAuthenticator()
	credential := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)

	summary := f.enroll(bearer, &authenticator, &credential)
	assert.Equal(t, "Test device", summary.DeviceName)

	// Login
	resp := f.do(http.MethodPost, "/auth/v1/biometric/login/begin", "", map[string]string{
		"email": "admin@example.com",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var options protocol.CredentialAssertion
	decodeBody(t, resp, &options)

	optionsJSON, err := json.Marshal(options.Response)
	require.NoError(t, err)
	parsedOptions, err := virtualwebauthn.ParseAssertionOptions(string(optionsJSON))
	require.NoError(t, err)

	credential.Counter++
	assertion := virtualwebauthn.CreateAssertionResponse(f.rp, authenticator, credential, *parsedOptions)

	resp = f.do(http.MethodPost, "/auth/v1/biometric/login/finish", "", map[string]interface{}{
		"email":      "admin@example.com",
		"credential": json.RawMessage(assertion),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var login loginResponse
	decodeBody(t, resp, &login)
	assert.Equal(t, "admin-1", login.UserID)
	assert.Equal(t, "admin", login.Role)
	require.NotEmpty(t, login.AccessToken)

	// The issued token works against a protected endpoint.
	resp = f.do(http.MethodGet, "/auth/v1/biometric/credentials", login.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var listing credentialsResponse
	decodeBody(t, resp, &listing)
	assert.Len(t, listing.Credentials, 1)
}

func TestLoginBeginResponsesDoNotRevealAccounts(t *testing.T) {
	f := newAPIFixture(t)
	f.seedUser("viewer-1", "viewer@example.com", models.RoleViewer)

	readBody := func(email string) (int, string) {
		resp := f.do(http.MethodPost, "/auth/v1/biometric/login/begin", "", map[string]string{"email": email})
		defer resp.Body.Close()
		var buf bytes.Buffer
		_, err := buf.ReadFrom(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, buf.String()
	}

	unknownStatus, unknownBody := readBody("nobody@example.com")
	viewerStatus, viewerBody := readBody("viewer@example.com")

	// Unknown account and known-but-unprivileged account must be
	// byte-for-byte indistinguishable.
	assert.Equal(t, http.StatusUnauthorized, unknownStatus)
	assert.Equal(t, unknownStatus, viewerStatus)
	assert.Equal(t, unknownBody, viewerBody)
}

func TestProtectedEndpointsRequireToken(t *testing.T) {
	f := newAPIFixture(t)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/auth/v1/biometric/register/begin"},
		{http.MethodPost, "/auth/v1/biometric/register/finish"},
		{http.MethodGet, "/auth/v1/biometric/credentials"},
		{http.MethodDelete, "/auth/v1/biometric/credentials/some-id"},
	}
	for _, p := range paths {
		resp := f.do(p.method, p.path, "", nil)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "%s %s", p.method, p.path)

		resp = f.do(p.method, p.path, "bogus-token", nil)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "%s %s with bad token", p.method, p.path)
	}
}

func TestUnprivilegedEnrollmentForbidden(t *testing.T) {
	f := newAPIFixture(t)
	bearer := f.seedUser("viewer-1", "viewer@example.com", models.RoleViewer)

	resp := f.do(http.MethodPost, "/auth/v1/biometric/register/begin", bearer, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestRevokeCredentialOverHTTP(t *testing.T) {
	f := newAPIFixture(t)
	bearer := f.seedUser("admin-1", "admin@example.com", models.RoleAdmin)

	authenticator := virtualwebauthn.NewAuthenticator()
	credential := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	summary := f.enroll(bearer, &authenticator, &credential)

	resp := f.do(http.MethodDelete, fmt.Sprintf("/auth/v1/biometric/credentials/%s", summary.ID), bearer, nil)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = f.do(http.MethodGet, "/auth/v1/biometric/credentials", bearer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listing credentialsResponse
	decodeBody(t, resp, &listing)
	assert.Empty(t, listing.Credentials)

	// Logging in is no longer possible without an active credential.
	resp = f.do(http.MethodPost, "/auth/v1/biometric/login/begin", "", map[string]string{
		"email": "admin@example.com",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLoginValidation(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(http.MethodPost, "/auth/v1/biometric/login/begin", "", map[string]string{
		"email": "not-an-email",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health map[string]string
	decodeBody(t, resp, &health)
	assert.Equal(t, "healthy", health["status"])
}
