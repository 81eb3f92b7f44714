package core_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"authgate/core"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func claimsEcho(t *testing.T, captured **core.Claims) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := core.ClaimsFromContext(r.Context())
		require.True(t, ok)
		*captured = claims
		w.WriteHeader(http.StatusOK)
	})
}

func errorCodeOf(t *testing.T, w *httptest.ResponseRecorder) string {
	var resp struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.False(t, resp.Success)
	return resp.Error
}

func TestAuthenticate_ValidToken(t *testing.T) {
	issuer := core.NewTokenIssuer(testConfig())
	gate := core.NewAuthGate(issuer)

	identity := &core.Identity{ID: uuid.New(), Username: "alice", Role: core.RoleAdmin}
	token, err := issuer.IssueAccessToken(identity)
	require.NoError(t, err)

	var captured *core.Claims
	handler := gate.Authenticate(claimsEcho(t, &captured))

	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, captured)
	assert.Equal(t, identity.ID, captured.UserID)
	assert.Equal(t, core.RoleAdmin, captured.Role)
}

func TestAuthenticate_MissingToken(t *testing.T) {
	gate := core.NewAuthGate(core.NewTokenIssuer(testConfig()))
	handler := gate.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	for _, header := range []string{"", "Bearer", "Basic dXNlcjpwYXNz"} {
		req := httptest.NewRequest(http.MethodGet, "/profile", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "missing_token", errorCodeOf(t, w))
	}
}

func TestAuthenticate_InvalidToken(t *testing.T) {
	gate := core.NewAuthGate(core.NewTokenIssuer(testConfig()))
	handler := gate.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid_token", errorCodeOf(t, w))
}

func TestAuthenticate_ExpiredToken(t *testing.T) {
	config := testConfig()
	config.AccessTokenDuration = -60
	issuer := core.NewTokenIssuer(config)
	gate := core.NewAuthGate(issuer)

	token, err := issuer.IssueAccessToken(&core.Identity{ID: uuid.New(), Username: "alice"})
	require.NoError(t, err)

	handler := gate.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "token_expired", errorCodeOf(t, w))
}

func TestRequireAnyRole(t *testing.T) {
	allowed := false
	handler := core.RequireAnyRole(core.RoleAdmin, core.RoleSupervisor)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed = true
			w.WriteHeader(http.StatusOK)
		}))

	adminClaims := &core.Claims{UserID: uuid.New(), Username: "alice", Role: core.RoleAdmin}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(core.ContextWithClaims(req.Context(), adminClaims))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, allowed)

	allowed = false
	userClaims := &core.Claims{UserID: uuid.New(), Username: "bob", Role: core.RoleUsuario}
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(core.ContextWithClaims(req.Context(), userClaims))
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "forbidden", errorCodeOf(t, w))
	assert.False(t, allowed)
}

func TestRequireAnyRole_NoClaims(t *testing.T) {
	handler := core.RequireRole(core.RoleAdmin)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not run")
		}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestIsOwnerOrRole(t *testing.T) {
	ownerID := uuid.New()
	owner := &core.Claims{UserID: ownerID, Role: core.RoleUsuario}
	admin := &core.Claims{UserID: uuid.New(), Role: core.RoleAdmin}
	stranger := &core.Claims{UserID: uuid.New(), Role: core.RoleUsuario}

	assert.True(t, core.IsOwnerOrRole(owner, ownerID, core.RoleAdmin))
	assert.True(t, core.IsOwnerOrRole(admin, ownerID, core.RoleAdmin))
	assert.False(t, core.IsOwnerOrRole(stranger, ownerID, core.RoleAdmin))
}
