package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// Server exposes the auth core over HTTP. Responses use the envelope
// {success, data?, message?} on success and {success:false, error,
// message?} on failure.
type Server struct {
	auth   *AuthService
	oauth  *OAuthService
	gate   *AuthGate
	config *Config
}

func NewServer(auth *AuthService, oauth *OAuthService, gate *AuthGate, config *Config) *Server {
	return &Server{
		auth:   auth,
		oauth:  oauth,
		gate:   gate,
		config: config,
	}
}

// Routes builds the full HTTP surface, CORS-scoped to the frontend URL.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /register", s.handleRegister)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("POST /refresh", s.handleRefresh)
	mux.HandleFunc("POST /logout", s.handleLogout)

	mux.Handle("GET /profile", s.gate.Authenticate(http.HandlerFunc(s.handleProfile)))
	mux.Handle("PUT /change-password", s.gate.Authenticate(http.HandlerFunc(s.handleChangePassword)))
	mux.Handle("POST /verify", s.gate.Authenticate(http.HandlerFunc(s.handleVerify)))

	mux.HandleFunc("GET /oauth/login/{provider}", s.handleOAuthLogin)
	mux.HandleFunc("GET /oauth/callback/{provider}", s.handleOAuthCallback)
	mux.Handle("GET /oauth/accounts", s.gate.Authenticate(http.HandlerFunc(s.handleOAuthAccounts)))
	mux.Handle("DELETE /oauth/unlink/{provider}", s.gate.Authenticate(http.HandlerFunc(s.handleOAuthUnlink)))

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("/", s.handleNotFound)

	return s.cors(mux)
}

type registerRequest struct {
	Username     string `json:"username"`
	Password     string `json:"password"`
	Role         Role   `json:"role"`
	DepartmentID *int64 `json:"department_id"`
}

type identityView struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Role         Role      `json:"role"`
	DepartmentID *int64    `json:"department_id,omitempty"`
}

type loginResult struct {
	User         identityView `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if msg := validateRegister(&req); msg != "" {
		respondError(w, http.StatusBadRequest, "validation_failed", msg)
		return
	}

	identity, pair, err := s.auth.Register(r.Context(), req.Username, req.Password, req.Role, req.DepartmentID)
	if err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			respondError(w, http.StatusBadRequest, "username_taken", "Username is already in use")
			return
		}
		s.respondStoreError(w, err)
		return
	}

	respondSuccess(w, http.StatusCreated, "User registered successfully", loginResult{
		User:         viewOf(identity),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.Username == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "validation_failed", "username and password are required")
		return
	}

	identity, pair, err := s.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			respondError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid credentials")
			return
		}
		s.respondStoreError(w, err)
		return
	}

	respondSuccess(w, http.StatusOK, "Login successful", loginResult{
		User:         viewOf(identity),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.RefreshToken == "" {
		respondError(w, http.StatusBadRequest, "validation_failed", "refresh_token is required")
		return
	}

	accessToken, err := s.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			respondError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid refresh token")
		case errors.Is(err, ErrExpiredToken):
			respondError(w, http.StatusUnauthorized, "token_expired", "Refresh token expired")
		case errors.Is(err, ErrInvalidToken):
			respondError(w, http.StatusUnauthorized, "invalid_token", "Invalid refresh token")
		case errors.Is(err, ErrNotFound):
			respondError(w, http.StatusNotFound, "not_found", "User not found")
		default:
			s.respondStoreError(w, err)
		}
		return
	}

	respondData(w, http.StatusOK, map[string]string{
		"access_token": accessToken,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	// The token is optional and logout is idempotent, so a missing or
	// unparsable body still logs out.
	_ = json.NewDecoder(r.Body).Decode(&req)

	if err := s.auth.Logout(r.Context(), req.RefreshToken); err != nil {
		s.respondStoreError(w, err)
		return
	}

	respondSuccess(w, http.StatusOK, "Logout successful", nil)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())

	profile, err := s.auth.Profile(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "User not found")
			return
		}
		s.respondStoreError(w, err)
		return
	}

	respondData(w, http.StatusOK, profile)
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())

	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.CurrentPassword == "" {
		respondError(w, http.StatusBadRequest, "validation_failed", "current password is required")
		return
	}
	if len(req.NewPassword) < 6 {
		respondError(w, http.StatusBadRequest, "validation_failed", "new password must be at least 6 characters")
		return
	}

	err := s.auth.ChangePassword(r.Context(), claims.UserID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			respondError(w, http.StatusUnauthorized, "invalid_credentials", "Current password is incorrect")
		case errors.Is(err, ErrNotFound):
			respondError(w, http.StatusNotFound, "not_found", "User not found")
		default:
			s.respondStoreError(w, err)
		}
		return
	}

	respondSuccess(w, http.StatusOK, "Password changed successfully. Please log in again.", nil)
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())

	respondData(w, http.StatusOK, map[string]interface{}{
		"user": map[string]interface{}{
			"id":       claims.UserID,
			"username": claims.Username,
			"role":     claims.Role,
		},
		"valid": true,
	})
}

func (s *Server) handleOAuthLogin(w http.ResponseWriter, r *http.Request) {
	name := Provider(r.PathValue("provider"))

	provider, err := s.oauth.ProviderFor(name)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_provider", "Unsupported provider")
		return
	}

	state := uuid.New().String()
	http.Redirect(w, r, provider.AuthURL(state), http.StatusFound)
}

func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	name := Provider(r.PathValue("provider"))

	if r.URL.Query().Get("error") != "" || r.URL.Query().Get("code") == "" {
		s.redirectWithError(w, r, "oauth_failed")
		return
	}

	identity, err := s.oauth.Login(r.Context(), name, r.URL.Query().Get("code"))
	if err != nil {
		switch {
		case errors.Is(err, ErrUnsupportedProvider):
			s.redirectWithError(w, r, "invalid_provider")
		case errors.Is(err, ErrMissingEmail):
			s.redirectWithError(w, r, "missing_email")
		default:
			log.Printf("oauth callback failed: provider=%s error=%v", name, err)
			s.redirectWithError(w, r, "server_error")
		}
		return
	}

	pair, err := s.auth.IssueTokenPair(r.Context(), identity)
	if err != nil {
		log.Printf("oauth token issue failed: provider=%s error=%v", name, err)
		s.redirectWithError(w, r, "server_error")
		return
	}

	query := url.Values{}
	query.Set("access_token", pair.AccessToken)
	query.Set("refresh_token", pair.RefreshToken)
	http.Redirect(w, r, s.config.FrontendURL+"?"+query.Encode(), http.StatusFound)
}

type oauthAccountView struct {
	ID           int64     `json:"id"`
	Provider     Provider  `json:"provider"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	ProfilePhoto string    `json:"profile_photo,omitempty"`
	LinkedAt     time.Time `json:"linked_at"`
}

func (s *Server) handleOAuthAccounts(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())

	accounts, err := s.oauth.LinkedAccounts(r.Context(), claims.UserID)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	views := make([]oauthAccountView, 0, len(accounts))
	for _, a := range accounts {
		views = append(views, oauthAccountView{
			ID:           a.ID,
			Provider:     a.Provider,
			Email:        a.Email,
			DisplayName:  a.DisplayName,
			ProfilePhoto: a.ProfilePhoto,
			LinkedAt:     a.CreatedAt,
		})
	}

	respondData(w, http.StatusOK, views)
}

func (s *Server) handleOAuthUnlink(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())
	name := Provider(r.PathValue("provider"))

	if err := s.oauth.Unlink(r.Context(), claims.UserID, name); err != nil {
		switch {
		case errors.Is(err, ErrLastAuthMethod):
			respondError(w, http.StatusBadRequest, "last_auth_method",
				"Cannot unlink your only authentication method. Set a password first.")
		case errors.Is(err, ErrNotFound):
			respondError(w, http.StatusNotFound, "not_found", "OAuth account not found")
		default:
			s.respondStoreError(w, err)
		}
		return
	}

	respondSuccess(w, http.StatusOK, fmt.Sprintf("%s account unlinked successfully", name), nil)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusNotFound, "not_found", "Route not found")
}

func (s *Server) redirectWithError(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, s.config.FrontendURL+"?error="+code, http.StatusFound)
}

// cors scopes cross-origin access to the configured frontend.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.config.FrontendURL != "" {
			w.Header().Set("Access-Control-Allow-Origin", s.config.FrontendURL)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// respondStoreError surfaces store failures as 500 with the underlying
// message attached for diagnostics. Nothing is retried here.
func (s *Server) respondStoreError(w http.ResponseWriter, err error) {
	log.Printf("store error: %v", err)
	respondError(w, http.StatusInternalServerError, "store_unavailable", err.Error())
}

func validateRegister(req *registerRequest) string {
	if len(req.Username) < 3 || len(req.Username) > 50 {
		return "username must be between 3 and 50 characters"
	}
	if len(req.Password) < 6 {
		return "password must be at least 6 characters"
	}
	if !ValidRole(req.Role) {
		return "role must be one of: admin, usuario, supervisor"
	}
	if req.DepartmentID != nil && *req.DepartmentID < 1 {
		return "department_id must be a positive integer"
	}
	return ""
}

func viewOf(identity *Identity) identityView {
	return identityView{
		ID:           identity.ID,
		Username:     identity.Username,
		Role:         identity.Role,
		DepartmentID: identity.DepartmentID,
	}
}

// Helper functions

func decodeJSON(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		respondError(w, http.StatusBadRequest, "validation_failed", "Invalid request body")
		return false
	}
	return true
}

type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func respondData(w http.ResponseWriter, statusCode int, data interface{}) {
	respondJSON(w, statusCode, envelope{Success: true, Data: data})
}

func respondSuccess(w http.ResponseWriter, statusCode int, message string, data interface{}) {
	respondJSON(w, statusCode, envelope{Success: true, Message: message, Data: data})
}

func respondError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	respondJSON(w, statusCode, envelope{Error: errorCode, Message: message})
}
