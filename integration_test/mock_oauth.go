package integration_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
)

type mockUser struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

var mockUsers = map[string]mockUser{
	"valid_code_1": {
		ID:      "google_user_1",
		Email:   "user1@example.com",
		Name:    "Test User 1",
		Picture: "https://example.com/avatar1.jpg",
	},
	"valid_code_2": {
		ID:      "google_user_1",
		Email:   "user1@example.com",
		Name:    "Test User 1",
		Picture: "https://example.com/avatar1.jpg",
	},
	"another_user_code": {
		ID:      "google_user_2",
		Email:   "user2@example.com",
		Name:    "Test User 2",
		Picture: "https://example.com/avatar2.jpg",
	},
	"no_email_code": {
		ID:   "google_user_3",
		Name: "User Without Email",
	},
}

// MockOAuthServer imitates the Google token and userinfo endpoints so
// the whole OAuth handshake runs against local fixtures.
type MockOAuthServer struct {
	server *httptest.Server
}

func NewMockOAuthServer() *MockOAuthServer {
	m := &MockOAuthServer{}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", m.handleToken)
	mux.HandleFunc("/oauth2/v2/userinfo", m.handleUserInfo)

	m.server = httptest.NewServer(mux)
	return m
}

func (m *MockOAuthServer) URL() string {
	return m.server.URL
}

func (m *MockOAuthServer) Close() {
	m.server.Close()
}

func (m *MockOAuthServer) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, _ := io.ReadAll(r.Body)
	params, _ := url.ParseQuery(string(body))

	code := params.Get("code")
	if _, ok := mockUsers[code]; !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"access_token":  "access_" + code,
		"refresh_token": "refresh_" + code,
		"expires_in":    3600,
		"token_type":    "Bearer",
	})
}

func (m *MockOAuthServer) handleUserInfo(w http.ResponseWriter, r *http.Request) {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer access_") {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid_token"})
		return
	}

	code := strings.TrimPrefix(auth, "Bearer access_")
	user, ok := mockUsers[code]
	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid_token"})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"id":             user.ID,
		"email":          user.Email,
		"name":           user.Name,
		"picture":        user.Picture,
		"verified_email": user.Email != "",
	})
}
