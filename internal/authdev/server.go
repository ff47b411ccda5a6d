// Package authdev is a development stand-in for the hosted auth service.
// It implements the same REST contract the Gateway speaks (signup, password
// and refresh grants, logout, user fetch/update) plus the websocket lifecycle
// event stream, with accounts held in memory.
package authdev

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/pawhaven/pawhaven-backend/pkg/utils"
)

const sessionTTL = time.Hour

type account struct {
	ID           string
	Email        string
	PasswordHash string
	Metadata     map[string]string
}

type session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Email        string
}

// Server holds the in-memory auth state. Safe for concurrent use.
type Server struct {
	mu       sync.Mutex
	accounts map[string]*account // keyed by lowercased email
	sessions map[string]*session // keyed by access token
	refresh  map[string]string   // refresh token -> access token
	hub      *eventHub
}

func NewServer() *Server {
	return &Server{
		accounts: make(map[string]*account),
		sessions: make(map[string]*session),
		refresh:  make(map[string]string),
		hub:      newEventHub(),
	}
}

// Handler returns the HTTP surface of the auth service.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "apikey"},
	}))

	r.Post("/auth/v1/signup", s.handleSignup)
	r.Post("/auth/v1/token", s.handleToken)
	r.Post("/auth/v1/logout", s.handleLogout)
	r.Get("/auth/v1/user", s.handleGetUser)
	r.Put("/auth/v1/user", s.handleUpdateUser)
	r.Get("/auth/v1/events", s.hub.handleEvents)

	return r
}

type credentialsRequest struct {
	Email        string            `json:"email"`
	Password     string            `json:"password"`
	RefreshToken string            `json:"refresh_token"`
	Data         map[string]string `json:"data"`
}

type wireSession struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

type wireUser struct {
	ID       string            `json:"id"`
	Email    string            `json:"email"`
	Metadata map[string]string `json:"user_metadata,omitempty"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	s.mu.Lock()
	if _, exists := s.accounts[email]; exists {
		s.mu.Unlock()
		writeError(w, http.StatusConflict, "user already registered")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		s.mu.Unlock()
		writeError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	acct := &account{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		Metadata:     req.Data,
	}
	s.accounts[email] = acct

	// No confirmation step here: signup yields an immediate session.
	sess := s.issueSessionLocked(acct)
	s.mu.Unlock()

	s.hub.broadcast("signed-in", sess, acct)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":    userPayload(acct),
		"session": sessionPayload(sess),
	})
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Query().Get("grant_type") {
	case "password":
		s.handlePasswordGrant(w, r)
	case "refresh_token":
		s.handleRefreshGrant(w, r)
	default:
		writeError(w, http.StatusBadRequest, "unsupported grant_type")
	}
}

func (s *Server) handlePasswordGrant(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	s.mu.Lock()
	acct, ok := s.accounts[email]
	if ok {
		valid, err := utils.VerifyPassword(req.Password, acct.PasswordHash)
		ok = err == nil && valid
	}
	if !ok {
		s.mu.Unlock()
		writeError(w, http.StatusUnauthorized, "invalid login credentials")
		return
	}

	sess := s.issueSessionLocked(acct)
	s.mu.Unlock()

	s.hub.broadcast("signed-in", sess, acct)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":    userPayload(acct),
		"session": sessionPayload(sess),
	})
}

func (s *Server) handleRefreshGrant(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	accessToken, ok := s.refresh[req.RefreshToken]
	if !ok {
		s.mu.Unlock()
		writeError(w, http.StatusUnauthorized, "invalid login credentials")
		return
	}
	old := s.sessions[accessToken]
	acct := s.accounts[old.Email]
	delete(s.sessions, accessToken)
	delete(s.refresh, req.RefreshToken)
	sess := s.issueSessionLocked(acct)
	s.mu.Unlock()

	s.hub.broadcast("token-refreshed", sess, acct)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":    userPayload(acct),
		"session": sessionPayload(sess),
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	scope := r.URL.Query().Get("scope")

	s.mu.Lock()
	sess, ok := s.sessions[token]
	if ok {
		delete(s.sessions, token)
		delete(s.refresh, sess.RefreshToken)
		if scope == "global" {
			// Revoke every session of the same account.
			for t, other := range s.sessions {
				if other.Email == sess.Email {
					delete(s.sessions, t)
					delete(s.refresh, other.RefreshToken)
				}
			}
		}
	}
	s.mu.Unlock()

	if ok {
		s.hub.broadcast("signed-out", nil, nil)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	acct, _, ok := s.authenticate(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid login credentials")
		return
	}
	writeJSON(w, http.StatusOK, userPayload(acct))
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	acct, sess, ok := s.authenticate(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid login credentials")
		return
	}

	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	if acct.Metadata == nil {
		acct.Metadata = make(map[string]string)
	}
	for k, v := range req.Data {
		acct.Metadata[k] = v
	}
	s.mu.Unlock()

	s.hub.broadcast("user-updated", sess, acct)
	writeJSON(w, http.StatusOK, userPayload(acct))
}

func (s *Server) authenticate(r *http.Request) (*account, *session, bool) {
	token := bearerToken(r)
	if token == "" {
		return nil, nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok || time.Now().After(sess.ExpiresAt) {
		return nil, nil, false
	}
	acct, ok := s.accounts[sess.Email]
	return acct, sess, ok
}

// issueSessionLocked creates a fresh session; callers hold s.mu.
func (s *Server) issueSessionLocked(acct *account) *session {
	sess := &session{
		AccessToken:  uuid.New().String(),
		RefreshToken: uuid.New().String(),
		ExpiresAt:    time.Now().Add(sessionTTL),
		Email:        acct.Email,
	}
	s.sessions[sess.AccessToken] = sess
	s.refresh[sess.RefreshToken] = sess.AccessToken
	return sess
}

func userPayload(acct *account) wireUser {
	return wireUser{ID: acct.ID, Email: acct.Email, Metadata: acct.Metadata}
}

func sessionPayload(sess *session) wireSession {
	return wireSession{
		AccessToken:  sess.AccessToken,
		RefreshToken: sess.RefreshToken,
		ExpiresIn:    int64(time.Until(sess.ExpiresAt).Seconds()),
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
