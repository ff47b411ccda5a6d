package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Gateway is the stateless request/response boundary to the external auth
// service. Every call either succeeds with data or returns a classified
// error; nothing is cached here beyond the TokenCache it is handed.
type Gateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
	tokens  TokenCache
}

// NewGateway builds a Gateway for the auth service at baseURL. tokens may be
// nil, in which case an in-process cache is used.
func NewGateway(baseURL, apiKey string, tokens TokenCache) *Gateway {
	if tokens == nil {
		tokens = &MemoryTokenCache{}
	}
	return &Gateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 20 * time.Second},
		tokens:  tokens,
	}
}

// SignUpResult carries the registered user plus, when the service requires no
// confirmation step, an immediately usable session.
type SignUpResult struct {
	User    AuthUser `json:"user"`
	Session *Session `json:"session,omitempty"`
}

type authError struct {
	Message string `json:"error"`
}

// wire format shared by signup and token grants
type sessionEnvelope struct {
	User    AuthUser `json:"user"`
	Session *struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
	} `json:"session,omitempty"`
}

func (e *sessionEnvelope) toSession() *Session {
	if e.Session == nil {
		return nil
	}
	return &Session{
		AccessToken:  e.Session.AccessToken,
		RefreshToken: e.Session.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(e.Session.ExpiresIn) * time.Second),
		User:         e.User,
	}
}

// SignUp registers a new user, carrying the profile fields as metadata.
func (g *Gateway) SignUp(ctx context.Context, email, password string, metadata map[string]string) (*SignUpResult, error) {
	body := map[string]interface{}{
		"email":    email,
		"password": password,
		"data":     metadata,
	}

	var env sessionEnvelope
	if err := g.post(ctx, "/auth/v1/signup", "", body, &env); err != nil {
		return nil, err
	}

	result := &SignUpResult{User: env.User, Session: env.toSession()}
	if result.Session != nil {
		if err := g.tokens.SaveTokens(result.Session); err != nil {
			log.Printf("failed to cache tokens after signup: %v", err)
		}
	}
	return result, nil
}

// SignIn authenticates with email and password and caches the new tokens.
func (g *Gateway) SignIn(ctx context.Context, email, password string) (*Session, error) {
	body := map[string]interface{}{
		"email":    email,
		"password": password,
	}

	var env sessionEnvelope
	if err := g.post(ctx, "/auth/v1/token?grant_type=password", "", body, &env); err != nil {
		return nil, err
	}

	session := env.toSession()
	if session == nil {
		return nil, fmt.Errorf("sign-in succeeded but no session was returned")
	}
	if err := g.tokens.SaveTokens(session); err != nil {
		log.Printf("failed to cache tokens after sign-in: %v", err)
	}
	return session, nil
}

// SignOut revokes the current session with the given scope and drops the
// cached tokens. A missing cached session is not an error.
func (g *Gateway) SignOut(ctx context.Context, scope string) error {
	session, err := g.tokens.LoadTokens()
	if err != nil || session == nil {
		return g.tokens.ClearTokens()
	}

	err = g.RevokeToken(ctx, session.AccessToken, scope)
	if clearErr := g.tokens.ClearTokens(); clearErr != nil {
		log.Printf("failed to clear cached tokens: %v", clearErr)
	}
	return err
}

// RevokeToken revokes the session behind an explicit access token. It never
// touches the token cache, so it remains usable after the local session has
// been cleared. An empty token is a no-op.
func (g *Gateway) RevokeToken(ctx context.Context, token, scope string) error {
	if token == "" {
		return nil
	}
	return g.post(ctx, "/auth/v1/logout?scope="+url.QueryEscape(scope), token, nil, nil)
}

// CachedSession returns the locally cached session, if any, without asking
// the service whether it is still valid.
func (g *Gateway) CachedSession() (*Session, error) {
	return g.tokens.LoadTokens()
}

// ClearLocalSession drops cached tokens without a remote call. Used to wipe
// stale remnants before a fresh login attempt.
func (g *Gateway) ClearLocalSession() {
	if err := g.tokens.ClearTokens(); err != nil {
		log.Printf("failed to clear cached tokens: %v", err)
	}
}

// GetSession returns the authoritative current session, or nil when there is
// none. An expired cached session is refreshed; a session the service no
// longer recognizes counts as absent.
func (g *Gateway) GetSession(ctx context.Context) (*Session, error) {
	session, err := g.tokens.LoadTokens()
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, nil
	}

	if !session.ExpiresAt.IsZero() && time.Now().After(session.ExpiresAt) {
		return g.RefreshSession(ctx)
	}

	// Confirm the token is still honored server-side.
	var user AuthUser
	if err := g.get(ctx, "/auth/v1/user", session.AccessToken, &user); err != nil {
		if isAuthRejection(err) {
			g.ClearLocalSession()
			return nil, nil
		}
		return nil, err
	}
	session.User = user
	return session, nil
}

// RefreshSession exchanges the cached refresh token for a new session.
func (g *Gateway) RefreshSession(ctx context.Context) (*Session, error) {
	session, err := g.tokens.LoadTokens()
	if err != nil {
		return nil, err
	}
	if session == nil || session.RefreshToken == "" {
		return nil, nil
	}

	body := map[string]interface{}{"refresh_token": session.RefreshToken}
	var env sessionEnvelope
	if err := g.post(ctx, "/auth/v1/token?grant_type=refresh_token", "", body, &env); err != nil {
		if isAuthRejection(err) {
			g.ClearLocalSession()
			return nil, nil
		}
		return nil, err
	}

	refreshed := env.toSession()
	if refreshed == nil {
		return nil, fmt.Errorf("refresh succeeded but no session was returned")
	}
	if err := g.tokens.SaveTokens(refreshed); err != nil {
		log.Printf("failed to cache refreshed tokens: %v", err)
	}
	return refreshed, nil
}

// UpdateAuthUser pushes metadata changes to the auth service for the current
// session's user.
func (g *Gateway) UpdateAuthUser(ctx context.Context, metadata map[string]string) error {
	session, err := g.tokens.LoadTokens()
	if err != nil {
		return err
	}
	if session == nil {
		return ErrNotAuthenticated
	}
	body := map[string]interface{}{"data": metadata}
	return g.request(ctx, http.MethodPut, "/auth/v1/user", session.AccessToken, body, nil)
}

// SubscribeEvents opens the lifecycle event stream. The returned channel is
// closed when ctx is done or the stream ends.
func (g *Gateway) SubscribeEvents(ctx context.Context) (<-chan Event, error) {
	wsURL := strings.Replace(g.baseURL, "http", "ws", 1) + "/auth/v1/events"
	if g.apiKey != "" {
		wsURL += "?apikey=" + url.QueryEscape(g.apiKey)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open auth event stream: %w", err)
	}

	events := make(chan Event, 16)

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	go func() {
		defer close(events)
		defer conn.Close()
		for {
			var ev Event
			if err := conn.ReadJSON(&ev); err != nil {
				if ctx.Err() == nil {
					log.Printf("auth event stream closed: %v", err)
				}
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, nil
}

// --- HTTP plumbing ---

func (g *Gateway) post(ctx context.Context, path, token string, body, out interface{}) error {
	return g.request(ctx, http.MethodPost, path, token, body, out)
}

func (g *Gateway) get(ctx context.Context, path, token string, out interface{}) error {
	return g.request(ctx, http.MethodGet, path, token, nil, out)
}

func (g *Gateway) request(ctx context.Context, method, path, token string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("apikey", g.apiKey)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("auth service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return classifyError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// classifyError converts service failures into the user-facing taxonomy at
// the gateway boundary; nothing past this point inspects HTTP responses.
func classifyError(resp *http.Response) error {
	var ae authError
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = json.Unmarshal(data, &ae)
	msg := strings.ToLower(ae.Message)

	switch {
	case resp.StatusCode == http.StatusUnauthorized,
		strings.Contains(msg, "invalid login credentials"):
		return fmt.Errorf("%w: %s", ErrInvalidCredentials, ae.Message)
	case resp.StatusCode == http.StatusConflict,
		strings.Contains(msg, "already registered"):
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, ae.Message)
	default:
		if ae.Message == "" {
			ae.Message = resp.Status
		}
		return fmt.Errorf("auth service error: %s", ae.Message)
	}
}

func isAuthRejection(err error) bool {
	return errors.Is(err, ErrInvalidCredentials)
}
