package auth

import (
	"time"

	"github.com/pawhaven/pawhaven-backend/internal/models"
)

// SessionState is the single process-wide view of "who is signed in".
// Invariant: IsAuthenticated implies User != nil.
type SessionState struct {
	User            *models.UserProfile
	IsAuthenticated bool
	IsLoading       bool
}

// AuthUser is the auth service's notion of a user. Metadata carries the
// signup fields (username, first_name, last_name, profile_image).
type AuthUser struct {
	ID       string            `json:"id"`
	Email    string            `json:"email"`
	Metadata map[string]string `json:"user_metadata,omitempty"`
}

// Session is an authenticated session issued by the auth service.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
	User         AuthUser  `json:"user"`
}

// SignupData is the registration payload accepted by Methods.Signup.
type SignupData struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// EventKind names the auth service's lifecycle events.
type EventKind string

const (
	EventSignedIn       EventKind = "signed-in"
	EventSignedOut      EventKind = "signed-out"
	EventTokenRefreshed EventKind = "token-refreshed"
	EventUserUpdated    EventKind = "user-updated"
)

// Event is one frame of the auth service's lifecycle stream. Session is
// present on signed-in and user-updated, absent on signed-out.
type Event struct {
	Kind    EventKind `json:"event"`
	Session *Session  `json:"session,omitempty"`
}

// Sign-out scopes accepted by the auth service.
const (
	ScopeLocal  = "local"
	ScopeGlobal = "global"
)
