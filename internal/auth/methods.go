package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/pawhaven/pawhaven-backend/internal/models"
)

const (
	// DefaultLoginTimeout force-resets the login flags if the underlying
	// call never resolves. The call itself is not cancelled; a late
	// completion is a benign stale update.
	DefaultLoginTimeout = 15 * time.Second

	// settleDelay gives the pre-login session wipe a moment to take effect
	// before a fresh authentication attempt.
	defaultSettleDelay = 100 * time.Millisecond
)

// Methods is the auth façade: login, signup, signOut and updateUser as
// single-flight guarded operations over the Gateway and Store. A call that
// arrives while the same operation is in flight returns immediately with no
// error and no state change.
type Methods struct {
	gw       *Gateway
	store    *Store
	profiles Profiles
	notify   Notifier

	// LoginTimeout and SettleDelay override the defaults when set.
	LoginTimeout time.Duration
	SettleDelay  time.Duration

	loginInFlight   atomic.Bool
	signupInFlight  atomic.Bool
	signOutInFlight atomic.Bool
	updateInFlight  atomic.Bool
}

// NewMethods wires the façade. notify may be nil; failures then go to the log.
func NewMethods(gw *Gateway, store *Store, profiles Profiles, notify Notifier) *Methods {
	if notify == nil {
		notify = logNotifier{}
	}
	return &Methods{gw: gw, store: store, profiles: profiles, notify: notify}
}

// Login authenticates with email and password. On success the profile is
// fetched or created and the store persisted; on any failure the store is
// reset to unauthenticated rather than left at its prior value.
func (m *Methods) Login(ctx context.Context, email, password string) error {
	if !m.loginInFlight.CompareAndSwap(false, true) {
		return nil
	}

	m.store.SetLoading(true)

	timeout := m.LoginTimeout
	if timeout <= 0 {
		timeout = DefaultLoginTimeout
	}
	timer := time.AfterFunc(timeout, func() {
		log.Println("login timed out, resetting state")
		m.store.SetLoading(false)
		m.loginInFlight.Store(false)
	})
	defer func() {
		timer.Stop()
		m.store.SetLoading(false)
		m.loginInFlight.Store(false)
	}()

	m.clearStaleSession(ctx)

	session, err := m.gw.SignIn(ctx, email, password)
	if err != nil {
		m.store.Clear()
		msg := "Failed to login"
		if errors.Is(err, ErrInvalidCredentials) {
			msg = "Invalid email or password"
		}
		m.notify.Error(msg)
		return err
	}

	profile, err := FetchOrCreateProfile(ctx, m.profiles, session.User)
	if err != nil {
		m.store.Clear()
		m.notify.Error("Could not retrieve user profile")
		return fmt.Errorf("%w: %v", ErrProfileMissing, err)
	}

	m.store.SetUser(profile)
	m.notify.Success("Login successful!")
	return nil
}

// Signup registers a new account. When registration yields an immediate
// session the user is logged in directly; otherwise success is reported and
// the caller must log in separately.
func (m *Methods) Signup(ctx context.Context, data SignupData) error {
	if !m.signupInFlight.CompareAndSwap(false, true) {
		return nil
	}
	defer m.signupInFlight.Store(false)

	m.store.SetLoading(true)
	defer m.store.SetLoading(false)

	m.clearStaleSession(ctx)

	metadata := map[string]string{
		"username":      data.Username,
		"first_name":    data.FirstName,
		"last_name":     data.LastName,
		"profile_image": models.DefaultProfileImage,
	}

	result, err := m.gw.SignUp(ctx, data.Email, data.Password, metadata)
	if err != nil {
		msg := "Failed to create account"
		if errors.Is(err, ErrAlreadyRegistered) {
			msg = "This email is already registered"
		}
		m.notify.Error(msg)
		return err
	}

	if result.Session != nil {
		profile, err := FetchOrCreateProfile(ctx, m.profiles, result.User)
		if err == nil {
			m.store.SetUser(profile)
			m.notify.Success("Account created and logged in successfully!")
			return nil
		}
		// Registration succeeded; a profile hiccup should not fail signup.
		log.Printf("profile fetch after signup failed: %v", err)
	}

	m.notify.Success("Account created successfully! Please login.")
	return nil
}

// SignOut is optimistic: local state is cleared and success reported before
// the remote call completes. The remote sign-out runs in the background and
// its failure is logged, never surfaced — the local session is already gone.
func (m *Methods) SignOut(ctx context.Context) error {
	if !m.signOutInFlight.CompareAndSwap(false, true) {
		return nil
	}

	// Capture the token before the wipe discards it; the background
	// revocation still needs it.
	session, err := m.gw.CachedSession()
	if err != nil {
		log.Printf("could not read cached session before sign-out: %v", err)
	}

	m.store.Clear()
	if err := m.store.persister.ClearProviderState(); err != nil {
		log.Printf("failed to sweep provider keys on sign-out: %v", err)
	}
	m.gw.ClearLocalSession()
	m.notify.Success("Successfully logged out")

	go func() {
		defer m.signOutInFlight.Store(false)
		var token string
		if session != nil {
			token = session.AccessToken
		}
		if err := m.gw.RevokeToken(context.WithoutCancel(ctx), token, ScopeLocal); err != nil {
			log.Printf("background sign-out failed: %v", err)
		}
	}()

	return nil
}

// UpdateUser applies a partial profile update to the profile store, mirrors
// it into the auth service metadata, then merges the same fields into the
// local store. With no authenticated user it fails fast, before any network
// call. On failure the store keeps its previous value.
func (m *Methods) UpdateUser(ctx context.Context, fields map[string]string) error {
	snapshot := m.store.Snapshot()
	if snapshot.User == nil {
		m.notify.Error("Cannot update profile: user not authenticated")
		return ErrNotAuthenticated
	}

	if !m.updateInFlight.CompareAndSwap(false, true) {
		return nil
	}
	defer m.updateInFlight.Store(false)

	m.store.SetLoading(true)
	defer m.store.SetLoading(false)

	if err := m.profiles.Update(ctx, snapshot.User.ID, fields); err != nil {
		m.notify.Error("Failed to update profile")
		return fmt.Errorf("failed to update profile: %w", err)
	}

	// Mirror the change into the auth service metadata so other clients get
	// a user-updated event. The profile row is the source of record; a lag
	// in the mirror is tolerable.
	if err := m.gw.UpdateAuthUser(ctx, fields); err != nil {
		log.Printf("failed to push metadata to auth service: %v", err)
	}

	updated := *snapshot.User
	for field, value := range fields {
		switch field {
		case "username":
			updated.Username = value
		case "email":
			updated.Email = value
		case "profile_image":
			updated.ProfileImage = value
		}
	}
	m.store.SetUser(&updated)
	m.notify.Success("Profile updated successfully")
	return nil
}

// clearStaleSession wipes any leftover local or provider session state from a
// previous, possibly crashed, session before a fresh attempt.
func (m *Methods) clearStaleSession(ctx context.Context) {
	if err := m.store.persister.ClearSession(); err != nil {
		log.Printf("failed to clear stale session state: %v", err)
	}
	if err := m.gw.SignOut(ctx, ScopeLocal); err != nil {
		log.Printf("pre-login sign-out failed: %v", err)
	}

	delay := m.SettleDelay
	if delay < 0 {
		return
	}
	if delay == 0 {
		delay = defaultSettleDelay
	}
	time.Sleep(delay)
}
