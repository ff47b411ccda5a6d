package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/pawhaven/pawhaven-backend/internal/authdev"
)

type MethodsSuite struct {
	suite.Suite
	server      *httptest.Server
	grantCount  atomic.Int64
	logoutCount atomic.Int64
	gw          *Gateway
	persister   *memPersister
	store       *Store
	profiles    *memProfiles
	notifier    *silentNotifier
	methods     *Methods
}

func TestMethodsSuite(t *testing.T) {
	suite.Run(t, new(MethodsSuite))
}

func (s *MethodsSuite) SetupTest() {
	s.grantCount.Store(0)
	s.logoutCount.Store(0)
	inner := authdev.NewServer().Handler()
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/v1/token" && r.URL.Query().Get("grant_type") == "password" {
			s.grantCount.Add(1)
		}
		if r.URL.Path == "/auth/v1/logout" {
			s.logoutCount.Add(1)
		}
		inner.ServeHTTP(w, r)
	}))

	s.gw = NewGateway(s.server.URL, "", nil)
	s.persister = newMemPersister()
	s.store = NewStore(s.persister)
	s.profiles = newMemProfiles()
	s.notifier = &silentNotifier{}
	s.methods = NewMethods(s.gw, s.store, s.profiles, s.notifier)
	s.methods.SettleDelay = -1 // skip the settle sleep in tests
}

func (s *MethodsSuite) TearDownTest() {
	s.server.Close()
}

func (s *MethodsSuite) register(email, password string) {
	_, err := s.gw.SignUp(context.Background(), email, password, nil)
	s.Require().NoError(err)
	s.gw.ClearLocalSession()
}

func (s *MethodsSuite) TestLoginThenSignOutLeavesClearedState() {
	s.register("tabby@example.com", "secret-pass")

	s.Require().NoError(s.methods.Login(context.Background(), "tabby@example.com", "secret-pass"))

	state := s.store.Snapshot()
	s.True(state.IsAuthenticated)
	s.Require().NotNil(state.User)
	s.True(strings.HasPrefix(state.User.Username, "user_"))

	s.Require().NoError(s.methods.SignOut(context.Background()))

	// Local state is cleared immediately, before the background call lands.
	state = s.store.Snapshot()
	s.False(state.IsAuthenticated)
	s.Nil(state.User)

	persisted, authenticated := s.persister.snapshot()
	s.False(authenticated)
	s.Nil(persisted)

	// Sign-out must feel instantaneous: no loading state while the
	// background revocation is still out.
	s.False(state.IsLoading)

	// Background sign-out finishes and releases the flag.
	s.Require().Eventually(func() bool {
		return !s.methods.signOutInFlight.Load()
	}, 2*time.Second, 10*time.Millisecond)
}

func (s *MethodsSuite) TestSignOutRevokesRemoteSession() {
	s.register("leaver@example.com", "secret-pass")
	s.Require().NoError(s.methods.Login(context.Background(), "leaver@example.com", "secret-pass"))

	session, err := s.gw.CachedSession()
	s.Require().NoError(err)
	s.Require().NotNil(session)
	token := session.AccessToken

	s.Require().NoError(s.methods.SignOut(context.Background()))

	// The background revocation must actually reach the service even though
	// the local session was wiped first.
	s.Require().Eventually(func() bool {
		return s.logoutCount.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)

	// The old token is dead server-side too.
	stale := NewGateway(s.server.URL, "", &MemoryTokenCache{})
	s.Require().NoError(stale.tokens.SaveTokens(&Session{AccessToken: token, ExpiresAt: time.Now().Add(time.Hour)}))
	revived, err := stale.GetSession(context.Background())
	s.Require().NoError(err)
	s.Nil(revived)
}

func (s *MethodsSuite) TestConcurrentLoginIsSingleFlight() {
	s.register("double@example.com", "secret-pass")
	s.methods.SettleDelay = 100 * time.Millisecond // hold the first call in flight

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.methods.Login(context.Background(), "double@example.com", "secret-pass")
	}()

	time.Sleep(20 * time.Millisecond) // first call is inside its settle window
	s.Require().NoError(s.methods.Login(context.Background(), "double@example.com", "secret-pass"))
	wg.Wait()

	s.Equal(int64(1), s.grantCount.Load())
	s.True(s.store.Snapshot().IsAuthenticated)
}

func (s *MethodsSuite) TestLoginInvalidCredentials() {
	s.register("real@example.com", "right-pass")

	err := s.methods.Login(context.Background(), "real@example.com", "wrong-pass")
	s.Require().Error(err)
	s.ErrorIs(err, ErrInvalidCredentials)

	state := s.store.Snapshot()
	s.False(state.IsAuthenticated)
	s.Nil(state.User)
	s.Equal("Invalid email or password", s.notifier.lastError())
}

func (s *MethodsSuite) TestSignupLogsInDirectly() {
	err := s.methods.Signup(context.Background(), SignupData{
		Username: "pouncer",
		Email:    "pouncer@example.com",
		Password: "secret-pass",
	})
	s.Require().NoError(err)

	state := s.store.Snapshot()
	s.True(state.IsAuthenticated)
	s.Require().NotNil(state.User)
	s.Equal("pouncer", state.User.Username)
}

func (s *MethodsSuite) TestSignupDuplicateEmail() {
	s.register("taken@example.com", "secret-pass")

	err := s.methods.Signup(context.Background(), SignupData{
		Username: "latecomer",
		Email:    "taken@example.com",
		Password: "other-pass",
	})
	s.Require().Error(err)
	s.ErrorIs(err, ErrAlreadyRegistered)
	s.Equal("This email is already registered", s.notifier.lastError())
}

func (s *MethodsSuite) TestUpdateUserRequiresAuthentication() {
	err := s.methods.UpdateUser(context.Background(), map[string]string{"username": "nope"})
	s.Require().ErrorIs(err, ErrNotAuthenticated)

	// Fail fast: nothing reached the profile store or the auth service.
	s.Equal(0, s.profiles.updCnt)
	s.Equal(int64(0), s.grantCount.Load())
}

func (s *MethodsSuite) TestUpdateUserMergesFields() {
	s.register("merge@example.com", "secret-pass")
	s.Require().NoError(s.methods.Login(context.Background(), "merge@example.com", "secret-pass"))

	err := s.methods.UpdateUser(context.Background(), map[string]string{
		"username":      "renamed",
		"profile_image": "cat-profile-2.png",
	})
	s.Require().NoError(err)

	state := s.store.Snapshot()
	s.Require().NotNil(state.User)
	s.Equal("renamed", state.User.Username)
	s.Equal("cat-profile-2.png", state.User.ProfileImage)
	s.Equal("merge@example.com", state.User.Email)

	// The auth service metadata mirror picked up the same fields.
	session, err := s.gw.GetSession(context.Background())
	s.Require().NoError(err)
	s.Require().NotNil(session)
	s.Equal("renamed", session.User.Metadata["username"])
	s.Equal("cat-profile-2.png", session.User.Metadata["profile_image"])
}

func (s *MethodsSuite) TestUpdateUserFailureKeepsStore() {
	s.register("stable@example.com", "secret-pass")
	s.Require().NoError(s.methods.Login(context.Background(), "stable@example.com", "secret-pass"))
	before := s.store.Snapshot()

	s.profiles.updErr = errBoom
	err := s.methods.UpdateUser(context.Background(), map[string]string{"username": "broken"})
	s.Require().Error(err)

	after := s.store.Snapshot()
	s.Require().NotNil(after.User)
	s.Equal(before.User.Username, after.User.Username)
}

func (s *MethodsSuite) TestSignOutSurvivesRemoteFailure() {
	s.register("orphan@example.com", "secret-pass")
	s.Require().NoError(s.methods.Login(context.Background(), "orphan@example.com", "secret-pass"))

	// The background call will fail; sign-out must still succeed locally.
	s.server.Close()

	s.Require().NoError(s.methods.SignOut(context.Background()))

	state := s.store.Snapshot()
	s.False(state.IsAuthenticated)
	s.Nil(state.User)
	s.False(state.IsLoading)

	s.Require().Eventually(func() bool {
		return !s.methods.signOutInFlight.Load()
	}, 5*time.Second, 10*time.Millisecond)
}
