package authdev

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
)

type ServerSuite struct {
	suite.Suite
	ts *httptest.Server
}

func TestServerSuite(t *testing.T) {
	suite.Run(t, new(ServerSuite))
}

func (s *ServerSuite) SetupTest() {
	s.ts = httptest.NewServer(NewServer().Handler())
}

func (s *ServerSuite) TearDownTest() {
	s.ts.Close()
}

type envelope struct {
	User    wireUser     `json:"user"`
	Session *wireSession `json:"session"`
	Error   string       `json:"error"`
}

func (s *ServerSuite) postJSON(path string, body map[string]interface{}, token string) (*http.Response, envelope) {
	data, err := json.Marshal(body)
	s.Require().NoError(err)

	req, err := http.NewRequest(http.MethodPost, s.ts.URL+path, bytes.NewReader(data))
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	var env envelope
	json.NewDecoder(resp.Body).Decode(&env)
	return resp, env
}

func (s *ServerSuite) signup(email, password string) envelope {
	resp, env := s.postJSON("/auth/v1/signup", map[string]interface{}{
		"email":    email,
		"password": password,
		"data":     map[string]string{"username": "tester"},
	}, "")
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Require().NotNil(env.Session)
	return env
}

func (s *ServerSuite) TestSignupAndPasswordGrant() {
	env := s.signup("new@example.com", "secret-pass")
	s.NotEmpty(env.User.ID)
	s.Equal("new@example.com", env.User.Email)
	s.Equal("tester", env.User.Metadata["username"])
	s.NotEmpty(env.Session.AccessToken)
	s.NotEmpty(env.Session.RefreshToken)
	s.Positive(env.Session.ExpiresIn)

	resp, granted := s.postJSON("/auth/v1/token?grant_type=password", map[string]interface{}{
		"email":    "new@example.com",
		"password": "secret-pass",
	}, "")
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Require().NotNil(granted.Session)
	s.NotEqual(env.Session.AccessToken, granted.Session.AccessToken)

	s.Run("duplicate signup is rejected", func() {
		resp, env := s.postJSON("/auth/v1/signup", map[string]interface{}{
			"email":    "new@example.com",
			"password": "other-pass",
		}, "")
		s.Equal(http.StatusConflict, resp.StatusCode)
		s.Contains(env.Error, "already registered")
	})

	s.Run("wrong password is rejected", func() {
		resp, env := s.postJSON("/auth/v1/token?grant_type=password", map[string]interface{}{
			"email":    "new@example.com",
			"password": "wrong-pass",
		}, "")
		s.Equal(http.StatusUnauthorized, resp.StatusCode)
		s.Contains(env.Error, "invalid login credentials")
	})
}

func (s *ServerSuite) TestRefreshGrantRotatesTokens() {
	env := s.signup("refresh@example.com", "secret-pass")

	resp, refreshed := s.postJSON("/auth/v1/token?grant_type=refresh_token", map[string]interface{}{
		"refresh_token": env.Session.RefreshToken,
	}, "")
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Require().NotNil(refreshed.Session)
	s.NotEqual(env.Session.AccessToken, refreshed.Session.AccessToken)

	// The old refresh token is single-use.
	resp, _ = s.postJSON("/auth/v1/token?grant_type=refresh_token", map[string]interface{}{
		"refresh_token": env.Session.RefreshToken,
	}, "")
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *ServerSuite) TestUserFetchUpdateAndLogout() {
	env := s.signup("user@example.com", "secret-pass")
	token := env.Session.AccessToken

	req, _ := http.NewRequest(http.MethodGet, s.ts.URL+"/auth/v1/user", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	var fetched wireUser
	json.NewDecoder(resp.Body).Decode(&fetched)
	resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal("user@example.com", fetched.Email)

	data, _ := json.Marshal(map[string]interface{}{
		"data": map[string]string{"username": "renamed"},
	})
	req, _ = http.NewRequest(http.MethodPut, s.ts.URL+"/auth/v1/user", bytes.NewReader(data))
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = http.DefaultClient.Do(req)
	s.Require().NoError(err)
	json.NewDecoder(resp.Body).Decode(&fetched)
	resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal("renamed", fetched.Metadata["username"])

	req, _ = http.NewRequest(http.MethodPost, s.ts.URL+"/auth/v1/logout?scope=local", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = http.DefaultClient.Do(req)
	s.Require().NoError(err)
	resp.Body.Close()
	s.Equal(http.StatusNoContent, resp.StatusCode)

	// Token no longer honored.
	req, _ = http.NewRequest(http.MethodGet, s.ts.URL+"/auth/v1/user", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = http.DefaultClient.Do(req)
	s.Require().NoError(err)
	resp.Body.Close()
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *ServerSuite) TestEventStreamBroadcastsLifecycle() {
	wsURL := strings.Replace(s.ts.URL, "http", "ws", 1) + "/auth/v1/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	s.Require().NoError(err)
	defer conn.Close()

	env := s.signup("stream@example.com", "secret-pass")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame eventFrame
	s.Require().NoError(conn.ReadJSON(&frame))
	s.Equal("signed-in", frame.Event)
	s.Require().NotNil(frame.Session)
	s.Equal("stream@example.com", frame.Session.User.Email)

	req, _ := http.NewRequest(http.MethodPost, s.ts.URL+"/auth/v1/logout?scope=local", nil)
	req.Header.Set("Authorization", "Bearer "+env.Session.AccessToken)
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	resp.Body.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	frame = eventFrame{}
	s.Require().NoError(conn.ReadJSON(&frame))
	s.Equal("signed-out", frame.Event)
	s.Nil(frame.Session)
}
