package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"subscription-service/internal/domain/auth"
	"subscription-service/internal/middleware"
	xerrors "subscription-service/internal/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type stubAuth struct {
	loggedOut   *auth.Principal
	lastLoginIP string
	registerErr error
	loginErr    error
}

func (s *stubAuth) Register(_ context.Context, req *auth.RegisterRequest) (*auth.User, error) {
	if s.registerErr != nil {
		return nil, s.registerErr
	}
	return &auth.User{ID: 1, Username: req.Username, Email: req.Email, PasswordHash: "hash"}, nil
}

func (s *stubAuth) Login(_ context.Context, req *auth.LoginRequest) (*auth.TokenResponse, error) {
	s.lastLoginIP = req.IPAddress
	if s.loginErr != nil {
		return nil, s.loginErr
	}
	return &auth.TokenResponse{AccessToken: "signed", TokenType: "bearer", ExpiresIn: 1800}, nil
}

func (s *stubAuth) Logout(_ context.Context, p *auth.Principal) error {
	s.loggedOut = p
	return nil
}

func (s *stubAuth) GetMe(_ context.Context, userID int64) (*auth.UserInfo, error) {
	return &auth.UserInfo{ID: userID, Username: "alice", Email: "alice@example.com"}, nil
}

func (s *stubAuth) ValidateToken(_ context.Context, token string) (*auth.Principal, error) {
	if token != "tok" {
		return nil, xerrors.Unauthorized("could not validate credentials")
	}
	return &auth.Principal{UserID: 42, Username: "alice", TokenID: "jti-1", Expires: time.Now().Add(time.Hour)}, nil
}

type closerSpy struct {
	userID  int64
	tokenID string
}

func (c *closerSpy) DisconnectToken(userID int64, tokenID string) {
	c.userID, c.tokenID = userID, tokenID
}

func setup(svc *stubAuth, closer SessionCloser) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewAuthHandler(svc, closer, zap.NewNop())
	mw := middleware.NewAuthMiddleware(svc)
	r := gin.New()
	r.POST("/users", h.Register)
	r.POST("/token", h.Login)
	r.POST("/logout", mw.Auth(), h.Logout)
	r.GET("/users/me", mw.Auth(), h.Me)
	return r
}

func TestRegister(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{"valid", `{"username":"alice","email":"alice@example.com","password":"correct-horse"}`, nil, http.StatusCreated},
		{"short password", `{"username":"alice","email":"alice@example.com","password":"short"}`, nil, http.StatusBadRequest},
		{"bad email", `{"username":"alice","email":"nope","password":"correct-horse"}`, nil, http.StatusBadRequest},
		{"short username", `{"username":"al","email":"alice@example.com","password":"correct-horse"}`, nil, http.StatusBadRequest},
		{"taken", `{"username":"alice","email":"alice@example.com","password":"correct-horse"}`, xerrors.Conflict("username already registered", 0), http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := setup(&stubAuth{registerErr: tt.err}, nil)
			req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			assert.NotContains(t, w.Body.String(), "hash")
		})
	}
}

func TestLogin_AcceptsForm(t *testing.T) {
	svc := &stubAuth{}
	r := setup(svc, nil)
	form := url.Values{"username": {"alice"}, "password": {"correct-horse"}}
	req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.RemoteAddr = "10.1.2.3:5555"
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"access_token":"signed"`)
	assert.Equal(t, "10.1.2.3", svc.lastLoginIP)
}

func TestLogin_Failures(t *testing.T) {
	tests := []struct {
		err    error
		status int
		header bool
	}{
		{xerrors.Unauthorized("incorrect username or password"), http.StatusUnauthorized, true},
		{xerrors.RateLimited("too many login attempts"), http.StatusTooManyRequests, false},
	}
	for _, tt := range tests {
		r := setup(&stubAuth{loginErr: tt.err}, nil)
		req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(`{"username":"alice","password":"x"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, tt.status, w.Code)
		assert.Equal(t, tt.header, w.Header().Get("WWW-Authenticate") != "")
	}
}

func TestLogout_ClosesSessions(t *testing.T) {
	svc := &stubAuth{}
	closer := &closerSpy{}
	r := setup(svc, closer)
	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "jti-1", svc.loggedOut.TokenID)
	assert.Equal(t, int64(42), closer.userID)
	assert.Equal(t, "jti-1", closer.tokenID)
}

func TestMe(t *testing.T) {
	r := setup(&stubAuth{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"username":"alice"`)
}
