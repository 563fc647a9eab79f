// internal/service/auth/auth.go
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"subscription-service/internal/domain/auth"
	xerrors "subscription-service/internal/pkg/errors"
	"subscription-service/internal/pkg/jwt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type UserRepository interface {
	Create(ctx context.Context, user *auth.User) error
	FindByID(ctx context.Context, id int64) (*auth.User, error)
	FindByUsername(ctx context.Context, username string) (*auth.User, error)
	FindByEmail(ctx context.Context, email string) (*auth.User, error)
}

type TokenIssuer interface {
	GenerateAccessToken(userID int64, username string) (*jwt.Token, error)
}

type TokenVerifier interface {
	VerifyAccessToken(token string) (*jwt.Claims, error)
}

// Blacklist revokes tokens by jti
type Blacklist interface {
	IsTokenBlacklisted(ctx context.Context, jti string) (bool, error)
	BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error
}

type LoginLimiter interface {
	CheckLoginAttempt(ctx context.Context, ip, username string) (bool, int64, error)
	ResetLoginAttempts(ctx context.Context, ip, username string) error
}

type AuthService struct {
	users       UserRepository
	issuer      TokenIssuer
	verifier    TokenVerifier
	sessions    Blacklist
	rateLimiter LoginLimiter
	now         func() time.Time
	logger      *zap.Logger
}

func NewAuthService(
	users UserRepository,
	issuer TokenIssuer,
	verifier TokenVerifier,
	sessions Blacklist,
	rateLimiter LoginLimiter,
	logger *zap.Logger,
) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:       users,
		issuer:      issuer,
		verifier:    verifier,
		sessions:    sessions,
		rateLimiter: rateLimiter,
		now:         time.Now,
		logger:      logger,
	}
}

// ========== Registration ==========

// Register creates a new user account
func (s *AuthService) Register(ctx context.Context, req *auth.RegisterRequest) (*auth.User, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if _, err := s.users.FindByUsername(ctx, username); err == nil {
		return nil, xerrors.Conflict("username already registered", 0)
	} else if !errors.Is(err, xerrors.ErrNotFound) {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, xerrors.Conflict("email already registered", 0)
	} else if !errors.Is(err, xerrors.ErrNotFound) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &auth.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hashed),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user registered",
		zap.Int64("user_id", user.ID),
		zap.String("username", user.Username),
	)
	return user, nil
}

// ========== Login ==========

// Login exchanges username and password for a bearer access token
func (s *AuthService) Login(ctx context.Context, req *auth.LoginRequest) (*auth.TokenResponse, error) {
	allowed, remaining, err := s.rateLimiter.CheckLoginAttempt(ctx, req.IPAddress, req.Username)
	if err != nil {
		// Redis being down should not lock everyone out
		s.logger.Warn("login rate limiter unavailable", zap.Error(err))
	} else if !allowed {
		return nil, xerrors.RateLimited("too many login attempts, please try again in 15 minutes")
	}

	user, err := s.users.FindByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			return nil, xerrors.Unauthorized("incorrect username or password")
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.Info("failed login attempt",
			zap.String("username", req.Username),
			zap.String("ip", req.IPAddress),
			zap.Int64("remaining", remaining),
		)
		return nil, xerrors.Unauthorized("incorrect username or password")
	}

	if err := s.rateLimiter.ResetLoginAttempts(ctx, req.IPAddress, req.Username); err != nil {
		s.logger.Warn("failed to reset login attempts", zap.Error(err))
	}

	token, err := s.issuer.GenerateAccessToken(user.ID, user.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	s.logger.Info("user logged in",
		zap.Int64("user_id", user.ID),
		zap.String("jti", token.ID),
	)

	return &auth.TokenResponse{
		AccessToken: token.Value,
		TokenType:   "bearer",
		ExpiresIn:   int(token.ExpiresAt.Sub(s.now()).Seconds()),
		ExpiresAt:   token.ExpiresAt,
		User:        auth.NewUserInfo(user),
	}, nil
}

// ========== Tokens ==========

// ValidateToken resolves a bearer token to the caller it was issued for
func (s *AuthService) ValidateToken(ctx context.Context, token string) (*auth.Principal, error) {
	claims, err := s.verifier.VerifyAccessToken(token)
	if err != nil {
		return nil, xerrors.Unauthorized("could not validate credentials")
	}

	revoked, err := s.sessions.IsTokenBlacklisted(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check token status: %w", err)
	}
	if revoked {
		return nil, xerrors.Unauthorized("token has been revoked")
	}

	p := &auth.Principal{
		UserID:   claims.UserID,
		Username: claims.Username(),
		TokenID:  claims.ID,
	}
	if claims.ExpiresAt != nil {
		p.Expires = claims.ExpiresAt.Time
	}
	return p, nil
}

// Logout revokes the token for the rest of its lifetime
func (s *AuthService) Logout(ctx context.Context, p *auth.Principal) error {
	ttl := p.Expires.Sub(s.now())
	if err := s.sessions.BlacklistToken(ctx, p.TokenID, ttl); err != nil {
		return err
	}
	s.logger.Info("user logged out", zap.Int64("user_id", p.UserID), zap.String("jti", p.TokenID))
	return nil
}

// GetMe returns the authenticated user
func (s *AuthService) GetMe(ctx context.Context, userID int64) (*auth.UserInfo, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	info := auth.NewUserInfo(user)
	return &info, nil
}
