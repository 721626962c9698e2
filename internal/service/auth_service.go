// Package service implements business logic between handlers and repositories.
package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"loom/internal/config"
	"loom/internal/middleware"
	"loom/internal/models"
	"loom/internal/observability"
	"loom/internal/repository"
	"loom/internal/validation"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// TokenClaims are the JWT claims carried by both token types. Purpose keeps
// a refresh token from ever passing as an access token and vice versa.
type TokenClaims struct {
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// TokenPair is an access token plus the refresh token that renews it.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// ClientMeta identifies the device behind a session record.
type ClientMeta struct {
	IP        string
	UserAgent string
}

// RegisterRequest carries the fields needed to create an account.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthService handles registration, login and the refresh-token lifecycle.
// Every issued refresh token has a matching session row keyed by HMAC hash;
// rotation consumes the row and appends a fresh one.
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest, meta ClientMeta) (*models.User, *TokenPair, error)
	Login(ctx context.Context, identifier, password string, meta ClientMeta) (*models.User, *TokenPair, error)
	Rotate(ctx context.Context, refreshToken string, meta ClientMeta) (*TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	LogoutAll(ctx context.Context, userID uint) error
}

type authService struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	cfg      *config.Config
}

// NewAuthService creates an AuthService backed by the given repositories.
func NewAuthService(users repository.UserRepository, sessions repository.SessionRepository, cfg *config.Config) AuthService {
	return &authService{users: users, sessions: sessions, cfg: cfg}
}

func (s *authService) Register(ctx context.Context, req RegisterRequest, meta ClientMeta) (*models.User, *TokenPair, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if err := validation.ValidateUsername(username); err != nil {
		return nil, nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateEmail(email); err != nil {
		return nil, nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(req.Password); err != nil {
		return nil, nil, models.NewValidationError(err.Error())
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, models.NewInternalError(err)
	}

	user := &models.User{
		Username: username,
		Email:    email,
		Password: string(hashed),
		Role:     models.RoleUser,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, nil, err
	}

	pair, err := s.issueTokenPair(ctx, user.ID, meta)
	if err != nil {
		return nil, nil, err
	}

	middleware.Logger.InfoContext(ctx, "user registered", slog.Uint64("user_id", uint64(user.ID)))
	return user, pair, nil
}

func (s *authService) Login(ctx context.Context, identifier, password string, meta ClientMeta) (*models.User, *TokenPair, error) {
	user, err := s.users.GetByIdentifier(ctx, strings.TrimSpace(identifier))
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, models.NewUnauthorizedError("Invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, nil, models.NewUnauthorizedError("Invalid credentials")
	}

	s.purgeExpired(ctx, user.ID)

	pair, err := s.issueTokenPair(ctx, user.ID, meta)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()
	user.LastSeenAt = &now
	if err := s.users.Update(ctx, user); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to update last seen", slog.String("error", err.Error()))
	}

	return user, pair, nil
}

// Rotate exchanges a valid refresh token for a new pair. The presented
// token's session row is deleted first, so a replayed token finds nothing
// and fails even if its signature is still valid.
func (s *authService) Rotate(ctx context.Context, refreshToken string, meta ClientMeta) (*TokenPair, error) {
	// A token that fails verification outright is a bad credential; only a
	// verified token whose session row is missing counts as revoked.
	claims, err := s.parseToken(refreshToken, s.cfg.JWTRefreshSecret, "refresh")
	if err != nil {
		return nil, models.NewUnauthorizedError("Invalid refresh token")
	}

	hash := s.hashToken(refreshToken)
	session, err := s.sessions.FindByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if session == nil || time.Now().After(session.ExpiresAt) {
		return nil, models.NewExpiredOrRevokedError("Refresh token is invalid or expired")
	}

	userID, err := parseSubject(claims)
	if err != nil || userID != session.UserID {
		return nil, models.NewExpiredOrRevokedError("Refresh token is invalid or expired")
	}

	if err := s.sessions.DeleteByHash(ctx, hash); err != nil {
		return nil, err
	}

	pair, err := s.issueTokenPair(ctx, session.UserID, meta)
	if err != nil {
		return nil, err
	}

	observability.SessionsRotated.Inc()
	s.purgeExpired(ctx, session.UserID)
	return pair, nil
}

// Logout revokes the presented refresh token. Unknown tokens are a no-op so
// logout is safe to retry.
func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.sessions.DeleteByHash(ctx, s.hashToken(refreshToken))
}

func (s *authService) LogoutAll(ctx context.Context, userID uint) error {
	return s.sessions.DeleteAllForUser(ctx, userID)
}

// issueTokenPair mints both tokens and records the refresh session.
func (s *authService) issueTokenPair(ctx context.Context, userID uint, meta ClientMeta) (*TokenPair, error) {
	now := time.Now()

	access, err := s.signToken(userID, "access", s.cfg.JWTAccessSecret, now, s.cfg.AccessTokenTTL)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	refresh, err := s.signToken(userID, "refresh", s.cfg.JWTRefreshSecret, now, s.cfg.RefreshTokenTTL)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	session := &models.Session{
		UserID:     userID,
		TokenHash:  s.hashToken(refresh),
		ExpiresAt:  now.Add(s.cfg.RefreshTokenTTL),
		LastUsedAt: now,
		IP:         meta.IP,
		UserAgent:  meta.UserAgent,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int(s.cfg.AccessTokenTTL.Seconds()),
	}, nil
}

func (s *authService) signToken(userID uint, purpose, secret string, now time.Time, ttl time.Duration) (string, error) {
	claims := TokenClaims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uintToString(userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func (s *authService) parseToken(tokenString, secret, purpose string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Purpose != purpose {
		return nil, errors.New("wrong token purpose")
	}
	return claims, nil
}

// hashToken computes the keyed hash under which a refresh token is stored.
// Only the hash touches the database.
func (s *authService) hashToken(token string) string {
	mac := hmac.New(sha256.New, []byte(s.cfg.SessionHMACKey))
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

// purgeExpired opportunistically removes the user's expired sessions.
// Failures are logged; auth flows never block on cleanup.
func (s *authService) purgeExpired(ctx context.Context, userID uint) {
	purged, err := s.sessions.PurgeExpired(ctx, userID)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "session purge failed", slog.String("error", err.Error()))
		return
	}
	if purged > 0 {
		observability.SessionsPurged.Add(float64(purged))
	}
}

func parseSubject(claims *TokenClaims) (uint, error) {
	sub, err := claims.GetSubject()
	if err != nil {
		return 0, err
	}
	return stringToUint(sub)
}
