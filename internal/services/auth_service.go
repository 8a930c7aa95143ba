package services

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"checkin-system/config"
	"checkin-system/internal/logging"
	"checkin-system/internal/status"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const RoleAdmin = "admin"

// AdminClaims is the payload of an admin bearer token.
type AdminClaims struct {
	UID      string `json:"uid"`
	Username string `json:"username"`
	Role     string `json:"role"`
	Email    string `json:"email"`
	jwt.RegisteredClaims
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type AdminUser struct {
	UID      string `json:"uid"`
	Username string `json:"username"`
	Role     string `json:"role"`
	Email    string `json:"email"`
}

type LoginResult struct {
	Token     string    `json:"token"`
	User      AdminUser `json:"user"`
	ExpiresIn int       `json:"expires_in"`
}

type AuthService struct {
	username     string
	passwordHash []byte
	password     string
	secret       []byte
	issuer       string
	audience     string
	ttl          time.Duration
	now          func() time.Time
}

func NewAuthService(cfg *config.Config) *AuthService {
	s := &AuthService{
		username: cfg.AdminUsername,
		password: cfg.AdminPassword,
		secret:   []byte(cfg.JWTSecret),
		issuer:   cfg.JWTIssuer,
		audience: cfg.JWTAudience,
		ttl:      cfg.TokenTTL,
		now:      time.Now,
	}
	if cfg.AdminPasswordHash != "" {
		s.passwordHash = []byte(cfg.AdminPasswordHash)
	} else {
		logging.Warn().Msg("ADMIN_PASSWORD_HASH not set, falling back to plain admin password")
	}
	return s
}

// WithClock replaces the time source. Intended for tests.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

func (s *AuthService) Login(req LoginRequest) (*LoginResult, error) {
	if req.Username != s.username || !s.passwordMatches(req.Password) {
		logging.Warn().Str("username", req.Username).Msg("admin login rejected")
		return nil, status.ErrInvalidCredentials
	}

	user := AdminUser{
		UID:      "admin_" + s.username,
		Username: s.username,
		Role:     RoleAdmin,
		Email:    s.username + "@checkin.local",
	}

	now := s.now()
	claims := AdminClaims{
		UID:      user.UID,
		Username: user.Username,
		Role:     user.Role,
		Email:    user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			Subject:   user.UID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign admin token: %w", err)
	}

	logging.Info().Str("username", user.Username).Msg("admin logged in")
	return &LoginResult{Token: token, User: user, ExpiresIn: int(s.ttl / time.Second)}, nil
}

func (s *AuthService) passwordMatches(password string) bool {
	if s.passwordHash != nil {
		return bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(s.password)) == 1
}

// Verify parses a bearer token. Expired tokens report TOKEN_EXPIRED, anything
// else unparseable reports INVALID_TOKEN.
func (s *AuthService) Verify(token string) (*AdminClaims, error) {
	if token == "" {
		return nil, status.ErrInvalidToken
	}

	claims := &AdminClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, status.ErrTokenExpired
		}
		return nil, status.ErrInvalidToken
	}
	return claims, nil
}
