package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/atriumhq/atrium/api/pkg/config"
)

var (
	// ErrAdminTokenNotConfigured means the process runs without ADMIN_TOKEN
	// and cannot issue sessions.
	ErrAdminTokenNotConfigured = errors.New("ADMIN_TOKEN is not configured")
	// ErrInvalidToken covers both failed logins and rejected bearer tokens.
	ErrInvalidToken = errors.New("invalid token")
)

const (
	sessionIssuer   = "atrium"
	sessionSubject  = "admin"
	sessionLifetime = 12 * time.Hour
)

// Authenticator issues and validates admin sessions. Sessions are signed
// JWTs keyed on the admin token, so they survive process restarts as long
// as ADMIN_TOKEN stays the same. When no admin token is configured the
// whole surface runs unauthenticated.
type Authenticator struct {
	cfg *config.ServerConfig
}

func NewAuthenticator(cfg *config.ServerConfig) *Authenticator {
	if cfg.App.AdminToken == "" {
		log.Warn().Msg("ADMIN_TOKEN is empty, authentication is disabled")
	}
	return &Authenticator{cfg: cfg}
}

// Enabled reports whether the bearer guard is active.
func (a *Authenticator) Enabled() bool {
	return a.cfg.App.AdminToken != ""
}

// Login exchanges the admin token for a signed session token.
func (a *Authenticator) Login(providedAdminToken string) (string, error) {
	if !a.Enabled() {
		return "", ErrAdminTokenNotConfigured
	}
	if subtle.ConstantTimeCompare([]byte(providedAdminToken), []byte(a.cfg.App.AdminToken)) != 1 {
		return "", fmt.Errorf("%w: admin token mismatch", ErrInvalidToken)
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    sessionIssuer,
		Subject:   sessionSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(sessionLifetime)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(a.cfg.App.AdminToken))
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	log.Info().Msg("admin session issued")
	return signed, nil
}

// ValidateBearerToken checks a bearer token from the Authorization header.
// It is a no-op when authentication is disabled.
func (a *Authenticator) ValidateBearerToken(bearerToken string) error {
	if !a.Enabled() {
		return nil
	}
	if bearerToken == "" {
		return fmt.Errorf("%w: missing bearer token", ErrInvalidToken)
	}

	parsed, err := jwt.ParseWithClaims(
		bearerToken,
		&jwt.RegisteredClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
			}
			return []byte(a.cfg.App.AdminToken), nil
		},
		jwt.WithIssuer(sessionIssuer),
		jwt.WithSubject(sessionSubject),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return ErrInvalidToken
	}
	return nil
}
