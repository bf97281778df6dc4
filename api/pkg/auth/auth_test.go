package auth

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atriumhq/atrium/api/pkg/config"
)

func newAuthenticator(adminToken string) *Authenticator {
	cfg := &config.ServerConfig{}
	cfg.App.AdminToken = adminToken
	return NewAuthenticator(cfg)
}

func TestLoginAndValidateRoundTrip(t *testing.T) {
	authenticator := newAuthenticator("secret-admin-token")
	require.True(t, authenticator.Enabled())

	session, err := authenticator.Login("secret-admin-token")
	require.NoError(t, err)
	require.NotEmpty(t, session)

	require.NoError(t, authenticator.ValidateBearerToken(session))
}

func TestLoginRejectsWrongAdminToken(t *testing.T) {
	authenticator := newAuthenticator("secret-admin-token")

	_, err := authenticator.Login("wrong-token")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestValidateRejectsMissingToken(t *testing.T) {
	authenticator := newAuthenticator("secret-admin-token")

	err := authenticator.ValidateBearerToken("")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestValidateRejectsGarbageToken(t *testing.T) {
	authenticator := newAuthenticator("secret-admin-token")

	err := authenticator.ValidateBearerToken("not-a-jwt")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestValidateRejectsTokenSignedWithDifferentKey(t *testing.T) {
	issuer := newAuthenticator("first-key")
	verifier := newAuthenticator("second-key")

	session, err := issuer.Login("first-key")
	require.NoError(t, err)

	err = verifier.ValidateBearerToken(session)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestDisabledAuthentication(t *testing.T) {
	authenticator := newAuthenticator("")
	assert.False(t, authenticator.Enabled())

	_, err := authenticator.Login("anything")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAdminTokenNotConfigured))

	// the bearer guard passes everything through when disabled
	assert.NoError(t, authenticator.ValidateBearerToken(""))
	assert.NoError(t, authenticator.ValidateBearerToken("arbitrary"))
}
