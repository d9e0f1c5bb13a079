package auth_test

import (
	"crypto/ed25519"
	"crypto/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/beacon/internal/auth"
	"github.com/ashita-ai/beacon/internal/model"
)

func TestHashAndVerifyAPIKey(t *testing.T) {
	hash, err := auth.HashAPIKey("test-key-123")
	require.NoError(t, err)
	assert.Contains(t, hash, "$")

	valid, err := auth.VerifyAPIKey("test-key-123", hash)
	require.NoError(t, err)
	assert.True(t, valid)

	valid, err = auth.VerifyAPIKey("wrong-key", hash)
	require.NoError(t, err)
	assert.False(t, valid)

	_, err = auth.VerifyAPIKey("x", "no-separator")
	assert.Error(t, err)
}

func TestGenerateAPIKey(t *testing.T) {
	a, err := auth.GenerateAPIKey()
	require.NoError(t, err)
	b, err := auth.GenerateAPIKey()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(a, "bk_"))
	assert.NotEqual(t, a, b)
}

func TestJWTIssueAndValidate(t *testing.T) {
	mgr, err := auth.NewJWTManager("", "", time.Hour, nil)
	require.NoError(t, err)

	token, expiresAt, err := mgr.IssueToken(model.APIClient{ClientID: "ops-dashboard", Role: model.RoleAnalyst})
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := mgr.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ops-dashboard", claims.ClientID)
	assert.Equal(t, "ops-dashboard", claims.Subject)
	assert.Equal(t, model.RoleAnalyst, claims.Role)
}

func TestJWTRejectsOtherKeyAndExpired(t *testing.T) {
	a, err := auth.NewJWTManager("", "", time.Hour, nil)
	require.NoError(t, err)
	b, err := auth.NewJWTManager("", "", time.Hour, nil)
	require.NoError(t, err)

	token, _, err := a.IssueToken(model.APIClient{ClientID: "c1", Role: model.RoleViewer})
	require.NoError(t, err)
	_, err = b.ValidateToken(token)
	assert.Error(t, err)

	expired, err := auth.NewJWTManager("", "", -time.Minute, nil)
	require.NoError(t, err)
	token, _, err = expired.IssueToken(model.APIClient{ClientID: "c1", Role: model.RoleViewer})
	require.NoError(t, err)
	_, err = expired.ValidateToken(token)
	assert.Error(t, err)
}

func TestJWTFromPEMFiles(t *testing.T) {
	privPEM, pubPEM, err := auth.GenerateKeyPEM()
	require.NoError(t, err)
	dir := t.TempDir()
	privPath := filepath.Join(dir, "priv.pem")
	pubPath := filepath.Join(dir, "pub.pem")
	require.NoError(t, os.WriteFile(privPath, privPEM, 0o600))
	require.NoError(t, os.WriteFile(pubPath, pubPEM, 0o600))

	mgr, err := auth.NewJWTManager(privPath, pubPath, time.Hour, nil)
	require.NoError(t, err)
	token, _, err := mgr.IssueToken(model.APIClient{ClientID: "admin-cli", Role: model.RoleAdmin})
	require.NoError(t, err)

	// A second manager over the same files validates the token.
	again, err := auth.NewJWTManager(privPath, pubPath, time.Hour, nil)
	require.NoError(t, err)
	claims, err := again.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, claims.Role)

	// Mismatched pair.
	_, otherPub, err := auth.GenerateKeyPEM()
	require.NoError(t, err)
	otherPath := filepath.Join(dir, "other.pem")
	require.NoError(t, os.WriteFile(otherPath, otherPub, 0o600))
	_, err = auth.NewJWTManager(privPath, otherPath, time.Hour, nil)
	assert.ErrorContains(t, err, "does not match")
}

func TestJWTRejectsForgedAlgorithmAndAudience(t *testing.T) {
	mgr, err := auth.NewJWTManager("", "", time.Hour, nil)
	require.NoError(t, err)

	hs := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: "c1", Issuer: "beacon", Audience: jwt.ClaimStrings{"beacon"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		ClientID: "c1", Role: model.RoleAdmin,
	})
	signed, err := hs.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = mgr.ValidateToken(signed)
	assert.Error(t, err)

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	wrongAud := jwt.NewWithClaims(jwt.SigningMethodEdDSA, auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: "c1", Issuer: "beacon", Audience: jwt.ClaimStrings{"elsewhere"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		ClientID: "c1", Role: model.RoleAdmin,
	})
	signed, err = wrongAud.SignedString(priv)
	require.NoError(t, err)
	_, err = mgr.ValidateToken(signed)
	assert.Error(t, err)
}

func TestParseClientsAndAuthenticate(t *testing.T) {
	hash, err := auth.HashAPIKey("s3cret")
	require.NoError(t, err)

	clients, err := auth.ParseClients(" dash:viewer:" + hash + " , ops:analyst:" + hash + ",")
	require.NoError(t, err)
	assert.Equal(t, 2, clients.Len())

	c, ok := clients.Authenticate("ops", "s3cret")
	require.True(t, ok)
	assert.Equal(t, model.RoleAnalyst, c.Role)

	_, ok = clients.Authenticate("ops", "wrong")
	assert.False(t, ok)
	_, ok = clients.Authenticate("nobody", "s3cret")
	assert.False(t, ok)

	empty, err := auth.ParseClients("")
	require.NoError(t, err)
	assert.Zero(t, empty.Len())
}

func TestParseClientsErrors(t *testing.T) {
	for name, spec := range map[string]string{
		"missing parts": "dash:viewer",
		"bad role":      "dash:root:a$b",
		"bad id":        "da sh:viewer:a$b",
		"bad hash":      "dash:viewer:plain",
		"duplicate":     "dash:viewer:a$b,dash:admin:a$b",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := auth.ParseClients(spec)
			assert.Error(t, err)
		})
	}
}
