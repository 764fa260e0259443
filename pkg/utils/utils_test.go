package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mit45/AutoSocial-Ai/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef"

func TestEncryptDecrypt(t *testing.T) {
	sealed, err := Encrypt([]byte("IGQVJ-long-lived-token"), []byte(testKey))
	require.NoError(t, err)
	assert.NotContains(t, sealed, "IGQVJ")

	again, err := Encrypt([]byte("IGQVJ-long-lived-token"), []byte(testKey))
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again)

	plain, err := Decrypt(sealed, []byte(testKey))
	require.NoError(t, err)
	assert.Equal(t, "IGQVJ-long-lived-token", plain)

	_, err = Decrypt(sealed, []byte("fedcba9876543210fedcba9876543210"))
	assert.Error(t, err)

	_, err = Decrypt("c2hvcnQ=", []byte(testKey))
	assert.ErrorIs(t, err, ErrCiphertextTooShort)

	_, err = Encrypt([]byte("x"), []byte("short"))
	assert.Error(t, err)
}

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken(testKey, "ops", time.Hour)
	require.NoError(t, err)

	claims, err := ValidateToken(testKey, token)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Operator)
	assert.Equal(t, "autosocial", claims.Issuer)

	_, err = ValidateToken("another-secret-another-secret-00", token)
	assert.Error(t, err)

	expired, err := GenerateToken(testKey, "ops", -time.Minute)
	require.NoError(t, err)
	_, err = ValidateToken(testKey, expired)
	assert.Error(t, err)

	_, err = GenerateToken("", "ops", time.Hour)
	assert.Error(t, err)
}

func TestValidateTokenRejectsForeignIssuerAndMissingOperator(t *testing.T) {
	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, transfer.CustomClaims{
		Operator:         "ops",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "someone-else", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	})
	signed, err := foreign.SignedString([]byte(testKey))
	require.NoError(t, err)
	_, err = ValidateToken(testKey, signed)
	assert.Error(t, err)

	anonymous := jwt.NewWithClaims(jwt.SigningMethodHS256, transfer.CustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "autosocial", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	})
	signed, err = anonymous.SignedString([]byte(testKey))
	require.NoError(t, err)
	_, err = ValidateToken(testKey, signed)
	assert.Error(t, err)
}

func TestTokenOperatorClaims(t *testing.T) {
	token, err := GenerateToken(testKey, "  Ops.Team ", time.Hour)
	require.NoError(t, err)
	claims, err := ValidateToken(testKey, token)
	require.NoError(t, err)
	assert.Equal(t, "ops.team", claims.Operator)
	assert.Equal(t, "ops.team", claims.Subject)
	assert.NotEmpty(t, claims.ID)

	other, err := GenerateToken(testKey, "ops.team", time.Hour)
	require.NoError(t, err)
	otherClaims, err := ValidateToken(testKey, other)
	require.NoError(t, err)
	assert.NotEqual(t, claims.ID, otherClaims.ID)

	_, err = GenerateToken(testKey, "", time.Hour)
	assert.ErrorIs(t, err, ErrInvalidOperator)
	_, err = GenerateToken(testKey, "rm -rf", time.Hour)
	assert.ErrorIs(t, err, ErrInvalidOperator)

	mismatched := jwt.NewWithClaims(jwt.SigningMethodHS256, transfer.CustomClaims{
		Operator: "ops",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "autosocial",
			Subject:   "admin",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := mismatched.SignedString([]byte(testKey))
	require.NoError(t, err)
	_, err = ValidateToken(testKey, signed)
	assert.ErrorIs(t, err, ErrInvalidOperator)

	noExpiry := jwt.NewWithClaims(jwt.SigningMethodHS256, transfer.CustomClaims{
		Operator:         "ops",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "autosocial", Subject: "ops"},
	})
	signed, err = noExpiry.SignedString([]byte(testKey))
	require.NoError(t, err)
	_, err = ValidateToken(testKey, signed)
	assert.Error(t, err)
}

func TestOperatorAllowed(t *testing.T) {
	assert.True(t, OperatorAllowed("ops", nil))
	assert.True(t, OperatorAllowed("ops", []string{"admin", " OPS "}))
	assert.False(t, OperatorAllowed("intern", []string{"admin", "ops"}))
}

func TestKeys(t *testing.T) {
	key, err := GenerateRandomKey(24)
	require.NoError(t, err)
	assert.Len(t, key, 32)

	assert.True(t, KeysEqual(key, key))
	assert.False(t, KeysEqual(key, key+"x"))
	assert.False(t, KeysEqual("", ""))
}
