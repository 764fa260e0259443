package utils

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/mit45/AutoSocial-Ai/internal/transfer"
)

const tokenIssuer = "autosocial"

var (
	ErrInvalidOperator    = errors.New("invalid operator name")
	ErrOperatorNotAllowed = errors.New("operator is not allowed")

	operatorPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{0,63}$`)
)

// NormalizeOperator lower-cases an operator name and checks it against the
// accepted charset.
func NormalizeOperator(operator string) (string, error) {
	op := strings.ToLower(strings.TrimSpace(operator))
	if !operatorPattern.MatchString(op) {
		return "", fmt.Errorf("%w: %q", ErrInvalidOperator, operator)
	}
	return op, nil
}

// GenerateToken signs an operator token. The operator is also the subject and
// every token gets its own id so it can be traced in logs.
func GenerateToken(secretKey, operator string, tokenDuration time.Duration) (string, error) {
	if secretKey == "" {
		return "", errors.New("secret key is required to sign tokens")
	}
	op, err := NormalizeOperator(operator)
	if err != nil {
		return "", err
	}

	now := time.Now()
	claims := transfer.CustomClaims{
		Operator: op,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   op,
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString([]byte(secretKey))
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	return signedToken, nil
}

// ValidateToken checks signature, issuer and expiry, then requires the
// operator claim to be a valid name that matches the subject.
func ValidateToken(secretKey, tokenString string) (*transfer.CustomClaims, error) {
	claims := &transfer.CustomClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secretKey), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	op, err := NormalizeOperator(claims.Operator)
	if err != nil {
		return nil, err
	}
	if op != claims.Operator || claims.Subject != op {
		return nil, fmt.Errorf("%w: subject does not match operator", ErrInvalidOperator)
	}
	return claims, nil
}

// OperatorAllowed reports whether operator may use the API. An empty
// allow-list admits every operator holding a valid token.
func OperatorAllowed(operator string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	return slices.ContainsFunc(allowed, func(a string) bool {
		return strings.EqualFold(strings.TrimSpace(a), operator)
	})
}
