package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/maheshrc27/postflow/internal/transfer"
)

const tokenIssuer = "postflow"

// tokenLeeway absorbs clock skew between the API nodes.
const tokenLeeway = 30 * time.Second

var ErrInvalidToken = errors.New("invalid token")

// GenerateToken signs an HS256 session token scoped to one organization.
func GenerateToken(secretKey, organizationID string, ttl time.Duration) (string, error) {
	if organizationID == "" {
		return "", errors.New("organization id is required")
	}
	if ttl <= 0 {
		return "", fmt.Errorf("token ttl must be positive, got %s", ttl)
	}

	now := time.Now()
	claims := transfer.CustomClaims{
		OrganizationID: organizationID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   organizationID,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secretKey))
}

// ValidateToken accepts only unexpired HS256 tokens issued by postflow for an
// organization. Every rejection wraps ErrInvalidToken.
func ValidateToken(secretKey, tokenString string) (*transfer.CustomClaims, error) {
	claims := &transfer.CustomClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return []byte(secretKey), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(tokenLeeway),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.OrganizationID == "" {
		return nil, fmt.Errorf("%w: missing organization", ErrInvalidToken)
	}
	return claims, nil
}
