package transfer

import "github.com/golang-jwt/jwt/v5"

type CustomClaims struct {
	OrganizationID string `json:"organization_id"`
	jwt.RegisteredClaims
}
