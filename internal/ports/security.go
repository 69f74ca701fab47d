package ports

import "time"

type AuthClaims struct {
	Subject   string
	Role      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenVerifier validates bearer tokens minted by the authentication service.
type TokenVerifier interface {
	ParseAndValidate(raw string) (AuthClaims, error)
}
