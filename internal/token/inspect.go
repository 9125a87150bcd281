package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Info describes what can be read from a token without contacting the
// validator. Tokens that are not JWTs report IsJWT=false.
type Info struct {
	IsJWT     bool
	Subject   string
	ExpiresAt time.Time
}

// Expired reports whether the token carries an exp claim in the past.
func (i Info) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && now.After(i.ExpiresAt)
}

// Inspect decodes JWT claims without verifying the signature. The result is
// for display only and never used to accept or reject a token.
func Inspect(raw string) Info {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return Info{}
	}

	info := Info{IsJWT: true, Subject: claims.Subject}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	return info
}
