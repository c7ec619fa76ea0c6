package tokens

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNoExpiry = errors.New("token has no exp claim")

// Expiration reads the exp claim without verifying the signature.
// The dashboard never holds the API's signing key.
func Expiration(token string) (time.Time, error) {
	if token == "" {
		return time.Time{}, errors.New("empty token")
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, ErrNoExpiry
	}
	return claims.ExpiresAt.Time.UTC(), nil
}

// ShouldRefresh reports whether now is inside the buffer before expiry.
// Tokens that cannot be read are always due.
func ShouldRefresh(token string, buffer time.Duration, now time.Time) bool {
	exp, err := Expiration(token)
	if err != nil {
		return true
	}
	return !now.Before(exp.Add(-buffer))
}

type Info struct {
	Subject   string     `json:"subject,omitempty"`
	Issuer    string     `json:"issuer,omitempty"`
	IssuedAt  *time.Time `json:"issued_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Expired   bool       `json:"expired"`
	Remaining string     `json:"remaining,omitempty"`
}

// Inspect reads the unverified registered claims for display.
func Inspect(token string, now time.Time) (Info, error) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return Info{}, err
	}
	info := Info{Subject: claims.Subject, Issuer: claims.Issuer}
	if claims.IssuedAt != nil {
		iat := claims.IssuedAt.Time.UTC()
		info.IssuedAt = &iat
	}
	if claims.ExpiresAt != nil {
		exp := claims.ExpiresAt.Time.UTC()
		info.ExpiresAt = &exp
		info.Expired = !now.Before(exp)
		if !info.Expired {
			info.Remaining = exp.Sub(now).Truncate(time.Second).String()
		}
	}
	return info, nil
}
