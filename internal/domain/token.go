package domain

import (
	"time"

	"golang.org/x/oauth2"
)

// AccessToken is the result of a successful grant. It lives only in memory.
type AccessToken struct {
	Token        string
	TokenType    string
	ExpiresIn    int // seconds, as reported by the identity provider
	RefreshToken string
	Scope        string
}

// OAuth2 converts the token into an *oauth2.Token whose expiry is measured from issuedAt.
func (t AccessToken) OAuth2(issuedAt time.Time) *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  t.Token,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
	}
	if t.ExpiresIn > 0 {
		tok.Expiry = issuedAt.Add(time.Duration(t.ExpiresIn) * time.Second)
	}
	return tok
}

// DeviceCodeSession holds the initial response from a device authorization request.
// DeviceCode is fixed for the lifetime of the session.
type DeviceCodeSession struct {
	DeviceCode      string
	UserCode        string
	VerificationURI string
	Message         string
	ExpiresIn       int // seconds until the device code expires
	Interval        int // minimum polling interval in seconds
	IssuedAt        time.Time
}

// Deadline is the wall-clock instant after which the device code can no longer be redeemed.
func (s DeviceCodeSession) Deadline() time.Time {
	return s.IssuedAt.Add(time.Duration(s.ExpiresIn) * time.Second)
}

// MinInterval returns the server-specified polling interval as a duration.
func (s DeviceCodeSession) MinInterval() time.Duration {
	return time.Duration(s.Interval) * time.Second
}
