package domain

import "time"

// TokenPair is what a successful login or refresh returns: a short-lived
// access token and a long-lived, single-use refresh token, signed with
// separate secrets.
type TokenPair struct {
	AccessToken         string    `json:"access_token"`
	AccessTokenExpires  time.Time `json:"access_token_expires"`
	RefreshToken        string    `json:"refresh_token"`
	RefreshTokenExpires time.Time `json:"refresh_token_expires"`
	TokenType           string    `json:"token_type"` // always "bearer"
}
