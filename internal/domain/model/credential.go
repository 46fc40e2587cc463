package model

import "time"

// Credential holds the OAuth tokens for one connected account. It is
// persisted as an opaque blob and is only ever replaced as a whole.
type Credential struct {
	AccountID    string    `json:"account_id"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	IDToken      string    `json:"id_token,omitempty"`
	Expiry       time.Time `json:"expiry"`
}

// IsFresh reports whether the access token may be used at now.
func (c Credential) IsFresh(now time.Time) bool {
	return now.Before(c.Expiry)
}
