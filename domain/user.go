package domain

import "time"

// User is a local account bound to exactly one Airtable account. It also
// carries the delegated Airtable credential of that account.
type User struct {
	ID                string `bson:"_id,omitempty" json:"id"`
	ExternalAccountID string `bson:"external_account_id" json:"externalAccountId"`
	Email             string `bson:"email" json:"email"`
	DisplayName       string `bson:"display_name" json:"displayName"`

	AccessToken    string    `bson:"access_token,omitempty" json:"-"`
	RefreshToken   string    `bson:"refresh_token,omitempty" json:"-"`
	TokenExpiresAt time.Time `bson:"token_expires_at" json:"-"`

	CreatedAt   time.Time  `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time  `bson:"updated_at" json:"updatedAt"`
	LastLoginAt *time.Time `bson:"last_login_at,omitempty" json:"lastLoginAt,omitempty"`
}

// TokenGrant is the access/refresh token pair and its absolute expiry.
type TokenGrant struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// HasCredentials reports whether the user still holds a usable token pair.
func (u *User) HasCredentials() bool {
	return u.AccessToken != "" && u.RefreshToken != ""
}

// Grant returns the user's current token pair.
func (u *User) Grant() TokenGrant {
	return TokenGrant{
		AccessToken:  u.AccessToken,
		RefreshToken: u.RefreshToken,
		ExpiresAt:    u.TokenExpiresAt,
	}
}

// ApplyGrant overwrites the token fields with g.
func (u *User) ApplyGrant(g TokenGrant) {
	u.AccessToken = g.AccessToken
	u.RefreshToken = g.RefreshToken
	u.TokenExpiresAt = g.ExpiresAt
}
