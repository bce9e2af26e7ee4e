// Package models defines server-side data models persisted in the database.
package models

import (
	"time"

	"github.com/aurorasketchpad/aurora/internal/common"
)

// User is a stored account. Optional columns are empty strings when unset;
// repositories persist those as NULL.
type User struct {
	ID                int64
	Email             string
	PasswordHash      string
	Name              string
	Verified          bool
	VerificationToken string
	Provider          string
	GoogleID          string
	GitHubID          string
	Avatar            string
	CreatedAt         time.Time
}

// HasPassword reports whether the account can log in locally.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// ExternalID returns the id the user has with the given OAuth provider.
func (u *User) ExternalID(provider string) string {
	switch provider {
	case common.ProviderGoogle:
		return u.GoogleID
	case common.ProviderGitHub:
		return u.GitHubID
	}
	return ""
}

// Public returns the view of the user that may leave the server.
func (u *User) Public() PublicUser {
	p := PublicUser{ID: u.ID, Email: u.Email, Name: u.Name}
	if u.Avatar != "" {
		avatar := u.Avatar
		p.Avatar = &avatar
	}
	return p
}

// PublicUser carries no password hash or verification token.
type PublicUser struct {
	ID     int64   `json:"id"`
	Email  string  `json:"email"`
	Name   string  `json:"name"`
	Avatar *string `json:"avatar"`
}
