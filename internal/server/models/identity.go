package models

import "time"

// OAuthProfile is a provider's user profile reduced to what account
// resolution needs.
type OAuthProfile struct {
	Email      string
	ExternalID string
	Name       string
	Avatar     string
}

// VerificationEmail is the message handed to a mail transport after
// registration. It doubles as the Kafka event payload.
type VerificationEmail struct {
	UserID    int64     `json:"user_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Token     string    `json:"token"`
	Link      string    `json:"link"`
	CreatedAt time.Time `json:"created_at"`
}
