package models

import (
	"time"
)

// GmailCredential stores the OAuth tokens for the shared sender mailbox.
// Tokens are AES-256-GCM encrypted at rest.
type GmailCredential struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	UserEmail string `gorm:"uniqueIndex;size:255;not null" json:"user_email"`

	AccessTokenEncrypted  string `gorm:"size:2000;not null" json:"-"`
	RefreshTokenEncrypted string `gorm:"size:2000;not null" json:"-"`
	ClientSecretEncrypted string `gorm:"size:2000;not null" json:"-"`

	TokenURI string     `gorm:"size:255;not null" json:"token_uri"`
	ClientID string     `gorm:"size:255;not null" json:"client_id"`
	Scopes   string     `gorm:"size:500;not null" json:"scopes"`
	Expiry   *time.Time `json:"expiry"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
