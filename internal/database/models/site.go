package models

import (
	"time"
)

// Site represents a remote WordPress site whose contact form feeds tickets
type Site struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Name     string `gorm:"size:255;uniqueIndex;not null" json:"name"`
	URL      string `gorm:"size:255;not null" json:"url"`
	Username string `gorm:"size:255;not null" json:"username"`
	// Application password, AES-256-GCM encrypted at rest
	AppPasswordEncrypted string `gorm:"size:500;not null" json:"-"`

	Active bool `gorm:"default:true;not null" json:"active"`

	// ContactFormID caches the resolved Fluent Forms contact form.
	// Written only by the sync engine.
	ContactFormID *int64     `json:"contact_form_id"`
	LastSyncedAt  *time.Time `json:"last_synced_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Submissions []Submission `gorm:"foreignKey:SiteID" json:"submissions,omitempty"`
}
