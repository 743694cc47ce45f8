package models

import (
	"time"

	"gorm.io/datatypes"
)

// Submission statuses. The remote entry status (read/unread/pending) lands
// here on first sync; the lifecycle states below are set by admins and by
// the inbound reply matcher.
const (
	SubmissionStatusNew             = "new"
	SubmissionStatusWaitingInternal = "waiting_internal"
	SubmissionStatusWaitingCustomer = "waiting_customer"
	SubmissionStatusInProgress      = "in_progress"
	SubmissionStatusClosed          = "closed"
)

// Submission represents one remote form entry reconciled locally (a "ticket")
type Submission struct {
	ID            uint  `gorm:"primaryKey" json:"id"`
	SiteID        uint  `gorm:"not null;index;uniqueIndex:uq_site_form_entry" json:"site_id"`
	FormID        int64 `gorm:"uniqueIndex:uq_site_form_entry" json:"form_id"`
	RemoteEntryID int64 `gorm:"uniqueIndex:uq_site_form_entry" json:"remote_entry_id"`

	Status string `gorm:"size:255;default:'new';index" json:"status"`

	// Data holds the parsed form payload with internal (underscore-prefixed)
	// keys already stripped.
	Data datatypes.JSON `json:"data"`

	SubmitterName  string `gorm:"size:255" json:"submitter_name"`
	SubmitterEmail string `gorm:"size:255;index" json:"submitter_email"`
	Subject        string `gorm:"size:255" json:"subject"`
	Message        string `gorm:"type:text" json:"message"`

	// SubmittedAt is the remote-reported creation time; nil when the remote
	// value could not be parsed.
	SubmittedAt *time.Time `json:"submitted_at"`

	LockedBy *uint      `json:"locked_by"`
	LockedAt *time.Time `json:"locked_at"`
	Active   bool       `gorm:"default:true;not null" json:"active"`

	// GmailThreadID is assigned exactly once, by whichever of outbound send
	// or inbound match first establishes the conversation thread.
	GmailThreadID *string `gorm:"size:255;index" json:"gmail_thread_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Emails []EmailThread `gorm:"foreignKey:SubmissionID" json:"emails,omitempty"`
}
