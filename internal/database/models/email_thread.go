package models

import (
	"time"
)

// Email directions
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Email statuses
const (
	EmailStatusSent     = "sent"
	EmailStatusFailed   = "failed"
	EmailStatusReceived = "received"
)

// EmailThread represents one email message of a ticket conversation,
// either direction. Ordered by CreatedAt the rows form the causal history
// of the conversation; the earliest row with a Gmail thread id carries the
// canonical thread subject.
type EmailThread struct {
	ID           uint  `gorm:"primaryKey" json:"id"`
	SubmissionID uint  `gorm:"not null;index" json:"submission_id"`
	UserID       *uint `json:"user_id"` // nil for inbound messages

	Direction string `gorm:"size:10;not null;index" json:"direction"`
	Subject   string `gorm:"size:255" json:"subject"`
	// Body stores the original plain text the admin typed (or the stripped
	// inbound reply), never the rendered HTML that was transmitted.
	Body string `gorm:"type:text" json:"body"`

	// MessageID is the RFC 2822 Message-ID. For sent mail Gmail rewrites the
	// header, so the provider-assigned value supersedes any local placeholder.
	MessageID string `gorm:"size:255;uniqueIndex" json:"message_id"`

	ToEmail   string  `gorm:"size:255" json:"to_email"`
	FromEmail string  `gorm:"size:255" json:"from_email"`
	Status    *string `gorm:"size:20" json:"status"`

	GmailMessageID *string `gorm:"size:255;uniqueIndex" json:"gmail_message_id"`
	GmailThreadID  *string `gorm:"size:255;index" json:"gmail_thread_id"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
}
