package services

import (
	"context"

	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/gmail"
	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/wordpress"
)

// FormGateway is the remote form surface the sync engine depends on.
// Production code uses the WordPress REST client; tests substitute fakes.
type FormGateway interface {
	ValidateCredentials(ctx context.Context) error
	ListForms(ctx context.Context) ([]wordpress.Form, error)
	ListEntries(ctx context.Context, formID int64, page, perPage int) ([]wordpress.Entry, int64, error)
	Diagnose(ctx context.Context) *wordpress.Diagnostics
}

// FormGatewayFactory builds a gateway from a site's decrypted credentials
type FormGatewayFactory func(baseURL, username, appPassword string) FormGateway

// DefaultFormGatewayFactory returns the real WordPress client
func DefaultFormGatewayFactory(baseURL, username, appPassword string) FormGateway {
	return wordpress.NewClient(baseURL, username, appPassword)
}

// MailboxGateway is the mailbox surface the threading and reply engines
// depend on
type MailboxGateway interface {
	ListUnread(ctx context.Context, max int) ([]string, error)
	GetMessage(ctx context.Context, id string) (*gmail.Message, error)
	Send(ctx context.Context, req gmail.SendRequest) (*gmail.SendResult, error)
	MarkRead(ctx context.Context, id string) error
}

// MailboxProvider yields the connected mailbox gateway and its sender
// address. GmailService is the production implementation.
type MailboxProvider interface {
	Mailbox(ctx context.Context) (MailboxGateway, string, error)
}
