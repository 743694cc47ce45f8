package services

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/config"
	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/database"
	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/database/models"
	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/gmail"
	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/wordpress"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Initialize(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to initialize test database: %v", err)
	}
	return db
}

func newTestConfig() *config.Config {
	return &config.Config{
		JWTSecret:     "test-secret",
		EncryptionKey: "test-encryption-key",
		SyncBatchSize: config.DefaultSyncBatchSize,
		SyncPageSize:  config.DefaultSyncPageSize,
	}
}

// fakeFormGateway is an in-memory FormGateway for sync tests
type fakeFormGateway struct {
	forms          []wordpress.Form
	entries        []wordpress.Entry
	validateErr    error
	listFormsErr   error
	listEntriesErr error
	listFormsCalls int
}

func (f *fakeFormGateway) ValidateCredentials(ctx context.Context) error {
	return f.validateErr
}

func (f *fakeFormGateway) ListForms(ctx context.Context) ([]wordpress.Form, error) {
	f.listFormsCalls++
	return f.forms, f.listFormsErr
}

func (f *fakeFormGateway) ListEntries(ctx context.Context, formID int64, page, perPage int) ([]wordpress.Entry, int64, error) {
	if f.listEntriesErr != nil {
		return nil, 0, f.listEntriesErr
	}
	start := (page - 1) * perPage
	if start >= len(f.entries) {
		return nil, int64(len(f.entries)), nil
	}
	end := start + perPage
	if end > len(f.entries) {
		end = len(f.entries)
	}
	return f.entries[start:end], int64(len(f.entries)), nil
}

func (f *fakeFormGateway) Diagnose(ctx context.Context) *wordpress.Diagnostics {
	return &wordpress.Diagnostics{
		SiteReachable:    true,
		RESTAPIAvailable: true,
		CredentialsValid: f.validateErr == nil,
		PluginActive:     true,
		PluginInstalled:  true,
	}
}

func makeEntry(t *testing.T, id int64, fields map[string]any) wordpress.Entry {
	t.Helper()
	raw, err := json.Marshal(fields)
	if err != nil {
		t.Fatalf("Failed to marshal entry fields: %v", err)
	}
	return wordpress.Entry{
		ID:        id,
		Status:    "unread",
		CreatedAt: "2024-06-01 10:30:00",
		Response:  raw,
	}
}

// newSiteWithGateway registers a site and wires the fake gateway behind it
func newSiteWithGateway(t *testing.T, db *gorm.DB, cfg *config.Config, gw *fakeFormGateway) (*SiteService, *models.Site) {
	t.Helper()
	logService := NewLogService(db)
	siteService := NewSiteService(db, cfg, logService, func(baseURL, username, appPassword string) FormGateway {
		return gw
	})
	site, err := siteService.CreateSite(context.Background(), 1, "Test Site", "https://example.com", "admin", "app-pass")
	if err != nil {
		t.Fatalf("Failed to create test site: %v", err)
	}
	return siteService, site
}

// fakeMailbox is an in-memory MailboxGateway
type fakeMailbox struct {
	unread     []string
	messages   map[string]*gmail.Message
	sendResult *gmail.SendResult
	sendErr    error
	sent       []gmail.SendRequest
	read       map[string]bool
}

func newFakeMailbox() *fakeMailbox {
	return &fakeMailbox{
		messages: make(map[string]*gmail.Message),
		read:     make(map[string]bool),
	}
}

func (f *fakeMailbox) ListUnread(ctx context.Context, max int) ([]string, error) {
	if len(f.unread) > max {
		return f.unread[:max], nil
	}
	return f.unread, nil
}

func (f *fakeMailbox) GetMessage(ctx context.Context, id string) (*gmail.Message, error) {
	msg, ok := f.messages[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return msg, nil
}

func (f *fakeMailbox) Send(ctx context.Context, req gmail.SendRequest) (*gmail.SendResult, error) {
	f.sent = append(f.sent, req)
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return f.sendResult, nil
}

func (f *fakeMailbox) MarkRead(ctx context.Context, id string) error {
	f.read[id] = true
	return nil
}

// fakeMailboxProvider hands out a fixed mailbox
type fakeMailboxProvider struct {
	mailbox MailboxGateway
	sender  string
	err     error
}

func (p *fakeMailboxProvider) Mailbox(ctx context.Context) (MailboxGateway, string, error) {
	if p.err != nil {
		return nil, "", p.err
	}
	return p.mailbox, p.sender, nil
}

func strptr(s string) *string { return &s }
