package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/database/models"
	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/wordpress"
)

func contactForms() []wordpress.Form {
	return []wordpress.Form{
		{ID: 3, Title: "Newsletter Signup"},
		{ID: 7, Title: "Contact Form 1"},
	}
}

func TestSyncSiteCreatesAndUpdates(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	gw := &fakeFormGateway{
		forms: contactForms(),
		entries: []wordpress.Entry{
			makeEntry(t, 101, map[string]any{
				"names":   map[string]any{"first_name": "Jane", "last_name": "Doe"},
				"email":   "jane@example.com",
				"subject": "Broken checkout",
				"message": "The cart page errors out",
				"_token":  "internal",
			}),
			makeEntry(t, 102, map[string]any{"email": "bob@example.com", "message": "Hi"}),
			makeEntry(t, 103, map[string]any{"email": "eve@example.com", "message": "Hello"}),
		},
	}
	siteService, site := newSiteWithGateway(t, db, cfg, gw)
	syncService := NewSyncService(db, cfg, NewLogService(db), siteService, nil)

	result, err := syncService.SyncSite(context.Background(), site.ID)
	if err != nil {
		t.Fatalf("SyncSite() error = %v", err)
	}
	if result.Status != "success" || result.SubmissionsSynced != 3 {
		t.Errorf("first run = %+v, want 3 synced", result)
	}
	if result.FormsFound != 2 {
		t.Errorf("FormsFound = %d, want 2", result.FormsFound)
	}
	if result.FormID != 7 {
		t.Errorf("FormID = %d, want the contact form", result.FormID)
	}

	var sub models.Submission
	if err := db.Where("remote_entry_id = ?", 101).First(&sub).Error; err != nil {
		t.Fatalf("Failed to load synced submission: %v", err)
	}
	if sub.SubmitterName != "Jane Doe" {
		t.Errorf("SubmitterName = %q, want %q", sub.SubmitterName, "Jane Doe")
	}
	if sub.SubmitterEmail != "jane@example.com" {
		t.Errorf("SubmitterEmail = %q", sub.SubmitterEmail)
	}
	if sub.Subject != "Broken checkout" || sub.Message != "The cart page errors out" {
		t.Errorf("subject/message = %q / %q", sub.Subject, sub.Message)
	}
	if sub.SubmittedAt == nil {
		t.Error("SubmittedAt should be parsed from the remote timestamp")
	}
	var data map[string]any
	if err := json.Unmarshal(sub.Data, &data); err != nil {
		t.Fatalf("Failed to decode stored data: %v", err)
	}
	if _, ok := data["_token"]; ok {
		t.Error("underscore-prefixed keys must be stripped from stored data")
	}

	// The remote entry changes, the re-sync must follow it in place
	gw.entries[0] = makeEntry(t, 101, map[string]any{
		"names":   map[string]any{"first_name": "Jane", "last_name": "Doe"},
		"email":   "jane@example.com",
		"subject": "Broken checkout",
		"message": "Never mind, resolved itself",
	})
	gw.entries[0].Status = "read"

	result, err = syncService.SyncSite(context.Background(), site.ID)
	if err != nil {
		t.Fatalf("SyncSite() rerun error = %v", err)
	}
	if result.SubmissionsSynced != 3 {
		t.Errorf("rerun SubmissionsSynced = %d, want 3 (updates count too)", result.SubmissionsSynced)
	}
	if gw.listFormsCalls != 1 {
		t.Errorf("ListForms called %d times, want 1 (form id persisted)", gw.listFormsCalls)
	}

	if err := db.First(&sub, sub.ID).Error; err != nil {
		t.Fatalf("Failed to reload submission: %v", err)
	}
	if sub.Message != "Never mind, resolved itself" {
		t.Errorf("Message = %q, rerun must update changed fields in place", sub.Message)
	}
	if sub.Status != "read" {
		t.Errorf("Status = %q, rerun must follow the remote status", sub.Status)
	}

	var count int64
	db.Model(&models.Submission{}).Count(&count)
	if count != 3 {
		t.Errorf("submission count = %d, want 3 (no duplicates)", count)
	}
}

func TestSyncSiteStoresMalformedPayloads(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	gw := &fakeFormGateway{
		forms: contactForms(),
		entries: []wordpress.Entry{
			makeEntry(t, 5, map[string]any{"email": "a@example.com"}),
			{ID: 6, Status: "unread", Response: json.RawMessage(`"not an object`)},
		},
	}
	siteService, site := newSiteWithGateway(t, db, cfg, gw)
	syncService := NewSyncService(db, cfg, NewLogService(db), siteService, nil)

	result, err := syncService.SyncSite(context.Background(), site.ID)
	if err != nil {
		t.Fatalf("SyncSite() error = %v", err)
	}
	if result.SubmissionsSynced != 2 || result.Errors != 0 {
		t.Errorf("result = %+v, want both entries synced", result)
	}

	var sub models.Submission
	if err := db.Where("remote_entry_id = ?", 6).First(&sub).Error; err != nil {
		t.Fatalf("Malformed payload must still produce a row: %v", err)
	}
	if sub.SubmitterEmail != "" || sub.Message != "" {
		t.Errorf("extracted fields = %q / %q, want empty for malformed payload", sub.SubmitterEmail, sub.Message)
	}
}

func TestSyncSiteCountsEntriesWithoutID(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	gw := &fakeFormGateway{
		forms: contactForms(),
		entries: []wordpress.Entry{
			{ID: 0, Status: "unread", Response: json.RawMessage(`{}`)},
			makeEntry(t, 5, map[string]any{"email": "a@example.com"}),
		},
	}
	siteService, site := newSiteWithGateway(t, db, cfg, gw)
	syncService := NewSyncService(db, cfg, NewLogService(db), siteService, nil)

	result, err := syncService.SyncSite(context.Background(), site.ID)
	if err != nil {
		t.Fatalf("SyncSite() error = %v", err)
	}
	if result.SubmissionsSynced != 1 || result.Errors != 1 {
		t.Errorf("result = %+v, want 1 synced and 1 error", result)
	}
}

func TestSyncSiteNoContactForm(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	gw := &fakeFormGateway{forms: []wordpress.Form{{ID: 1, Title: "Survey"}}}
	siteService, site := newSiteWithGateway(t, db, cfg, gw)
	syncService := NewSyncService(db, cfg, NewLogService(db), siteService, nil)

	result, err := syncService.SyncSite(context.Background(), site.ID)
	if err != nil {
		t.Fatalf("SyncSite() error = %v, missing contact form is not an error", err)
	}
	if result.Status != "success" {
		t.Errorf("Status = %q, want success with nothing to sync", result.Status)
	}
	if result.SubmissionsSynced != 0 || result.FormsFound != 1 {
		t.Errorf("result = %+v, want 0 synced and 1 form found", result)
	}
	if result.Message == "" {
		t.Error("Message should explain that no contact form was found")
	}
}

func TestSyncSiteRemoteFailure(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	gw := &fakeFormGateway{
		forms:          contactForms(),
		listEntriesErr: wordpress.ErrUnreachable,
	}
	siteService, site := newSiteWithGateway(t, db, cfg, gw)
	syncService := NewSyncService(db, cfg, NewLogService(db), siteService, nil)

	result, err := syncService.SyncSite(context.Background(), site.ID)
	if err != nil {
		t.Fatalf("SyncSite() error = %v, remote failures belong in the result", err)
	}
	if result.Status != "error" || result.SubmissionsSynced != 0 {
		t.Errorf("result = %+v, want error status with nothing synced", result)
	}
}

func TestSyncSiteInactive(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	gw := &fakeFormGateway{forms: contactForms()}
	siteService, site := newSiteWithGateway(t, db, cfg, gw)
	syncService := NewSyncService(db, cfg, NewLogService(db), siteService, nil)

	if err := siteService.DeactivateSite(1, site.ID); err != nil {
		t.Fatalf("Failed to deactivate site: %v", err)
	}
	if _, err := syncService.SyncSite(context.Background(), site.ID); err != ErrSiteInactive {
		t.Errorf("SyncSite() error = %v, want ErrSiteInactive", err)
	}
}
