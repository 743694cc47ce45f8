package services

import (
	"context"
	"testing"

	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/database/models"
	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/gmail"
	"gorm.io/gorm"
)

func newReplyService(db *gorm.DB, mb *fakeMailbox) *ReplyService {
	provider := &fakeMailboxProvider{mailbox: mb, sender: "support@agency.test"}
	return NewReplyService(db, NewLogService(db), provider)
}

func TestPollRepliesThreadIDMatch(t *testing.T) {
	db := newTestDB(t)
	sub := makeSubmission(t, db, &models.Submission{
		RemoteEntryID:  201,
		SubmitterEmail: "jane@example.com",
		Status:         models.SubmissionStatusWaitingCustomer,
		GmailThreadID:  strptr("t-1"),
	})

	mb := newFakeMailbox()
	mb.unread = []string{"m-1"}
	mb.messages["m-1"] = &gmail.Message{
		ID:        "m-1",
		ThreadID:  "t-1",
		Subject:   "Re: Broken checkout Ticket: #" + itoa(sub.ID),
		From:      "Jane Doe <jane@example.com>",
		MessageID: "<reply-1@example.com>",
		Body:      "Thanks!\nOn Mon, Jan 1 at 9:00 AM Support wrote:\n> please restart",
	}

	result, err := newReplyService(db, mb).PollReplies(context.Background())
	if err != nil {
		t.Fatalf("PollReplies() error = %v", err)
	}
	if result.Matched != 1 || result.Fetched != 1 {
		t.Errorf("result = %+v, want 1 fetched and matched", result)
	}

	var row models.EmailThread
	if err := db.Where("gmail_message_id = ?", "m-1").First(&row).Error; err != nil {
		t.Fatalf("Failed to load inbound row: %v", err)
	}
	if row.Direction != models.DirectionInbound || row.SubmissionID != sub.ID {
		t.Errorf("row = %+v, want inbound row on the submission", row)
	}
	if row.Body != "Thanks!" {
		t.Errorf("Body = %q, quoted history must be stripped", row.Body)
	}
	if row.FromEmail != "jane@example.com" {
		t.Errorf("FromEmail = %q, want the bare address", row.FromEmail)
	}

	if err := db.First(sub, sub.ID).Error; err != nil {
		t.Fatalf("Failed to reload submission: %v", err)
	}
	if sub.Status != models.SubmissionStatusInProgress {
		t.Errorf("Status = %q, want in_progress after a customer reply", sub.Status)
	}
	if !mb.read["m-1"] {
		t.Error("matched message should be marked read")
	}
}

func TestPollRepliesTicketNumberFallback(t *testing.T) {
	db := newTestDB(t)
	// Thread id not yet known, e.g. the reply raced the outbound send
	sub := makeSubmission(t, db, &models.Submission{
		RemoteEntryID:  202,
		SubmitterEmail: "jane@example.com",
	})

	mb := newFakeMailbox()
	mb.unread = []string{"m-2"}
	mb.messages["m-2"] = &gmail.Message{
		ID:        "m-2",
		ThreadID:  "t-2",
		Subject:   "Re: Your inquiry Ticket: #" + itoa(sub.ID),
		From:      "jane@example.com",
		MessageID: "<reply-2@example.com>",
		Body:      "Any update?",
	}

	result, err := newReplyService(db, mb).PollReplies(context.Background())
	if err != nil {
		t.Fatalf("PollReplies() error = %v", err)
	}
	if result.Matched != 1 {
		t.Fatalf("result = %+v, want a subject match", result)
	}

	if err := db.First(sub, sub.ID).Error; err != nil {
		t.Fatalf("Failed to reload submission: %v", err)
	}
	if sub.GmailThreadID == nil || *sub.GmailThreadID != "t-2" {
		t.Errorf("GmailThreadID = %v, the inbound match should claim the thread", sub.GmailThreadID)
	}
}

func TestPollRepliesOwnEcho(t *testing.T) {
	db := newTestDB(t)
	mb := newFakeMailbox()
	mb.unread = []string{"m-3"}
	mb.messages["m-3"] = &gmail.Message{
		ID:       "m-3",
		ThreadID: "t-3",
		Subject:  "Re: Something Ticket: #42",
		From:     "Support <support@agency.test>",
		Body:     "our own sent copy",
	}

	result, err := newReplyService(db, mb).PollReplies(context.Background())
	if err != nil {
		t.Fatalf("PollReplies() error = %v", err)
	}
	if result.OwnEchoes != 1 || result.Matched != 0 {
		t.Errorf("result = %+v, want the echo counted and nothing matched", result)
	}
	if !mb.read["m-3"] {
		t.Error("own echoes should be marked read so they stop reappearing")
	}

	var count int64
	db.Model(&models.EmailThread{}).Count(&count)
	if count != 0 {
		t.Errorf("row count = %d, echoes must not create rows", count)
	}
}

func TestPollRepliesDeduplicates(t *testing.T) {
	db := newTestDB(t)
	sub := makeSubmission(t, db, &models.Submission{
		RemoteEntryID: 203,
		GmailThreadID: strptr("t-4"),
	})
	received := models.EmailStatusReceived
	if err := db.Create(&models.EmailThread{
		SubmissionID:   sub.ID,
		Direction:      models.DirectionInbound,
		MessageID:      "<seen@example.com>",
		Status:         &received,
		GmailMessageID: strptr("m-4"),
	}).Error; err != nil {
		t.Fatalf("Failed to seed processed row: %v", err)
	}

	mb := newFakeMailbox()
	mb.unread = []string{"m-4"}
	mb.messages["m-4"] = &gmail.Message{ID: "m-4", ThreadID: "t-4", From: "jane@example.com"}

	result, err := newReplyService(db, mb).PollReplies(context.Background())
	if err != nil {
		t.Fatalf("PollReplies() error = %v", err)
	}
	if result.Skipped != 1 || result.Matched != 0 {
		t.Errorf("result = %+v, want the seen message skipped", result)
	}
	if !mb.read["m-4"] {
		t.Error("already processed mail should be re-marked read")
	}

	var count int64
	db.Model(&models.EmailThread{}).Count(&count)
	if count != 1 {
		t.Errorf("row count = %d, want no duplicate rows", count)
	}
}

func TestPollRepliesUnmatchedStaysUnread(t *testing.T) {
	db := newTestDB(t)
	mb := newFakeMailbox()
	mb.unread = []string{"m-5"}
	mb.messages["m-5"] = &gmail.Message{
		ID:       "m-5",
		ThreadID: "t-unknown",
		Subject:  "Unrelated newsletter",
		From:     "news@example.org",
		Body:     "hello",
	}

	result, err := newReplyService(db, mb).PollReplies(context.Background())
	if err != nil {
		t.Fatalf("PollReplies() error = %v", err)
	}
	if result.Skipped != 1 || result.Matched != 0 {
		t.Errorf("result = %+v, want the message skipped", result)
	}
	if mb.read["m-5"] {
		t.Error("unmatched mail must stay unread for a later run")
	}
}

func TestPollRepliesNotConnected(t *testing.T) {
	db := newTestDB(t)
	svc := NewReplyService(db, NewLogService(db), &fakeMailboxProvider{err: ErrGmailNotConnected})

	result, err := svc.PollReplies(context.Background())
	if err != nil {
		t.Fatalf("PollReplies() error = %v, a missing mailbox is not an error", err)
	}
	if result.Status != "skipped" {
		t.Errorf("Status = %q, want skipped", result.Status)
	}
}

func TestParseAddress(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Jane Doe <jane@example.com>", "jane@example.com"},
		{"jane@example.com", "jane@example.com"},
		{" <jane@example.com> ", "jane@example.com"},
	}
	for _, tc := range cases {
		if got := parseAddress(tc.in); got != tc.want {
			t.Errorf("parseAddress(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
