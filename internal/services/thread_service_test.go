package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/database/models"
	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/gmail"
	"gorm.io/gorm"
)

func makeSubmission(t *testing.T, db *gorm.DB, sub *models.Submission) *models.Submission {
	t.Helper()
	if sub.SiteID == 0 {
		sub.SiteID = 1
	}
	if sub.FormID == 0 {
		sub.FormID = 7
	}
	if sub.Status == "" {
		sub.Status = models.SubmissionStatusNew
	}
	sub.Active = true
	if err := db.Create(sub).Error; err != nil {
		t.Fatalf("Failed to create submission: %v", err)
	}
	return sub
}

func newThreadService(t *testing.T, db *gorm.DB, mb *fakeMailbox) *ThreadService {
	t.Helper()
	provider := &fakeMailboxProvider{mailbox: mb, sender: "support@agency.test"}
	return NewThreadService(db, newTestConfig(), NewLogService(db), provider, nil)
}

func TestSendReplyOpensThread(t *testing.T) {
	db := newTestDB(t)
	mb := newFakeMailbox()
	mb.sendResult = &gmail.SendResult{
		GmailMessageID: "g-1",
		ThreadID:       "t-1",
		MessageID:      "<first@mail.gmail.com>",
	}
	svc := newThreadService(t, db, mb)

	sub := makeSubmission(t, db, &models.Submission{
		RemoteEntryID:  101,
		SubmitterName:  "Jane Doe",
		SubmitterEmail: "jane@example.com",
		Subject:        "Broken checkout",
		Message:        "The cart page errors out",
	})

	row, err := svc.SendReply(context.Background(), 1, sub.ID, "Broken checkout", "We are on it.")
	if err != nil {
		t.Fatalf("SendReply() error = %v", err)
	}

	if len(mb.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(mb.sent))
	}
	req := mb.sent[0]
	if req.ThreadID != "" {
		t.Errorf("first reply must open a new thread, got ThreadID %q", req.ThreadID)
	}
	want := "Re: Broken checkout Ticket: #" + itoa(sub.ID)
	if req.Subject != want {
		t.Errorf("Subject = %q, want %q", req.Subject, want)
	}
	if !strings.Contains(req.HTMLBody, "Hi Jane Doe") {
		t.Errorf("initial reply should greet the submitter, got %q", req.HTMLBody)
	}
	if !strings.Contains(req.HTMLBody, "The cart page errors out") {
		t.Error("initial reply should quote the original message")
	}

	if row.MessageID != "<first@mail.gmail.com>" {
		t.Errorf("MessageID = %q, want the provider-assigned header", row.MessageID)
	}

	if err := db.First(sub, sub.ID).Error; err != nil {
		t.Fatalf("Failed to reload submission: %v", err)
	}
	if sub.GmailThreadID == nil || *sub.GmailThreadID != "t-1" {
		t.Errorf("GmailThreadID = %v, want t-1", sub.GmailThreadID)
	}
	if sub.Status != models.SubmissionStatusWaitingCustomer {
		t.Errorf("Status = %q, want waiting_customer", sub.Status)
	}
}

func TestSendReplyFollowUpThreadsHeaders(t *testing.T) {
	db := newTestDB(t)
	mb := newFakeMailbox()
	mb.sendResult = &gmail.SendResult{
		GmailMessageID: "g-2",
		ThreadID:       "t-1",
		MessageID:      "<second@mail.gmail.com>",
	}
	svc := newThreadService(t, db, mb)

	sub := makeSubmission(t, db, &models.Submission{
		RemoteEntryID:  102,
		SubmitterEmail: "jane@example.com",
		Subject:        "Broken checkout",
		GmailThreadID:  strptr("t-1"),
	})
	sent := models.EmailStatusSent
	received := models.EmailStatusReceived
	firstSubject := "Re: Broken checkout Ticket: #" + itoa(sub.ID)
	if err := db.Create(&models.EmailThread{
		SubmissionID:  sub.ID,
		Direction:     models.DirectionOutbound,
		Subject:       firstSubject,
		MessageID:     "<first@mail.gmail.com>",
		Status:        &sent,
		GmailThreadID: strptr("t-1"),
	}).Error; err != nil {
		t.Fatalf("Failed to seed outbound row: %v", err)
	}
	if err := db.Create(&models.EmailThread{
		SubmissionID:  sub.ID,
		Direction:     models.DirectionInbound,
		Subject:       firstSubject,
		MessageID:     "<customer@example.com>",
		Status:        &received,
		GmailThreadID: strptr("t-1"),
	}).Error; err != nil {
		t.Fatalf("Failed to seed inbound row: %v", err)
	}

	// Subject is only consulted on the first reply, empty is fine here
	if _, err := svc.SendReply(context.Background(), 1, sub.ID, "", "Following up."); err != nil {
		t.Fatalf("SendReply() error = %v", err)
	}

	req := mb.sent[0]
	if req.ThreadID != "t-1" {
		t.Errorf("ThreadID = %q, want t-1", req.ThreadID)
	}
	if req.Subject != firstSubject {
		t.Errorf("Subject = %q, must stay stable across the thread", req.Subject)
	}
	if req.InReplyTo != "<customer@example.com>" {
		t.Errorf("InReplyTo = %q, want the newest Message-ID", req.InReplyTo)
	}
	wantRefs := "<first@mail.gmail.com> <customer@example.com>"
	if req.References != wantRefs {
		t.Errorf("References = %q, want %q", req.References, wantRefs)
	}
	if strings.Contains(req.HTMLBody, "Hi ") {
		t.Error("follow-ups should not repeat the greeting template")
	}
}

func TestSendReplyThreadIDClaimedOnce(t *testing.T) {
	db := newTestDB(t)
	mb := newFakeMailbox()
	mb.sendResult = &gmail.SendResult{GmailMessageID: "g-9", ThreadID: "t-9", MessageID: "<x@mail.gmail.com>"}
	svc := newThreadService(t, db, mb)

	sub := makeSubmission(t, db, &models.Submission{
		RemoteEntryID:  103,
		SubmitterEmail: "jane@example.com",
		GmailThreadID:  strptr("t-0"),
	})

	if _, err := svc.SendReply(context.Background(), 1, sub.ID, "", "Hello again"); err != nil {
		t.Fatalf("SendReply() error = %v", err)
	}

	if err := db.First(sub, sub.ID).Error; err != nil {
		t.Fatalf("Failed to reload submission: %v", err)
	}
	if *sub.GmailThreadID != "t-0" {
		t.Errorf("GmailThreadID = %q, the established thread must not be replaced", *sub.GmailThreadID)
	}
}

func TestSendReplyDeliveryFailure(t *testing.T) {
	db := newTestDB(t)
	mb := newFakeMailbox()
	mb.sendErr = errors.New("quota exceeded")
	svc := newThreadService(t, db, mb)

	sub := makeSubmission(t, db, &models.Submission{
		RemoteEntryID:  104,
		SubmitterEmail: "jane@example.com",
	})

	row, err := svc.SendReply(context.Background(), 1, sub.ID, "Order issue", "Will this arrive?")
	if !errors.Is(err, ErrDeliveryFailed) {
		t.Fatalf("SendReply() error = %v, want ErrDeliveryFailed", err)
	}
	if row == nil || row.Status == nil || *row.Status != models.EmailStatusFailed {
		t.Fatalf("failed attempt must be recorded, got %+v", row)
	}
	if row.MessageID == "" || strings.HasPrefix(row.MessageID, "<") {
		t.Errorf("MessageID = %q, want a bare placeholder that cannot be mistaken for a real header", row.MessageID)
	}

	if err := db.First(sub, sub.ID).Error; err != nil {
		t.Fatalf("Failed to reload submission: %v", err)
	}
	if sub.GmailThreadID != nil {
		t.Error("failed delivery must not establish a thread")
	}
	if sub.Status != models.SubmissionStatusNew {
		t.Errorf("Status = %q, failed delivery must not advance the lifecycle", sub.Status)
	}
}

func TestSendReplyNoRecipient(t *testing.T) {
	db := newTestDB(t)
	svc := newThreadService(t, db, newFakeMailbox())

	sub := makeSubmission(t, db, &models.Submission{RemoteEntryID: 105})

	if _, err := svc.SendReply(context.Background(), 1, sub.ID, "Subject", "text"); !errors.Is(err, ErrNoRecipient) {
		t.Errorf("SendReply() error = %v, want ErrNoRecipient", err)
	}
}

func TestSendReplySubjectRequired(t *testing.T) {
	db := newTestDB(t)
	mb := newFakeMailbox()
	mb.sendResult = &gmail.SendResult{GmailMessageID: "g-1", ThreadID: "t-1", MessageID: "<a@mail.gmail.com>"}
	svc := newThreadService(t, db, mb)

	sub := makeSubmission(t, db, &models.Submission{
		RemoteEntryID:  106,
		SubmitterEmail: "jane@example.com",
		Subject:        "Broken checkout",
	})

	if _, err := svc.SendReply(context.Background(), 1, sub.ID, "  ", "Hello"); !errors.Is(err, ErrSubjectRequired) {
		t.Fatalf("SendReply() error = %v, want ErrSubjectRequired", err)
	}
	if len(mb.sent) != 0 {
		t.Error("nothing must be sent without a subject for the first reply")
	}
}

func TestSendReplyFailedAttemptExcludedFromHeaders(t *testing.T) {
	db := newTestDB(t)
	mb := newFakeMailbox()
	mb.sendErr = errors.New("quota exceeded")
	svc := newThreadService(t, db, mb)

	sub := makeSubmission(t, db, &models.Submission{
		RemoteEntryID:  107,
		SubmitterEmail: "jane@example.com",
	})

	if _, err := svc.SendReply(context.Background(), 1, sub.ID, "Order issue", "First try"); !errors.Is(err, ErrDeliveryFailed) {
		t.Fatalf("SendReply() error = %v, want ErrDeliveryFailed", err)
	}

	mb.sendErr = nil
	mb.sendResult = &gmail.SendResult{GmailMessageID: "g-3", ThreadID: "t-3", MessageID: "<b@mail.gmail.com>"}

	if _, err := svc.SendReply(context.Background(), 1, sub.ID, "Order issue", "Second try"); err != nil {
		t.Fatalf("SendReply() retry error = %v", err)
	}

	req := mb.sent[len(mb.sent)-1]
	if req.InReplyTo != "" || req.References != "" {
		t.Errorf("headers = %q / %q, the failed attempt must not enter the chain", req.InReplyTo, req.References)
	}
}

func TestRenderInitialReply(t *testing.T) {
	html, err := RenderInitialReply("", "line one\nline two", "original <b>message</b>")
	if err != nil {
		t.Fatalf("RenderInitialReply() error = %v", err)
	}
	if !strings.Contains(html, "Hi there") {
		t.Error("missing name should fall back to the generic greeting")
	}
	if !strings.Contains(html, "line one<br>line two") {
		t.Error("newlines in the reply should become <br>")
	}
	if strings.Contains(html, "<b>message</b>") {
		t.Error("quoted original must be HTML-escaped")
	}
}

func TestProperty_TicketSubjectStable(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("subject_survives_round_trips", prop.ForAll(
		func(base string, id uint32) bool {
			subject := TicketSubject(CanonicalSubject(base), uint(id))
			again := TicketSubject(CanonicalSubject(subject), uint(id))
			return subject == again
		},
		gen.AlphaString(),
		gen.UInt32(),
	))

	properties.Property("canonical_strips_ticket_tag", prop.ForAll(
		func(base string, id uint32) bool {
			subject := TicketSubject(base, uint(id))
			return !ticketNumberRe.MatchString(CanonicalSubject(subject))
		},
		gen.AlphaString(),
		gen.UInt32(),
	))

	properties.TestingRun(t)
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
