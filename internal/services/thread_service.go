package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/config"
	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/database/models"
	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/gmail"
	"gorm.io/gorm"
)

var (
	ErrDeliveryFailed  = errors.New("email delivery failed")
	ErrNoRecipient     = errors.New("submission has no email address")
	ErrNoTransport     = errors.New("no outbound mail transport available")
	ErrSubjectRequired = errors.New("subject is required for the first reply")
)

const defaultSubjectBase = "Your inquiry"

var (
	rePrefixRe     = regexp.MustCompile(`(?i)^(re:\s*)+`)
	ticketSuffixRe = regexp.MustCompile(`\s*Ticket:\s*#\d+\s*$`)
	ticketNumberRe = regexp.MustCompile(`Ticket:\s*#(\d+)`)
)

// TicketSubject builds the outbound subject carrying the ticket tag
func TicketSubject(base string, ticketID uint) string {
	base = strings.TrimSpace(base)
	if base == "" {
		base = defaultSubjectBase
	}
	return fmt.Sprintf("Re: %s Ticket: #%d", base, ticketID)
}

// CanonicalSubject strips reply prefixes and the ticket tag so a subject
// survives repeated round trips unchanged
func CanonicalSubject(subject string) string {
	subject = rePrefixRe.ReplaceAllString(strings.TrimSpace(subject), "")
	subject = ticketSuffixRe.ReplaceAllString(subject, "")
	return strings.TrimSpace(subject)
}

// ThreadService sends admin replies and keeps each ticket's conversation
// on one mail thread
type ThreadService struct {
	db         *gorm.DB
	cfg        *config.Config
	logService *LogService
	mailboxes  MailboxProvider
	smtp       *SMTPSender
}

// NewThreadService creates a new thread service
func NewThreadService(db *gorm.DB, cfg *config.Config, logService *LogService, mailboxes MailboxProvider, smtp *SMTPSender) *ThreadService {
	return &ThreadService{db: db, cfg: cfg, logService: logService, mailboxes: mailboxes, smtp: smtp}
}

// SendReply sends replyText to the submission's submitter. The first
// reply opens a new thread under the given subject, which is required
// there and ignored afterwards; later replies are threaded via the
// stored thread id and Message-ID chain under the subject that opened
// the thread. Delivery failures are recorded as a failed row and
// surface as ErrDeliveryFailed.
func (s *ThreadService) SendReply(ctx context.Context, userID, submissionID uint, subject, replyText string) (*models.EmailThread, error) {
	replyText = strings.TrimSpace(replyText)
	if replyText == "" {
		return nil, errors.New("reply text is required")
	}

	var sub models.Submission
	err := s.db.Preload("Emails", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at ASC")
	}).First(&sub, submissionID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}
	if sub.SubmitterEmail == "" {
		return nil, ErrNoRecipient
	}

	isFirst := sub.GmailThreadID == nil

	var html string
	if isFirst {
		if strings.TrimSpace(subject) == "" {
			return nil, ErrSubjectRequired
		}
		subject = TicketSubject(subject, sub.ID)
		html, err = RenderInitialReply(sub.SubmitterName, replyText, sub.Message)
	} else {
		subject = TicketSubject(threadSubjectBase(&sub), sub.ID)
		html, err = RenderFollowUp(replyText)
	}
	if err != nil {
		return nil, err
	}

	inReplyTo, references := threadHeaders(sub.Emails)

	mailbox, sender, merr := s.mailboxes.Mailbox(ctx)
	if merr != nil {
		if errors.Is(merr, ErrGmailNotConnected) && s.smtp != nil && s.smtp.Configured() {
			return s.sendViaSMTP(userID, &sub, subject, html, replyText, inReplyTo, references)
		}
		if errors.Is(merr, ErrGmailNotConnected) {
			return nil, ErrNoTransport
		}
		return nil, merr
	}

	req := gmail.SendRequest{
		From:       sender,
		To:         sub.SubmitterEmail,
		Subject:    subject,
		HTMLBody:   html,
		InReplyTo:  inReplyTo,
		References: references,
	}
	if sub.GmailThreadID != nil {
		req.ThreadID = *sub.GmailThreadID
	}

	result, sendErr := mailbox.Send(ctx, req)
	if sendErr != nil {
		row := s.recordFailure(userID, &sub, sender, subject, replyText)
		s.logService.Error(userID, models.LogModuleMail, "send_reply",
			"Delivery failed for submission", map[string]interface{}{"submission_id": sub.ID, "error": sendErr.Error()})
		return row, fmt.Errorf("%w: %v", ErrDeliveryFailed, sendErr)
	}

	status := models.EmailStatusSent
	row := &models.EmailThread{
		SubmissionID:   sub.ID,
		UserID:         &userID,
		Direction:      models.DirectionOutbound,
		Subject:        subject,
		Body:           replyText,
		MessageID:      result.MessageID,
		ToEmail:        sub.SubmitterEmail,
		FromEmail:      sender,
		Status:         &status,
		GmailMessageID: &result.GmailMessageID,
		GmailThreadID:  &result.ThreadID,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(row).Error; err != nil {
			return err
		}
		// First writer wins; a concurrent inbound match may already have
		// claimed the thread id
		if err := tx.Model(&models.Submission{}).
			Where("id = ? AND gmail_thread_id IS NULL", sub.ID).
			Update("gmail_thread_id", result.ThreadID).Error; err != nil {
			return err
		}
		return tx.Model(&models.Submission{}).Where("id = ?", sub.ID).
			Update("status", models.SubmissionStatusWaitingCustomer).Error
	})
	if err != nil {
		return nil, err
	}

	s.logService.Info(userID, models.LogModuleMail, "send_reply",
		"Reply sent for submission", map[string]interface{}{"submission_id": sub.ID, "thread_id": result.ThreadID, "first": isFirst})
	return row, nil
}

// sendViaSMTP delivers through the fallback transport. Gmail thread ids
// are unavailable here, so only the Message-ID chain links the mails.
func (s *ThreadService) sendViaSMTP(userID uint, sub *models.Submission, subject, html, replyText, inReplyTo, references string) (*models.EmailThread, error) {
	messageID, err := s.smtp.Send(sub.SubmitterEmail, subject, html, inReplyTo, references)
	if err != nil {
		row := s.recordFailure(userID, sub, s.cfg.SMTPUser, subject, replyText)
		s.logService.Error(userID, models.LogModuleMail, "send_reply_smtp",
			"SMTP delivery failed for submission", map[string]interface{}{"submission_id": sub.ID, "error": err.Error()})
		return row, fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	status := models.EmailStatusSent
	row := &models.EmailThread{
		SubmissionID: sub.ID,
		UserID:       &userID,
		Direction:    models.DirectionOutbound,
		Subject:      subject,
		Body:         replyText,
		MessageID:    messageID,
		ToEmail:      sub.SubmitterEmail,
		FromEmail:    s.cfg.SMTPUser,
		Status:       &status,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(row).Error; err != nil {
			return err
		}
		return tx.Model(&models.Submission{}).Where("id = ?", sub.ID).
			Update("status", models.SubmissionStatusWaitingCustomer).Error
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

// recordFailure persists a failed outbound row so the attempt stays
// visible in the conversation history. The placeholder Message-ID is a
// bare uuid, not angle-bracketed, so threadHeaders never chains later
// mail onto a message that was never delivered.
func (s *ThreadService) recordFailure(userID uint, sub *models.Submission, sender, subject, replyText string) *models.EmailThread {
	status := models.EmailStatusFailed
	row := &models.EmailThread{
		SubmissionID: sub.ID,
		UserID:       &userID,
		Direction:    models.DirectionOutbound,
		Subject:      subject,
		Body:         replyText,
		MessageID:    uuid.NewString(),
		ToEmail:      sub.SubmitterEmail,
		FromEmail:    sender,
		Status:       &status,
	}
	if err := s.db.Create(row).Error; err != nil {
		s.logService.Error(userID, models.LogModuleMail, "record_failure",
			"Failed to persist failed delivery", map[string]interface{}{"submission_id": sub.ID, "error": err.Error()})
		return nil
	}
	return row
}

// threadSubjectBase recovers the canonical subject from the earliest
// mail that established the thread
func threadSubjectBase(sub *models.Submission) string {
	for _, e := range sub.Emails {
		if e.GmailThreadID != nil && *e.GmailThreadID != "" {
			if base := CanonicalSubject(e.Subject); base != "" {
				return base
			}
		}
	}
	return sub.Subject
}

// threadHeaders derives In-Reply-To and References from the stored
// conversation. Only angle-bracketed Message-IDs participate.
func threadHeaders(emails []models.EmailThread) (inReplyTo, references string) {
	var ids []string
	for _, e := range emails {
		if strings.HasPrefix(e.MessageID, "<") {
			ids = append(ids, e.MessageID)
		}
	}
	if len(ids) == 0 {
		return "", ""
	}
	return ids[len(ids)-1], strings.Join(ids, " ")
}
