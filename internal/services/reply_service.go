package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strconv"
	"strings"

	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/database/models"
	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/gmail"
	"gorm.io/gorm"
)

const maxInboxBatch = 50

// PollResult summarizes one inbox polling run
type PollResult struct {
	Fetched   int    `json:"fetched"`
	Matched   int    `json:"matched"`
	OwnEchoes int    `json:"own_echoes"`
	Skipped   int    `json:"skipped"`
	Errors    int    `json:"errors"`
	Status    string `json:"status"` // success, skipped or error
	Message   string `json:"message,omitempty"`
}

// ReplyService matches unread inbox mail back to the tickets that
// triggered it
type ReplyService struct {
	db         *gorm.DB
	logService *LogService
	mailboxes  MailboxProvider
}

// NewReplyService creates a new reply service
func NewReplyService(db *gorm.DB, logService *LogService, mailboxes MailboxProvider) *ReplyService {
	return &ReplyService{db: db, logService: logService, mailboxes: mailboxes}
}

// matchedReply is one inbound message staged for the batch commit
type matchedReply struct {
	row          *models.EmailThread
	submissionID uint
	threadID     string
	gmailID      string
}

// PollReplies fetches unread inbox mail, matches each message to a
// submission and records matched replies in a single transaction.
// Unmatched messages stay unread so a later run can pick them up once
// the thread id is known.
func (s *ReplyService) PollReplies(ctx context.Context) (*PollResult, error) {
	result := &PollResult{Status: "success"}

	mailbox, sender, err := s.mailboxes.Mailbox(ctx)
	if err != nil {
		if errors.Is(err, ErrGmailNotConnected) {
			result.Status = "skipped"
			result.Message = "gmail mailbox not connected"
			return result, nil
		}
		return nil, err
	}

	ids, err := mailbox.ListUnread(ctx, maxInboxBatch)
	if err != nil {
		result.Status = "error"
		result.Message = err.Error()
		s.logService.Error(0, models.LogModuleMail, "poll_inbox",
			"Failed to list unread mail", map[string]interface{}{"error": err.Error()})
		return result, nil
	}
	result.Fetched = len(ids)

	var matched []matchedReply
	var echoes []string

	for _, id := range ids {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		seen, err := s.alreadyProcessed(id)
		if err != nil {
			return nil, err
		}
		if seen {
			result.Skipped++
			echoes = append(echoes, id)
			continue
		}

		msg, err := mailbox.GetMessage(ctx, id)
		if err != nil {
			result.Errors++
			continue
		}

		addr := parseAddress(msg.From)
		if strings.EqualFold(addr, sender) {
			result.OwnEchoes++
			echoes = append(echoes, id)
			continue
		}

		sub, err := s.matchSubmission(msg)
		if err != nil {
			return nil, err
		}
		if sub == nil {
			result.Skipped++
			continue
		}

		status := models.EmailStatusReceived
		gmailID := msg.ID
		threadID := msg.ThreadID
		row := &models.EmailThread{
			SubmissionID:   sub.ID,
			Direction:      models.DirectionInbound,
			Subject:        msg.Subject,
			Body:           ExtractReplyText(msg.Body),
			MessageID:      inboundMessageID(msg),
			ToEmail:        sender,
			FromEmail:      addr,
			Status:         &status,
			GmailMessageID: &gmailID,
		}
		if threadID != "" {
			row.GmailThreadID = &threadID
		}

		matched = append(matched, matchedReply{
			row:          row,
			submissionID: sub.ID,
			threadID:     threadID,
			gmailID:      id,
		})
	}

	if len(matched) > 0 {
		err = s.db.Transaction(func(tx *gorm.DB) error {
			for _, m := range matched {
				if err := tx.Create(m.row).Error; err != nil {
					return err
				}
				if m.threadID != "" {
					// A ticket-number match may predate any outbound mail,
					// so the inbound message can claim the thread
					if err := tx.Model(&models.Submission{}).
						Where("id = ? AND gmail_thread_id IS NULL", m.submissionID).
						Update("gmail_thread_id", m.threadID).Error; err != nil {
						return err
					}
				}
				if err := tx.Model(&models.Submission{}).Where("id = ?", m.submissionID).
					Update("status", models.SubmissionStatusInProgress).Error; err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("persist inbound replies: %w", err)
		}
	}

	// Mark mail read only after the batch is safely committed
	for _, m := range matched {
		if err := mailbox.MarkRead(ctx, m.gmailID); err != nil {
			result.Errors++
		}
	}
	for _, id := range echoes {
		if err := mailbox.MarkRead(ctx, id); err != nil {
			result.Errors++
		}
	}

	result.Matched = len(matched)
	s.logService.Info(0, models.LogModuleMail, "poll_inbox",
		fmt.Sprintf("Inbox poll: %d fetched, %d matched, %d own, %d skipped", result.Fetched, result.Matched, result.OwnEchoes, result.Skipped),
		nil)
	return result, nil
}

func (s *ReplyService) alreadyProcessed(gmailMessageID string) (bool, error) {
	var count int64
	err := s.db.Model(&models.EmailThread{}).
		Where("gmail_message_id = ?", gmailMessageID).Count(&count).Error
	return count > 0, err
}

// matchSubmission resolves a message to its ticket, by thread id first
// and by the subject's ticket tag as fallback
func (s *ReplyService) matchSubmission(msg *gmail.Message) (*models.Submission, error) {
	if msg.ThreadID != "" {
		var sub models.Submission
		err := s.db.Where("gmail_thread_id = ?", msg.ThreadID).First(&sub).Error
		if err == nil {
			return &sub, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	m := ticketNumberRe.FindStringSubmatch(msg.Subject)
	if m == nil {
		return nil, nil
	}
	id, err := strconv.ParseUint(m[1], 10, 32)
	if err != nil {
		return nil, nil
	}

	var sub models.Submission
	if err := s.db.First(&sub, uint(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

// parseAddress extracts the bare address from a From header, which may
// be either "Name <addr>" or a bare address
func parseAddress(from string) string {
	if a, err := mail.ParseAddress(from); err == nil {
		return a.Address
	}
	from = strings.TrimSpace(from)
	if i := strings.LastIndex(from, "<"); i >= 0 {
		if j := strings.Index(from[i:], ">"); j > 0 {
			return strings.TrimSpace(from[i+1 : i+j])
		}
	}
	return from
}

// inboundMessageID falls back to a synthetic id when the header is
// missing, keeping the uniqueness constraint satisfiable
func inboundMessageID(msg *gmail.Message) string {
	if msg.MessageID != "" {
		return msg.MessageID
	}
	return fmt.Sprintf("<%s@mail.gmail.com>", msg.ID)
}
