package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/cache"
	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/config"
	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/database/models"
	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/wordpress"
	"gorm.io/gorm"
)

var ErrNoContactForm = errors.New("no contact form found on site")

const (
	formCacheTTL    = time.Hour
	maxEntriesPages = 200
)

// SyncResult summarizes one sync run for a site. SubmissionsSynced
// counts every remote entry reconciled, created or updated alike.
type SyncResult struct {
	SiteID            uint          `json:"site_id"`
	FormID            int64         `json:"form_id"`
	FormsFound        int           `json:"forms_found"`
	SubmissionsSynced int           `json:"submissions_synced"`
	Errors            int           `json:"errors,omitempty"`
	Status            string        `json:"status"` // success or error
	Message           string        `json:"message,omitempty"`
	Duration          time.Duration `json:"duration"`
}

// SyncService pulls contact form submissions from remote sites into the
// local ticket store
type SyncService struct {
	db          *gorm.DB
	cfg         *config.Config
	logService  *LogService
	siteService *SiteService
	cache       cache.Store
}

// NewSyncService creates a new sync service
func NewSyncService(db *gorm.DB, cfg *config.Config, logService *LogService, siteService *SiteService, store cache.Store) *SyncService {
	if store == nil {
		store = cache.NewMemoryStore()
	}
	return &SyncService{db: db, cfg: cfg, logService: logService, siteService: siteService, cache: store}
}

// SyncSite reconciles one site's submissions. Remote failures are
// reported in the result with status "error" and a nil Go error; a
// returned error means something unexpected (usually the database) broke
// and the run is worth retrying.
func (s *SyncService) SyncSite(ctx context.Context, siteID uint) (*SyncResult, error) {
	started := time.Now()
	result := &SyncResult{SiteID: siteID, Status: "success"}

	gateway, site, err := s.siteService.Gateway(siteID)
	if err != nil {
		if errors.Is(err, ErrSiteNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("build gateway for site %d: %w", siteID, err)
	}
	if !site.Active {
		return nil, ErrSiteInactive
	}

	formID, formsFound, err := s.resolveContactForm(ctx, gateway, site)
	result.FormsFound = formsFound
	if err != nil {
		if errors.Is(err, ErrNoContactForm) {
			// Not an error: a site without a contact form syncs nothing
			result.Message = "no contact form found to sync"
			result.Duration = time.Since(started)
			s.logService.Info(0, models.LogModuleSync, "sync_site",
				"No contact form to sync for site "+site.Name,
				map[string]interface{}{"site_id": site.ID, "forms_found": formsFound})
			return result, nil
		}
		return s.failResult(result, site, err, started), nil
	}
	result.FormID = formID

	existing, err := s.existingRows(site.ID, formID)
	if err != nil {
		return nil, err
	}

	pageSize := s.cfg.SyncPageSize
	if pageSize <= 0 {
		pageSize = config.DefaultSyncPageSize
	}

	var creates []models.Submission
	var updates []submissionUpdate
	seen := make(map[int64]bool)
	page := 1
	for {
		entries, _, err := gateway.ListEntries(ctx, formID, page, pageSize)
		if err != nil {
			return s.failResult(result, site, err, started), nil
		}
		if len(entries) == 0 {
			break
		}

		for i := range entries {
			entry := &entries[i]
			if entry.ID == 0 {
				result.Errors++
				continue
			}
			if seen[entry.ID] {
				continue
			}
			seen[entry.ID] = true

			row, ok := buildSubmission(site.ID, formID, entry)
			if !ok {
				result.Errors++
				continue
			}
			if rowID, exists := existing[entry.ID]; exists {
				updates = append(updates, submissionUpdate{id: rowID, values: mutableFields(row)})
			} else {
				creates = append(creates, *row)
			}
			result.SubmissionsSynced++
		}

		if len(entries) < pageSize || page >= maxEntriesPages {
			break
		}
		page++
	}

	batchSize := s.cfg.SyncBatchSize
	if batchSize <= 0 {
		batchSize = config.DefaultSyncBatchSize
	}

	now := time.Now()
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if len(creates) > 0 {
			if err := tx.CreateInBatches(creates, batchSize).Error; err != nil {
				return err
			}
		}
		for _, u := range updates {
			if err := tx.Model(&models.Submission{}).Where("id = ?", u.id).
				Updates(u.values).Error; err != nil {
				return err
			}
		}
		return tx.Model(&models.Site{}).Where("id = ?", site.ID).
			Update("last_synced_at", now).Error
	})
	if err != nil {
		return nil, fmt.Errorf("persist sync for site %d: %w", site.ID, err)
	}

	result.Duration = time.Since(started)

	s.logService.Info(0, models.LogModuleSync, "sync_site",
		fmt.Sprintf("Synced site %s: %d synced (%d new, %d updated), %d errors",
			site.Name, result.SubmissionsSynced, len(creates), len(updates), result.Errors),
		map[string]interface{}{"site_id": site.ID, "form_id": formID, "duration_ms": result.Duration.Milliseconds()})
	return result, nil
}

func (s *SyncService) failResult(result *SyncResult, site *models.Site, cause error, started time.Time) *SyncResult {
	result.Status = "error"
	result.Message = cause.Error()
	result.Duration = time.Since(started)
	s.logService.Error(0, models.LogModuleSync, "sync_site",
		"Sync failed for site "+site.Name, map[string]interface{}{"site_id": site.ID, "error": cause.Error()})
	return result
}

// resolveContactForm finds the site's contact form id. The persisted
// hint wins, then the TTL cache; listing remote forms is the last
// resort. Returns the number of forms seen alongside the id (1 when the
// listing was skipped).
func (s *SyncService) resolveContactForm(ctx context.Context, gateway FormGateway, site *models.Site) (int64, int, error) {
	cacheKey := fmt.Sprintf("site:%d:contact_form_id", site.ID)

	if site.ContactFormID != nil && *site.ContactFormID > 0 {
		s.cache.Set(cacheKey, strconv.FormatInt(*site.ContactFormID, 10), formCacheTTL)
		return *site.ContactFormID, 1, nil
	}

	if cached, ok := s.cache.Get(cacheKey); ok {
		if id, err := strconv.ParseInt(cached, 10, 64); err == nil && id > 0 {
			return id, 1, nil
		}
	}

	forms, err := gateway.ListForms(ctx)
	if err != nil {
		return 0, 0, err
	}

	formID := pickContactForm(forms)
	if formID == 0 {
		return 0, len(forms), ErrNoContactForm
	}

	if err := s.db.Model(&models.Site{}).Where("id = ?", site.ID).
		Update("contact_form_id", formID).Error; err != nil {
		return 0, len(forms), err
	}
	s.cache.Set(cacheKey, strconv.FormatInt(formID, 10), formCacheTTL)
	return formID, len(forms), nil
}

// pickContactForm selects the form whose title marks it as the contact
// form. Zero means no candidate.
func pickContactForm(forms []wordpress.Form) int64 {
	for _, f := range forms {
		title := strings.ToLower(strings.TrimSpace(f.Title))
		if strings.Contains(title, "contact form") || title == "contact" {
			return f.ID
		}
	}
	return 0
}

// existingRows maps remote entry ids to local row ids for the form
func (s *SyncService) existingRows(siteID uint, formID int64) (map[int64]uint, error) {
	type pair struct {
		ID            uint
		RemoteEntryID int64
	}
	var rows []pair
	err := s.db.Model(&models.Submission{}).
		Select("id", "remote_entry_id").
		Where("site_id = ? AND form_id = ?", siteID, formID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	existing := make(map[int64]uint, len(rows))
	for _, r := range rows {
		existing[r.RemoteEntryID] = r.ID
	}
	return existing, nil
}

type submissionUpdate struct {
	id     uint
	values map[string]interface{}
}

// mutableFields lists what a re-sync may overwrite on an existing row.
// Submission time and identity columns stay as first written.
func mutableFields(row *models.Submission) map[string]interface{} {
	return map[string]interface{}{
		"status":          row.Status,
		"data":            row.Data,
		"submitter_name":  row.SubmitterName,
		"submitter_email": row.SubmitterEmail,
		"subject":         row.Subject,
		"message":         row.Message,
	}
}

// buildSubmission maps one remote entry to a local row. It returns false
// only when the payload cannot be represented at all.
func buildSubmission(siteID uint, formID int64, entry *wordpress.Entry) (*models.Submission, bool) {
	fields := entry.Fields()

	// Internal plugin keys are prefixed with an underscore
	for key := range fields {
		if strings.HasPrefix(key, "_") {
			delete(fields, key)
		}
	}

	data, err := json.Marshal(fields)
	if err != nil {
		return nil, false
	}

	status := strings.TrimSpace(entry.Status)
	if status == "" {
		status = models.SubmissionStatusNew
	}

	row := &models.Submission{
		SiteID:         siteID,
		FormID:         formID,
		RemoteEntryID:  entry.ID,
		Status:         status,
		Data:           data,
		SubmitterName:  extractName(fields),
		SubmitterEmail: extractEmail(fields),
		Subject:        stringField(fields, "subject"),
		Message:        extractMessage(fields),
		SubmittedAt:    parseRemoteTime(entry.CreatedAt),
		Active:         true,
	}
	return row, true
}

// extractName handles both the nested {first_name, last_name} shape and
// a flat name field
func extractName(fields map[string]any) string {
	for _, key := range []string{"names", "name"} {
		switch v := fields[key].(type) {
		case map[string]any:
			first, _ := v["first_name"].(string)
			last, _ := v["last_name"].(string)
			full := strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
			if full != "" {
				return full
			}
		case string:
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

// extractEmail prefers the conventional field and falls back to the
// first value that looks like an address
func extractEmail(fields map[string]any) string {
	if email, ok := fields["email"].(string); ok && strings.Contains(email, "@") {
		return strings.TrimSpace(email)
	}
	for _, v := range fields {
		if s, ok := v.(string); ok && strings.Contains(s, "@") && !strings.ContainsAny(s, " \n") {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func extractMessage(fields map[string]any) string {
	for _, key := range []string{"message", "description", "your_message"} {
		if msg := stringField(fields, key); msg != "" {
			return msg
		}
	}
	return ""
}

func stringField(fields map[string]any, key string) string {
	if v, ok := fields[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// parseRemoteTime accepts the MySQL-style timestamps Fluent Forms emits
// plus RFC 3339 as a fallback
func parseRemoteTime(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}
	return nil
}
