package services

import (
	"errors"
	"time"

	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/database/models"
	"gorm.io/gorm"
)

var (
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrSubmissionLocked   = errors.New("submission is locked by another user")
	ErrInvalidStatus      = errors.New("invalid submission status")
)

var validStatuses = map[string]bool{
	models.SubmissionStatusNew:             true,
	models.SubmissionStatusWaitingInternal: true,
	models.SubmissionStatusWaitingCustomer: true,
	models.SubmissionStatusInProgress:      true,
	models.SubmissionStatusClosed:          true,
}

// SubmissionService handles the local ticket store
type SubmissionService struct {
	db         *gorm.DB
	logService *LogService
}

// NewSubmissionService creates a new submission service
func NewSubmissionService(db *gorm.DB, logService *LogService) *SubmissionService {
	return &SubmissionService{db: db, logService: logService}
}

// SubmissionFilter holds the query filters for listing submissions
type SubmissionFilter struct {
	SiteID          uint
	Status          string
	Search          string // matches submitter name, email or subject
	IncludeInactive bool
	Limit           int
	Offset          int
}

// ListSubmissions returns submissions matching the filter, newest first
func (s *SubmissionService) ListSubmissions(filter SubmissionFilter) ([]models.Submission, int64, error) {
	query := s.db.Model(&models.Submission{})

	if !filter.IncludeInactive {
		query = query.Where("active = ?", true)
	}
	if filter.SiteID != 0 {
		query = query.Where("site_id = ?", filter.SiteID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("submitter_name LIKE ? OR submitter_email LIKE ? OR subject LIKE ?", like, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var subs []models.Submission
	err := query.Order("created_at DESC").Limit(limit).Offset(filter.Offset).Find(&subs).Error
	return subs, total, err
}

// GetSubmission returns one submission with its email history, oldest
// first
func (s *SubmissionService) GetSubmission(id uint) (*models.Submission, error) {
	var sub models.Submission
	err := s.db.Preload("Emails", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at ASC")
	}).First(&sub, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}
	return &sub, nil
}

// UpdateStatus moves a submission to a new lifecycle status
func (s *SubmissionService) UpdateStatus(userID, id uint, status string) (*models.Submission, error) {
	if !validStatuses[status] {
		return nil, ErrInvalidStatus
	}

	result := s.db.Model(&models.Submission{}).Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrSubmissionNotFound
	}

	s.logService.Info(userID, models.LogModuleSync, "update_status",
		"Submission status changed", map[string]interface{}{"submission_id": id, "status": status})
	return s.GetSubmission(id)
}

// Lock claims a submission for one user. An existing lock by someone
// else wins.
func (s *SubmissionService) Lock(userID, id uint) error {
	now := time.Now()
	result := s.db.Model(&models.Submission{}).
		Where("id = ? AND (locked_by IS NULL OR locked_by = ?)", id, userID).
		Updates(map[string]interface{}{"locked_by": userID, "locked_at": now})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// Either missing or held by another user
		if _, err := s.GetSubmission(id); err != nil {
			return err
		}
		return ErrSubmissionLocked
	}
	return nil
}

// Unlock releases a submission lock held by the user
func (s *SubmissionService) Unlock(userID, id uint) error {
	result := s.db.Model(&models.Submission{}).
		Where("id = ? AND locked_by = ?", id, userID).
		Updates(map[string]interface{}{"locked_by": nil, "locked_at": nil})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := s.GetSubmission(id); err != nil {
			return err
		}
		return ErrSubmissionLocked
	}
	return nil
}

// Deactivate soft-deletes a submission
func (s *SubmissionService) Deactivate(userID, id uint) error {
	result := s.db.Model(&models.Submission{}).Where("id = ?", id).Update("active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSubmissionNotFound
	}
	s.logService.Info(userID, models.LogModuleSync, "deactivate",
		"Submission deactivated", map[string]interface{}{"submission_id": id})
	return nil
}

// Restore reverses a soft delete
func (s *SubmissionService) Restore(userID, id uint) error {
	result := s.db.Model(&models.Submission{}).Where("id = ?", id).Update("active", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSubmissionNotFound
	}
	return nil
}
