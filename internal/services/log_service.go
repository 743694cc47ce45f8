package services

import (
	"encoding/json"
	"log"
	"time"

	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/database/models"
	"gorm.io/gorm"
)

// LogService handles system logging to the database
type LogService struct {
	db *gorm.DB
}

// NewLogService creates a new log service
func NewLogService(db *gorm.DB) *LogService {
	return &LogService{db: db}
}

// Log writes a log entry to the database
func (s *LogService) Log(userID uint, level models.LogLevel, module models.LogModule, action, message string, details map[string]interface{}) error {
	detailsJSON := ""
	if details != nil {
		if data, err := json.Marshal(details); err == nil {
			detailsJSON = string(data)
		}
	}

	entry := &models.Log{
		UserID:    userID,
		Level:     string(level),
		Module:    string(module),
		Action:    action,
		Message:   message,
		Details:   detailsJSON,
		CreatedAt: time.Now(),
	}

	if err := s.db.Create(entry).Error; err != nil {
		// Fall back to stderr so the event is not lost entirely
		log.Printf("[LogService] Failed to write log: %v (original: [%s] %s/%s: %s)", err, level, module, action, message)
		return err
	}
	return nil
}

// Debug logs a debug message
func (s *LogService) Debug(userID uint, module models.LogModule, action, message string, details map[string]interface{}) {
	_ = s.Log(userID, models.LogLevelDebug, module, action, message, details)
}

// Info logs an info message
func (s *LogService) Info(userID uint, module models.LogModule, action, message string, details map[string]interface{}) {
	_ = s.Log(userID, models.LogLevelInfo, module, action, message, details)
}

// Warn logs a warning message
func (s *LogService) Warn(userID uint, module models.LogModule, action, message string, details map[string]interface{}) {
	_ = s.Log(userID, models.LogLevelWarn, module, action, message, details)
}

// Error logs an error message
func (s *LogService) Error(userID uint, module models.LogModule, action, message string, details map[string]interface{}) {
	_ = s.Log(userID, models.LogLevelError, module, action, message, details)
}

// LogFilter holds the query filters for listing logs
type LogFilter struct {
	Level  string
	Module string
	Since  *time.Time
	Limit  int
	Offset int
}

// GetLogs returns log entries matching the filter, newest first
func (s *LogService) GetLogs(filter LogFilter) ([]models.Log, int64, error) {
	query := s.db.Model(&models.Log{})

	if filter.Level != "" {
		query = query.Where("level = ?", filter.Level)
	}
	if filter.Module != "" {
		query = query.Where("module = ?", filter.Module)
	}
	if filter.Since != nil {
		query = query.Where("created_at >= ?", *filter.Since)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var logs []models.Log
	err := query.Order("created_at DESC").Limit(limit).Offset(filter.Offset).Find(&logs).Error
	return logs, total, err
}

// CleanupOldLogs deletes log entries older than the retention window
func (s *LogService) CleanupOldLogs(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	result := s.db.Where("created_at < ?", cutoff).Delete(&models.Log{})
	return result.RowsAffected, result.Error
}
