package services

import (
	"errors"
	"strings"

	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/database/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrEmailExists     = errors.New("email already registered")
	ErrInvalidPassword = errors.New("invalid password")
	ErrUserInactive    = errors.New("user is inactive")
)

// UserService handles operator account management
type UserService struct {
	db         *gorm.DB
	logService *LogService
}

// NewUserService creates a new user service
func NewUserService(db *gorm.DB, logService *LogService) *UserService {
	return &UserService{db: db, logService: logService}
}

// CreateUser registers a new account with a bcrypt-hashed password
func (s *UserService) CreateUser(email, password, role string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, errors.New("email is required")
	}
	if len(password) < 8 {
		return nil, errors.New("password must be at least 8 characters")
	}
	if role != models.RoleAdmin {
		role = models.RoleUser
	}

	var count int64
	if err := s.db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrEmailExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		Active:       true,
	}
	if err := s.db.Create(user).Error; err != nil {
		return nil, err
	}

	s.logService.Info(user.ID, models.LogModuleUser, "create", "User created: "+email, nil)
	return user, nil
}

// Authenticate verifies credentials and returns the user
func (s *UserService) Authenticate(email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var user models.User
	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if !user.Active {
		return nil, ErrUserInactive
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidPassword
	}
	return &user, nil
}

// GetUserByID returns a user by id
func (s *UserService) GetUserByID(id uint) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// ListUsers returns all accounts
func (s *UserService) ListUsers() ([]models.User, error) {
	var users []models.User
	err := s.db.Order("id").Find(&users).Error
	return users, err
}

// UpdatePassword changes a user's password after verifying the old one
func (s *UserService) UpdatePassword(id uint, oldPassword, newPassword string) error {
	user, err := s.GetUserByID(id)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
		return ErrInvalidPassword
	}
	if len(newPassword) < 8 {
		return errors.New("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	if err := s.db.Model(user).Update("password_hash", string(hash)).Error; err != nil {
		return err
	}
	s.logService.Info(id, models.LogModuleUser, "update_password", "Password changed", nil)
	return nil
}

// SetActive enables or disables an account
func (s *UserService) SetActive(id uint, active bool) error {
	result := s.db.Model(&models.User{}).Where("id = ?", id).Update("active", active)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}
