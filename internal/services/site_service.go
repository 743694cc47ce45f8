package services

import (
	"context"
	"errors"

	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/config"
	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/database/models"
	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/wordpress"
	"gorm.io/gorm"
)

var (
	ErrSiteNotFound  = errors.New("site not found")
	ErrSiteInactive  = errors.New("site is inactive")
	ErrSiteNameTaken = errors.New("a site with this name already exists")
)

// SiteService manages WordPress site registrations. Application passwords
// are encrypted before they touch the database.
type SiteService struct {
	db         *gorm.DB
	cfg        *config.Config
	logService *LogService
	newGateway FormGatewayFactory
}

// NewSiteService creates a new site service
func NewSiteService(db *gorm.DB, cfg *config.Config, logService *LogService, factory FormGatewayFactory) *SiteService {
	if factory == nil {
		factory = DefaultFormGatewayFactory
	}
	return &SiteService{db: db, cfg: cfg, logService: logService, newGateway: factory}
}

// CreateSite registers a site after verifying the credentials against it
func (s *SiteService) CreateSite(ctx context.Context, userID uint, name, url, username, appPassword string) (*models.Site, error) {
	if name == "" || url == "" || username == "" || appPassword == "" {
		return nil, errors.New("name, url, username and app password are required")
	}

	taken, err := s.nameTaken(name, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrSiteNameTaken
	}

	gateway := s.newGateway(url, username, appPassword)
	if err := gateway.ValidateCredentials(ctx); err != nil {
		s.logService.Warn(userID, models.LogModuleSite, "create", "Credential check failed for "+url, map[string]interface{}{"error": err.Error()})
		return nil, err
	}

	encrypted, err := encryptSecret(appPassword, s.cfg.GetEncryptionKey())
	if err != nil {
		return nil, err
	}

	site := &models.Site{
		Name:                 name,
		URL:                  url,
		Username:             username,
		AppPasswordEncrypted: encrypted,
		Active:               true,
	}
	if err := s.db.Create(site).Error; err != nil {
		return nil, err
	}

	s.logService.Info(userID, models.LogModuleSite, "create", "Site registered: "+name, map[string]interface{}{"site_id": site.ID})
	return site, nil
}

// UpdateSite changes site fields. A new app password is re-verified and
// re-encrypted; the cached contact form id is cleared when the URL moves.
func (s *SiteService) UpdateSite(ctx context.Context, userID, siteID uint, name, url, username, appPassword *string) (*models.Site, error) {
	site, err := s.GetSite(siteID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if name != nil && *name != "" && *name != site.Name {
		taken, err := s.nameTaken(*name, siteID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, ErrSiteNameTaken
		}
		updates["name"] = *name
	}
	if url != nil && *url != "" && *url != site.URL {
		updates["url"] = *url
		updates["contact_form_id"] = nil
	}
	if username != nil && *username != "" {
		updates["username"] = *username
	}

	if appPassword != nil && *appPassword != "" {
		checkURL := site.URL
		if u, ok := updates["url"].(string); ok {
			checkURL = u
		}
		checkUser := site.Username
		if u, ok := updates["username"].(string); ok {
			checkUser = u
		}
		gateway := s.newGateway(checkURL, checkUser, *appPassword)
		if err := gateway.ValidateCredentials(ctx); err != nil {
			return nil, err
		}
		encrypted, err := encryptSecret(*appPassword, s.cfg.GetEncryptionKey())
		if err != nil {
			return nil, err
		}
		updates["app_password_encrypted"] = encrypted
	}

	if len(updates) == 0 {
		return site, nil
	}
	if err := s.db.Model(site).Updates(updates).Error; err != nil {
		return nil, err
	}

	s.logService.Info(userID, models.LogModuleSite, "update", "Site updated: "+site.Name, map[string]interface{}{"site_id": site.ID})
	return s.GetSite(siteID)
}

// nameTaken reports whether another active site already uses the name.
// The unique index backs this up against races.
func (s *SiteService) nameTaken(name string, excludeID uint) (bool, error) {
	query := s.db.Model(&models.Site{}).Where("name = ? AND active = ?", name, true)
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetSite returns a site by id, inactive ones included
func (s *SiteService) GetSite(id uint) (*models.Site, error) {
	var site models.Site
	if err := s.db.First(&site, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSiteNotFound
		}
		return nil, err
	}
	return &site, nil
}

// ListSites returns sites, optionally including soft-deleted ones
func (s *SiteService) ListSites(includeInactive bool) ([]models.Site, error) {
	query := s.db.Order("id")
	if !includeInactive {
		query = query.Where("active = ?", true)
	}
	var sites []models.Site
	err := query.Find(&sites).Error
	return sites, err
}

// DeactivateSite soft-deletes a site. Its submissions stay untouched.
func (s *SiteService) DeactivateSite(userID, siteID uint) error {
	result := s.db.Model(&models.Site{}).Where("id = ?", siteID).Update("active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSiteNotFound
	}
	s.logService.Info(userID, models.LogModuleSite, "deactivate", "Site deactivated", map[string]interface{}{"site_id": siteID})
	return nil
}

// RestoreSite reverses a soft delete
func (s *SiteService) RestoreSite(userID, siteID uint) error {
	result := s.db.Model(&models.Site{}).Where("id = ?", siteID).Update("active", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSiteNotFound
	}
	s.logService.Info(userID, models.LogModuleSite, "restore", "Site restored", map[string]interface{}{"site_id": siteID})
	return nil
}

// TestConnection probes every integration layer of a site
func (s *SiteService) TestConnection(ctx context.Context, siteID uint) (*wordpress.Diagnostics, error) {
	gateway, _, err := s.Gateway(siteID)
	if err != nil {
		return nil, err
	}
	return gateway.Diagnose(ctx), nil
}

// Gateway builds a form gateway for a site using its decrypted credentials
func (s *SiteService) Gateway(siteID uint) (FormGateway, *models.Site, error) {
	site, err := s.GetSite(siteID)
	if err != nil {
		return nil, nil, err
	}
	password, err := decryptSecret(site.AppPasswordEncrypted, s.cfg.GetEncryptionKey())
	if err != nil {
		return nil, nil, err
	}
	return s.newGateway(site.URL, site.Username, password), site, nil
}
