package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/config"
	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/database/models"
	"github.com/rdeepak-711/fluent-forms-wp-hub/internal/gmail"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"
)

var (
	ErrGmailNotConnected  = errors.New("gmail account not connected")
	ErrOAuthNotConfigured = errors.New("google oauth client not configured")
)

// GmailService owns the OAuth credential of the shared sender mailbox
// and builds mailbox gateways from it
type GmailService struct {
	db         *gorm.DB
	cfg        *config.Config
	logService *LogService
}

// NewGmailService creates a new gmail service
func NewGmailService(db *gorm.DB, cfg *config.Config, logService *LogService) *GmailService {
	return &GmailService{db: db, cfg: cfg, logService: logService}
}

func (s *GmailService) oauthConfig() (*oauth2.Config, error) {
	if s.cfg.GoogleClientID == "" || s.cfg.GoogleClientSecret == "" {
		return nil, ErrOAuthNotConfigured
	}
	return &oauth2.Config{
		ClientID:     s.cfg.GoogleClientID,
		ClientSecret: s.cfg.GoogleClientSecret,
		RedirectURL:  s.cfg.GoogleRedirectURL,
		Scopes:       gmail.Scopes,
		Endpoint:     google.Endpoint,
	}, nil
}

// AuthURL returns the Google consent URL for connecting the mailbox
func (s *GmailService) AuthURL(state string) (string, error) {
	conf, err := s.oauthConfig()
	if err != nil {
		return "", err
	}
	return conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce), nil
}

// HandleCallback exchanges the OAuth code and stores the credential
func (s *GmailService) HandleCallback(ctx context.Context, code string) (*models.GmailCredential, error) {
	conf, err := s.oauthConfig()
	if err != nil {
		return nil, err
	}

	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange oauth code: %w", err)
	}
	if tok.RefreshToken == "" {
		return nil, errors.New("no refresh token granted, revoke app access and retry")
	}

	email, err := fetchProfileEmail(ctx, conf, tok)
	if err != nil {
		return nil, err
	}

	return s.saveCredential(email, tok)
}

// fetchProfileEmail asks the Gmail profile endpoint which mailbox the
// token belongs to
func fetchProfileEmail(ctx context.Context, conf *oauth2.Config, tok *oauth2.Token) (string, error) {
	client := oauth2.NewClient(ctx, conf.TokenSource(ctx, tok))
	resp, err := client.Get("https://gmail.googleapis.com/gmail/v1/users/me/profile")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gmail profile: %s", resp.Status)
	}

	var profile struct {
		EmailAddress string `json:"emailAddress"`
	}
	if err := json.Unmarshal(body, &profile); err != nil {
		return "", err
	}
	if profile.EmailAddress == "" {
		return "", errors.New("gmail profile returned no email address")
	}
	return profile.EmailAddress, nil
}

func (s *GmailService) saveCredential(email string, tok *oauth2.Token) (*models.GmailCredential, error) {
	key := s.cfg.GetEncryptionKey()

	accessEnc, err := encryptSecret(tok.AccessToken, key)
	if err != nil {
		return nil, err
	}
	refreshEnc, err := encryptSecret(tok.RefreshToken, key)
	if err != nil {
		return nil, err
	}
	secretEnc, err := encryptSecret(s.cfg.GoogleClientSecret, key)
	if err != nil {
		return nil, err
	}

	var expiry *time.Time
	if !tok.Expiry.IsZero() {
		t := tok.Expiry
		expiry = &t
	}

	cred := &models.GmailCredential{
		UserEmail:             email,
		AccessTokenEncrypted:  accessEnc,
		RefreshTokenEncrypted: refreshEnc,
		ClientSecretEncrypted: secretEnc,
		TokenURI:              google.Endpoint.TokenURL,
		ClientID:              s.cfg.GoogleClientID,
		Scopes:                strings.Join(gmail.Scopes, " "),
		Expiry:                expiry,
	}

	// One mailbox at a time: replace whatever was connected before
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.GmailCredential{}).Error; err != nil {
			return err
		}
		return tx.Create(cred).Error
	})
	if err != nil {
		return nil, err
	}

	s.logService.Info(0, models.LogModuleMail, "connect", "Gmail mailbox connected: "+email, nil)
	return cred, nil
}

// GetCredential returns the connected mailbox credential
func (s *GmailService) GetCredential() (*models.GmailCredential, error) {
	var cred models.GmailCredential
	if err := s.db.First(&cred).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGmailNotConnected
		}
		return nil, err
	}
	return &cred, nil
}

// Disconnect removes the stored credential
func (s *GmailService) Disconnect() error {
	if err := s.db.Where("1 = 1").Delete(&models.GmailCredential{}).Error; err != nil {
		return err
	}
	s.logService.Info(0, models.LogModuleMail, "disconnect", "Gmail mailbox disconnected", nil)
	return nil
}

// Mailbox builds a mailbox gateway from the stored credential. Refreshed
// access tokens are written back so the next cycle starts warm.
func (s *GmailService) Mailbox(ctx context.Context) (MailboxGateway, string, error) {
	cred, err := s.GetCredential()
	if err != nil {
		return nil, "", err
	}

	key := s.cfg.GetEncryptionKey()
	accessToken, err := decryptSecret(cred.AccessTokenEncrypted, key)
	if err != nil {
		return nil, "", err
	}
	refreshToken, err := decryptSecret(cred.RefreshTokenEncrypted, key)
	if err != nil {
		return nil, "", err
	}
	clientSecret, err := decryptSecret(cred.ClientSecretEncrypted, key)
	if err != nil {
		return nil, "", err
	}

	conf := &oauth2.Config{
		ClientID:     cred.ClientID,
		ClientSecret: clientSecret,
		Scopes:       strings.Split(cred.Scopes, " "),
		Endpoint: oauth2.Endpoint{
			AuthURL:  google.Endpoint.AuthURL,
			TokenURL: cred.TokenURI,
		},
	}

	tok := &oauth2.Token{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}
	if cred.Expiry != nil {
		tok.Expiry = *cred.Expiry
	}

	credID := cred.ID
	client := gmail.NewClient(ctx, conf, tok, func(newTok *oauth2.Token) {
		if err := s.persistRefreshedToken(credID, newTok); err != nil {
			log.Printf("[GmailService] Failed to persist refreshed token: %v", err)
		}
	})

	return client, cred.UserEmail, nil
}

func (s *GmailService) persistRefreshedToken(credID uint, tok *oauth2.Token) error {
	accessEnc, err := encryptSecret(tok.AccessToken, s.cfg.GetEncryptionKey())
	if err != nil {
		return err
	}
	updates := map[string]interface{}{
		"access_token_encrypted": accessEnc,
	}
	if !tok.Expiry.IsZero() {
		updates["expiry"] = tok.Expiry
	}
	if tok.RefreshToken != "" {
		refreshEnc, err := encryptSecret(tok.RefreshToken, s.cfg.GetEncryptionKey())
		if err != nil {
			return err
		}
		updates["refresh_token_encrypted"] = refreshEnc
	}
	return s.db.Model(&models.GmailCredential{}).Where("id = ?", credID).Updates(updates).Error
}
