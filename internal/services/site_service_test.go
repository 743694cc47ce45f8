package services

import (
	"context"
	"errors"
	"testing"
)

func TestCreateSiteRejectsDuplicateName(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	gw := &fakeFormGateway{forms: contactForms()}
	svc := NewSiteService(db, cfg, NewLogService(db), func(baseURL, username, appPassword string) FormGateway {
		return gw
	})

	if _, err := svc.CreateSite(context.Background(), 1, "Agency Blog", "https://one.example.com", "admin", "pass"); err != nil {
		t.Fatalf("CreateSite() error = %v", err)
	}

	_, err := svc.CreateSite(context.Background(), 1, "Agency Blog", "https://two.example.com", "admin", "pass")
	if !errors.Is(err, ErrSiteNameTaken) {
		t.Errorf("CreateSite() error = %v, want ErrSiteNameTaken", err)
	}
}

func TestUpdateSiteRejectsDuplicateName(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	gw := &fakeFormGateway{forms: contactForms()}
	svc := NewSiteService(db, cfg, NewLogService(db), func(baseURL, username, appPassword string) FormGateway {
		return gw
	})

	if _, err := svc.CreateSite(context.Background(), 1, "Agency Blog", "https://one.example.com", "admin", "pass"); err != nil {
		t.Fatalf("CreateSite() error = %v", err)
	}
	second, err := svc.CreateSite(context.Background(), 1, "Client Shop", "https://two.example.com", "admin", "pass")
	if err != nil {
		t.Fatalf("CreateSite() error = %v", err)
	}

	if _, err := svc.UpdateSite(context.Background(), 1, second.ID, strptr("Agency Blog"), nil, nil, nil); !errors.Is(err, ErrSiteNameTaken) {
		t.Errorf("UpdateSite() error = %v, want ErrSiteNameTaken", err)
	}

	// Re-submitting the current name is not a collision
	if _, err := svc.UpdateSite(context.Background(), 1, second.ID, strptr("Client Shop"), nil, nil, nil); err != nil {
		t.Errorf("UpdateSite() with own name error = %v", err)
	}
}
