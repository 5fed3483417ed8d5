package marketplace

import (
	"context"
	"log/slog"
	"strings"

	"prontoapp/backend/internal/apperr"
	"prontoapp/backend/internal/logger"
	"prontoapp/backend/internal/models"
	"prontoapp/backend/internal/storage"
)

// Profile is the editable part of a requester or provider record. Trade and
// Specialty only apply to providers.
type Profile struct {
	DisplayName string `json:"display_name"`
	Phone       string `json:"phone"`
	Zone        string `json:"zone"`
	Trade       string `json:"trade,omitempty"`
	Specialty   string `json:"specialty,omitempty"`
}

func (p Profile) trimmed() Profile {
	return Profile{
		DisplayName: strings.TrimSpace(p.DisplayName),
		Phone:       strings.TrimSpace(p.Phone),
		Zone:        strings.TrimSpace(p.Zone),
		Trade:       strings.TrimSpace(p.Trade),
		Specialty:   strings.TrimSpace(p.Specialty),
	}
}

// Registry owns requester and provider records. The email of a record is the
// verified identity that created it and never changes.
type Registry struct {
	storage storage.Storage
	catalog Catalog
}

// NewRegistry builds a Registry; catalog may be nil.
func NewRegistry(st storage.Storage, catalog Catalog) *Registry {
	return &Registry{storage: st, catalog: catalog}
}

func (r *Registry) RegisterRequester(ctx context.Context, id models.Identity, p Profile) (*models.Requester, error) {
	if err := canRegister(id); err != nil {
		return nil, err
	}
	p = p.trimmed()
	if err := requireFields(map[string]string{
		"displayName": p.DisplayName,
		"phone":       p.Phone,
	}); err != nil {
		return nil, err
	}
	if r.catalog != nil && p.Zone != "" && !r.catalog.ValidZone(p.Zone) {
		return nil, apperr.Validation("unknown zone %q", p.Zone)
	}

	requester := &models.Requester{
		DisplayName: p.DisplayName,
		Phone:       p.Phone,
		Email:       id.Email,
		Zone:        p.Zone,
	}
	if err := r.storage.RegisterRequester(ctx, requester); err != nil {
		return nil, err
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{Identity: requester.Email, Component: "marketplace.registry"})
	slog.InfoContext(ctx, "requester registered", "requester_id", requester.ID)
	return requester, nil
}

func (r *Registry) RegisterProvider(ctx context.Context, id models.Identity, p Profile) (*models.Provider, error) {
	if err := canRegister(id); err != nil {
		return nil, err
	}
	p = p.trimmed()
	if err := requireFields(map[string]string{
		"displayName": p.DisplayName,
		"phone":       p.Phone,
		"zone":        p.Zone,
		"trade":       p.Trade,
		"specialty":   p.Specialty,
	}); err != nil {
		return nil, err
	}
	if err := validateCatalog(r.catalog, p.Trade, p.Specialty, p.Zone); err != nil {
		return nil, err
	}

	provider := &models.Provider{
		DisplayName: p.DisplayName,
		Phone:       p.Phone,
		Email:       id.Email,
		Zone:        p.Zone,
		Trade:       p.Trade,
		Specialty:   p.Specialty,
	}
	if err := r.storage.RegisterProvider(ctx, provider); err != nil {
		return nil, err
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{ProviderID: provider.ID, Identity: provider.Email, Component: "marketplace.registry"})
	slog.InfoContext(ctx, "provider registered", "trade", provider.Trade, "zone", provider.Zone)
	return provider, nil
}

// UpdateProfile applies the non-empty fields of p to the caller's own record
// and returns the updated identity.
func (r *Registry) UpdateProfile(ctx context.Context, id models.Identity, p Profile) (models.Identity, error) {
	p = p.trimmed()

	switch id.Role {
	case models.RoleRequester:
		rec := *id.Requester
		setIfNotEmpty(&rec.DisplayName, p.DisplayName)
		setIfNotEmpty(&rec.Phone, p.Phone)
		setIfNotEmpty(&rec.Zone, p.Zone)
		if r.catalog != nil && p.Zone != "" && !r.catalog.ValidZone(rec.Zone) {
			return id, apperr.Validation("unknown zone %q", rec.Zone)
		}
		if err := r.storage.SaveRequester(ctx, &rec); err != nil {
			return id, err
		}
		id.Requester = &rec

	case models.RoleProvider:
		rec := *id.Provider
		setIfNotEmpty(&rec.DisplayName, p.DisplayName)
		setIfNotEmpty(&rec.Phone, p.Phone)
		setIfNotEmpty(&rec.Zone, p.Zone)
		setIfNotEmpty(&rec.Trade, p.Trade)
		setIfNotEmpty(&rec.Specialty, p.Specialty)
		if err := validateCatalog(r.catalog, rec.Trade, rec.Specialty, rec.Zone); err != nil {
			return id, err
		}
		if err := r.storage.SaveProvider(ctx, &rec); err != nil {
			return id, err
		}
		id.Provider = &rec

	default:
		return id, apperr.InvalidState("%s has no profile to update", id.Email)
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{Identity: id.Email, Component: "marketplace.registry"})
	slog.InfoContext(ctx, "profile updated", "role", id.Role)
	return id, nil
}

func canRegister(id models.Identity) error {
	if id.Email == "" {
		return apperr.New(apperr.ErrAuth, "no verified identity")
	}
	if id.Role != models.RoleNone {
		return apperr.InvalidState("%s is already registered as %s", id.Email, id.Role)
	}
	return nil
}

func setIfNotEmpty(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
