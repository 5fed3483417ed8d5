package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"prontoapp/backend/internal/apperr"
	"prontoapp/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Storage is the relational persistence the marketplace core runs on.
// Every method honours the deadline of ctx and reports it as apperr.ErrTimeout.
type Storage interface {
	// RegisterRequester and RegisterProvider insert a new record only while
	// the email holds no role in either table.
	RegisterRequester(ctx context.Context, r *models.Requester) error
	RegisterProvider(ctx context.Context, p *models.Provider) error
	SaveRequester(ctx context.Context, r *models.Requester) error
	SaveProvider(ctx context.Context, p *models.Provider) error
	GetRequesterByEmail(ctx context.Context, email string) (*models.Requester, error)
	GetRequesterByID(ctx context.Context, id string) (*models.Requester, error)
	GetProviderByEmail(ctx context.Context, email string) (*models.Provider, error)
	GetProviderByID(ctx context.Context, id string) (*models.Provider, error)
	GetProvidersByIDs(ctx context.Context, ids []string) ([]models.Provider, error)
	ListProviders(ctx context.Context, zone string) ([]models.Provider, error)

	CreateRequest(ctx context.Context, req *models.Request) error
	GetRequest(ctx context.Context, id string) (*models.Request, error)
	ListRequestsByRequester(ctx context.Context, requesterID string) ([]models.Request, error)
	FindRequestsByTradeZone(ctx context.Context, trade, zone string) ([]models.Request, error)

	ListQuotes(ctx context.Context, requestID string) ([]models.Quote, error)
	ListQuotesSince(ctx context.Context, requestID string, after time.Time) ([]models.Quote, error)
	ListProviderQuotes(ctx context.Context, providerID string) ([]models.Quote, error)
	FindQuoteByProvider(ctx context.Context, requestID, providerID string) (*models.Quote, error)

	// WithRequest runs fn inside one transaction holding the request row.
	// Writes made through RequestTx commit together or not at all.
	WithRequest(ctx context.Context, requestID string, fn func(tx RequestTx) error) error
}

// RequestTx is the write surface over one request and its quotes.
type RequestTx interface {
	Request() *models.Request
	// Quotes returns the live (non-rejected) quotes, oldest first.
	Quotes() ([]models.Quote, error)
	// Quote looks a quote up including rejected ones.
	Quote(id string) (*models.Quote, error)
	// LastQuoteAt is the newest createdAt ever assigned on the request, rejected quotes included.
	LastQuoteAt() (time.Time, error)
	AddQuote(q *models.Quote) error
	MarkSelected(quoteID string) error
	RejectQuote(quoteID string) error
	SetStatus(status models.RequestStatus) error
}

type Service struct {
	DB *gorm.DB
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB) *Service {
	return &Service{DB: db}
}

// AutoMigrate creates or updates the marketplace tables.
func (s *Service) AutoMigrate() error {
	return s.DB.AutoMigrate(
		&models.Requester{},
		&models.Provider{},
		&models.Request{},
		&models.Quote{},
	)
}

func (s *Service) RegisterRequester(ctx context.Context, r *models.Requester) error {
	return s.registerIdentity(ctx, r.Email, r)
}

func (s *Service) RegisterProvider(ctx context.Context, p *models.Provider) error {
	return s.registerIdentity(ctx, p.Email, p)
}

// registerIdentity creates record after checking that email is neither a
// requester nor a provider. On postgres an advisory lock keyed by the email
// serializes concurrent registrations across both tables.
func (s *Service) registerIdentity(ctx context.Context, email string, record any) error {
	email = models.NormalizeEmail(email)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if tx.Dialector.Name() == "postgres" {
			if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", "identity:"+email).Error; err != nil {
				return err
			}
		}

		var count int64
		if err := tx.Model(&models.Provider{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return apperr.InvalidState("%s is already registered as %s", email, models.RoleProvider)
		}
		if err := tx.Model(&models.Requester{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return apperr.InvalidState("%s is already registered as %s", email, models.RoleRequester)
		}

		if err := tx.Create(record).Error; err != nil {
			if isUniqueViolation(err) {
				return apperr.InvalidState("%s is already registered", email)
			}
			return err
		}
		return nil
	})
	return apperr.FromContext(err)
}

// isUniqueViolation recognizes duplicate-key errors from the postgres and
// sqlite drivers, translated or not.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "SQLSTATE 23505")
}

// SaveRequester inserts a new requester or updates an existing one.
func (s *Service) SaveRequester(ctx context.Context, r *models.Requester) error {
	return apperr.FromContext(s.DB.WithContext(ctx).Save(r).Error)
}

func (s *Service) SaveProvider(ctx context.Context, p *models.Provider) error {
	return apperr.FromContext(s.DB.WithContext(ctx).Save(p).Error)
}

func (s *Service) GetRequesterByEmail(ctx context.Context, email string) (*models.Requester, error) {
	var r models.Requester
	err := s.DB.WithContext(ctx).Where("email = ?", models.NormalizeEmail(email)).First(&r).Error
	if err != nil {
		return nil, notFoundOr(err, "requester %s", email)
	}
	return &r, nil
}

func (s *Service) GetRequesterByID(ctx context.Context, id string) (*models.Requester, error) {
	var r models.Requester
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&r).Error; err != nil {
		return nil, notFoundOr(err, "requester %s", id)
	}
	return &r, nil
}

func (s *Service) GetProviderByEmail(ctx context.Context, email string) (*models.Provider, error) {
	var p models.Provider
	err := s.DB.WithContext(ctx).Where("email = ?", models.NormalizeEmail(email)).First(&p).Error
	if err != nil {
		return nil, notFoundOr(err, "provider %s", email)
	}
	return &p, nil
}

func (s *Service) GetProviderByID(ctx context.Context, id string) (*models.Provider, error) {
	var p models.Provider
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, notFoundOr(err, "provider %s", id)
	}
	return &p, nil
}

// GetProvidersByIDs returns the providers found among ids; unknown ids are skipped.
func (s *Service) GetProvidersByIDs(ctx context.Context, ids []string) ([]models.Provider, error) {
	providers := []models.Provider{}
	if len(ids) == 0 {
		return providers, nil
	}
	err := s.DB.WithContext(ctx).Where("id IN ?", ids).Find(&providers).Error
	return providers, apperr.FromContext(err)
}

// ListProviders returns providers in zone ordered by name. An empty zone
// returns every provider.
func (s *Service) ListProviders(ctx context.Context, zone string) ([]models.Provider, error) {
	providers := []models.Provider{}
	q := s.DB.WithContext(ctx).Order("display_name asc").Order("id asc")
	if zone != "" {
		q = q.Where("zone = ?", zone)
	}
	err := q.Find(&providers).Error
	return providers, apperr.FromContext(err)
}

func (s *Service) CreateRequest(ctx context.Context, req *models.Request) error {
	return apperr.FromContext(s.DB.WithContext(ctx).Create(req).Error)
}

func (s *Service) GetRequest(ctx context.Context, id string) (*models.Request, error) {
	var req models.Request
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&req).Error; err != nil {
		return nil, notFoundOr(err, "request %s", id)
	}
	return &req, nil
}

// ListRequestsByRequester returns the requester's requests, newest first.
func (s *Service) ListRequestsByRequester(ctx context.Context, requesterID string) ([]models.Request, error) {
	requests := []models.Request{}
	err := s.DB.WithContext(ctx).
		Where("requester_id = ?", requesterID).
		Order("created_at desc").Order("id asc").
		Find(&requests).Error
	return requests, apperr.FromContext(err)
}

// FindRequestsByTradeZone returns every request with exactly this trade and
// zone, oldest first. Status is not filtered here.
func (s *Service) FindRequestsByTradeZone(ctx context.Context, trade, zone string) ([]models.Request, error) {
	requests := []models.Request{}
	err := s.DB.WithContext(ctx).
		Where("trade = ? AND zone = ?", trade, zone).
		Order("created_at asc").Order("id asc").
		Find(&requests).Error
	return requests, apperr.FromContext(err)
}

// ListQuotes returns the live quotes of a request, newest first.
func (s *Service) ListQuotes(ctx context.Context, requestID string) ([]models.Quote, error) {
	quotes := []models.Quote{}
	err := s.DB.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("created_at desc").Order("id asc").
		Find(&quotes).Error
	return quotes, apperr.FromContext(err)
}

// ListQuotesSince returns live quotes created strictly after `after`, oldest first.
func (s *Service) ListQuotesSince(ctx context.Context, requestID string, after time.Time) ([]models.Quote, error) {
	quotes := []models.Quote{}
	err := s.DB.WithContext(ctx).
		Where("request_id = ? AND created_at > ?", requestID, after).
		Order("created_at asc").Order("id asc").
		Find(&quotes).Error
	return quotes, apperr.FromContext(err)
}

// ListProviderQuotes returns every live quote a provider has submitted.
func (s *Service) ListProviderQuotes(ctx context.Context, providerID string) ([]models.Quote, error) {
	quotes := []models.Quote{}
	err := s.DB.WithContext(ctx).
		Where("provider_id = ?", providerID).
		Order("created_at asc").
		Find(&quotes).Error
	return quotes, apperr.FromContext(err)
}

// FindQuoteByProvider returns the provider's live quote on a request.
func (s *Service) FindQuoteByProvider(ctx context.Context, requestID, providerID string) (*models.Quote, error) {
	var q models.Quote
	err := s.DB.WithContext(ctx).
		Where("request_id = ? AND provider_id = ?", requestID, providerID).
		Order("created_at desc").
		First(&q).Error
	if err != nil {
		return nil, notFoundOr(err, "quote by provider %s on request %s", providerID, requestID)
	}
	return &q, nil
}

func (s *Service) WithRequest(ctx context.Context, requestID string, fn func(tx RequestTx) error) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		// SQLite has no row locks; its writer lock serializes the transaction instead.
		if tx.Dialector.Name() == "postgres" {
			q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var req models.Request
		if err := q.Where("id = ?", requestID).First(&req).Error; err != nil {
			return notFoundOr(err, "request %s", requestID)
		}
		return fn(&requestTx{tx: tx, req: &req})
	})
	return apperr.FromContext(err)
}

type requestTx struct {
	tx  *gorm.DB
	req *models.Request
}

func (t *requestTx) Request() *models.Request {
	return t.req
}

func (t *requestTx) Quotes() ([]models.Quote, error) {
	quotes := []models.Quote{}
	err := t.tx.Where("request_id = ?", t.req.ID).Order("created_at asc").Find(&quotes).Error
	return quotes, err
}

func (t *requestTx) Quote(id string) (*models.Quote, error) {
	var q models.Quote
	err := t.tx.Unscoped().Where("id = ? AND request_id = ?", id, t.req.ID).First(&q).Error
	if err != nil {
		return nil, notFoundOr(err, "quote %s on request %s", id, t.req.ID)
	}
	return &q, nil
}

func (t *requestTx) LastQuoteAt() (time.Time, error) {
	var last models.Quote
	err := t.tx.Unscoped().
		Where("request_id = ?", t.req.ID).
		Order("created_at desc").
		Limit(1).
		Find(&last).Error
	return last.CreatedAt, err
}

func (t *requestTx) AddQuote(q *models.Quote) error {
	q.RequestID = t.req.ID
	return t.tx.Create(q).Error
}

// MarkSelected flips selected only on an unselected live quote of this request.
func (t *requestTx) MarkSelected(quoteID string) error {
	res := t.tx.Model(&models.Quote{}).
		Where("id = ? AND request_id = ? AND selected = ?", quoteID, t.req.ID, false).
		Update("selected", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.InvalidState("quote %s can no longer be selected", quoteID)
	}
	return nil
}

// RejectQuote soft-deletes a live quote.
func (t *requestTx) RejectQuote(quoteID string) error {
	res := t.tx.Where("id = ? AND request_id = ?", quoteID, t.req.ID).Delete(&models.Quote{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("quote %s on request %s", quoteID, t.req.ID)
	}
	return nil
}

// SetStatus updates the status only if it still holds the value read at the
// start of the transaction.
func (t *requestTx) SetStatus(status models.RequestStatus) error {
	res := t.tx.Model(&models.Request{}).
		Where("id = ? AND status = ?", t.req.ID, t.req.Status).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.InvalidState("request %s changed status concurrently", t.req.ID)
	}
	t.req.Status = status
	return nil
}

func notFoundOr(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(format+" not found", args...)
	}
	return apperr.FromContext(err)
}
