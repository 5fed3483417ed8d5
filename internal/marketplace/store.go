// Package marketplace implements the request lifecycle (RequestStore) and
// the provider/request matching rules (MatchingIndex).
package marketplace

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"prontoapp/backend/internal/apperr"
	"prontoapp/backend/internal/config"
	"prontoapp/backend/internal/lifecycle"
	"prontoapp/backend/internal/logger"
	"prontoapp/backend/internal/models"
	"prontoapp/backend/internal/storage"
)

// Notifier accepts events after the write they describe has committed.
// Implementations must not block the caller.
type Notifier interface {
	Enqueue(event models.Event)
}

// QuoteFeed wakes live quote subscribers when a request gets a new quote.
type QuoteFeed interface {
	Publish(ctx context.Context, requestID string) error
	Subscribe(ctx context.Context, requestID string) (<-chan struct{}, func(), error)
}

// Catalog validates trade, specialty and zone values.
type Catalog interface {
	ValidTrade(trade string) bool
	ValidSpecialty(trade, specialty string) bool
	ValidZone(zone string) bool
}

type RequestStore struct {
	storage         storage.Storage
	notifier        Notifier
	feed            QuoteFeed
	catalog         Catalog
	trackingBaseURL string
	pollInterval    time.Duration
	now             func() time.Time
}

type Option func(*RequestStore)

func WithNotifier(n Notifier) Option { return func(s *RequestStore) { s.notifier = n } }

func WithQuoteFeed(f QuoteFeed) Option { return func(s *RequestStore) { s.feed = f } }

// WithCatalog enables strict trade/specialty/zone validation.
func WithCatalog(c Catalog) Option { return func(s *RequestStore) { s.catalog = c } }

func WithTrackingBaseURL(u string) Option { return func(s *RequestStore) { s.trackingBaseURL = u } }

func WithClock(now func() time.Time) Option { return func(s *RequestStore) { s.now = now } }

func WithPollInterval(d time.Duration) Option { return func(s *RequestStore) { s.pollInterval = d } }

func NewRequestStore(st storage.Storage, opts ...Option) *RequestStore {
	s := &RequestStore{
		storage:         st,
		trackingBaseURL: config.DefaultTrackingBaseURL,
		pollInterval:    config.QuoteWatchPollInterval,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewRequest holds the fields a requester fills in.
type NewRequest struct {
	RequesterID  string
	Trade        string
	Specialty    string
	Zone         string
	Description  string
	ContactPhone string
	ContactEmail string
}

// NewQuote holds the fields a provider fills in.
type NewQuote struct {
	RequestID         string
	ProviderID        string
	Amount            float64
	Message           string
	Availability      string
	EstimatedTime     string
	MaterialsIncluded bool
}

// CreateRequest validates and persists a pending request, then announces it.
func (s *RequestStore) CreateRequest(ctx context.Context, in NewRequest) (*models.Request, error) {
	in.RequesterID = strings.TrimSpace(in.RequesterID)
	in.Trade = strings.TrimSpace(in.Trade)
	in.Specialty = strings.TrimSpace(in.Specialty)
	in.Zone = strings.TrimSpace(in.Zone)
	in.Description = strings.TrimSpace(in.Description)
	in.ContactPhone = strings.TrimSpace(in.ContactPhone)
	in.ContactEmail = models.NormalizeEmail(in.ContactEmail)

	if err := requireFields(map[string]string{
		"requesterId":  in.RequesterID,
		"trade":        in.Trade,
		"specialty":    in.Specialty,
		"zone":         in.Zone,
		"description":  in.Description,
		"contactPhone": in.ContactPhone,
		"contactEmail": in.ContactEmail,
	}); err != nil {
		return nil, err
	}
	if err := validateCatalog(s.catalog, in.Trade, in.Specialty, in.Zone); err != nil {
		return nil, err
	}

	req := &models.Request{
		RequesterID:  in.RequesterID,
		Trade:        in.Trade,
		Specialty:    in.Specialty,
		Zone:         in.Zone,
		Description:  in.Description,
		ContactPhone: in.ContactPhone,
		ContactEmail: in.ContactEmail,
		Status:       models.StatusPending,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.storage.CreateRequest(ctx, req); err != nil {
		return nil, err
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{RequestID: req.ID, Component: "marketplace"})
	slog.InfoContext(ctx, "request created", "trade", req.Trade, "zone", req.Zone)

	s.emit(models.Event{
		Kind:           models.EventRequestCreated,
		OccurredAt:     req.CreatedAt,
		RequestID:      req.ID,
		RecipientPhone: req.ContactPhone,
		RecipientName:  req.ContactEmail,
		Trade:          req.Trade,
		Specialty:      req.Specialty,
		Zone:           req.Zone,
		TrackingLink:   s.TrackingLink(req.ID),
	})
	return req, nil
}

// SubmitQuote appends a quote to an active request. Quotes on the same
// request are serialized so createdAt order matches commit order.
func (s *RequestStore) SubmitQuote(ctx context.Context, in NewQuote) (*models.Quote, error) {
	if err := requireFields(map[string]string{
		"requestId":  strings.TrimSpace(in.RequestID),
		"providerId": strings.TrimSpace(in.ProviderID),
	}); err != nil {
		return nil, err
	}
	if in.Amount <= 0 {
		return nil, apperr.Validation("amount must be greater than zero")
	}

	provider, err := s.storage.GetProviderByID(ctx, in.ProviderID)
	if err != nil {
		return nil, err
	}

	quote := &models.Quote{
		ProviderID:        in.ProviderID,
		Amount:            in.Amount,
		Message:           strings.TrimSpace(in.Message),
		Availability:      strings.TrimSpace(in.Availability),
		EstimatedTime:     strings.TrimSpace(in.EstimatedTime),
		MaterialsIncluded: in.MaterialsIncluded,
	}

	var req models.Request
	err = s.storage.WithRequest(ctx, in.RequestID, func(tx storage.RequestTx) error {
		live, err := tx.Quotes()
		if err != nil {
			return err
		}
		guard := lifecycle.CanSubmitQuote(lifecycle.QuoteContext{
			RequestID:            in.RequestID,
			RequestStatus:        tx.Request().Status,
			ProviderHasLiveQuote: hasQuoteFrom(live, in.ProviderID),
		})
		if err := guard.Error(); err != nil {
			return err
		}

		last, err := tx.LastQuoteAt()
		if err != nil {
			return err
		}
		quote.CreatedAt = s.nextQuoteTime(last)

		if err := tx.AddQuote(quote); err != nil {
			return err
		}
		req = *tx.Request()
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		RequestID:  req.ID,
		QuoteID:    quote.ID,
		ProviderID: provider.ID,
		Component:  "marketplace",
	})
	slog.InfoContext(ctx, "quote submitted", "amount", quote.Amount)

	if s.feed != nil {
		if err := s.feed.Publish(ctx, req.ID); err != nil {
			slog.WarnContext(ctx, "failed to publish quote wake-up", "error", err)
		}
	}

	s.emit(models.Event{
		Kind:           models.EventQuoteSubmitted,
		OccurredAt:     quote.CreatedAt,
		RequestID:      req.ID,
		RecipientPhone: req.ContactPhone,
		RecipientName:  req.ContactEmail,
		Trade:          req.Trade,
		Specialty:      req.Specialty,
		Zone:           req.Zone,
		TrackingLink:   s.TrackingLink(req.ID),
		Quote: &models.QuoteSummary{
			QuoteID:           quote.ID,
			ProviderName:      provider.DisplayName,
			Availability:      quote.Availability,
			EstimatedTime:     quote.EstimatedTime,
			MaterialsIncluded: quote.MaterialsIncluded,
			Amount:            quote.Amount,
		},
	})
	return quote, nil
}

// AcceptQuote selects a quote and moves the request to accepted in one
// transaction. Sibling quotes are left untouched.
func (s *RequestStore) AcceptQuote(ctx context.Context, requestID, quoteID string) error {
	err := s.storage.WithRequest(ctx, requestID, func(tx storage.RequestTx) error {
		quote, err := tx.Quote(quoteID)
		if err != nil {
			return err
		}
		live, err := tx.Quotes()
		if err != nil {
			return err
		}

		guard := lifecycle.CanAcceptQuote(lifecycle.QuoteContext{
			RequestID:     requestID,
			RequestStatus: tx.Request().Status,
			QuoteID:       quoteID,
			QuoteRejected: quote.Rejected(),
			SelectedCount: countSelected(live),
		})
		if err := guard.Error(); err != nil {
			return err
		}

		if err := tx.MarkSelected(quoteID); err != nil {
			return err
		}
		return tx.SetStatus(models.StatusAccepted)
	})
	if err != nil {
		return err
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{RequestID: requestID, QuoteID: quoteID, Component: "marketplace"})
	slog.InfoContext(ctx, "quote accepted")
	return nil
}

// RejectQuote deletes a quote. The request status is unchanged.
func (s *RequestStore) RejectQuote(ctx context.Context, requestID, quoteID string) error {
	err := s.storage.WithRequest(ctx, requestID, func(tx storage.RequestTx) error {
		quote, err := tx.Quote(quoteID)
		if err != nil {
			return err
		}
		if quote.Rejected() {
			return apperr.NotFound("quote %s on request %s not found", quoteID, requestID)
		}
		if quote.Selected {
			return apperr.InvalidState("quote %s is the accepted quote and cannot be rejected", quoteID)
		}
		return tx.RejectQuote(quoteID)
	})
	if err != nil {
		return err
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{RequestID: requestID, QuoteID: quoteID, Component: "marketplace"})
	slog.InfoContext(ctx, "quote rejected")
	return nil
}

// CancelRequest moves a pending or in-progress request to cancelled.
func (s *RequestStore) CancelRequest(ctx context.Context, requestID string) error {
	return s.transition(ctx, requestID, models.StatusCancelled, lifecycle.CanCancel)
}

// StartRequest marks a pending request as in progress.
func (s *RequestStore) StartRequest(ctx context.Context, requestID string) error {
	return s.transition(ctx, requestID, models.StatusInProgress, lifecycle.CanStart)
}

// CompleteRequest closes an accepted request.
func (s *RequestStore) CompleteRequest(ctx context.Context, requestID string) error {
	return s.transition(ctx, requestID, models.StatusCompleted, lifecycle.CanComplete)
}

func (s *RequestStore) transition(
	ctx context.Context,
	requestID string,
	to models.RequestStatus,
	guard func(string, models.RequestStatus) lifecycle.GuardResult,
) error {
	var from models.RequestStatus
	err := s.storage.WithRequest(ctx, requestID, func(tx storage.RequestTx) error {
		from = tx.Request().Status
		if err := guard(requestID, from).Error(); err != nil {
			return err
		}
		return tx.SetStatus(to)
	})
	if err != nil {
		return err
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{RequestID: requestID, Component: "marketplace"})
	slog.InfoContext(ctx, "request status changed", "from", from, "to", to)
	return nil
}

func (s *RequestStore) GetRequest(ctx context.Context, requestID string) (*models.Request, error) {
	return s.storage.GetRequest(ctx, requestID)
}

// ListRequestsByRequester returns the requester's requests, newest first.
func (s *RequestStore) ListRequestsByRequester(ctx context.Context, requesterID string) ([]models.Request, error) {
	return s.storage.ListRequestsByRequester(ctx, requesterID)
}

// ListQuotes returns a point-in-time snapshot of the live quotes, newest first.
func (s *RequestStore) ListQuotes(ctx context.Context, requestID string) ([]models.Quote, error) {
	if _, err := s.storage.GetRequest(ctx, requestID); err != nil {
		return nil, err
	}
	return s.storage.ListQuotes(ctx, requestID)
}

// TrackingLink is the public URL of a request embedded in notifications.
func (s *RequestStore) TrackingLink(requestID string) string {
	return s.trackingBaseURL + requestID
}

// validateCatalog is a no-op when c is nil.
func validateCatalog(c Catalog, trade, specialty, zone string) error {
	if c == nil {
		return nil
	}
	if !c.ValidTrade(trade) {
		return apperr.Validation("unknown trade %q", trade)
	}
	if !c.ValidSpecialty(trade, specialty) {
		return apperr.Validation("unknown specialty %q for trade %q", specialty, trade)
	}
	if !c.ValidZone(zone) {
		return apperr.Validation("unknown zone %q", zone)
	}
	return nil
}

// nextQuoteTime returns now, bumped past last so quote createdAt values are
// strictly increasing per request.
func (s *RequestStore) nextQuoteTime(last time.Time) time.Time {
	t := s.now().UTC().Truncate(time.Microsecond)
	if !t.After(last) {
		t = last.UTC().Truncate(time.Microsecond).Add(time.Microsecond)
	}
	return t
}

func (s *RequestStore) emit(event models.Event) {
	if s.notifier == nil {
		return
	}
	s.notifier.Enqueue(event)
}

func requireFields(fields map[string]string) error {
	var missing []string
	for name, value := range fields {
		if value == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return apperr.Validation("missing required fields: %s", strings.Join(missing, ", "))
}

func hasQuoteFrom(quotes []models.Quote, providerID string) bool {
	for _, q := range quotes {
		if q.ProviderID == providerID {
			return true
		}
	}
	return false
}

func countSelected(quotes []models.Quote) int {
	n := 0
	for _, q := range quotes {
		if q.Selected {
			n++
		}
	}
	return n
}
