package marketplace

import (
	"context"
	"errors"

	"prontoapp/backend/internal/apperr"
	"prontoapp/backend/internal/models"
	"prontoapp/backend/internal/storage"
)

// Standing is how a request looks from one provider's point of view.
type Standing string

const (
	StandingNew    Standing = "new"    // provider has not quoted yet
	StandingQuoted Standing = "quoted" // provider has a live quote
	StandingWon    Standing = "won"    // provider's quote was accepted
)

// BoardEntry is one row of a provider's board.
type BoardEntry struct {
	Request  models.Request `json:"request"`
	Standing Standing       `json:"standing"`
	QuoteID  string         `json:"quote_id,omitempty"`
}

// MatchingIndex answers which requests a provider sees and which providers
// serve a zone. It only reads.
type MatchingIndex struct {
	storage storage.Storage
}

func NewMatchingIndex(st storage.Storage) *MatchingIndex {
	return &MatchingIndex{storage: st}
}

// FindRequestsForProvider returns every request whose trade and zone equal
// the arguments, oldest first. No match is an empty slice, not an error.
func (m *MatchingIndex) FindRequestsForProvider(ctx context.Context, trade, zone string) ([]models.Request, error) {
	return m.storage.FindRequestsByTradeZone(ctx, trade, zone)
}

// FindProvidersForRequest returns the providers in zone, or all providers
// when zone is empty. Trade is not part of the predicate.
func (m *MatchingIndex) FindProvidersForRequest(ctx context.Context, zone string) ([]models.Provider, error) {
	return m.storage.ListProviders(ctx, zone)
}

// HasProviderQuoted reports whether providerID holds a live quote on requestID.
func (m *MatchingIndex) HasProviderQuoted(ctx context.Context, requestID, providerID string) (bool, error) {
	_, err := m.storage.FindQuoteByProvider(ctx, requestID, providerID)
	if errors.Is(err, apperr.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// StandingOf classifies a single request for a provider.
func (m *MatchingIndex) StandingOf(ctx context.Context, requestID, providerID string) (Standing, error) {
	q, err := m.storage.FindQuoteByProvider(ctx, requestID, providerID)
	if errors.Is(err, apperr.ErrNotFound) {
		return StandingNew, nil
	}
	if err != nil {
		return "", err
	}
	return standingFor(q), nil
}

// ProviderBoard lists the requests matching the provider's trade and zone,
// oldest first. Closed requests the provider never quoted on are left out.
func (m *MatchingIndex) ProviderBoard(ctx context.Context, providerID string) ([]BoardEntry, error) {
	provider, err := m.storage.GetProviderByID(ctx, providerID)
	if err != nil {
		return nil, err
	}
	requests, err := m.storage.FindRequestsByTradeZone(ctx, provider.Trade, provider.Zone)
	if err != nil {
		return nil, err
	}
	quotes, err := m.storage.ListProviderQuotes(ctx, providerID)
	if err != nil {
		return nil, err
	}

	byRequest := make(map[string]*models.Quote, len(quotes))
	for i := range quotes {
		byRequest[quotes[i].RequestID] = &quotes[i]
	}

	board := make([]BoardEntry, 0, len(requests))
	for _, req := range requests {
		q, quoted := byRequest[req.ID]
		if !quoted {
			if req.Status.IsTerminal() {
				continue
			}
			board = append(board, BoardEntry{Request: req, Standing: StandingNew})
			continue
		}
		board = append(board, BoardEntry{Request: req, Standing: standingFor(q), QuoteID: q.ID})
	}
	return board, nil
}

func standingFor(q *models.Quote) Standing {
	if q.Selected {
		return StandingWon
	}
	return StandingQuoted
}
