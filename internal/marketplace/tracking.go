package marketplace

import (
	"context"
	"time"

	"prontoapp/backend/internal/models"
)

// TrackingView is the public page behind the link sent in notifications.
// It carries no contact data.
type TrackingView struct {
	RequestID   string               `json:"request_id"`
	Trade       string               `json:"trade"`
	Specialty   string               `json:"specialty"`
	Zone        string               `json:"zone"`
	Description string               `json:"description"`
	Status      models.RequestStatus `json:"status"`
	CreatedAt   time.Time            `json:"created_at"`
	Quotes      []TrackedQuote       `json:"quotes"`
}

type TrackedQuote struct {
	QuoteID           string    `json:"quote_id"`
	ProviderName      string    `json:"provider_name"`
	Amount            float64   `json:"amount"`
	Availability      string    `json:"availability"`
	EstimatedTime     string    `json:"estimated_time"`
	MaterialsIncluded bool      `json:"materials_included"`
	Selected          bool      `json:"selected"`
	CreatedAt         time.Time `json:"created_at"`
}

// Tracking builds the public view of a request and its live quotes.
func (s *RequestStore) Tracking(ctx context.Context, requestID string) (*TrackingView, error) {
	req, err := s.storage.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	quotes, err := s.storage.ListQuotes(ctx, requestID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(quotes))
	for _, q := range quotes {
		ids = append(ids, q.ProviderID)
	}
	providers, err := s.storage.GetProvidersByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(providers))
	for _, p := range providers {
		names[p.ID] = p.DisplayName
	}

	view := &TrackingView{
		RequestID:   req.ID,
		Trade:       req.Trade,
		Specialty:   req.Specialty,
		Zone:        req.Zone,
		Description: req.Description,
		Status:      req.Status,
		CreatedAt:   req.CreatedAt,
		Quotes:      make([]TrackedQuote, 0, len(quotes)),
	}
	for _, q := range quotes {
		view.Quotes = append(view.Quotes, TrackedQuote{
			QuoteID:           q.ID,
			ProviderName:      names[q.ProviderID],
			Amount:            q.Amount,
			Availability:      q.Availability,
			EstimatedTime:     q.EstimatedTime,
			MaterialsIncluded: q.MaterialsIncluded,
			Selected:          q.Selected,
			CreatedAt:         q.CreatedAt,
		})
	}
	return view, nil
}
