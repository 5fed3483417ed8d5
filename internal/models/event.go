package models

import "time"

// EventKind names a notification the core emits after a committed write.
type EventKind string

const (
	EventRequestCreated EventKind = "request_created"
	EventQuoteSubmitted EventKind = "quote_submitted"
)

// Event carries enough data to render a template message without another
// storage read.
type Event struct {
	Kind       EventKind
	OccurredAt time.Time

	RequestID      string
	RecipientPhone string
	// RecipientName fills template slot 1. For both kinds the recipient is the
	// requester, addressed by the contact email they left on the request.
	RecipientName string
	Trade         string
	Specialty     string
	Zone          string
	// TrackingLink is the public URL of the request.
	TrackingLink string

	// Set for EventQuoteSubmitted only.
	Quote *QuoteSummary
}

// QuoteSummary is the part of a quote shown in the "provider responded" template.
type QuoteSummary struct {
	QuoteID           string
	ProviderName      string
	Availability      string
	EstimatedTime     string
	MaterialsIncluded bool
	Amount            float64
}
