// Package notify delivers marketplace events to external messaging channels.
// The core hands events to a Dispatcher after its write has committed;
// gateways render and send them.
package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"prontoapp/backend/internal/models"
)

// Gateway delivers one event. Errors are apperr.ErrDelivery kinds.
type Gateway interface {
	Notify(ctx context.Context, event models.Event) error
}

// TemplateID names one of the two fixed message templates.
type TemplateID string

const (
	TemplateRequestCreated TemplateID = "request_created" // pedido_recibido
	TemplateQuoteResponse  TemplateID = "quote_response"  // proveedor_respuesta
)

// Variables maps template slot positions (1-based) to values.
type Variables map[int]string

// Message is a rendered template ready for a messaging provider.
type Message struct {
	RecipientPhone string
	Template       TemplateID
	Variables      Variables
}

// Render fills the template slots for an event.
//
//	1-4  recipient name, trade, specialty, zone
//	5-10 provider name, availability, estimated time, materials ("Sí"/"No"),
//	     budget, tracking link (quote responses only)
func Render(event models.Event) (Message, error) {
	vars := Variables{
		1: event.RecipientName,
		2: event.Trade,
		3: event.Specialty,
		4: event.Zone,
	}

	switch event.Kind {
	case models.EventRequestCreated:
		return Message{RecipientPhone: event.RecipientPhone, Template: TemplateRequestCreated, Variables: vars}, nil

	case models.EventQuoteSubmitted:
		if event.Quote == nil {
			return Message{}, fmt.Errorf("quote_submitted event for request %s has no quote", event.RequestID)
		}
		vars[5] = orDash(event.Quote.ProviderName)
		vars[6] = orDash(event.Quote.Availability)
		vars[7] = orDash(event.Quote.EstimatedTime)
		vars[8] = yesNo(event.Quote.MaterialsIncluded)
		vars[9] = FormatBudget(event.Quote.Amount)
		vars[10] = event.TrackingLink
		return Message{RecipientPhone: event.RecipientPhone, Template: TemplateQuoteResponse, Variables: vars}, nil

	default:
		return Message{}, fmt.Errorf("unknown event kind %q", event.Kind)
	}
}

// FormatBudget renders an amount as "$5000" or "$5000.5".
func FormatBudget(amount float64) string {
	return "$" + strconv.FormatFloat(amount, 'f', -1, 64)
}

// orDash fills optional quote fields; templates refuse empty variables.
func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "Sí"
	}
	return "No"
}

// Strings returns the variables keyed by their decimal position, the shape
// messaging APIs expect.
func (v Variables) Strings() map[string]string {
	out := make(map[string]string, len(v))
	for pos, val := range v {
		out[strconv.Itoa(pos)] = val
	}
	return out
}
