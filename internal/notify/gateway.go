package notify

import (
	"context"
	"errors"
	"log/slog"

	"prontoapp/backend/internal/apperr"
	"prontoapp/backend/internal/logger"
	"prontoapp/backend/internal/models"
)

// LogGateway writes rendered messages to the log instead of sending them.
// It is the gateway used when no messaging channel is configured.
type LogGateway struct{}

func (LogGateway) Notify(ctx context.Context, event models.Event) error {
	msg, err := Render(event)
	if err != nil {
		return apperr.Wrap(apperr.ErrDelivery, err, "cannot render %s", event.Kind)
	}
	slog.InfoContext(ctx, "notification (not sent)",
		"template", msg.Template,
		"to", msg.RecipientPhone,
		"variables", msg.Variables.Strings(),
	)
	return nil
}

// Multi delivers every event to all gateways and joins their errors.
type Multi []Gateway

func (m Multi) Notify(ctx context.Context, event models.Event) error {
	var errs []error
	for _, g := range m {
		if err := g.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// GatewayFunc adapts a function to Gateway.
type GatewayFunc func(ctx context.Context, event models.Event) error

func (f GatewayFunc) Notify(ctx context.Context, event models.Event) error {
	return f(ctx, event)
}

func eventContext(ctx context.Context, event models.Event) context.Context {
	fields := logger.LogFields{RequestID: event.RequestID, Component: "notify"}
	if event.Quote != nil {
		fields.QuoteID = event.Quote.QuoteID
	}
	return logger.WithLogFields(ctx, fields)
}
