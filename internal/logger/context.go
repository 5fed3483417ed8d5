package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields are added to every record logged with a context carrying them.
type LogFields struct {
	RequestID  string // pedido id
	QuoteID    string // presupuesto id
	ProviderID string
	Identity   string // verified email of the caller
	Component  string // e.g. "marketplace", "notify.dispatcher"
}

// WithLogFields merges fields into the context; non-empty values win.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	merged := GetLogFields(ctx)
	if fields.RequestID != "" {
		merged.RequestID = fields.RequestID
	}
	if fields.QuoteID != "" {
		merged.QuoteID = fields.QuoteID
	}
	if fields.ProviderID != "" {
		merged.ProviderID = fields.ProviderID
	}
	if fields.Identity != "" {
		merged.Identity = fields.Identity
	}
	if fields.Component != "" {
		merged.Component = fields.Component
	}
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields returns the fields stored in ctx, or the zero value.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}
