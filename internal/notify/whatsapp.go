package notify

import (
	"context"
	"encoding/json"
	"strings"

	"prontoapp/backend/internal/apperr"
	"prontoapp/backend/internal/config"
	"prontoapp/backend/internal/models"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// MessageCreator is the slice of the Twilio REST API the gateway uses.
type MessageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// WhatsAppGateway sends template messages through Twilio's WhatsApp channel.
type WhatsAppGateway struct {
	api       MessageCreator
	from      string
	templates map[TemplateID]string // template id -> Twilio content SID
}

// NewWhatsAppGateway builds a gateway backed by a Twilio REST client.
func NewWhatsAppGateway(cfg config.TwilioConfig) *WhatsAppGateway {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return NewWhatsAppGatewayWithAPI(client.Api, cfg)
}

func NewWhatsAppGatewayWithAPI(api MessageCreator, cfg config.TwilioConfig) *WhatsAppGateway {
	return &WhatsAppGateway{
		api:  api,
		from: whatsappAddress(cfg.From),
		templates: map[TemplateID]string{
			TemplateRequestCreated: cfg.RequestCreatedContent,
			TemplateQuoteResponse:  cfg.QuoteResponseContent,
		},
	}
}

func (g *WhatsAppGateway) Notify(ctx context.Context, event models.Event) error {
	msg, err := Render(event)
	if err != nil {
		return apperr.Wrap(apperr.ErrDelivery, err, "cannot render %s", event.Kind)
	}
	if msg.RecipientPhone == "" {
		return apperr.New(apperr.ErrDelivery, "request %s has no recipient phone", event.RequestID)
	}
	contentSID := g.templates[msg.Template]
	if contentSID == "" {
		return apperr.New(apperr.ErrDelivery, "no content template configured for %s", msg.Template)
	}

	vars, err := json.Marshal(msg.Variables.Strings())
	if err != nil {
		return apperr.Wrap(apperr.ErrDelivery, err, "cannot encode template variables")
	}

	params := &openapi.CreateMessageParams{}
	params.SetTo(whatsappAddress(msg.RecipientPhone))
	params.SetFrom(g.from)
	params.SetContentSid(contentSID)
	params.SetContentVariables(string(vars))

	if err := ctx.Err(); err != nil {
		return apperr.Wrap(apperr.ErrDelivery, err, "delivery cancelled")
	}
	if _, err := g.api.CreateMessage(params); err != nil {
		return apperr.Wrap(apperr.ErrDelivery, err, "twilio rejected %s message", msg.Template)
	}
	return nil
}

// whatsappAddress prefixes a phone number with the channel scheme if needed.
func whatsappAddress(phone string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" || strings.HasPrefix(phone, "whatsapp:") {
		return phone
	}
	return "whatsapp:" + phone
}

// Compile-time check.
var _ MessageCreator = (*openapi.ApiService)(nil)
