// Package telegram announces new requests in a Telegram channel that
// providers follow.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"prontoapp/backend/internal/apperr"
	"prontoapp/backend/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender is the part of tgbotapi.BotAPI the announcer needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Announcer implements notify.Gateway for request_created events. Other
// event kinds are ignored; they are addressed to a requester, not the channel.
type Announcer struct {
	bot       Sender
	channelID int64
}

// NewAnnouncer authorizes the bot token against the Telegram API.
func NewAnnouncer(token string, channelID int64) (*Announcer, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	bot.Debug = false
	slog.Info("telegram bot authorized", "account", bot.Self.UserName)
	return NewAnnouncerWithSender(bot, channelID), nil
}

func NewAnnouncerWithSender(bot Sender, channelID int64) *Announcer {
	return &Announcer{bot: bot, channelID: channelID}
}

func (a *Announcer) Notify(ctx context.Context, event models.Event) error {
	if event.Kind != models.EventRequestCreated {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return apperr.Wrap(apperr.ErrDelivery, err, "announcement cancelled")
	}

	msg := tgbotapi.NewMessage(a.channelID, announcementText(event))
	sent, err := a.bot.Send(msg)
	if err != nil {
		return apperr.Wrap(apperr.ErrDelivery, err, "telegram rejected announcement for request %s", event.RequestID)
	}
	slog.DebugContext(ctx, "request announced", "telegram_message_id", sent.MessageID)
	return nil
}

// announcementText never includes the requester's contact data.
func announcementText(event models.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🆕 Nuevo pedido: %s", event.Trade)
	if event.Specialty != "" {
		fmt.Fprintf(&b, " / %s", event.Specialty)
	}
	fmt.Fprintf(&b, "\n📍 %s", event.Zone)
	if event.TrackingLink != "" {
		fmt.Fprintf(&b, "\n%s", event.TrackingLink)
	}
	return b.String()
}
