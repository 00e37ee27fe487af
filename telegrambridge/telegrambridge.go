// Package telegrambridge wires the Telegram "Start" deep-link event to
// linktoken.Consume: a user taps a bot deep link carrying a one-time
// connect token, the bot resolves it to a userID, and that Telegram chat
// is now bound to the account for alert delivery.
package telegrambridge

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"priceguard/logger"
)

// TokenConsumer is the linktoken half of the contract; linktoken.Issuer
// satisfies it directly.
type TokenConsumer interface {
	Consume(token string) (userID string, err error)
}

// Linker records the outcome of a successful Start event: which Telegram
// chat is now linked to which userID. Left to the caller (bootstrap) to
// persist; linktoken itself only knows create/consume, not what a consumer
// does with the resolved userID.
type Linker interface {
	LinkTelegramChat(userID string, chatID int64) error
}

// Bridge owns the long-lived Telegram getUpdates loop.
type Bridge struct {
	bot      *tgbotapi.BotAPI
	consumer TokenConsumer
	linker   Linker
	log      zerolog.Logger
}

// New connects to the Telegram Bot API with token and returns a Bridge ready
// to Run. Connecting here (rather than lazily) fails the bootstrap hook
// immediately on a bad token instead of deferring the failure to first use.
func New(token string, consumer TokenConsumer, linker Linker) (*Bridge, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &Bridge{bot: bot, consumer: consumer, linker: linker, log: logger.Named("telegrambridge")}, nil
}

// Bot exposes the underlying client so a Notifier can share the same
// connection rather than opening a second one.
func (b *Bridge) Bot() *tgbotapi.BotAPI { return b.bot }

// Run blocks, consuming the bot's update long-poll until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30

	updates := b.bot.GetUpdatesChan(cfg)
	defer b.bot.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.handleUpdate(update)
		}
	}
}

// handleUpdate handles the "press Start" event: /start <token> resolves the
// connect token to a userID and binds the chat to it. Any other message is
// ignored; this bridge has no other command surface.
func (b *Bridge) handleUpdate(update tgbotapi.Update) {
	if update.Message == nil || !update.Message.IsCommand() {
		return
	}
	if update.Message.Command() != "start" {
		return
	}

	token := strings.TrimSpace(update.Message.CommandArguments())
	if token == "" {
		b.reply(update.Message.Chat.ID, "Send the link from the app to connect your account.")
		return
	}

	userID, err := b.consumer.Consume(token)
	if err != nil {
		b.log.Warn().Err(err).Msg("telegram start: token consume failed")
		b.reply(update.Message.Chat.ID, "That link has expired or was already used. Request a new one from the app.")
		return
	}

	if err := b.linker.LinkTelegramChat(userID, update.Message.Chat.ID); err != nil {
		b.log.Error().Err(err).Str("userID", userID).Msg("telegram start: link persist failed")
		b.reply(update.Message.Chat.ID, "Something went wrong linking your account. Try again.")
		return
	}

	b.reply(update.Message.Chat.ID, "Your account is now connected. You'll receive alert notifications here.")
}

func (b *Bridge) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.bot.Send(msg); err != nil {
		b.log.Warn().Err(err).Msg("telegram reply send failed")
	}
}
