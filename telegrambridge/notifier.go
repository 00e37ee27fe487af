package telegrambridge

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ChatLookup resolves a userID to its bound Telegram chat, if one exists.
type ChatLookup interface {
	TelegramChatID(userID string) (chatID int64, ok bool, err error)
}

// AlertPayload is the subset of alert.TriggerPayload the Telegram notifier
// needs; defined locally so this package doesn't import alert (push already
// owns that dependency, and telegrambridge stays a leaf).
type AlertPayload struct {
	Symbol       string
	TargetValue  float64
	CurrentPrice float64
	Condition    string
}

// Notifier is a second, best-effort trigger sender (main.go's fanoutEmitter
// calls it next to the Push Fabric): it delivers the same trigger the Push
// Fabric sends over websocket as a Telegram DM, for users who linked their
// chat via a one-time connect token.
type Notifier struct {
	bot    *tgbotapi.BotAPI
	lookup ChatLookup
}

func NewNotifier(bot *tgbotapi.BotAPI, lookup ChatLookup) *Notifier {
	return &Notifier{bot: bot, lookup: lookup}
}

// Notify sends userID a DM if (and only if) a chat is bound. Missing links
// and send failures are swallowed: Telegram delivery is supplemental, never
// the system of record for a trigger (the database row and the websocket
// push are).
func (n *Notifier) Notify(userID string, p AlertPayload) {
	chatID, ok, err := n.lookup.TelegramChatID(userID)
	if err != nil || !ok {
		return
	}

	text := fmt.Sprintf("%s crossed %s %.4f (now %.4f)", p.Symbol, p.Condition, p.TargetValue, p.CurrentPrice)
	_, _ = n.bot.Send(tgbotapi.NewMessage(chatID, text))
}
