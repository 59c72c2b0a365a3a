package telegram

import "gopkg.in/telebot.v3"

// Client defines an interface for sending and deleting messages via a Telegram bot.
// Services depend on it instead of on telebot directly.
type Client interface {
	// SendMessage delivers text to the chat and returns the id of the sent message.
	SendMessage(recipientChatID int64, text string, options *telebot.SendOptions) (int, error)
	DeleteMessage(chatID int64, messageID int) error
}

// Unique identifiers of the inline buttons attached to mirrored reminders.
// The button payload is the id the handler acts on.
const (
	CallbackPayContribution     = "equb_pay"     // payload: contribution id
	CallbackDismissNotification = "equb_dismiss" // payload: notification id
)
