// internal/infra/telegram/client.go
package telegram

import (
	"fmt"
	"net/http"
	"time"

	"gopkg.in/telebot.v3"
)

// TelebotAdapter implements the Client interface using the gopkg.in/telebot.v3 library.
type TelebotAdapter struct {
	bot *telebot.Bot
}

// NewBot creates the bot. With poll set it long-polls for commands once Start is called;
// otherwise it can only send.
func NewBot(token string, poll bool) (*telebot.Bot, error) {
	settings := telebot.Settings{
		Token:  token,
		Client: &http.Client{Timeout: 30 * time.Second},
	}
	if poll {
		settings.Poller = &telebot.LongPoller{Timeout: 10 * time.Second}
	}
	b, err := telebot.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("could not create Telegram bot: %w", err)
	}
	return b, nil
}

func NewTelebotAdapter(b *telebot.Bot) *TelebotAdapter {
	return &TelebotAdapter{bot: b}
}

// SendMessage sends a plain text message to the specified chat.
func (tba *TelebotAdapter) SendMessage(recipientChatID int64, text string) error {
	recipient := &telebot.Chat{ID: recipientChatID}
	_, err := tba.bot.Send(recipient, text, &telebot.SendOptions{DisableWebPagePreview: true})
	return err
}
