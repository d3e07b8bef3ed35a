package notifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramMessageLimit is the maximum length of a Telegram text message.
const TelegramMessageLimit = 4096

// TelegramSender is the part of the bot API the notifier uses.
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram sends messages to one chat through a bot.
type Telegram struct {
	api    TelegramSender
	chatID int64
	retry  *retryPolicy
}

// NewTelegram authenticates the bot token and targets chatID.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}
	if chatID == 0 {
		return nil, fmt.Errorf("telegram chat ID is required")
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("creating telegram bot: %w", err)
	}
	return NewTelegramWithSender(api, chatID), nil
}

// NewTelegramWithSender wraps an existing bot API client.
func NewTelegramWithSender(api TelegramSender, chatID int64) *Telegram {
	return &Telegram{api: api, chatID: chatID}
}

// WithRetry retries each sent part with backoff until maxElapsed.
func (t *Telegram) WithRetry(maxElapsed time.Duration) *Telegram {
	t.retry = newRetryPolicy(maxElapsed)
	return t
}

// Notify sends the message as plain text. Discord bold markers are removed.
func (t *Telegram) Notify(ctx context.Context, msg Message) error {
	text := strings.ReplaceAll(msg.Text, "**", "")
	for _, chunk := range SplitContent(text, TelegramMessageLimit) {
		if err := ctx.Err(); err != nil {
			return err
		}
		m := tgbotapi.NewMessage(t.chatID, chunk)
		m.DisableWebPagePreview = true
		err := t.retry.do(ctx, msg.Site, func() error {
			_, err := t.api.Send(m)
			var apiErr *tgbotapi.Error
			if errors.As(err, &apiErr) && apiErr.Code != 0 {
				return &StatusError{Code: apiErr.Code, Body: apiErr.Message}
			}
			return err
		})
		if err != nil {
			return fmt.Errorf("sending telegram message: %w", err)
		}
	}
	return nil
}
