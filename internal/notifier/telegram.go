// Package notifier доставляет пользователям сообщения о смене статуса заказа.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-telegram/bot"
)

// Sender отправляет одно сообщение в канал уведомлений
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

var ErrRejected = errors.New("message rejected by bot api")

// TelegramClient отправляет сообщения через Bot API (метод sendMessage).
type TelegramClient struct {
	bot   *bot.Bot
	token string
}

// NewTelegramClient создаёт клиента без проверочного getMe: сеть при старте не нужна.
func NewTelegramClient(apiURL, token string, timeout time.Duration) (*TelegramClient, error) {
	b, err := bot.New(token,
		bot.WithSkipGetMe(),
		bot.WithServerURL(strings.TrimRight(apiURL, "/")),
		bot.WithHTTPClient(timeout, &http.Client{Timeout: timeout}),
	)
	if err != nil {
		return nil, fmt.Errorf("create bot client: %w", redact(err, token))
	}
	return &TelegramClient{bot: b, token: token}, nil
}

func (c *TelegramClient) Send(ctx context.Context, chatID int64, text string) error {
	_, err := c.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err == nil {
		return nil
	}
	if isRejected(err) {
		return fmt.Errorf("%w: %w", ErrRejected, redact(err, c.token))
	}
	// в ошибке транспорта может оказаться URL с токеном
	return fmt.Errorf("send message: %w", redact(err, c.token))
}

// isRejected отделяет окончательный отказ Bot API от временных сбоев
func isRejected(err error) bool {
	return errors.Is(err, bot.ErrorForbidden) ||
		errors.Is(err, bot.ErrorBadRequest) ||
		errors.Is(err, bot.ErrorUnauthorized) ||
		errors.Is(err, bot.ErrorNotFound)
}

func redact(err error, token string) error {
	if token == "" || !strings.Contains(err.Error(), token) {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), token, "***"))
}
