package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/linemk/shop-bot/internal/conversation"
)

// SecretHeader — заголовок, которым Telegram подписывает webhook
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

type EventDispatcher interface {
	Dispatch(ctx context.Context, ev conversation.Event) (conversation.Reply, error)
}

// BotEventsHandler обрабатывает POST /api/bot/events: событие от транспорта бота → ответ для отрисовки.
// Пустой secret отключает проверку заголовка.
func BotEventsHandler(log *slog.Logger, dispatcher EventDispatcher, secret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.BotEventsHandler"
		logger := log.With(slog.String("op", op))

		if secret != "" && subtle.ConstantTimeCompare([]byte(r.Header.Get(SecretHeader)), []byte(secret)) != 1 {
			logger.Warn("bad webhook secret")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var ev conversation.Event
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			logger.Error("invalid request: decoding error", slog.Any("error", err))
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(ev); err != nil {
			logger.Error("invalid request: validation error", slog.Any("error", err))
			http.Error(w, "validation error", http.StatusBadRequest)
			return
		}

		reply, err := dispatcher.Dispatch(r.Context(), ev)
		if err != nil {
			// ответ всё равно отдаём: в нём сообщение «попробуйте ещё раз»
			logger.Error("failed to dispatch event", slog.Any("error", err), slog.Int64("userID", ev.UserID))
			writeJSON(w, logger, http.StatusServiceUnavailable, reply)
			return
		}
		writeJSON(w, logger, http.StatusOK, reply)
	}
}
