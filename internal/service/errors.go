package service

import (
	"database/sql"
	"errors"
	"log/slog"

	"github.com/lib/pq"

	"github.com/linemk/shop-bot/internal/storage"
)

// Ошибки сервисного слоя. Проверяются через errors.Is на границе (HTTP, диалог).
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrEmptyCart    = errors.New("cart is empty")
	ErrUnauthorized = errors.New("unauthorized")
	// ErrStorage — сбой хранилища; пользователю показывается только «попробуйте ещё раз»
	ErrStorage      = errors.New("storage error")
	ErrNotification = errors.New("notification failed")
)

// classify сводит ошибку хранилища к таксономии сервиса
func classify(err error) error {
	switch {
	case errors.Is(err, storage.ErrProductNotFound),
		errors.Is(err, storage.ErrOrderNotFound),
		errors.Is(err, storage.ErrCartLineNotFound),
		errors.Is(err, storage.ErrUserNotFound):
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "55P03", "40001", "40P01": // lock_not_available, serialization_failure, deadlock_detected
			return ErrStorage
		case "23503": // foreign_key_violation: ссылка на удалённую запись
			return ErrNotFound
		}
	}
	return ErrStorage
}

// rollback откатывает транзакцию и логирует ошибку отката
func rollback(tx *sql.Tx, logger *slog.Logger) {
	if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
		logger.Error("transaction rollback failed", slog.Any("error", rbErr))
	}
}
