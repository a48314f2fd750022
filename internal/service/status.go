package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/linemk/shop-bot/internal/domain/models"
	"github.com/linemk/shop-bot/internal/locale"
	"github.com/linemk/shop-bot/internal/storage"
)

// ChangeStatus читает статус с блокировкой, сравнивает и записывает новый в одной транзакции.
// Уведомление ставится в очередь только после коммита; его сбой не влияет на результат.
func (s *orderService) ChangeStatus(ctx context.Context, orderID int64, status models.OrderStatus) (models.OrderStatus, bool, error) {
	const op = "service.OrderService.ChangeStatus"
	logger := s.log.With(slog.String("op", op), slog.Int64("orderID", orderID), slog.String("status", string(status)))

	if _, ok := models.ParseOrderStatus(string(status)); !ok {
		return "", false, fmt.Errorf("%s: unknown status %q: %w", op, status, ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return "", false, fmt.Errorf("%s: failed to begin transaction: %w: %w", op, ErrStorage, err)
	}

	order, err := s.orderRepo.LockOrderTx(ctx, tx, orderID)
	if err != nil {
		rollback(tx, logger)
		if errors.Is(err, storage.ErrOrderNotFound) {
			logger.Warn("order not found")
			return "", false, fmt.Errorf("%s: %w: %w", op, ErrNotFound, err)
		}
		logger.Error("failed to lock order", slog.Any("error", err))
		return "", false, fmt.Errorf("%s: failed to lock order: %w: %w", op, ErrStorage, err)
	}
	previous := order.Status

	if previous == status {
		rollback(tx, logger)
		logger.Info("order already in requested status")
		return previous, false, nil
	}
	if !previous.CanTransitionTo(status) {
		rollback(tx, logger)
		logger.Warn("illegal status transition", slog.String("from", string(previous)))
		return previous, false, fmt.Errorf("%s: transition %s -> %s is not allowed: %w", op, previous, status, ErrInvalidInput)
	}

	if err := s.orderRepo.UpdateStatusTx(ctx, tx, orderID, status); err != nil {
		rollback(tx, logger)
		logger.Error("failed to update status", slog.Any("error", err))
		return "", false, fmt.Errorf("%s: failed to update status: %w: %w", op, ErrStorage, err)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return "", false, fmt.Errorf("%s: failed to commit transaction: %w: %w", op, ErrStorage, err)
	}
	logger.Info("order status changed", slog.String("from", string(previous)))

	s.notifyStatusChange(ctx, logger, order, status)
	return previous, true, nil
}

// notifyStatusChange ставит уведомление в очередь; ошибки только логируются
func (s *orderService) notifyStatusChange(ctx context.Context, logger *slog.Logger, order *models.Order, status models.OrderStatus) {
	if s.notifier == nil {
		return
	}
	user, err := s.userRepo.GetUserByID(ctx, order.UserID)
	if err != nil {
		logger.Warn("skip notification: user lookup failed", slog.Any("error", fmt.Errorf("%w: %w", ErrNotification, err)))
		return
	}
	if user.ExternalID == 0 {
		return
	}
	text := StatusChangedText(user.LanguageOrDefault(), order.ID, status)
	if err := s.notifier.Notify(ctx, user.ExternalID, text); err != nil {
		logger.Warn("failed to enqueue notification", slog.Any("error", fmt.Errorf("%w: %w", ErrNotification, err)))
	}
}

// StatusChangedText текст уведомления о смене статуса на языке пользователя
func StatusChangedText(lang models.Language, orderID int64, status models.OrderStatus) string {
	key := "status_" + string(status)
	if !locale.Has(lang, key) || !locale.Has(lang, "status_changed") {
		return fmt.Sprintf("status of your order №%d changed to: %s", orderID, status)
	}
	return locale.Textf(lang, "status_changed", locale.Data{"ID": orderID, "Status": locale.GetText(lang, key)})
}
