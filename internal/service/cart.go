package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/linemk/shop-bot/internal/domain/models"
	"github.com/linemk/shop-bot/internal/storage"
)

type CartService interface {
	// AddToCart увеличивает количество товара в корзине на delta и возвращает новое количество.
	// Пользователь создаётся, если его ещё нет.
	AddToCart(ctx context.Context, externalID, productID int64, delta int) (int, error)
	// Decrement уменьшает количество товара на единицу; при нуле строка удаляется.
	Decrement(ctx context.Context, externalID, productID int64) (int, error)
	// DecrementOrRemove выставляет количество строки корзины; значение <= 0 удаляет строку.
	DecrementOrRemove(ctx context.Context, externalID, cartLineID int64, newQuantity int) error
	GetCart(ctx context.Context, externalID int64) ([]models.CartLine, error)
	ClearCart(ctx context.Context, externalID int64) error
}

type cartService struct {
	log         *slog.Logger
	db          *sql.DB
	userRepo    storage.UserStorage
	productRepo storage.ProductStorage
	cartRepo    storage.CartStorage
}

func NewCartService(log *slog.Logger, db *sql.DB, userRepo storage.UserStorage, productRepo storage.ProductStorage, cartRepo storage.CartStorage) CartService {
	return &cartService{
		log:         log,
		db:          db,
		userRepo:    userRepo,
		productRepo: productRepo,
		cartRepo:    cartRepo,
	}
}

// AddToCart выполняется в одной транзакции: upsert пользователя (блокирует его строку,
// сериализуя с оформлением заказа), чтение товара FOR SHARE и атомарный upsert строки корзины.
func (s *cartService) AddToCart(ctx context.Context, externalID, productID int64, delta int) (int, error) {
	const op = "service.CartService.AddToCart"
	logger := s.log.With(slog.String("op", op), slog.Int64("externalID", externalID), slog.Int64("productID", productID))

	if delta <= 0 {
		return 0, fmt.Errorf("%s: delta must be positive: %w", op, ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return 0, fmt.Errorf("%s: failed to begin transaction: %w: %w", op, ErrStorage, err)
	}

	user, err := s.userRepo.EnsureUserTx(ctx, tx, externalID)
	if err != nil {
		rollback(tx, logger)
		logger.Error("failed to ensure user", slog.Any("error", err))
		return 0, fmt.Errorf("%s: failed to ensure user: %w: %w", op, classify(err), err)
	}

	if _, err := s.productRepo.GetProductByIDTx(ctx, tx, productID); err != nil {
		rollback(tx, logger)
		if errors.Is(err, storage.ErrProductNotFound) {
			logger.Warn("product not found")
			return 0, fmt.Errorf("%s: %w: %w", op, ErrNotFound, err)
		}
		logger.Error("failed to get product", slog.Any("error", err))
		return 0, fmt.Errorf("%s: failed to get product: %w: %w", op, ErrStorage, err)
	}

	quantity, err := s.cartRepo.AddItemTx(ctx, tx, user.ID, productID, delta)
	if err != nil {
		rollback(tx, logger)
		logger.Error("failed to add cart item", slog.Any("error", err))
		return 0, fmt.Errorf("%s: failed to add cart item: %w: %w", op, classify(err), err)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return 0, fmt.Errorf("%s: failed to commit transaction: %w: %w", op, ErrStorage, err)
	}

	logger.Debug("cart item added", slog.Int("quantity", quantity))
	return quantity, nil
}

func (s *cartService) Decrement(ctx context.Context, externalID, productID int64) (int, error) {
	const op = "service.CartService.Decrement"
	logger := s.log.With(slog.String("op", op), slog.Int64("externalID", externalID), slog.Int64("productID", productID))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return 0, fmt.Errorf("%s: failed to begin transaction: %w: %w", op, ErrStorage, err)
	}

	user, err := s.userRepo.LockUserByExternalIDTx(ctx, tx, externalID)
	if err != nil {
		rollback(tx, logger)
		if errors.Is(err, storage.ErrUserNotFound) {
			// нет пользователя — нет и корзины, уменьшать нечего
			return 0, nil
		}
		logger.Error("failed to lock user", slog.Any("error", err))
		return 0, fmt.Errorf("%s: failed to lock user: %w: %w", op, ErrStorage, err)
	}

	line, err := s.cartRepo.LockLineByProductTx(ctx, tx, user.ID, productID)
	if err != nil {
		rollback(tx, logger)
		if errors.Is(err, storage.ErrCartLineNotFound) {
			return 0, nil
		}
		logger.Error("failed to lock cart line", slog.Any("error", err))
		return 0, fmt.Errorf("%s: failed to lock cart line: %w: %w", op, ErrStorage, err)
	}

	quantity := line.Quantity - 1
	if err := s.setQuantityTx(ctx, tx, line.ID, quantity); err != nil {
		rollback(tx, logger)
		logger.Error("failed to update cart line", slog.Any("error", err))
		return 0, fmt.Errorf("%s: failed to update cart line: %w: %w", op, ErrStorage, err)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return 0, fmt.Errorf("%s: failed to commit transaction: %w: %w", op, ErrStorage, err)
	}
	return max(quantity, 0), nil
}

func (s *cartService) DecrementOrRemove(ctx context.Context, externalID, cartLineID int64, newQuantity int) error {
	const op = "service.CartService.DecrementOrRemove"
	logger := s.log.With(slog.String("op", op), slog.Int64("externalID", externalID), slog.Int64("cartLineID", cartLineID))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return fmt.Errorf("%s: failed to begin transaction: %w: %w", op, ErrStorage, err)
	}

	user, err := s.userRepo.LockUserByExternalIDTx(ctx, tx, externalID)
	if err != nil {
		rollback(tx, logger)
		return fmt.Errorf("%s: failed to lock user: %w: %w", op, classify(err), err)
	}

	// строка ищется вместе с владельцем: чужую строку изменить нельзя
	line, err := s.cartRepo.LockLineTx(ctx, tx, user.ID, cartLineID)
	if err != nil {
		rollback(tx, logger)
		return fmt.Errorf("%s: failed to lock cart line: %w: %w", op, classify(err), err)
	}

	if err := s.setQuantityTx(ctx, tx, line.ID, newQuantity); err != nil {
		rollback(tx, logger)
		logger.Error("failed to update cart line", slog.Any("error", err))
		return fmt.Errorf("%s: failed to update cart line: %w: %w", op, ErrStorage, err)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return fmt.Errorf("%s: failed to commit transaction: %w: %w", op, ErrStorage, err)
	}
	return nil
}

func (s *cartService) setQuantityTx(ctx context.Context, tx *sql.Tx, lineID int64, quantity int) error {
	if quantity <= 0 {
		return s.cartRepo.DeleteLineTx(ctx, tx, lineID)
	}
	return s.cartRepo.SetQuantityTx(ctx, tx, lineID, quantity)
}

func (s *cartService) GetCart(ctx context.Context, externalID int64) ([]models.CartLine, error) {
	const op = "service.CartService.GetCart"

	lines, err := s.cartRepo.GetCartByExternalID(ctx, externalID)
	if err != nil {
		s.log.With(slog.String("op", op)).Error("failed to get cart", slog.Int64("externalID", externalID), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
	}
	return lines, nil
}

func (s *cartService) ClearCart(ctx context.Context, externalID int64) error {
	const op = "service.CartService.ClearCart"
	logger := s.log.With(slog.String("op", op), slog.Int64("externalID", externalID))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return fmt.Errorf("%s: failed to begin transaction: %w: %w", op, ErrStorage, err)
	}

	user, err := s.userRepo.LockUserByExternalIDTx(ctx, tx, externalID)
	if err != nil {
		rollback(tx, logger)
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil
		}
		logger.Error("failed to lock user", slog.Any("error", err))
		return fmt.Errorf("%s: failed to lock user: %w: %w", op, ErrStorage, err)
	}

	if err := s.cartRepo.ClearCartTx(ctx, tx, user.ID); err != nil {
		rollback(tx, logger)
		logger.Error("failed to clear cart", slog.Any("error", err))
		return fmt.Errorf("%s: failed to clear cart: %w: %w", op, ErrStorage, err)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return fmt.Errorf("%s: failed to commit transaction: %w: %w", op, ErrStorage, err)
	}
	logger.Info("cart cleared")
	return nil
}
