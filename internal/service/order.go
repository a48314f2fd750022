package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/linemk/shop-bot/internal/checkout"
	"github.com/linemk/shop-bot/internal/domain/models"
	"github.com/linemk/shop-bot/internal/storage"
)

const MaxPerPage = 100

type OrderService interface {
	// CreateOrder превращает корзину пользователя в заказ. ErrEmptyCart, если заказывать нечего.
	CreateOrder(ctx context.Context, externalID int64, name, phone, address string) (*models.Order, error)
	// ChangeStatus меняет статус заказа. ok=false без ошибки, если статус уже такой.
	ChangeStatus(ctx context.Context, orderID int64, status models.OrderStatus) (models.OrderStatus, bool, error)
	// ListOrders возвращает страницу заказов (новые сначала) и общее число заказов с учётом фильтра.
	ListOrders(ctx context.Context, status models.OrderStatus, page, perPage int) ([]*models.Order, int, error)
	// UserOrders возвращает заказы пользователя в порядке оформления.
	UserOrders(ctx context.Context, externalID int64) ([]*models.Order, error)
}

// Notifier ставит уведомление пользователю в очередь и не ждёт его доставки.
type Notifier interface {
	Notify(ctx context.Context, externalID int64, text string) error
}

type orderService struct {
	log       *slog.Logger
	db        *sql.DB
	userRepo  storage.UserStorage
	cartRepo  storage.CartStorage
	orderRepo storage.OrderStorage
	notifier  Notifier
}

func NewOrderService(
	log *slog.Logger,
	db *sql.DB,
	userRepo storage.UserStorage,
	cartRepo storage.CartStorage,
	orderRepo storage.OrderStorage,
	notifier Notifier,
) OrderService {
	return &orderService{
		log:       log,
		db:        db,
		userRepo:  userRepo,
		cartRepo:  cartRepo,
		orderRepo: orderRepo,
		notifier:  notifier,
	}
}

// CreateOrder выполняется в одной транзакции:
// блокировка пользователя, чтение корзины, расчёт строк, сохранение профиля, заказа и строк,
// снятие признака первого заказа и очистка корзины.
// Блокировка строки пользователя сериализует оформление с AddToCart того же пользователя,
// FOR SHARE на товарах корзины не даёт поменять цену или удалить товар до фиксации заказа.
func (s *orderService) CreateOrder(ctx context.Context, externalID int64, name, phone, address string) (*models.Order, error) {
	const op = "service.OrderService.CreateOrder"
	logger := s.log.With(slog.String("op", op), slog.Int64("externalID", externalID))
	logger.Info("starting order transaction")

	name, phone, address = strings.TrimSpace(name), strings.TrimSpace(phone), strings.TrimSpace(address)
	if name == "" || phone == "" || address == "" {
		return nil, fmt.Errorf("%s: name, phone and address are required: %w", op, ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to begin transaction: %w: %w", op, ErrStorage, err)
	}

	user, err := s.userRepo.LockUserByExternalIDTx(ctx, tx, externalID)
	if err != nil {
		rollback(tx, logger)
		if errors.Is(err, storage.ErrUserNotFound) {
			// пользователь ещё ничего не добавлял
			return nil, fmt.Errorf("%s: %w", op, ErrEmptyCart)
		}
		logger.Error("failed to lock user", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to lock user: %w: %w", op, ErrStorage, err)
	}

	cart, err := s.cartRepo.GetCartTx(ctx, tx, user.ID)
	if err != nil {
		rollback(tx, logger)
		logger.Error("failed to get cart", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get cart: %w: %w", op, ErrStorage, err)
	}

	lines, total, isFirstUsage := checkout.ComputeCheckout(cart, user.IsFirstUsage)
	if len(lines) == 0 {
		rollback(tx, logger)
		logger.Info("cart is empty")
		return nil, fmt.Errorf("%s: %w", op, ErrEmptyCart)
	}

	if err := s.userRepo.UpdateProfileTx(ctx, tx, user.ID, name, phone, address); err != nil {
		rollback(tx, logger)
		logger.Error("failed to update profile", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to update profile: %w: %w", op, ErrStorage, err)
	}

	order := &models.Order{
		UserID:      user.ID,
		TotalAmount: total,
		Status:      models.OrderStatusNew,
		Name:        name,
		Phone:       phone,
		Address:     address,
	}
	if err := s.orderRepo.CreateOrderTx(ctx, tx, order); err != nil {
		rollback(tx, logger)
		logger.Error("failed to create order", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to create order: %w: %w", op, ErrStorage, err)
	}

	for _, line := range lines {
		if err := s.orderRepo.CreateOrderLineTx(ctx, tx, order.ID, line); err != nil {
			rollback(tx, logger)
			logger.Error("failed to create order line", slog.Any("error", err))
			return nil, fmt.Errorf("%s: failed to create order line: %w: %w", op, ErrStorage, err)
		}
	}

	if user.IsFirstUsage && !isFirstUsage {
		if err := s.userRepo.ConsumeFirstUsageTx(ctx, tx, user.ID); err != nil {
			rollback(tx, logger)
			logger.Error("failed to reset first usage", slog.Any("error", err))
			return nil, fmt.Errorf("%s: failed to reset first usage: %w: %w", op, ErrStorage, err)
		}
	}

	if err := s.cartRepo.ClearCartTx(ctx, tx, user.ID); err != nil {
		rollback(tx, logger)
		logger.Error("failed to clear cart", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to clear cart: %w: %w", op, ErrStorage, err)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to commit transaction: %w: %w", op, ErrStorage, err)
	}

	for i := range lines {
		lines[i].OrderID = order.ID
	}
	order.Lines = lines
	logger.Info("order created", slog.Int64("orderID", order.ID), slog.Int64("total", total))
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, status models.OrderStatus, page, perPage int) ([]*models.Order, int, error) {
	const op = "service.OrderService.ListOrders"
	logger := s.log.With(slog.String("op", op))

	if page < 1 || perPage < 1 || perPage > MaxPerPage {
		return nil, 0, fmt.Errorf("%s: invalid page %d/%d: %w", op, page, perPage, ErrInvalidInput)
	}
	if status != "" {
		if _, ok := models.ParseOrderStatus(string(status)); !ok {
			return nil, 0, fmt.Errorf("%s: unknown status %q: %w", op, status, ErrInvalidInput)
		}
	}

	total, err := s.orderRepo.CountOrders(ctx, status)
	if err != nil {
		logger.Error("failed to count orders", slog.Any("error", err))
		return nil, 0, fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
	}

	orders, err := s.orderRepo.ListOrders(ctx, status, perPage, (page-1)*perPage)
	if err != nil {
		logger.Error("failed to list orders", slog.Any("error", err))
		return nil, 0, fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
	}

	if err := s.attachLines(ctx, orders); err != nil {
		logger.Error("failed to load order lines", slog.Any("error", err))
		return nil, 0, fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
	}
	return orders, total, nil
}

func (s *orderService) UserOrders(ctx context.Context, externalID int64) ([]*models.Order, error) {
	const op = "service.OrderService.UserOrders"
	logger := s.log.With(slog.String("op", op), slog.Int64("externalID", externalID))

	orders, err := s.orderRepo.GetOrdersByExternalID(ctx, externalID)
	if err != nil {
		logger.Error("failed to get orders", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
	}
	if err := s.attachLines(ctx, orders); err != nil {
		logger.Error("failed to load order lines", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
	}
	return orders, nil
}

// attachLines подгружает строки всех заказов одним запросом
func (s *orderService) attachLines(ctx context.Context, orders []*models.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	lines, err := s.orderRepo.GetOrderLines(ctx, ids)
	if err != nil {
		return err
	}
	for _, o := range orders {
		o.Lines = lines[o.ID]
	}
	return nil
}
