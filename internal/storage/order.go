package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/linemk/shop-bot/internal/domain/models"
)

var ErrOrderNotFound = errors.New("order not found")

// OrderStorage описывает методы для работы с заказами.
type OrderStorage interface {
	// CreateOrderTx вставляет заказ и возвращает его id и время создания.
	CreateOrderTx(ctx context.Context, tx *sql.Tx, order *models.Order) error
	CreateOrderLineTx(ctx context.Context, tx *sql.Tx, orderID int64, line models.OrderLine) error
	// LockOrderTx читает заказ с блокировкой строки для сравнения статуса.
	LockOrderTx(ctx context.Context, tx *sql.Tx, orderID int64) (*models.Order, error)
	UpdateStatusTx(ctx context.Context, tx *sql.Tx, orderID int64, status models.OrderStatus) error
	// ListOrders возвращает страницу заказов (новые сначала); пустой status — все заказы.
	ListOrders(ctx context.Context, status models.OrderStatus, limit, offset int) ([]*models.Order, error)
	CountOrders(ctx context.Context, status models.OrderStatus) (int, error)
	// GetOrdersByExternalID возвращает заказы пользователя в порядке создания.
	GetOrdersByExternalID(ctx context.Context, externalID int64) ([]*models.Order, error)
	// GetOrderLines одним запросом загружает строки для набора заказов.
	GetOrderLines(ctx context.Context, orderIDs []int64) (map[int64][]models.OrderLine, error)
}

type orderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) OrderStorage {
	return &orderRepository{db: db}
}

func (r *orderRepository) CreateOrderTx(ctx context.Context, tx *sql.Tx, order *models.Order) error {
	query := `INSERT INTO orders (user_id, total_amount, status, name, phone, address, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, NOW()) RETURNING id, created_at`
	err := tx.QueryRowContext(ctx, query,
		order.UserID, order.TotalAmount, string(order.Status), order.Name, order.Phone, order.Address,
	).Scan(&order.ID, &order.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

func (r *orderRepository) CreateOrderLineTx(ctx context.Context, tx *sql.Tx, orderID int64, line models.OrderLine) error {
	query := `INSERT INTO order_items (order_id, product_id, name_ru, name_uz, quantity, price)
	          VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := tx.ExecContext(ctx, query, orderID, line.ProductID, line.NameRU, line.NameUZ, line.Quantity, line.Price)
	if err != nil {
		return fmt.Errorf("failed to create order item: %w", err)
	}
	return nil
}

const orderColumns = "id, user_id, total_amount, status, created_at, name, phone, address"

func scanOrder(row rowScanner) (*models.Order, error) {
	o := &models.Order{}
	var status string
	if err := row.Scan(&o.ID, &o.UserID, &o.TotalAmount, &status, &o.CreatedAt, &o.Name, &o.Phone, &o.Address); err != nil {
		return nil, err
	}
	o.Status = models.OrderStatus(status)
	return o, nil
}

func (r *orderRepository) LockOrderTx(ctx context.Context, tx *sql.Tx, orderID int64) (*models.Order, error) {
	o, err := scanOrder(tx.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1 FOR UPDATE", orderID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return o, nil
}

func (r *orderRepository) UpdateStatusTx(ctx context.Context, tx *sql.Tx, orderID int64, status models.OrderStatus) error {
	res, err := tx.ExecContext(ctx, "UPDATE orders SET status = $1 WHERE id = $2", string(status), orderID)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *orderRepository) queryOrders(ctx context.Context, query string, args ...any) ([]*models.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *orderRepository) ListOrders(ctx context.Context, status models.OrderStatus, limit, offset int) ([]*models.Order, error) {
	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`
	return r.queryOrders(ctx, query, string(status), limit, offset)
}

func (r *orderRepository) CountOrders(ctx context.Context, status models.OrderStatus) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM orders WHERE ($1 = '' OR status = $1)", string(status)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return count, nil
}

func (r *orderRepository) GetOrdersByExternalID(ctx context.Context, externalID int64) ([]*models.Order, error) {
	query := `SELECT o.id, o.user_id, o.total_amount, o.status, o.created_at, o.name, o.phone, o.address
		FROM orders o
		JOIN users u ON u.id = o.user_id
		WHERE u.telegram_id = $1
		ORDER BY o.created_at, o.id`
	return r.queryOrders(ctx, query, externalID)
}

func (r *orderRepository) GetOrderLines(ctx context.Context, orderIDs []int64) (map[int64][]models.OrderLine, error) {
	result := make(map[int64][]models.OrderLine, len(orderIDs))
	if len(orderIDs) == 0 {
		return result, nil
	}
	query := `SELECT id, order_id, product_id, name_ru, name_uz, quantity, price
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, id`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(orderIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			l         models.OrderLine
			productID sql.NullInt64
		)
		if err := rows.Scan(&l.ID, &l.OrderID, &productID, &l.NameRU, &l.NameUZ, &l.Quantity, &l.Price); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		if productID.Valid {
			id := productID.Int64
			l.ProductID = &id
		}
		result[l.OrderID] = append(result[l.OrderID], l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
