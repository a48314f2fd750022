package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/linemk/shop-bot/internal/domain/models"
)

var ErrCartLineNotFound = errors.New("cart line not found")

// CartStorage описывает методы для работы с корзиной.
// Все изменения выполняются внутри транзакции сервиса.
type CartStorage interface {
	// AddItemTx атомарно увеличивает количество (или создаёт строку) и возвращает новое количество.
	AddItemTx(ctx context.Context, tx *sql.Tx, userID, productID int64, delta int) (int, error)
	LockLineTx(ctx context.Context, tx *sql.Tx, userID, lineID int64) (*models.CartLine, error)
	LockLineByProductTx(ctx context.Context, tx *sql.Tx, userID, productID int64) (*models.CartLine, error)
	SetQuantityTx(ctx context.Context, tx *sql.Tx, lineID int64, quantity int) error
	DeleteLineTx(ctx context.Context, tx *sql.Tx, lineID int64) error
	// GetCartByExternalID возвращает строки корзины вместе с текущей ценой товара.
	GetCartByExternalID(ctx context.Context, externalID int64) ([]models.CartLine, error)
	// GetCartTx читает корзину внутри транзакции, блокируя её строки и товары в ней.
	GetCartTx(ctx context.Context, tx *sql.Tx, userID int64) ([]models.CartLine, error)
	ClearCartTx(ctx context.Context, tx *sql.Tx, userID int64) error
}

type cartRepository struct {
	db *sql.DB
}

func NewCartRepository(db *sql.DB) CartStorage {
	return &cartRepository{db: db}
}

func (r *cartRepository) AddItemTx(ctx context.Context, tx *sql.Tx, userID, productID int64, delta int) (int, error) {
	query := `INSERT INTO cart (user_id, product_id, quantity) VALUES ($1, $2, $3)
	          ON CONFLICT (user_id, product_id) DO UPDATE SET quantity = cart.quantity + EXCLUDED.quantity
	          RETURNING quantity`
	var quantity int
	if err := tx.QueryRowContext(ctx, query, userID, productID, delta).Scan(&quantity); err != nil {
		return 0, fmt.Errorf("failed to add cart item: %w", err)
	}
	return quantity, nil
}

func (r *cartRepository) lockLine(ctx context.Context, tx *sql.Tx, query string, args ...any) (*models.CartLine, error) {
	line := &models.CartLine{}
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&line.ID, &line.UserID, &line.ProductID, &line.Quantity); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCartLineNotFound
		}
		return nil, err
	}
	return line, nil
}

func (r *cartRepository) LockLineTx(ctx context.Context, tx *sql.Tx, userID, lineID int64) (*models.CartLine, error) {
	return r.lockLine(ctx, tx,
		"SELECT id, user_id, product_id, quantity FROM cart WHERE id = $1 AND user_id = $2 FOR UPDATE",
		lineID, userID)
}

func (r *cartRepository) LockLineByProductTx(ctx context.Context, tx *sql.Tx, userID, productID int64) (*models.CartLine, error) {
	return r.lockLine(ctx, tx,
		"SELECT id, user_id, product_id, quantity FROM cart WHERE user_id = $1 AND product_id = $2 FOR UPDATE",
		userID, productID)
}

func (r *cartRepository) SetQuantityTx(ctx context.Context, tx *sql.Tx, lineID int64, quantity int) error {
	res, err := tx.ExecContext(ctx, "UPDATE cart SET quantity = $1 WHERE id = $2", quantity, lineID)
	if err != nil {
		return fmt.Errorf("failed to update cart item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrCartLineNotFound
	}
	return nil
}

func (r *cartRepository) DeleteLineTx(ctx context.Context, tx *sql.Tx, lineID int64) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM cart WHERE id = $1", lineID); err != nil {
		return fmt.Errorf("failed to delete cart item: %w", err)
	}
	return nil
}

// товар присоединяется через LEFT JOIN: строка, ссылающаяся на удалённый товар, не ломает выборку
const cartSelect = `
	SELECT c.id, c.user_id, c.product_id, COALESCE(p.name_ru, ''), COALESCE(p.name_uz, ''),
	       COALESCE(p.price, 0), COALESCE(p.is_promo, FALSE), c.quantity, p.id IS NOT NULL
	FROM cart c
	LEFT JOIN products p ON p.id = c.product_id`

func scanCartLines(rows *sql.Rows) ([]models.CartLine, error) {
	var lines []models.CartLine
	for rows.Next() {
		var l models.CartLine
		if err := rows.Scan(&l.ID, &l.UserID, &l.ProductID, &l.NameRU, &l.NameUZ, &l.Price, &l.IsPromo, &l.Quantity, &l.Available); err != nil {
			return nil, fmt.Errorf("failed to scan cart line: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *cartRepository) GetCartByExternalID(ctx context.Context, externalID int64) ([]models.CartLine, error) {
	query := cartSelect + `
	JOIN users u ON u.id = c.user_id
	WHERE u.telegram_id = $1
	ORDER BY c.id`
	rows, err := r.db.QueryContext(ctx, query, externalID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cart: %w", err)
	}
	defer rows.Close()
	return scanCartLines(rows)
}

// GetCartTx сначала берёт FOR SHARE на товары корзины: FOR SHARE нельзя применить к
// nullable-стороне LEFT JOIN, поэтому блокировка идёт отдельным запросом. Цена и промо-признак,
// прочитанные следом, не меняются и товар не удаляется до конца транзакции.
func (r *cartRepository) GetCartTx(ctx context.Context, tx *sql.Tx, userID int64) ([]models.CartLine, error) {
	lockQuery := `SELECT p.id FROM products p
	              WHERE p.id IN (SELECT product_id FROM cart WHERE user_id = $1)
	              ORDER BY p.id
	              FOR SHARE OF p`
	if _, err := tx.ExecContext(ctx, lockQuery, userID); err != nil {
		return nil, fmt.Errorf("failed to lock cart products: %w", err)
	}

	query := cartSelect + `
	WHERE c.user_id = $1
	ORDER BY c.id
	FOR UPDATE OF c`
	rows, err := tx.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cart: %w", err)
	}
	defer rows.Close()
	return scanCartLines(rows)
}

func (r *cartRepository) ClearCartTx(ctx context.Context, tx *sql.Tx, userID int64) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM cart WHERE user_id = $1", userID); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}
