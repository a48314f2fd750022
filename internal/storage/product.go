package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/linemk/shop-bot/internal/domain/models"
)

var ErrProductNotFound = errors.New("product not found")

// ProductStorage описывает методы для работы с каталогом.
type ProductStorage interface {
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	// GetProductByIDTx читает товар с FOR SHARE, чтобы удаление не прошло параллельно с добавлением в корзину.
	GetProductByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Product, error)
	ListProducts(ctx context.Context) ([]*models.Product, error)
	CreateProduct(ctx context.Context, p *models.Product) (int64, error)
	// UpdateProduct меняет только заданные в patch поля
	UpdateProduct(ctx context.Context, id int64, patch models.ProductPatch) error
	DeleteProduct(ctx context.Context, id int64) error
}

type productRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) ProductStorage {
	return &productRepository{db: db}
}

const productColumns = "id, name_ru, name_uz, description_ru, description_uz, price, is_promo, photo_id"

func scanProduct(row rowScanner) (*models.Product, error) {
	p := &models.Product{}
	if err := row.Scan(&p.ID, &p.NameRU, &p.NameUZ, &p.DescriptionRU, &p.DescriptionUZ, &p.Price, &p.IsPromo, &p.PhotoID); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *productRepository) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx, "SELECT "+productColumns+" FROM products WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *productRepository) GetProductByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Product, error) {
	p, err := scanProduct(tx.QueryRowContext(ctx, "SELECT "+productColumns+" FROM products WHERE id = $1 FOR SHARE", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *productRepository) ListProducts(ctx context.Context) ([]*models.Product, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+productColumns+" FROM products ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []*models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (r *productRepository) CreateProduct(ctx context.Context, p *models.Product) (int64, error) {
	var id int64
	query := `INSERT INTO products (name_ru, name_uz, description_ru, description_uz, price, is_promo, photo_id)
	          VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	err := r.db.QueryRowContext(ctx, query,
		p.NameRU, p.NameUZ, p.DescriptionRU, p.DescriptionUZ, p.Price, p.IsPromo, p.PhotoID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create product: %w", err)
	}
	return id, nil
}

func (r *productRepository) UpdateProduct(ctx context.Context, id int64, patch models.ProductPatch) error {
	query := `UPDATE products SET
	              name_ru = COALESCE($1, name_ru),
	              name_uz = COALESCE($2, name_uz),
	              description_ru = COALESCE($3, description_ru),
	              description_uz = COALESCE($4, description_uz),
	              price = COALESCE($5, price),
	              is_promo = COALESCE($6, is_promo),
	              photo_id = COALESCE($7, photo_id)
	          WHERE id = $8`
	res, err := r.db.ExecContext(ctx, query,
		patch.NameRU, patch.NameUZ, patch.DescriptionRU, patch.DescriptionUZ,
		patch.Price, patch.IsPromo, patch.PhotoID, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *productRepository) DeleteProduct(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrProductNotFound
	}
	return nil
}
