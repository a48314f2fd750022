package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/linemk/shop-bot/internal/domain/models"
	"github.com/linemk/shop-bot/internal/storage"
)

type CatalogService interface {
	ListProducts(ctx context.Context) ([]*models.Product, error)
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	CreateProduct(ctx context.Context, p *models.Product) (int64, error)
	UpdateProduct(ctx context.Context, id int64, patch models.ProductPatch) error
	DeleteProduct(ctx context.Context, id int64) error
}

// sharedReadTimeout ограничивает общий запрос, который больше не зависит от отмены вызвавшего
const sharedReadTimeout = 5 * time.Second

type catalogService struct {
	log         *slog.Logger
	productRepo storage.ProductStorage
	// одновременные чтения одного товара (нажатия +/- у многих пользователей) схлопываются в один запрос
	group singleflight.Group
}

func NewCatalogService(log *slog.Logger, productRepo storage.ProductStorage) CatalogService {
	return &catalogService{log: log, productRepo: productRepo}
}

func (s *catalogService) ListProducts(ctx context.Context) ([]*models.Product, error) {
	const op = "service.CatalogService.ListProducts"

	v, err := s.shared(ctx, "products", func(ctx context.Context) (any, error) {
		return s.productRepo.ListProducts(ctx)
	})
	if err != nil {
		s.log.With(slog.String("op", op)).Error("failed to list products", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
	}
	return v.([]*models.Product), nil
}

func (s *catalogService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	const op = "service.CatalogService.GetProduct"

	v, err := s.shared(ctx, "product:"+strconv.FormatInt(id, 10), func(ctx context.Context) (any, error) {
		return s.productRepo.GetProductByID(ctx, id)
	})
	if err != nil {
		kind := classify(err)
		if kind == ErrStorage {
			s.log.With(slog.String("op", op)).Error("failed to get product", slog.Int64("productID", id), slog.Any("error", err))
		}
		return nil, fmt.Errorf("%s: %w: %w", op, kind, err)
	}
	return v.(*models.Product), nil
}

// shared выполняет чтение один раз для всех одновременных вызовов с тем же ключом.
// Отмена контекста одного вызывающего не обрывает запрос остальных: он ждёт только свой ctx.
func (s *catalogService) shared(ctx context.Context, key string, read func(context.Context) (any, error)) (any, error) {
	ch := s.group.DoChan(key, func() (any, error) {
		readCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedReadTimeout)
		defer cancel()
		return read(readCtx)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func validateProduct(p *models.Product) error {
	if strings.TrimSpace(p.NameRU) == "" || strings.TrimSpace(p.NameUZ) == "" {
		return fmt.Errorf("product name is required: %w", ErrInvalidInput)
	}
	if p.Price < 0 {
		return fmt.Errorf("price must be non-negative: %w", ErrInvalidInput)
	}
	return nil
}

func (s *catalogService) CreateProduct(ctx context.Context, p *models.Product) (int64, error) {
	const op = "service.CatalogService.CreateProduct"
	logger := s.log.With(slog.String("op", op))

	if err := validateProduct(p); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	id, err := s.productRepo.CreateProduct(ctx, p)
	if err != nil {
		logger.Error("failed to create product", slog.Any("error", err))
		return 0, fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
	}
	logger.Info("product created", slog.Int64("productID", id))
	return id, nil
}

func (s *catalogService) UpdateProduct(ctx context.Context, id int64, patch models.ProductPatch) error {
	const op = "service.CatalogService.UpdateProduct"
	logger := s.log.With(slog.String("op", op), slog.Int64("productID", id))

	if patch.Empty() {
		return fmt.Errorf("%s: empty patch: %w", op, ErrInvalidInput)
	}
	if patch.Price != nil && *patch.Price < 0 {
		return fmt.Errorf("%s: price must be non-negative: %w", op, ErrInvalidInput)
	}
	for _, name := range []*string{patch.NameRU, patch.NameUZ} {
		if name != nil && strings.TrimSpace(*name) == "" {
			return fmt.Errorf("%s: product name is required: %w", op, ErrInvalidInput)
		}
	}
	if err := s.productRepo.UpdateProduct(ctx, id, patch); err != nil {
		kind := classify(err)
		if kind == ErrStorage {
			logger.Error("failed to update product", slog.Any("error", err))
		}
		return fmt.Errorf("%s: %w: %w", op, kind, err)
	}
	logger.Info("product updated")
	return nil
}

// DeleteProduct удаляет товар из каталога. Строки заказов сохраняют снимок названия и цены,
// строки корзин начинают отображаться как «неизвестный товар».
func (s *catalogService) DeleteProduct(ctx context.Context, id int64) error {
	const op = "service.CatalogService.DeleteProduct"
	logger := s.log.With(slog.String("op", op), slog.Int64("productID", id))

	if err := s.productRepo.DeleteProduct(ctx, id); err != nil {
		kind := classify(err)
		if kind == ErrStorage {
			logger.Error("failed to delete product", slog.Any("error", err))
		}
		return fmt.Errorf("%s: %w: %w", op, kind, err)
	}
	logger.Info("product deleted")
	return nil
}
