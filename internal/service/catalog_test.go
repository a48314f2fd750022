package service_test

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linemk/shop-bot/internal/domain/models"
	"github.com/linemk/shop-bot/internal/service"
	"github.com/linemk/shop-bot/internal/storage"
)

func TestCatalogService_CreateAndGet(t *testing.T) {
	store := newFakeStore()
	svc := service.NewCatalogService(discardLogger(), fakeProductRepo{store})

	id, err := svc.CreateProduct(context.Background(), &models.Product{NameRU: "Чай", NameUZ: "Choy", Price: 100, IsPromo: true})
	require.NoError(t, err)

	p, err := svc.GetProduct(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Choy", p.Name(models.LanguageUZ))
	assert.True(t, p.IsPromo)
}

func TestCatalogService_CreateProduct_Validation(t *testing.T) {
	svc := service.NewCatalogService(discardLogger(), fakeProductRepo{newFakeStore()})

	_, err := svc.CreateProduct(context.Background(), &models.Product{NameRU: "Чай", Price: 100})
	assert.ErrorIs(t, err, service.ErrInvalidInput)

	_, err = svc.CreateProduct(context.Background(), &models.Product{NameRU: "Чай", NameUZ: "Choy", Price: -1})
	assert.ErrorIs(t, err, service.ErrInvalidInput)
}

func TestCatalogService_GetProduct_NotFound(t *testing.T) {
	svc := service.NewCatalogService(discardLogger(), fakeProductRepo{newFakeStore()})

	_, err := svc.GetProduct(context.Background(), 1)
	assert.ErrorIs(t, err, service.ErrNotFound)
	assert.ErrorIs(t, err, storage.ErrProductNotFound)
}

func TestCatalogService_UpdateProduct(t *testing.T) {
	store := newFakeStore()
	svc := service.NewCatalogService(discardLogger(), fakeProductRepo{store})
	id := store.addProduct(models.Product{NameRU: "Чай", NameUZ: "Choy", Price: 100})

	price := int64(250)
	require.NoError(t, svc.UpdateProduct(context.Background(), id, models.ProductPatch{Price: &price}))
	assert.Equal(t, int64(250), store.products[id].Price)
	assert.Equal(t, "Чай", store.products[id].NameRU, "untouched fields keep their values")

	assert.ErrorIs(t, svc.UpdateProduct(context.Background(), id, models.ProductPatch{}), service.ErrInvalidInput)

	negative := int64(-5)
	assert.ErrorIs(t, svc.UpdateProduct(context.Background(), id, models.ProductPatch{Price: &negative}), service.ErrInvalidInput)

	assert.ErrorIs(t, svc.UpdateProduct(context.Background(), 999, models.ProductPatch{Price: &price}), service.ErrNotFound)
}

func TestCatalogService_DeleteProduct_NotFound(t *testing.T) {
	svc := service.NewCatalogService(discardLogger(), fakeProductRepo{newFakeStore()})
	assert.ErrorIs(t, svc.DeleteProduct(context.Background(), 5), service.ErrNotFound)
}

func TestCatalogService_ListProducts_StorageError(t *testing.T) {
	store := newFakeStore()
	store.failOn["ListProducts"] = true
	svc := service.NewCatalogService(discardLogger(), fakeProductRepo{store})

	_, err := svc.ListProducts(context.Background())
	assert.ErrorIs(t, err, service.ErrStorage)
}

// countingProductRepo считает обращения к хранилищу и держит запрос, пока не отпустят
type countingProductRepo struct {
	fakeProductRepo
	calls   atomic.Int32
	release chan struct{}
}

func (r *countingProductRepo) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	r.calls.Add(1)
	select {
	case <-r.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return r.fakeProductRepo.GetProductByID(ctx, id)
}

func TestCatalogService_GetProduct_CollapsesConcurrentReads(t *testing.T) {
	store := newFakeStore()
	id := store.addProduct(models.Product{NameRU: "Чай", NameUZ: "Choy", Price: 100})
	repo := &countingProductRepo{fakeProductRepo: fakeProductRepo{store}, release: make(chan struct{})}
	svc := service.NewCatalogService(discardLogger(), repo)

	const readers = 10
	var (
		wg      sync.WaitGroup
		started sync.WaitGroup
	)
	started.Add(readers)
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			started.Done()
			p, err := svc.GetProduct(context.Background(), id)
			assert.NoError(t, err)
			assert.Equal(t, id, p.ID)
		}()
	}
	started.Wait()
	// первый запрос уже в хранилище, остальные ждут его результата
	for repo.calls.Load() == 0 {
		runtime.Gosched()
	}
	time.Sleep(50 * time.Millisecond)
	close(repo.release)
	wg.Wait()

	assert.Less(t, repo.calls.Load(), int32(readers))
}

func TestCatalogService_GetProduct_CancelledCallerDoesNotFailOthers(t *testing.T) {
	store := newFakeStore()
	id := store.addProduct(models.Product{NameRU: "Чай", NameUZ: "Choy", Price: 100})
	repo := &countingProductRepo{fakeProductRepo: fakeProductRepo{store}, release: make(chan struct{})}
	svc := service.NewCatalogService(discardLogger(), repo)

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.GetProduct(ctx, id)
		firstErr <- err
	}()
	for repo.calls.Load() == 0 {
		runtime.Gosched()
	}

	type result struct {
		p   *models.Product
		err error
	}
	second := make(chan result, 1)
	go func() {
		p, err := svc.GetProduct(context.Background(), id)
		second <- result{p, err}
	}()
	time.Sleep(50 * time.Millisecond)

	// первый вызывающий уходит, не дожидаясь хранилища
	cancel()
	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller is still waiting")
	}

	close(repo.release)
	res := <-second
	require.NoError(t, res.err)
	assert.Equal(t, id, res.p.ID)
}
