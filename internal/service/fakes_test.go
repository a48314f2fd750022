package service_test

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/linemk/shop-bot/internal/domain/models"
	"github.com/linemk/shop-bot/internal/storage"
)

var errFakeDB = errors.New("fake db failure")

// fakeStore — общее in-memory состояние для фейковых репозиториев.
// Транзакции не эмулируются: tx игнорируется.
type fakeStore struct {
	mu         sync.Mutex
	users      map[int64]*models.User // ключ — внешний id
	products   map[int64]*models.Product
	cart       []*models.CartLine
	orders     []*models.Order
	orderLines map[int64][]models.OrderLine
	nextID     int64
	failOn     map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:      make(map[int64]*models.User),
		products:   make(map[int64]*models.Product),
		orderLines: make(map[int64][]models.OrderLine),
		failOn:     make(map[string]bool),
	}
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) fail(method string) error {
	if f.failOn[method] {
		return errFakeDB
	}
	return nil
}

func (f *fakeStore) addUser(externalID int64, firstUsage bool) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := &models.User{ID: f.id(), ExternalID: externalID, IsFirstUsage: firstUsage}
	f.users[externalID] = u
	return u
}

func (f *fakeStore) addProduct(p models.Product) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.ID = f.id()
	f.products[p.ID] = &p
	return p.ID
}

func (f *fakeStore) userByID(id int64) *models.User {
	for _, u := range f.users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

func (f *fakeStore) cartOf(userID int64) []models.CartLine {
	var lines []models.CartLine
	for _, l := range f.cart {
		if l.UserID != userID {
			continue
		}
		line := *l
		if p, ok := f.products[l.ProductID]; ok {
			line.NameRU, line.NameUZ, line.Price, line.IsPromo, line.Available = p.NameRU, p.NameUZ, p.Price, p.IsPromo, true
		}
		lines = append(lines, line)
	}
	return lines
}

type fakeUserRepo struct{ *fakeStore }

var _ storage.UserStorage = fakeUserRepo{}

func (f fakeUserRepo) GetUserByExternalID(_ context.Context, externalID int64) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("GetUserByExternalID"); err != nil {
		return nil, err
	}
	u, ok := f.users[externalID]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (f fakeUserRepo) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u := f.userByID(id); u != nil {
		cp := *u
		return &cp, nil
	}
	return nil, storage.ErrUserNotFound
}

func (f fakeUserRepo) EnsureUserTx(_ context.Context, _ *sql.Tx, externalID int64) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("EnsureUserTx"); err != nil {
		return nil, err
	}
	u, ok := f.users[externalID]
	if !ok {
		u = &models.User{ID: f.id(), ExternalID: externalID, IsFirstUsage: true}
		f.users[externalID] = u
	}
	cp := *u
	return &cp, nil
}

func (f fakeUserRepo) LockUserByExternalIDTx(ctx context.Context, _ *sql.Tx, externalID int64) (*models.User, error) {
	return f.GetUserByExternalID(ctx, externalID)
}

func (f fakeUserRepo) SetLanguage(_ context.Context, externalID int64, lang models.Language) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("SetLanguage"); err != nil {
		return err
	}
	u, ok := f.users[externalID]
	if !ok {
		u = &models.User{ID: f.id(), ExternalID: externalID, IsFirstUsage: true}
		f.users[externalID] = u
	}
	u.Language = &lang
	return nil
}

func (f fakeUserRepo) UpdateProfileTx(_ context.Context, _ *sql.Tx, id int64, name, phone, address string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("UpdateProfileTx"); err != nil {
		return err
	}
	u := f.userByID(id)
	if u == nil {
		return storage.ErrUserNotFound
	}
	u.Name, u.Phone, u.Address = name, phone, address
	return nil
}

func (f fakeUserRepo) ConsumeFirstUsageTx(_ context.Context, _ *sql.Tx, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.userByID(id)
	if u == nil {
		return storage.ErrUserNotFound
	}
	u.IsFirstUsage = false
	return nil
}

type fakeProductRepo struct{ *fakeStore }

var _ storage.ProductStorage = fakeProductRepo{}

func (f fakeProductRepo) GetProductByID(_ context.Context, id int64) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("GetProductByID"); err != nil {
		return nil, err
	}
	p, ok := f.products[id]
	if !ok {
		return nil, storage.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (f fakeProductRepo) GetProductByIDTx(ctx context.Context, _ *sql.Tx, id int64) (*models.Product, error) {
	return f.GetProductByID(ctx, id)
}

func (f fakeProductRepo) ListProducts(_ context.Context) ([]*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("ListProducts"); err != nil {
		return nil, err
	}
	var list []*models.Product
	for _, p := range f.products {
		cp := *p
		list = append(list, &cp)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (f fakeProductRepo) CreateProduct(_ context.Context, p *models.Product) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	cp.ID = f.id()
	f.products[cp.ID] = &cp
	return cp.ID, nil
}

func (f fakeProductRepo) UpdateProduct(_ context.Context, id int64, patch models.ProductPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return storage.ErrProductNotFound
	}
	if patch.NameRU != nil {
		p.NameRU = *patch.NameRU
	}
	if patch.NameUZ != nil {
		p.NameUZ = *patch.NameUZ
	}
	if patch.DescriptionRU != nil {
		p.DescriptionRU = *patch.DescriptionRU
	}
	if patch.DescriptionUZ != nil {
		p.DescriptionUZ = *patch.DescriptionUZ
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.IsPromo != nil {
		p.IsPromo = *patch.IsPromo
	}
	if patch.PhotoID != nil {
		p.PhotoID = *patch.PhotoID
	}
	return nil
}

// DeleteProduct повторяет ON DELETE SET NULL для строк заказов
func (f fakeProductRepo) DeleteProduct(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.products[id]; !ok {
		return storage.ErrProductNotFound
	}
	delete(f.products, id)
	for orderID, lines := range f.orderLines {
		for i := range lines {
			if lines[i].ProductID != nil && *lines[i].ProductID == id {
				lines[i].ProductID = nil
			}
		}
		f.orderLines[orderID] = lines
	}
	return nil
}

type fakeCartRepo struct{ *fakeStore }

var _ storage.CartStorage = fakeCartRepo{}

func (f fakeCartRepo) AddItemTx(_ context.Context, _ *sql.Tx, userID, productID int64, delta int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("AddItemTx"); err != nil {
		return 0, err
	}
	for _, l := range f.cart {
		if l.UserID == userID && l.ProductID == productID {
			l.Quantity += delta
			return l.Quantity, nil
		}
	}
	f.cart = append(f.cart, &models.CartLine{ID: f.id(), UserID: userID, ProductID: productID, Quantity: delta})
	return delta, nil
}

func (f fakeCartRepo) find(match func(*models.CartLine) bool) (*models.CartLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.cart {
		if match(l) {
			cp := *l
			return &cp, nil
		}
	}
	return nil, storage.ErrCartLineNotFound
}

func (f fakeCartRepo) LockLineTx(_ context.Context, _ *sql.Tx, userID, lineID int64) (*models.CartLine, error) {
	return f.find(func(l *models.CartLine) bool { return l.ID == lineID && l.UserID == userID })
}

func (f fakeCartRepo) LockLineByProductTx(_ context.Context, _ *sql.Tx, userID, productID int64) (*models.CartLine, error) {
	return f.find(func(l *models.CartLine) bool { return l.UserID == userID && l.ProductID == productID })
}

func (f fakeCartRepo) SetQuantityTx(_ context.Context, _ *sql.Tx, lineID int64, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.cart {
		if l.ID == lineID {
			l.Quantity = quantity
			return nil
		}
	}
	return storage.ErrCartLineNotFound
}

func (f fakeCartRepo) DeleteLineTx(_ context.Context, _ *sql.Tx, lineID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, l := range f.cart {
		if l.ID == lineID {
			f.cart = append(f.cart[:i], f.cart[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f fakeCartRepo) GetCartByExternalID(_ context.Context, externalID int64) ([]models.CartLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[externalID]
	if !ok {
		return nil, nil
	}
	return f.cartOf(u.ID), nil
}

func (f fakeCartRepo) GetCartTx(_ context.Context, _ *sql.Tx, userID int64) ([]models.CartLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("GetCartTx"); err != nil {
		return nil, err
	}
	return f.cartOf(userID), nil
}

func (f fakeCartRepo) ClearCartTx(_ context.Context, _ *sql.Tx, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("ClearCartTx"); err != nil {
		return err
	}
	kept := f.cart[:0]
	for _, l := range f.cart {
		if l.UserID != userID {
			kept = append(kept, l)
		}
	}
	f.cart = kept
	return nil
}

type fakeOrderRepo struct{ *fakeStore }

var _ storage.OrderStorage = fakeOrderRepo{}

func (f fakeOrderRepo) CreateOrderTx(_ context.Context, _ *sql.Tx, order *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("CreateOrderTx"); err != nil {
		return err
	}
	order.ID = f.id()
	order.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(order.ID) * time.Minute)
	cp := *order
	f.orders = append(f.orders, &cp)
	return nil
}

func (f fakeOrderRepo) CreateOrderLineTx(_ context.Context, _ *sql.Tx, orderID int64, line models.OrderLine) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	line.ID = f.id()
	line.OrderID = orderID
	f.orderLines[orderID] = append(f.orderLines[orderID], line)
	return nil
}

func (f fakeOrderRepo) LockOrderTx(_ context.Context, _ *sql.Tx, orderID int64) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.ID == orderID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, storage.ErrOrderNotFound
}

func (f fakeOrderRepo) UpdateStatusTx(_ context.Context, _ *sql.Tx, orderID int64, status models.OrderStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.ID == orderID {
			o.Status = status
			return nil
		}
	}
	return storage.ErrOrderNotFound
}

func (f fakeOrderRepo) filtered(status models.OrderStatus) []*models.Order {
	var res []*models.Order
	for _, o := range f.orders {
		if status == "" || o.Status == status {
			cp := *o
			res = append(res, &cp)
		}
	}
	return res
}

func (f fakeOrderRepo) ListOrders(_ context.Context, status models.OrderStatus, limit, offset int) ([]*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	res := f.filtered(status)
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	if offset >= len(res) {
		return nil, nil
	}
	return res[offset:min(offset+limit, len(res))], nil
}

func (f fakeOrderRepo) CountOrders(_ context.Context, status models.OrderStatus) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.filtered(status)), nil
}

func (f fakeOrderRepo) GetOrdersByExternalID(_ context.Context, externalID int64) ([]*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[externalID]
	if !ok {
		return nil, nil
	}
	var res []*models.Order
	for _, o := range f.orders {
		if o.UserID == u.ID {
			cp := *o
			res = append(res, &cp)
		}
	}
	return res, nil
}

func (f fakeOrderRepo) GetOrderLines(_ context.Context, orderIDs []int64) (map[int64][]models.OrderLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	res := make(map[int64][]models.OrderLine, len(orderIDs))
	for _, id := range orderIDs {
		res[id] = append([]models.OrderLine(nil), f.orderLines[id]...)
	}
	return res, nil
}

type notification struct {
	externalID int64
	text       string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notification
	err  error
}

func (n *fakeNotifier) Notify(_ context.Context, externalID int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, notification{externalID: externalID, text: text})
	return nil
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
