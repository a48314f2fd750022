package conversation_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/linemk/shop-bot/internal/checkout"
	"github.com/linemk/shop-bot/internal/conversation"
	"github.com/linemk/shop-bot/internal/domain/models"
	"github.com/linemk/shop-bot/internal/service"
)

var errBoom = errors.New("boom")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeShop реализует все сервисы поверх памяти
type fakeShop struct {
	mu       sync.Mutex
	admins   map[int64]bool
	users    map[int64]*models.User
	products map[int64]*models.Product
	carts    map[int64]map[int64]int // пользователь → товар → количество
	orders   []*models.Order
	nextID   int64
	failAll  bool
	calls    int
}

func newFakeShop() *fakeShop {
	return &fakeShop{
		admins:   make(map[int64]bool),
		users:    make(map[int64]*models.User),
		products: make(map[int64]*models.Product),
		carts:    make(map[int64]map[int64]int),
	}
}

func (f *fakeShop) engine() *conversation.Engine {
	return conversation.NewEngine(discardLogger(), f, f, f, f)
}

func (f *fakeShop) addProduct(nameRU, nameUZ string, price int64, promo bool) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.products[f.nextID] = &models.Product{
		ID: f.nextID, NameRU: nameRU, NameUZ: nameUZ, Price: price, IsPromo: promo,
		DescriptionRU: "описание", DescriptionUZ: "tavsif",
	}
	return f.nextID
}

func (f *fakeShop) addUser(externalID int64, lang models.Language) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := &models.User{ID: externalID, ExternalID: externalID, IsFirstUsage: true}
	if lang != "" {
		u.Language = &lang
	}
	f.users[externalID] = u
}

func (f *fakeShop) enter() error {
	f.calls++
	if f.failAll {
		return errBoom
	}
	return nil
}

func (f *fakeShop) ensureUser(externalID int64) *models.User {
	u, ok := f.users[externalID]
	if !ok {
		u = &models.User{ID: externalID, ExternalID: externalID, IsFirstUsage: true}
		f.users[externalID] = u
	}
	return u
}

// UserService

func (f *fakeShop) GetUser(_ context.Context, externalID int64) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(); err != nil {
		return nil, err
	}
	u, ok := f.users[externalID]
	if !ok {
		return nil, service.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeShop) SetLanguage(_ context.Context, externalID int64, lang models.Language) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(); err != nil {
		return err
	}
	f.ensureUser(externalID).Language = &lang
	return nil
}

func (f *fakeShop) IsAdmin(externalID int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.admins[externalID]
}

// CatalogService

func (f *fakeShop) ListProducts(_ context.Context) ([]*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(); err != nil {
		return nil, err
	}
	out := make([]*models.Product, 0, len(f.products))
	for _, p := range f.products {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeShop) GetProduct(_ context.Context, id int64) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(); err != nil {
		return nil, err
	}
	p, ok := f.products[id]
	if !ok {
		return nil, service.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeShop) CreateProduct(_ context.Context, p *models.Product) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(); err != nil {
		return 0, err
	}
	f.nextID++
	cp := *p
	cp.ID = f.nextID
	f.products[cp.ID] = &cp
	return cp.ID, nil
}

func (f *fakeShop) UpdateProduct(_ context.Context, id int64, patch models.ProductPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(); err != nil {
		return err
	}
	p, ok := f.products[id]
	if !ok {
		return service.ErrNotFound
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

func (f *fakeShop) DeleteProduct(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(); err != nil {
		return err
	}
	if _, ok := f.products[id]; !ok {
		return service.ErrNotFound
	}
	delete(f.products, id)
	return nil
}

// CartService

func (f *fakeShop) AddToCart(_ context.Context, externalID, productID int64, delta int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(); err != nil {
		return 0, err
	}
	if _, ok := f.products[productID]; !ok {
		return 0, service.ErrNotFound
	}
	f.ensureUser(externalID)
	if f.carts[externalID] == nil {
		f.carts[externalID] = make(map[int64]int)
	}
	f.carts[externalID][productID] += delta
	return f.carts[externalID][productID], nil
}

func (f *fakeShop) Decrement(_ context.Context, externalID, productID int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(); err != nil {
		return 0, err
	}
	q, ok := f.carts[externalID][productID]
	if !ok {
		return 0, nil
	}
	if q <= 1 {
		delete(f.carts[externalID], productID)
		return 0, nil
	}
	f.carts[externalID][productID] = q - 1
	return q - 1, nil
}

// строки корзины в фейке нумеруются id товара
func (f *fakeShop) DecrementOrRemove(_ context.Context, externalID, cartLineID int64, newQuantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(); err != nil {
		return err
	}
	if _, ok := f.carts[externalID][cartLineID]; !ok {
		return service.ErrNotFound
	}
	if newQuantity <= 0 {
		delete(f.carts[externalID], cartLineID)
		return nil
	}
	f.carts[externalID][cartLineID] = newQuantity
	return nil
}

func (f *fakeShop) cartLines(externalID int64) []models.CartLine {
	var lines []models.CartLine
	for productID, q := range f.carts[externalID] {
		l := models.CartLine{ID: productID, UserID: externalID, ProductID: productID, Quantity: q}
		if p, ok := f.products[productID]; ok {
			l.NameRU, l.NameUZ, l.Price, l.IsPromo, l.Available = p.NameRU, p.NameUZ, p.Price, p.IsPromo, true
		}
		lines = append(lines, l)
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ID < lines[j].ID })
	return lines
}

func (f *fakeShop) GetCart(_ context.Context, externalID int64) ([]models.CartLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(); err != nil {
		return nil, err
	}
	return f.cartLines(externalID), nil
}

func (f *fakeShop) ClearCart(_ context.Context, externalID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(); err != nil {
		return err
	}
	delete(f.carts, externalID)
	return nil
}

// OrderService

func (f *fakeShop) CreateOrder(_ context.Context, externalID int64, name, phone, address string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(); err != nil {
		return nil, err
	}
	if name == "" || phone == "" || address == "" {
		return nil, service.ErrInvalidInput
	}
	u, ok := f.users[externalID]
	if !ok {
		return nil, service.ErrEmptyCart
	}
	lines, total, _ := checkout.ComputeCheckout(f.cartLines(externalID), u.IsFirstUsage)
	if len(lines) == 0 {
		return nil, service.ErrEmptyCart
	}
	f.nextID++
	order := &models.Order{
		ID: f.nextID, UserID: u.ID, TotalAmount: total, Status: models.OrderStatusNew,
		CreatedAt: time.Date(2026, 1, 2, 15, 4, 0, 0, time.UTC), Name: name, Phone: phone, Address: address,
		Lines: lines,
	}
	f.orders = append(f.orders, order)
	u.IsFirstUsage = false
	delete(f.carts, externalID)
	return order, nil
}

func (f *fakeShop) ChangeStatus(context.Context, int64, models.OrderStatus) (models.OrderStatus, bool, error) {
	return "", false, nil
}

func (f *fakeShop) ListOrders(_ context.Context, status models.OrderStatus, page, perPage int) ([]*models.Order, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(); err != nil {
		return nil, 0, err
	}
	var out []*models.Order
	for i := len(f.orders) - 1; i >= 0; i-- {
		if status == "" || f.orders[i].Status == status {
			out = append(out, f.orders[i])
		}
	}
	total := len(out)
	if len(out) > perPage {
		out = out[:perPage]
	}
	return out, total, nil
}

func (f *fakeShop) UserOrders(_ context.Context, externalID int64) ([]*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(); err != nil {
		return nil, err
	}
	var out []*models.Order
	for _, o := range f.orders {
		if o.UserID == externalID {
			out = append(out, o)
		}
	}
	return out, nil
}

// memSessions — SessionStore в памяти
type memSessions struct {
	mu       sync.Mutex
	sessions map[int64]conversation.Session
	loads    int
	failLoad bool
}

func newMemSessions() *memSessions {
	return &memSessions{sessions: make(map[int64]conversation.Session)}
}

func (m *memSessions) Load(_ context.Context, userID int64) (conversation.Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	if m.failLoad {
		return conversation.Session{}, false, errBoom
	}
	s, ok := m.sessions[userID]
	return s, ok, nil
}

func (m *memSessions) Save(_ context.Context, userID int64, sess conversation.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[userID] = sess
	return nil
}
