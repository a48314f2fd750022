// Package conversation — конечный автомат диалога с покупателем и администратором.
package conversation

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/linemk/shop-bot/internal/domain/models"
	"github.com/linemk/shop-bot/internal/locale"
	"github.com/linemk/shop-bot/internal/service"
)

// Engine переводит сессию из состояния в состояние по входящему событию.
// Сам Engine состояния не хранит: сессия передаётся в Handle и возвращается из него.
type Engine struct {
	log     *slog.Logger
	users   service.UserService
	catalog service.CatalogService
	carts   service.CartService
	orders  service.OrderService
}

func NewEngine(
	log *slog.Logger,
	users service.UserService,
	catalog service.CatalogService,
	carts service.CartService,
	orders service.OrderService,
) *Engine {
	return &Engine{
		log:     log,
		users:   users,
		catalog: catalog,
		carts:   carts,
		orders:  orders,
	}
}

// Start открывает новую сессию: выбор языка, если пользователь его ещё не выбирал, иначе главное меню.
func (e *Engine) Start(ctx context.Context, userID int64) (Session, Reply) {
	const op = "conversation.Engine.Start"

	sess := Session{UserID: userID, State: StateSelectingLanguage}
	user, err := e.users.GetUser(ctx, userID)
	switch {
	case err == nil && user.Language != nil && user.Language.Valid():
		sess.Language = *user.Language
		sess.State = StateMainMenu
	case err != nil && !errors.Is(err, service.ErrNotFound):
		e.log.With(slog.String("op", op)).Warn("failed to load user, asking for language", slog.Any("error", err))
	}
	return sess, e.render(ctx, sess)
}

// Handle обрабатывает одно событие и возвращает новую сессию и ответ.
func (e *Engine) Handle(ctx context.Context, sess Session, ev Event) (Session, Reply) {
	const op = "conversation.Engine.Handle"
	logger := e.log.With(
		slog.String("op", op),
		slog.Int64("userID", ev.UserID),
		slog.String("state", sess.State.String()),
		slog.String("kind", string(ev.Kind)),
	)
	sess.UserID = ev.UserID

	if ev.Kind == KindStart {
		return e.Start(ctx, ev.UserID)
	}

	// права администратора проверяются на каждом шаге админ-панели
	if sess.State.IsAdmin() && !e.users.IsAdmin(ev.UserID) {
		logger.Warn("access denied")
		return e.accessDenied(ctx, sess)
	}

	if ev.is(CodeBack) && sess.State != StateSelectingLanguage {
		next := sess.goTo(sess.State.Parent())
		return next, e.render(ctx, next)
	}

	switch sess.State {
	case StateSelectingLanguage:
		return e.selectLanguage(ctx, logger, sess, ev)
	case StateMainMenu:
		return e.mainMenu(ctx, sess, ev)
	case StateViewingProducts:
		return e.viewProducts(ctx, logger, sess, ev)
	case StateCart:
		return e.cart(ctx, logger, sess, ev)
	case StateCheckoutName:
		return e.checkoutName(ctx, sess, ev)
	case StateCheckoutPhone:
		return e.checkoutPhone(ctx, sess, ev)
	case StateCheckoutAddress:
		return e.checkoutAddress(ctx, logger, sess, ev)
	case StateAdminMenu:
		return e.adminMenu(ctx, sess, ev)
	case StateAdminAddProduct:
		return e.adminAddProduct(ctx, sess, ev)
	case StateAdminWaitPhoto:
		return e.adminWaitPhoto(ctx, logger, sess, ev)
	case StateEditProductSelect:
		return e.editSelect(ctx, logger, sess, ev)
	case StateEditProductAction:
		return e.editAction(ctx, logger, sess, ev)
	case StateEditProductInput:
		return e.editInput(ctx, logger, sess, ev)
	case StateEditProductConfirmDelete:
		return e.confirmDelete(ctx, logger, sess, ev)
	}

	logger.Error("unknown state, restarting")
	return e.Start(ctx, ev.UserID)
}

func (e *Engine) selectLanguage(ctx context.Context, logger *slog.Logger, sess Session, ev Event) (Session, Reply) {
	code, _ := ev.button()
	lang := models.Language(strings.TrimPrefix(code, codeLangPrefix))
	if !strings.HasPrefix(code, codeLangPrefix) || !lang.Valid() {
		return e.invalid(ctx, sess)
	}
	if err := e.users.SetLanguage(ctx, sess.UserID, lang); err != nil {
		return e.fail(ctx, logger, sess, err)
	}
	sess.Language = lang
	next := sess.goTo(StateMainMenu)
	return next, e.render(ctx, next).prepend(t(next, "language_saved"))
}

func (e *Engine) mainMenu(ctx context.Context, sess Session, ev Event) (Session, Reply) {
	code, _ := ev.button()
	switch code {
	case CodeProducts:
		next := sess.goTo(StateViewingProducts)
		return next, e.render(ctx, next)
	case CodeCart:
		next := sess.goTo(StateCart)
		return next, e.render(ctx, next)
	case CodeOrders:
		reply := e.renderUserOrders(ctx, sess)
		menu := e.render(ctx, sess)
		reply.Messages = append(reply.Messages, menu.Messages...)
		reply.Keyboard = menu.Keyboard
		return sess, reply
	case CodeSettings:
		next := sess.goTo(StateSelectingLanguage)
		return next, e.render(ctx, next)
	case CodeAdmin:
		if !e.users.IsAdmin(sess.UserID) {
			return e.accessDenied(ctx, sess)
		}
		next := sess.goTo(StateAdminMenu)
		return next, e.render(ctx, next)
	}
	return e.invalid(ctx, sess)
}

func (e *Engine) viewProducts(ctx context.Context, logger *slog.Logger, sess Session, ev Event) (Session, Reply) {
	code, _ := ev.button()
	if code == CodeCart {
		next := sess.goTo(StateCart)
		return next, e.render(ctx, next)
	}

	var (
		quantity int
		err      error
	)
	productID, inc := idFromCode(code, codeIncPrefix)
	if inc {
		quantity, err = e.carts.AddToCart(ctx, sess.UserID, productID, 1)
	} else if id, dec := idFromCode(code, codeDecPrefix); dec {
		productID = id
		quantity, err = e.carts.Decrement(ctx, sess.UserID, productID)
	} else {
		return e.invalid(ctx, sess)
	}
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return sess, e.render(ctx, sess).prepend(t(sess, "unknown_product"))
		}
		return e.fail(ctx, logger, sess, err)
	}

	// состояние не меняется: в ответе только обновлённая карточка товара
	product, err := e.catalog.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return sess, Reply{Messages: []Message{{Text: t(sess, "unknown_product")}}}
		}
		return e.fail(ctx, logger, sess, err)
	}
	reply := Reply{Messages: []Message{productCard(sess.lang(), product, quantity)}}
	if inc {
		reply = reply.prepend(t(sess, "added_to_cart"))
	}
	return sess, reply
}

func (e *Engine) cart(ctx context.Context, logger *slog.Logger, sess Session, ev Event) (Session, Reply) {
	code, _ := ev.button()
	switch code {
	case CodeCheckout:
		lines, err := e.carts.GetCart(ctx, sess.UserID)
		if err != nil {
			return e.fail(ctx, logger, sess, err)
		}
		if !hasOrderable(lines) {
			return sess, e.render(ctx, sess)
		}
		next := sess.goTo(StateCheckoutName)
		return next, e.render(ctx, next)
	case CodeClearCart:
		if err := e.carts.ClearCart(ctx, sess.UserID); err != nil {
			return e.fail(ctx, logger, sess, err)
		}
		return sess, e.render(ctx, sess).prepend(t(sess, "cart_cleared"))
	}
	if lineID, ok := idFromCode(code, codeCartDecPrefix); ok {
		return e.changeCartLine(ctx, logger, sess, lineID, false)
	}
	if lineID, ok := idFromCode(code, codeCartRemovePrefix); ok {
		return e.changeCartLine(ctx, logger, sess, lineID, true)
	}
	return e.invalid(ctx, sess)
}

// changeCartLine уменьшает строку корзины на единицу или удаляет её целиком.
// Уже исчезнувшая строка не ошибка: корзина просто перерисовывается.
func (e *Engine) changeCartLine(ctx context.Context, logger *slog.Logger, sess Session, lineID int64, remove bool) (Session, Reply) {
	quantity := 0
	if !remove {
		lines, err := e.carts.GetCart(ctx, sess.UserID)
		if err != nil {
			return e.fail(ctx, logger, sess, err)
		}
		found := false
		for _, l := range lines {
			if l.ID == lineID {
				quantity, found = l.Quantity-1, true
				break
			}
		}
		if !found {
			return sess, e.render(ctx, sess)
		}
	}

	err := e.carts.DecrementOrRemove(ctx, sess.UserID, lineID, quantity)
	if err != nil && !errors.Is(err, service.ErrNotFound) {
		return e.fail(ctx, logger, sess, err)
	}
	return sess, e.render(ctx, sess)
}

func hasOrderable(lines []models.CartLine) bool {
	for _, l := range lines {
		if l.Available && l.Quantity > 0 {
			return true
		}
	}
	return false
}

func (e *Engine) accessDenied(ctx context.Context, sess Session) (Session, Reply) {
	next := sess.goTo(StateMainMenu)
	return next, e.render(ctx, next).prepend(t(next, "access_denied"))
}

// invalid повторяет приглашение текущего шага с пометкой об ошибке
func (e *Engine) invalid(ctx context.Context, sess Session) (Session, Reply) {
	return sess, e.render(ctx, sess).prepend(t(sess, "invalid_input"))
}

// fail переводит ошибку сервиса в ответ пользователю. Подробности сбоев хранилища только логируются.
func (e *Engine) fail(ctx context.Context, logger *slog.Logger, sess Session, err error) (Session, Reply) {
	if errors.Is(err, service.ErrInvalidInput) {
		return e.invalid(ctx, sess)
	}
	logger.Error("operation failed", slog.Any("error", err))
	return sess, Reply{Messages: []Message{{Text: t(sess, "error_try_again")}}}
}

func t(sess Session, key string) string {
	return locale.GetText(sess.lang(), key)
}

func tf(sess Session, key string, data locale.Data) string {
	return locale.Textf(sess.lang(), key, data)
}
