package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/linemk/shop-bot/internal/locale"
	"github.com/linemk/shop-bot/internal/service"
)

var phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 ()\-]{4,19}$`)

func (e *Engine) checkoutName(ctx context.Context, sess Session, ev Event) (Session, Reply) {
	name := strings.TrimSpace(ev.Text)
	if ev.Kind != KindText || name == "" {
		return e.invalid(ctx, sess)
	}
	next := sess.goTo(StateCheckoutPhone)
	next.CheckoutName = name
	return next, e.render(ctx, next)
}

// checkoutPhone принимает номер из контакта или введённый текстом
func (e *Engine) checkoutPhone(ctx context.Context, sess Session, ev Event) (Session, Reply) {
	var phone string
	switch ev.Kind {
	case KindContact:
		phone = strings.TrimSpace(ev.Phone)
	case KindText:
		phone = strings.TrimSpace(ev.Text)
		if !phonePattern.MatchString(phone) {
			return e.invalid(ctx, sess)
		}
	}
	if phone == "" {
		return e.invalid(ctx, sess)
	}
	next := sess.goTo(StateCheckoutAddress)
	next.CheckoutPhone = phone
	return next, e.render(ctx, next)
}

// checkoutAddress принимает адрес текстом или геолокацией и оформляет заказ
func (e *Engine) checkoutAddress(ctx context.Context, logger *slog.Logger, sess Session, ev Event) (Session, Reply) {
	var address string
	switch ev.Kind {
	case KindText:
		address = strings.TrimSpace(ev.Text)
	case KindLocation:
		if ev.Location != nil {
			address = fmt.Sprintf("latitude: %v, longitude: %v", ev.Location.Latitude, ev.Location.Longitude)
		}
	}
	if address == "" {
		return e.invalid(ctx, sess)
	}

	order, err := e.orders.CreateOrder(ctx, sess.UserID, sess.CheckoutName, sess.CheckoutPhone, address)
	switch {
	case err == nil:
		logger.Info("order placed", slog.Int64("orderID", order.ID))
		next := sess.goTo(StateMainMenu)
		return next, e.render(ctx, next).prepend(tf(next, "order_created", locale.Data{"ID": order.ID, "Total": order.TotalAmount}))
	case errors.Is(err, service.ErrEmptyCart):
		next := sess.goTo(StateCart)
		return next, e.render(ctx, next).prepend(t(next, "cart_empty"))
	case errors.Is(err, service.ErrInvalidInput):
		// имя или телефон потерялись (например, сессия истекла) — начинаем оформление заново
		next := sess.goTo(StateCheckoutName)
		return next, e.render(ctx, next).prepend(t(next, "invalid_input"))
	}
	return e.fail(ctx, logger, sess, err)
}
