package conversation

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/linemk/shop-bot/internal/checkout"
	"github.com/linemk/shop-bot/internal/domain/models"
	"github.com/linemk/shop-bot/internal/locale"
	"github.com/linemk/shop-bot/internal/service"
)

const (
	dateLayout        = "02.01.2006 15:04"
	adminOrdersOnPage = 10
)

func (e *Engine) control(sess Session, key, code string) Control {
	return Control{Label: t(sess, key), Code: code}
}

func (e *Engine) backRow(sess Session) []Control {
	return row(e.control(sess, "btn_back", CodeBack))
}

// render рисует приглашение текущего шага
func (e *Engine) render(ctx context.Context, sess Session) Reply {
	var r Reply
	switch sess.State {
	case StateSelectingLanguage:
		r.text(t(sess, "choose_language"))
		r.Keyboard = [][]Control{row(
			Control{Label: t(sess, "language_ru"), Code: CodeLang(string(models.LanguageRU))},
			Control{Label: t(sess, "language_uz"), Code: CodeLang(string(models.LanguageUZ))},
		)}
	case StateMainMenu:
		r.text(t(sess, "main_menu"))
		r.Keyboard = [][]Control{
			row(e.control(sess, "btn_products", CodeProducts), e.control(sess, "btn_cart", CodeCart)),
			row(e.control(sess, "btn_orders", CodeOrders), e.control(sess, "btn_settings", CodeSettings)),
		}
		if e.users.IsAdmin(sess.UserID) {
			r.Keyboard = append(r.Keyboard, row(e.control(sess, "btn_admin", CodeAdmin)))
		}
	case StateViewingProducts:
		r = e.renderProducts(ctx, sess)
	case StateCart:
		r = e.renderCart(ctx, sess)
	case StateCheckoutName:
		r.text(t(sess, "enter_name"))
		r.Keyboard = [][]Control{e.backRow(sess)}
	case StateCheckoutPhone:
		r.text(t(sess, "enter_phone"))
		share := e.control(sess, "btn_share_phone", "")
		share.RequestContact = true
		r.Keyboard = [][]Control{row(share), e.backRow(sess)}
	case StateCheckoutAddress:
		r.text(t(sess, "enter_address"))
		share := e.control(sess, "btn_share_location", "")
		share.RequestLocation = true
		r.Keyboard = [][]Control{row(share), e.backRow(sess)}
	case StateAdminMenu:
		r.text(t(sess, "admin_menu"))
		r.Keyboard = [][]Control{
			row(e.control(sess, "btn_add_product", CodeAdminAdd), e.control(sess, "btn_edit_product", CodeAdminEdit)),
			row(e.control(sess, "btn_admin_orders", CodeAdminOrders)),
			e.backRow(sess),
		}
	case StateAdminAddProduct:
		r.text(t(sess, "admin_add_prompt"))
		r.Keyboard = [][]Control{e.backRow(sess)}
	case StateAdminWaitPhoto:
		r.text(t(sess, "admin_wait_photo"))
		r.Keyboard = [][]Control{e.backRow(sess)}
	case StateEditProductSelect:
		r = e.renderProductPicker(ctx, sess)
	case StateEditProductAction:
		r = e.renderEditAction(ctx, sess)
	case StateEditProductInput:
		r.text(t(sess, "admin_enter_"+sess.EditField))
		r.Keyboard = [][]Control{e.backRow(sess)}
	case StateEditProductConfirmDelete:
		name := t(sess, "unknown_product")
		if p, err := e.catalog.GetProduct(ctx, sess.EditingID); err == nil {
			name = p.Name(sess.lang())
		}
		r.text(tf(sess, "admin_confirm_delete", locale.Data{"Name": name}))
		r.Keyboard = [][]Control{row(
			e.control(sess, "btn_yes", CodeDeleteYes),
			e.control(sess, "btn_no", CodeDeleteNo),
		)}
	}
	return r
}

func productCard(lang models.Language, p *models.Product, quantity int) Message {
	sess := Session{Language: lang}
	text := tf(sess, "product_card", locale.Data{
		"Name":        p.Name(lang),
		"Description": p.Description(lang),
		"Price":       p.Price,
	})
	if p.IsPromo {
		text += "\n" + t(sess, "product_promo")
	}
	if quantity > 0 {
		text += "\n" + tf(sess, "in_cart", locale.Data{"Quantity": quantity})
	}
	return Message{
		Text:    text,
		PhotoID: p.PhotoID,
		Inline: [][]Control{row(
			Control{Label: "➖", Code: CodeDec(p.ID)},
			Control{Label: "➕", Code: CodeInc(p.ID)},
		)},
	}
}

func (e *Engine) renderProducts(ctx context.Context, sess Session) Reply {
	r := Reply{Keyboard: [][]Control{row(e.control(sess, "btn_cart", CodeCart)), e.backRow(sess)}}

	products, err := e.catalog.ListProducts(ctx)
	if err != nil {
		e.log.Error("failed to render products", slog.Any("error", err))
		r.text(t(sess, "error_try_again"))
		return r
	}
	if len(products) == 0 {
		r.text(t(sess, "products_empty"))
		return r
	}

	inCart := make(map[int64]int)
	if lines, err := e.carts.GetCart(ctx, sess.UserID); err == nil {
		for _, l := range lines {
			inCart[l.ProductID] = l.Quantity
		}
	}
	for _, p := range products {
		r.Messages = append(r.Messages, productCard(sess.lang(), p, inCart[p.ID]))
	}
	return r
}

// renderCart показывает строки корзины, бонусы (тот же расчёт, что и при оформлении) и итог
func (e *Engine) renderCart(ctx context.Context, sess Session) Reply {
	r := Reply{Keyboard: [][]Control{e.backRow(sess)}}

	lines, err := e.carts.GetCart(ctx, sess.UserID)
	if err != nil {
		e.log.Error("failed to render cart", slog.Any("error", err))
		r.text(t(sess, "error_try_again"))
		return r
	}
	if len(lines) == 0 {
		r.text(t(sess, "cart_empty"))
		return r
	}

	firstUsage := true
	user, err := e.users.GetUser(ctx, sess.UserID)
	switch {
	case err == nil:
		firstUsage = user.IsFirstUsage
	case !errors.Is(err, service.ErrNotFound):
		e.log.Warn("failed to load user for bonus preview", slog.Any("error", err))
	}

	var b strings.Builder
	b.WriteString(t(sess, "cart_title"))
	for _, l := range lines {
		name := l.Name(sess.lang())
		if !l.Available {
			name = t(sess, "unknown_product")
		}
		b.WriteString("\n" + tf(sess, "cart_line", locale.Data{
			"Name":     name,
			"Quantity": l.Quantity,
			"Price":    l.Price,
			"Subtotal": int64(l.Quantity) * l.Price,
		}))
	}

	orderLines, total, _ := checkout.ComputeCheckout(lines, firstUsage)
	if bonus := checkout.Bonus(orderLines); len(bonus) > 0 {
		b.WriteString("\n\n" + t(sess, "cart_bonus"))
		for _, l := range bonus {
			b.WriteString("\n" + tf(sess, "cart_bonus_line", locale.Data{"Name": l.Name(sess.lang()), "Quantity": l.Quantity}))
		}
	}
	b.WriteString("\n\n" + tf(sess, "cart_total", locale.Data{"Total": total}))
	r.text(b.String())

	r.Keyboard = make([][]Control, 0, len(lines)+3)
	for _, l := range lines {
		name := l.Name(sess.lang())
		if !l.Available {
			name = t(sess, "unknown_product")
		}
		r.Keyboard = append(r.Keyboard, row(
			Control{Label: tf(sess, "btn_cart_dec", locale.Data{"Name": name}), Code: CodeCartDec(l.ID)},
			Control{Label: t(sess, "btn_cart_remove"), Code: CodeCartRemove(l.ID)},
		))
	}
	r.Keyboard = append(r.Keyboard,
		row(e.control(sess, "btn_checkout", CodeCheckout)),
		row(e.control(sess, "btn_clear_cart", CodeClearCart)),
		e.backRow(sess),
	)
	return r
}

func (e *Engine) renderUserOrders(ctx context.Context, sess Session) Reply {
	var r Reply
	orders, err := e.orders.UserOrders(ctx, sess.UserID)
	if err != nil {
		e.log.Error("failed to render orders", slog.Any("error", err))
		r.text(t(sess, "error_try_again"))
		return r
	}
	if len(orders) == 0 {
		r.text(t(sess, "orders_empty"))
		return r
	}

	var b strings.Builder
	b.WriteString(t(sess, "orders_title"))
	for _, o := range orders {
		b.WriteString("\n" + tf(sess, "order_line", locale.Data{
			"ID":     o.ID,
			"Date":   o.CreatedAt.Format(dateLayout),
			"Total":  o.TotalAmount,
			"Status": t(sess, "status_"+string(o.Status)),
		}))
	}
	r.text(b.String())
	return r
}

func (e *Engine) renderAdminOrders(ctx context.Context, sess Session) Reply {
	var r Reply
	orders, total, err := e.orders.ListOrders(ctx, "", 1, adminOrdersOnPage)
	if err != nil {
		e.log.Error("failed to render admin orders", slog.Any("error", err))
		r.text(t(sess, "error_try_again"))
		return r
	}
	if len(orders) == 0 {
		r.text(t(sess, "admin_orders_empty"))
		return r
	}

	r.text(tf(sess, "admin_orders_title", locale.Data{"Count": total}))
	for _, o := range orders {
		var b strings.Builder
		b.WriteString(tf(sess, "admin_order", locale.Data{
			"ID":      o.ID,
			"Name":    o.Name,
			"Phone":   o.Phone,
			"Address": o.Address,
			"Total":   o.TotalAmount,
			"Status":  t(sess, "status_"+string(o.Status)),
		}))
		for _, l := range o.Lines {
			b.WriteString("\n" + tf(sess, "admin_order_item", locale.Data{
				"Name":     orderLineName(sess, l),
				"Quantity": l.Quantity,
				"Price":    l.Price,
			}))
		}
		r.text(b.String())
	}
	return r
}

// orderLineName — название из снимка; если товар удалён и снимка нет, «неизвестный товар»
func orderLineName(sess Session, l models.OrderLine) string {
	if name := l.Name(sess.lang()); name != "" {
		return name
	}
	return t(sess, "unknown_product")
}

func (e *Engine) renderProductPicker(ctx context.Context, sess Session) Reply {
	var r Reply
	products, err := e.catalog.ListProducts(ctx)
	if err != nil {
		e.log.Error("failed to render product picker", slog.Any("error", err))
		r.text(t(sess, "error_try_again"))
		r.Keyboard = [][]Control{e.backRow(sess)}
		return r
	}
	if len(products) == 0 {
		r.text(t(sess, "products_empty"))
		r.Keyboard = [][]Control{e.backRow(sess)}
		return r
	}

	r.text(t(sess, "admin_select_product"))
	for _, p := range products {
		r.Keyboard = append(r.Keyboard, row(Control{Label: p.Name(sess.lang()), Code: CodeSelect(p.ID)}))
	}
	r.Keyboard = append(r.Keyboard, e.backRow(sess))
	return r
}

func (e *Engine) renderEditAction(ctx context.Context, sess Session) Reply {
	var r Reply
	if p, err := e.catalog.GetProduct(ctx, sess.EditingID); err == nil {
		card := productCard(sess.lang(), p, 0)
		card.Inline = nil
		r.Messages = append(r.Messages, card)
	}
	r.text(t(sess, "admin_select_action"))
	r.Keyboard = [][]Control{
		row(e.control(sess, "btn_edit_name", CodeEditName), e.control(sess, "btn_edit_description", CodeEditDescription)),
		row(e.control(sess, "btn_edit_price", CodeEditPrice), e.control(sess, "btn_edit_photo", CodeEditPhoto)),
		row(e.control(sess, "btn_edit_promo", CodeEditPromo), e.control(sess, "btn_delete", CodeEditDelete)),
		e.backRow(sess),
	}
	return r
}
