package conversation

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/linemk/shop-bot/internal/domain/models"
	"github.com/linemk/shop-bot/internal/locale"
	"github.com/linemk/shop-bot/internal/service"
)

// поля товара, которые можно редактировать
const (
	fieldName        = "name"
	fieldDescription = "description"
	fieldPrice       = "price"
	fieldPhoto       = "photo"
)

var editCodes = map[string]string{
	CodeEditName:        fieldName,
	CodeEditDescription: fieldDescription,
	CodeEditPrice:       fieldPrice,
	CodeEditPhoto:       fieldPhoto,
}

func (e *Engine) adminMenu(ctx context.Context, sess Session, ev Event) (Session, Reply) {
	code, _ := ev.button()
	switch code {
	case CodeAdminAdd:
		next := sess.goTo(StateAdminAddProduct)
		return next, e.render(ctx, next)
	case CodeAdminEdit:
		next := sess.goTo(StateEditProductSelect)
		return next, e.render(ctx, next)
	case CodeAdminOrders:
		reply := e.renderAdminOrders(ctx, sess)
		reply.Keyboard = e.render(ctx, sess).Keyboard
		return sess, reply
	}
	return e.invalid(ctx, sess)
}

// parseProduct разбирает сообщение администратора: 5 строк
// (название RU, название UZ, описание RU, описание UZ, цена) и необязательная 6-я — promo.
func parseProduct(text string) (models.Product, bool) {
	lines := nonEmptyLines(text)
	if len(lines) != 5 && len(lines) != 6 {
		return models.Product{}, false
	}
	price, ok := parsePrice(lines[4])
	if !ok {
		return models.Product{}, false
	}
	p := models.Product{
		NameRU:        lines[0],
		NameUZ:        lines[1],
		DescriptionRU: lines[2],
		DescriptionUZ: lines[3],
		Price:         price,
	}
	if len(lines) == 6 {
		switch strings.ToLower(lines[5]) {
		case "promo", "1":
			p.IsPromo = true
		default:
			return models.Product{}, false
		}
	}
	return p, true
}

func nonEmptyLines(text string) []string {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

func parsePrice(s string) (int64, bool) {
	price, err := strconv.ParseInt(strings.ReplaceAll(strings.TrimSpace(s), " ", ""), 10, 64)
	if err != nil || price < 0 {
		return 0, false
	}
	return price, true
}

func (e *Engine) adminAddProduct(ctx context.Context, sess Session, ev Event) (Session, Reply) {
	if ev.Kind != KindText {
		return e.invalid(ctx, sess)
	}
	p, ok := parseProduct(ev.Text)
	if !ok {
		return sess, e.render(ctx, sess).prepend(t(sess, "admin_bad_product"))
	}
	next := sess.goTo(StateAdminWaitPhoto)
	next.Draft = &p
	return next, e.render(ctx, next)
}

func (e *Engine) adminWaitPhoto(ctx context.Context, logger *slog.Logger, sess Session, ev Event) (Session, Reply) {
	if sess.Draft == nil {
		next := sess.goTo(StateAdminAddProduct)
		return next, e.render(ctx, next)
	}
	if ev.Kind != KindPhoto || ev.PhotoID == "" {
		return e.invalid(ctx, sess)
	}

	draft := *sess.Draft
	draft.PhotoID = ev.PhotoID
	id, err := e.catalog.CreateProduct(ctx, &draft)
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			next := sess.goTo(StateAdminAddProduct)
			return next, e.render(ctx, next).prepend(t(next, "admin_bad_product"))
		}
		return e.fail(ctx, logger, sess, err)
	}
	next := sess.goTo(StateAdminMenu)
	return next, e.render(ctx, next).prepend(tf(next, "admin_product_created", locale.Data{"ID": id}))
}

func (e *Engine) editSelect(ctx context.Context, logger *slog.Logger, sess Session, ev Event) (Session, Reply) {
	code, _ := ev.button()
	id, ok := idFromCode(code, codeEditSelectPrefix)
	if !ok {
		return e.invalid(ctx, sess)
	}
	if _, err := e.catalog.GetProduct(ctx, id); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return sess, e.render(ctx, sess).prepend(t(sess, "unknown_product"))
		}
		return e.fail(ctx, logger, sess, err)
	}
	next := sess.goTo(StateEditProductAction)
	next.EditingID = id
	return next, e.render(ctx, next)
}

func (e *Engine) editAction(ctx context.Context, logger *slog.Logger, sess Session, ev Event) (Session, Reply) {
	if sess.EditingID == 0 {
		next := sess.goTo(StateEditProductSelect)
		return next, e.render(ctx, next)
	}
	code, _ := ev.button()
	if field, ok := editCodes[code]; ok {
		next := sess.goTo(StateEditProductInput)
		next.EditField = field
		return next, e.render(ctx, next)
	}

	switch code {
	case CodeEditPromo:
		p, err := e.catalog.GetProduct(ctx, sess.EditingID)
		if err != nil {
			return e.editFailed(ctx, logger, sess, err)
		}
		promo := !p.IsPromo
		if err := e.catalog.UpdateProduct(ctx, sess.EditingID, models.ProductPatch{IsPromo: &promo}); err != nil {
			return e.editFailed(ctx, logger, sess, err)
		}
		return sess, e.render(ctx, sess).prepend(t(sess, "admin_product_updated"))
	case CodeEditDelete:
		next := sess.goTo(StateEditProductConfirmDelete)
		return next, e.render(ctx, next)
	}
	return e.invalid(ctx, sess)
}

func (e *Engine) editInput(ctx context.Context, logger *slog.Logger, sess Session, ev Event) (Session, Reply) {
	if sess.EditingID == 0 {
		next := sess.goTo(StateEditProductSelect)
		return next, e.render(ctx, next)
	}

	var patch models.ProductPatch
	switch sess.EditField {
	case fieldName, fieldDescription:
		lines := nonEmptyLines(ev.Text)
		if ev.Kind != KindText || len(lines) != 2 {
			return e.invalid(ctx, sess)
		}
		if sess.EditField == fieldName {
			patch.NameRU, patch.NameUZ = &lines[0], &lines[1]
		} else {
			patch.DescriptionRU, patch.DescriptionUZ = &lines[0], &lines[1]
		}
	case fieldPrice:
		price, ok := parsePrice(ev.Text)
		if ev.Kind != KindText || !ok {
			return e.invalid(ctx, sess)
		}
		patch.Price = &price
	case fieldPhoto:
		if ev.Kind != KindPhoto || ev.PhotoID == "" {
			return e.invalid(ctx, sess)
		}
		photo := ev.PhotoID
		patch.PhotoID = &photo
	default:
		next := sess.goTo(StateEditProductAction)
		return next, e.render(ctx, next)
	}

	if err := e.catalog.UpdateProduct(ctx, sess.EditingID, patch); err != nil {
		return e.editFailed(ctx, logger, sess, err)
	}
	next := sess.goTo(StateEditProductAction)
	return next, e.render(ctx, next).prepend(t(next, "admin_product_updated"))
}

func (e *Engine) confirmDelete(ctx context.Context, logger *slog.Logger, sess Session, ev Event) (Session, Reply) {
	code, _ := ev.button()
	switch code {
	case CodeDeleteYes:
		err := e.catalog.DeleteProduct(ctx, sess.EditingID)
		if err != nil && !errors.Is(err, service.ErrNotFound) {
			return e.fail(ctx, logger, sess, err)
		}
		next := sess.goTo(StateAdminMenu)
		return next, e.render(ctx, next).prepend(t(next, "admin_product_deleted"))
	case CodeDeleteNo:
		next := sess.goTo(StateEditProductAction)
		return next, e.render(ctx, next)
	}
	return e.invalid(ctx, sess)
}

// editFailed: товар успели удалить — возвращаемся к выбору товара
func (e *Engine) editFailed(ctx context.Context, logger *slog.Logger, sess Session, err error) (Session, Reply) {
	if errors.Is(err, service.ErrNotFound) {
		next := sess.goTo(StateEditProductSelect)
		return next, e.render(ctx, next).prepend(t(next, "unknown_product"))
	}
	return e.fail(ctx, logger, sess, err)
}
