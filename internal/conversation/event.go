package conversation

import (
	"strconv"
	"strings"
)

// EventKind — тип входящего события
type EventKind string

const (
	KindStart    EventKind = "start"
	KindText     EventKind = "text"
	KindButton   EventKind = "button"
	KindPhoto    EventKind = "photo"
	KindLocation EventKind = "location"
	KindContact  EventKind = "contact"
)

// Event — одно входящее событие от пользователя
type Event struct {
	UserID   int64     `json:"user_id" validate:"required"`
	Kind     EventKind `json:"kind" validate:"required,oneof=start text button photo location contact"`
	Text     string    `json:"text,omitempty"`
	Code     string    `json:"code,omitempty" validate:"required_if=Kind button"`
	PhotoID  string    `json:"photo_id,omitempty" validate:"required_if=Kind photo"`
	Phone    string    `json:"phone,omitempty" validate:"required_if=Kind contact"`
	Location *Location `json:"location,omitempty" validate:"required_if=Kind location"`
}

type Location struct {
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

// Коды кнопок. Назначаются при отрисовке и не зависят от языка.
const (
	CodeBack = "back"

	codeLangPrefix = "lang:"

	CodeProducts = "menu:products"
	CodeCart     = "menu:cart"
	CodeOrders   = "menu:orders"
	CodeSettings = "menu:settings"
	CodeAdmin    = "menu:admin"

	CodeCheckout  = "cart:checkout"
	CodeClearCart = "cart:clear"

	codeCartDecPrefix    = "cart:dec:"
	codeCartRemovePrefix = "cart:remove:"

	codeIncPrefix = "product:inc:"
	codeDecPrefix = "product:dec:"

	CodeAdminAdd    = "admin:add"
	CodeAdminEdit   = "admin:edit"
	CodeAdminOrders = "admin:orders"

	codeEditSelectPrefix = "edit:select:"
	CodeEditName         = "edit:name"
	CodeEditDescription  = "edit:description"
	CodeEditPrice        = "edit:price"
	CodeEditPhoto        = "edit:photo"
	CodeEditPromo        = "edit:promo"
	CodeEditDelete       = "edit:delete"

	CodeDeleteYes = "delete:yes"
	CodeDeleteNo  = "delete:no"
)

func CodeLang(lang string) string {
	return codeLangPrefix + lang
}

func CodeInc(productID int64) string {
	return codeIncPrefix + strconv.FormatInt(productID, 10)
}

func CodeDec(productID int64) string {
	return codeDecPrefix + strconv.FormatInt(productID, 10)
}

// CodeCartDec и CodeCartRemove адресуют строку корзины, а не товар:
// так можно убрать и строку удалённого из каталога товара.
func CodeCartDec(cartLineID int64) string {
	return codeCartDecPrefix + strconv.FormatInt(cartLineID, 10)
}

func CodeCartRemove(cartLineID int64) string {
	return codeCartRemovePrefix + strconv.FormatInt(cartLineID, 10)
}

func CodeSelect(productID int64) string {
	return codeEditSelectPrefix + strconv.FormatInt(productID, 10)
}

// button возвращает код кнопки, если событие — нажатие кнопки
func (e Event) button() (string, bool) {
	if e.Kind != KindButton {
		return "", false
	}
	return e.Code, true
}

func (e Event) is(code string) bool {
	c, ok := e.button()
	return ok && c == code
}

// idFromCode извлекает id из кода вида <prefix><id>
func idFromCode(code, prefix string) (int64, bool) {
	rest, ok := strings.CutPrefix(code, prefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
