package conversation

import "fmt"

// State — шаг диалога
type State int

const (
	StateSelectingLanguage State = iota
	StateMainMenu
	StateViewingProducts
	StateCart
	StateCheckoutName
	StateCheckoutPhone
	StateCheckoutAddress
	StateAdminMenu
	StateAdminAddProduct
	StateAdminWaitPhoto
	StateEditProductSelect
	StateEditProductAction
	StateEditProductInput
	StateEditProductConfirmDelete
)

var stateNames = [...]string{
	StateSelectingLanguage:        "selecting_language",
	StateMainMenu:                 "main_menu",
	StateViewingProducts:          "viewing_products",
	StateCart:                     "cart",
	StateCheckoutName:             "checkout_name",
	StateCheckoutPhone:            "checkout_phone",
	StateCheckoutAddress:          "checkout_address",
	StateAdminMenu:                "admin_menu",
	StateAdminAddProduct:          "admin_add_product",
	StateAdminWaitPhoto:           "admin_wait_photo",
	StateEditProductSelect:        "edit_product_select",
	StateEditProductAction:        "edit_product_action",
	StateEditProductInput:         "edit_product_input",
	StateEditProductConfirmDelete: "edit_product_confirm_delete",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// IsAdmin сообщает, относится ли шаг к админ-панели
func (s State) IsAdmin() bool {
	return s >= StateAdminMenu
}

// IsCheckout сообщает, относится ли шаг к оформлению заказа
func (s State) IsCheckout() bool {
	return s == StateCheckoutName || s == StateCheckoutPhone || s == StateCheckoutAddress
}

// Parent — куда ведёт кнопка «назад»
func (s State) Parent() State {
	switch {
	case s.IsCheckout():
		return StateCart
	case s == StateSelectingLanguage:
		return StateSelectingLanguage
	default:
		return StateMainMenu
	}
}

// MarshalText хранит состояние в сессии по имени, а не по номеру
func (s State) MarshalText() ([]byte, error) {
	if s < 0 || int(s) >= len(stateNames) {
		return nil, fmt.Errorf("unknown state %d", int(s))
	}
	return []byte(stateNames[s]), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for i, name := range stateNames {
		if name == string(text) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", text)
}
