package conversation

import "github.com/linemk/shop-bot/internal/domain/models"

// Session — состояние диалога одного пользователя. Передаётся в Engine.Handle
// и возвращается из него; временные данные (черновик товара, поля оформления) живут только здесь.
type Session struct {
	UserID   int64           `json:"user_id"`
	State    State           `json:"state"`
	Language models.Language `json:"language,omitempty"`

	Draft     *models.Product `json:"draft,omitempty"`
	EditingID int64           `json:"editing_id,omitempty"`
	EditField string          `json:"edit_field,omitempty"`

	CheckoutName  string `json:"checkout_name,omitempty"`
	CheckoutPhone string `json:"checkout_phone,omitempty"`
}

func (s Session) lang() models.Language {
	if s.Language.Valid() {
		return s.Language
	}
	return models.DefaultLanguage
}

// goTo переходит в состояние и сбрасывает временные данные, которые ему не нужны
func (s Session) goTo(state State) Session {
	s.State = state
	if !state.IsCheckout() {
		s.CheckoutName, s.CheckoutPhone = "", ""
	}
	if state != StateAdminWaitPhoto {
		s.Draft = nil
	}
	switch state {
	case StateEditProductAction, StateEditProductInput, StateEditProductConfirmDelete:
	default:
		s.EditingID = 0
	}
	if state != StateEditProductInput {
		s.EditField = ""
	}
	return s
}
