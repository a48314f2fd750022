package models

// CartLine — строка корзины (пользователь, товар, количество).
// Цена и промо-флаг берутся из каталога на момент чтения, а не фиксируются.
type CartLine struct {
	ID        int64
	UserID    int64
	ProductID int64
	NameRU    string
	NameUZ    string
	Price     int64
	IsPromo   bool
	Quantity  int
	Available bool // false, если товар удалён из каталога
}

// Name возвращает название товара на нужном языке
func (l CartLine) Name(lang Language) string {
	if !l.Available {
		return ""
	}
	if lang == LanguageUZ && l.NameUZ != "" {
		return l.NameUZ
	}
	return l.NameRU
}
