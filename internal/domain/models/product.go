package models

// Product представляет товар каталога
type Product struct {
	ID            int64
	NameRU        string
	NameUZ        string
	DescriptionRU string
	DescriptionUZ string
	Price         int64 // цена в сумах, неотрицательная
	IsPromo       bool
	PhotoID       string // ссылка на фото во внешнем мессенджере
}

// Name возвращает название на нужном языке
func (p *Product) Name(lang Language) string {
	if lang == LanguageUZ {
		return p.NameUZ
	}
	return p.NameRU
}

// Description возвращает описание на нужном языке
func (p *Product) Description(lang Language) string {
	if lang == LanguageUZ {
		return p.DescriptionUZ
	}
	return p.DescriptionRU
}

// ProductPatch частичное изменение товара; nil-поля не меняются
type ProductPatch struct {
	NameRU        *string
	NameUZ        *string
	DescriptionRU *string
	DescriptionUZ *string
	Price         *int64
	IsPromo       *bool
	PhotoID       *string
}

// Empty сообщает, что patch ничего не меняет
func (p ProductPatch) Empty() bool {
	return p.NameRU == nil && p.NameUZ == nil && p.DescriptionRU == nil && p.DescriptionUZ == nil &&
		p.Price == nil && p.IsPromo == nil && p.PhotoID == nil
}
