package models

// Language язык интерфейса пользователя
type Language string

const (
	LanguageRU Language = "ru"
	LanguageUZ Language = "uz"
)

// DefaultLanguage используется, пока пользователь не выбрал язык
const DefaultLanguage = LanguageRU

// Valid проверяет, что язык поддерживается
func (l Language) Valid() bool {
	return l == LanguageRU || l == LanguageUZ
}

// User представляет покупателя, идентифицированного внешним id (telegram id)
type User struct {
	ID           int64
	ExternalID   int64
	Language     *Language // nil, пока язык не выбран
	Name         string
	Phone        string
	Address      string
	IsFirstUsage bool
}

// LanguageOrDefault возвращает выбранный язык либо язык по умолчанию
func (u *User) LanguageOrDefault() Language {
	if u == nil || u.Language == nil || !u.Language.Valid() {
		return DefaultLanguage
	}
	return *u.Language
}
