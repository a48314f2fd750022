// Package locale хранит тексты бота на русском и узбекском.
package locale

import (
	"embed"
	"encoding/json"
	"fmt"
	"path"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"

	"github.com/linemk/shop-bot/internal/domain/models"
)

//go:embed locales/*.json
var files embed.FS

// Data — именованные параметры шаблона сообщения
type Data map[string]any

type catalog struct {
	localizers map[models.Language]*i18n.Localizer
	keys       map[models.Language]map[string]struct{}
}

var texts = mustLoad()

func mustLoad() catalog {
	bundle := i18n.NewBundle(language.Make(string(models.DefaultLanguage)))
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := files.ReadDir("locales")
	if err != nil {
		panic(fmt.Sprintf("locale: read dir: %v", err))
	}
	c := catalog{
		localizers: make(map[models.Language]*i18n.Localizer, len(entries)),
		keys:       make(map[models.Language]map[string]struct{}, len(entries)),
	}
	for _, e := range entries {
		mf, err := bundle.LoadMessageFileFS(files, path.Join("locales", e.Name()))
		if err != nil {
			panic(fmt.Sprintf("locale: load %s: %v", e.Name(), err))
		}
		lang := models.Language(mf.Tag.String())
		keys := make(map[string]struct{}, len(mf.Messages))
		for _, m := range mf.Messages {
			keys[m.ID] = struct{}{}
		}
		c.keys[lang] = keys
		c.localizers[lang] = i18n.NewLocalizer(bundle, string(lang))
	}
	return c
}

// GetText возвращает текст по ключу. Неизвестный язык заменяется языком по умолчанию,
// отсутствующий ключ — видимой заглушкой.
func GetText(lang models.Language, key string) string {
	return Textf(lang, key, nil)
}

// Textf подставляет data в шаблон сообщения ({{.Name}})
func Textf(lang models.Language, key string, data Data) string {
	if !Has(lang, key) {
		lang = models.DefaultLanguage
	}
	loc, ok := texts.localizers[lang]
	if !ok {
		return "Missing translation: " + key
	}
	cfg := &i18n.LocalizeConfig{MessageID: key}
	if data != nil {
		cfg.TemplateData = map[string]any(data)
	}
	s, err := loc.Localize(cfg)
	if err != nil {
		return "Missing translation: " + key
	}
	return s
}

// Has сообщает, есть ли перевод ключа для языка
func Has(lang models.Language, key string) bool {
	_, ok := texts.keys[lang][key]
	return ok
}
