// Package i18n implements the `Translator.t(key, vars) -> string` external
// collaborator spec.md §1/§6 treats as a contract: a pure lookup that never
// fails (missing key returns the key itself).
package i18n

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// validLocales mirrors original_source/commands/system.rs's whitelist.
var validLocales = map[string]bool{
	"en": true, "zh": true, "zh-CN": true, "zh-TW": true, "ja": true, "fr": true,
}

// Translator looks up message templates per locale and substitutes named
// variables ("{{name}}") into them. Loaded from a YAML catalog, the
// teacher's config-loading idiom generalised to message strings.
type Translator struct {
	locale   string
	catalogs map[string]map[string]string
}

// New returns a Translator defaulting to English with an empty catalog.
func New() *Translator {
	return &Translator{locale: "en", catalogs: make(map[string]map[string]string)}
}

// LoadCatalog parses a YAML document of the form `locale: {key: template}`
// and merges it into the translator.
func (t *Translator) LoadCatalog(data []byte) error {
	var parsed map[string]map[string]string
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return err
	}
	for locale, messages := range parsed {
		if t.catalogs[locale] == nil {
			t.catalogs[locale] = make(map[string]string)
		}
		for k, v := range messages {
			t.catalogs[locale][k] = v
		}
	}
	return nil
}

// SetLanguage validates lang against the whitelist and switches the active
// locale, exactly as original_source/commands/system.rs does: unsupported
// codes fall back to "en" without erroring, per spec.md §6.
func (t *Translator) SetLanguage(lang string) {
	base := lang
	if i := strings.IndexByte(lang, '-'); i >= 0 {
		base = lang[:i]
	}

	if !validLocales[base] && !validLocales[lang] {
		t.locale = "en"
		return
	}
	t.locale = lang
}

// Locale returns the currently active locale code.
func (t *Translator) Locale() string {
	return t.locale
}

// T looks up key in the active locale's catalog, falling back to English,
// then to the key itself if nowhere found. "{{name}}" placeholders in the
// template are substituted from vars.
func (t *Translator) T(key string, vars map[string]string) string {
	template, ok := t.catalogs[t.locale][key]
	if !ok {
		template, ok = t.catalogs["en"][key]
	}
	if !ok {
		return key
	}

	for name, value := range vars {
		template = strings.ReplaceAll(template, "{{"+name+"}}", value)
	}
	return template
}
