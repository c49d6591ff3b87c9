// Package i18n holds the translated message catalogs used in API responses and
// customer emails.
package i18n

import (
	"bytes"
	"embed"
	"fmt"
	"path"
	"strings"
	"sync"
	"text/template"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var localeFS embed.FS

const DefaultLang = "en"

type Bundle struct {
	supported []language.Tag
	matcher   language.Matcher
	messages  map[string]map[string]string

	mu        sync.Mutex
	templates map[string]*template.Template
}

// Load parses the embedded catalogs. The default language is always first so
// unmatched Accept-Language headers fall back to it.
func Load() (*Bundle, error) {
	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return nil, err
	}

	b := &Bundle{
		messages:  map[string]map[string]string{},
		templates: map[string]*template.Template{},
	}
	tags := []language.Tag{language.Make(DefaultLang)}
	for _, e := range entries {
		lang := strings.TrimSuffix(e.Name(), path.Ext(e.Name()))
		data, err := localeFS.ReadFile("locales/" + e.Name())
		if err != nil {
			return nil, err
		}
		msgs := map[string]string{}
		if err := yaml.Unmarshal(data, &msgs); err != nil {
			return nil, fmt.Errorf("locale %s: %w", lang, err)
		}
		b.messages[lang] = msgs
		if lang != DefaultLang {
			tags = append(tags, language.Make(lang))
		}
	}
	if _, ok := b.messages[DefaultLang]; !ok {
		return nil, fmt.Errorf("locale %s missing", DefaultLang)
	}

	b.supported = tags
	b.matcher = language.NewMatcher(tags)
	return b, nil
}

func MustLoad() *Bundle {
	b, err := Load()
	if err != nil {
		panic(err)
	}
	return b
}

// Match picks the best supported language for an Accept-Language header value.
func (b *Bundle) Match(acceptLanguage string) string {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return DefaultLang
	}
	_, idx, conf := b.matcher.Match(tags...)
	if conf == language.No {
		return DefaultLang
	}
	base, _ := b.supported[idx].Base()
	return base.String()
}

// Text returns the raw message for key, falling back to the default language.
func (b *Bundle) Text(lang, key string) (string, bool) {
	if msg, ok := b.messages[lang][key]; ok {
		return msg, true
	}
	msg, ok := b.messages[DefaultLang][key]
	return msg, ok
}

// Render executes the message for key as a text/template with data.
func (b *Bundle) Render(lang, key string, data any) (string, error) {
	if _, ok := b.messages[lang]; !ok {
		lang = DefaultLang
	}
	tmpl, err := b.template(lang, key)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (b *Bundle) template(lang, key string) (*template.Template, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := lang + ":" + key
	if t, ok := b.templates[id]; ok {
		return t, nil
	}
	msg, ok := b.Text(lang, key)
	if !ok {
		return nil, fmt.Errorf("message %q not found", key)
	}
	t, err := template.New(id).Option("missingkey=zero").Parse(msg)
	if err != nil {
		return nil, err
	}
	b.templates[id] = t
	return t, nil
}
