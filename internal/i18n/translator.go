// Package i18n resolves translation keys for notification content.
// Locale files are YAML documents keyed by language at the root:
//
//	en:
//	  notifications:
//	    volunteer:
//	      accepted_title: "Welcome aboard, %{name}!"
package i18n

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

var (
	ErrTranslationNotFound = errors.New("translation not found")
	ErrInvalidLocaleFile   = errors.New("invalid locale file")
)

// Resolver is the localization collaborator used by notification delivery
type Resolver interface {
	Translate(key string, params map[string]any, lang string) (string, error)
}

// Translator is an in-memory Resolver loaded from YAML
type Translator struct {
	mu           sync.RWMutex
	translations map[string]map[string]any
	defaultLang  string
	matcher      language.Matcher
	tags         []string
	logger       *slog.Logger
}

type Option func(*Translator)

func WithLogger(l *slog.Logger) Option {
	return func(t *Translator) { t.logger = l }
}

// NewTranslator builds a translator over already parsed translations.
// defaultLang must be one of the loaded languages.
func NewTranslator(defaultLang string, translations map[string]map[string]any, opts ...Option) (*Translator, error) {
	t := &Translator{
		translations: make(map[string]map[string]any),
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	for lang, tree := range translations {
		t.translations[normalize(lang)] = tree
	}
	t.defaultLang = normalize(defaultLang)
	if _, ok := t.translations[t.defaultLang]; !ok {
		return nil, fmt.Errorf("%w: default language %q has no translations", ErrInvalidLocaleFile, defaultLang)
	}
	t.buildMatcher()
	return t, nil
}

// LoadDir reads every *.yaml / *.yml file under dir and merges them
func LoadDir(dir, defaultLang string, opts ...Option) (*Translator, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read locales dir: %w", err)
	}

	merged := make(map[string]map[string]any)
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		parsed, err := ParseYAML(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		for lang, tree := range parsed {
			if merged[lang] == nil {
				merged[lang] = make(map[string]any)
			}
			mergeTree(merged[lang], tree)
		}
	}
	return NewTranslator(defaultLang, merged, opts...)
}

// ParseYAML decodes one locale document
func ParseYAML(raw []byte) (map[string]map[string]any, error) {
	var data map[string]any
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, errors.Join(ErrInvalidLocaleFile, err)
	}
	out := make(map[string]map[string]any, len(data))
	for lang, val := range data {
		tree, ok := val.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: language %q: expected map, got %T", ErrInvalidLocaleFile, lang, val)
		}
		out[normalize(lang)] = tree
	}
	return out, nil
}

// Translate resolves key in lang, falling back to the closest supported
// language and then to the default language.
func (t *Translator) Translate(key string, params map[string]any, lang string) (string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, candidate := range t.candidates(lang) {
		if tmpl, ok := lookup(t.translations[candidate], key); ok {
			return interpolate(tmpl, params), nil
		}
	}
	t.logger.Warn("translation_missing", "key", key, "lang", lang)
	return "", fmt.Errorf("%w: %s (%s)", ErrTranslationNotFound, key, lang)
}

// Has reports whether lang itself defines key, without any fallback
func (t *Translator) Has(lang, key string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := lookup(t.translations[normalize(lang)], key)
	return ok
}

// Languages lists the loaded language codes
func (t *Translator) Languages() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]string(nil), t.tags...)
}

func (t *Translator) buildMatcher() {
	t.tags = t.tags[:0]
	// default first so it wins ties
	supported := []language.Tag{language.Make(t.defaultLang)}
	t.tags = append(t.tags, t.defaultLang)
	for lang := range t.translations {
		if lang == t.defaultLang {
			continue
		}
		supported = append(supported, language.Make(lang))
		t.tags = append(t.tags, lang)
	}
	t.matcher = language.NewMatcher(supported)
}

func (t *Translator) candidates(lang string) []string {
	out := make([]string, 0, 3)
	if lang = normalize(lang); lang != "" {
		if _, ok := t.translations[lang]; ok {
			out = append(out, lang)
		} else if tag, err := language.Parse(lang); err == nil {
			_, idx, conf := t.matcher.Match(tag)
			if conf != language.No {
				out = append(out, t.tags[idx])
			}
		}
	}
	return append(out, t.defaultLang)
}

func normalize(lang string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(lang), "_", "-"))
}

// lookup walks dot separated keys through nested maps
func lookup(tree map[string]any, key string) (string, bool) {
	if tree == nil {
		return "", false
	}
	parts := strings.Split(key, ".")
	current := tree
	for i, part := range parts {
		val, ok := current[part]
		if !ok {
			return "", false
		}
		if i == len(parts)-1 {
			s, ok := val.(string)
			return s, ok
		}
		next, ok := val.(map[string]any)
		if !ok {
			return "", false
		}
		current = next
	}
	return "", false
}

func mergeTree(dst, src map[string]any) {
	for k, v := range src {
		srcMap, srcIsMap := v.(map[string]any)
		dstMap, dstIsMap := dst[k].(map[string]any)
		if srcIsMap && dstIsMap {
			mergeTree(dstMap, srcMap)
			continue
		}
		dst[k] = v
	}
}

var paramRegex = regexp.MustCompile(`%\{([^}]+)\}`)

// interpolate replaces %{name} with params[name], unknown names are kept as is
func interpolate(tmpl string, params map[string]any) string {
	if len(params) == 0 {
		return tmpl
	}
	return paramRegex.ReplaceAllStringFunc(tmpl, func(match string) string {
		if val, ok := params[match[2:len(match)-1]]; ok {
			return fmt.Sprint(val)
		}
		return match
	})
}
