package i18n

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testLocales = `
en:
  notifications:
    volunteer:
      accepted_title: "Welcome aboard, %{name}!"
      accepted_message: "You were accepted for %{edition}."
    only_en: "english only"
fr:
  notifications:
    volunteer:
      accepted_title: "Bienvenue, %{name} !"
`

func newTestTranslator(t *testing.T) *Translator {
	t.Helper()
	parsed, err := ParseYAML([]byte(testLocales))
	require.NoError(t, err)
	tr, err := NewTranslator("en", parsed)
	require.NoError(t, err)
	return tr
}

func TestTranslate(t *testing.T) {
	tr := newTestTranslator(t)
	params := map[string]any{"name": "Ana", "edition": "Japan Expo 2026"}

	tests := []struct {
		name string
		key  string
		lang string
		want string
	}{
		{"exact language", "notifications.volunteer.accepted_title", "fr", "Bienvenue, Ana !"},
		{"regional tag matches base", "notifications.volunteer.accepted_title", "fr-CA", "Bienvenue, Ana !"},
		{"missing key falls back to default", "notifications.volunteer.accepted_message", "fr", "You were accepted for Japan Expo 2026."},
		{"unknown language falls back to default", "notifications.only_en", "ja", "english only"},
		{"empty language", "notifications.volunteer.accepted_title", "", "Welcome aboard, Ana!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tr.Translate(tt.key, params, tt.lang)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTranslate_MissingKey(t *testing.T) {
	tr := newTestTranslator(t)

	_, err := tr.Translate("notifications.nope", nil, "en")
	assert.ErrorIs(t, err, ErrTranslationNotFound)

	// a branch is not a leaf
	_, err = tr.Translate("notifications.volunteer", nil, "en")
	assert.ErrorIs(t, err, ErrTranslationNotFound)
}

func TestTranslate_UnknownParamKept(t *testing.T) {
	tr := newTestTranslator(t)

	got, err := tr.Translate("notifications.volunteer.accepted_title", map[string]any{"other": 1}, "en")
	require.NoError(t, err)
	assert.Equal(t, "Welcome aboard, %{name}!", got)
}

func TestNewTranslator_DefaultMustExist(t *testing.T) {
	parsed, err := ParseYAML([]byte(testLocales))
	require.NoError(t, err)

	_, err = NewTranslator("de", parsed)
	assert.ErrorIs(t, err, ErrInvalidLocaleFile)
}

func TestParseYAML_RejectsScalarRoot(t *testing.T) {
	_, err := ParseYAML([]byte("en: hello\n"))
	assert.ErrorIs(t, err, ErrInvalidLocaleFile)
}

func TestLoadDir_MergesFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("en:\n  a:\n    x: \"X\"\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yml"), []byte("en:\n  a:\n    y: \"Y\"\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignored"), 0o600))

	tr, err := LoadDir(dir, "en")
	require.NoError(t, err)

	x, err := tr.Translate("a.x", nil, "en")
	require.NoError(t, err)
	y, err := tr.Translate("a.y", nil, "en")
	require.NoError(t, err)
	assert.Equal(t, "X", x)
	assert.Equal(t, "Y", y)
	assert.Equal(t, []string{"en"}, tr.Languages())
}

func TestHas_NoFallback(t *testing.T) {
	tr := newTestTranslator(t)
	assert.True(t, tr.Has("en", "notifications.only_en"))
	assert.False(t, tr.Has("fr", "notifications.only_en"))
	assert.True(t, tr.Has("FR", "notifications.volunteer.accepted_title"))
	assert.False(t, tr.Has("en", "notifications.volunteer"), "a subtree is not a message")
}
