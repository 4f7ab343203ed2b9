package corpus

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Effex-D/twitch-bot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeWordlist(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prize_words.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Valid(t *testing.T) {
	path := writeWordlist(t, `{
		"adjectives": ["Golden", "Inflatable"],
		"nouns": ["Toaster", "Banjo"],
		"abstracts": ["Disappointment"]
	}`)

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Golden", "Inflatable"}, c.Adjectives)
	assert.Equal(t, []string{"Toaster", "Banjo"}, c.Nouns)
	assert.Equal(t, []string{"Disappointment"}, c.Abstracts)
}

func TestLoad_MissingAbstractsIsFine(t *testing.T) {
	path := writeWordlist(t, `{"adjectives": ["Golden"], "nouns": ["Toaster"]}`)

	c, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, c.Abstracts)
}

func TestLoad_EmptyAdjectivesFatal(t *testing.T) {
	path := writeWordlist(t, `{"adjectives": [], "nouns": ["Toaster"]}`)

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrEmptyCorpus))
	assert.Contains(t, err.Error(), "adjectives")
}

func TestLoad_EmptyNounsFatal(t *testing.T) {
	path := writeWordlist(t, `{"adjectives": ["Golden"], "nouns": []}`)

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrEmptyCorpus))
	assert.Contains(t, err.Error(), "nouns")
}

func TestLoad_FileMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}

func TestLoad_MalformedJSON(t *testing.T) {
	path := writeWordlist(t, `{"adjectives": [`)
	_, err := Load(path)
	require.Error(t, err)
}
