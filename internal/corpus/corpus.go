// Package corpus loads the prize word lists from disk.
package corpus

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Effex-D/twitch-bot/internal/domain"
)

type wordlistFile struct {
	Adjectives []string `json:"adjectives"`
	Nouns      []string `json:"nouns"`
	Abstracts  []string `json:"abstracts"`
}

// Load reads the prize wordlist JSON at path and validates it.
// Adjectives and nouns must be non-empty; an empty abstracts list just
// disables the easter egg draw.
func Load(path string) (*domain.PrizeCorpus, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prize wordlist: %w", err)
	}

	var file wordlistFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse prize wordlist %s: %w", path, err)
	}

	if len(file.Adjectives) == 0 {
		return nil, fmt.Errorf("%s: adjectives: %w", path, domain.ErrEmptyCorpus)
	}
	if len(file.Nouns) == 0 {
		return nil, fmt.Errorf("%s: nouns: %w", path, domain.ErrEmptyCorpus)
	}

	return &domain.PrizeCorpus{
		Adjectives: file.Adjectives,
		Nouns:      file.Nouns,
		Abstracts:  file.Abstracts,
	}, nil
}
