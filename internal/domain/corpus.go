package domain

// PrizeCorpus holds the word lists used by the !prize command.
// Loaded once at startup and treated as immutable afterwards.
type PrizeCorpus struct {
	Adjectives []string
	Nouns      []string
	Abstracts  []string
}
