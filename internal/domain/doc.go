// Package domain defines the core domain types shared across the bot.
//
// Concept-oriented files (event.go, corpus.go, errors.go) hold plain types
// and error classification. No implementation code - just contracts.
// Interfaces live on the consumer side to prevent circular imports.
package domain
