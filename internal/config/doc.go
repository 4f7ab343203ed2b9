// Package config loads and validates the bot's environment configuration.
package config
