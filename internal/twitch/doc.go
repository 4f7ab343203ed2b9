// Package twitch wraps the Helix API surface the bot needs: user lookup,
// EventSub chat subscriptions and chat message sending. All failures come
// back as domain.APIError with a retry classification.
package twitch
