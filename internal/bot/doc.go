// Package bot implements the command engine.
//
// Dispatch turns one chat event into at most one action. Parsing is
// prefix-based: the first whitespace-delimited token selects the command,
// the rest are arguments. Unknown commands are ignored so the bot stays
// quiet in channels that run other bots with their own prefixes.
package bot
