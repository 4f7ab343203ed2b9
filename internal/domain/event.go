package domain

// ChatEvent is a single inbound channel.chat.message notification.
// Created once per frame by the session manager and consumed once by the
// command engine.
type ChatEvent struct {
	BroadcasterID    string
	BroadcasterLogin string
	ChatterID        string
	ChatterLogin     string
	MessageID        string
	Text             string
}

// ActionKind discriminates the command engine's output.
type ActionKind int

const (
	// ActionNone means the message produced no reply.
	ActionNone ActionKind = iota
	// ActionReply means Text should be sent back to the channel.
	ActionReply
)

// Action is what the command engine decided to do with a chat event.
type Action struct {
	Kind ActionKind
	Text string
}

// NoOp is the action for messages the bot ignores.
func NoOp() Action { return Action{Kind: ActionNone} }

// Reply builds a reply action with the given text.
func Reply(text string) Action { return Action{Kind: ActionReply, Text: text} }
