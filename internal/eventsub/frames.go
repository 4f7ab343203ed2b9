package eventsub

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Effex-D/twitch-bot/internal/domain"
)

// EventSub websocket message types.
const (
	msgWelcome      = "session_welcome"
	msgKeepalive    = "session_keepalive"
	msgNotification = "notification"
	msgReconnect    = "session_reconnect"
	msgRevocation   = "revocation"
)

// frame is the envelope every EventSub websocket message arrives in.
type frame struct {
	Metadata frameMetadata   `json:"metadata"`
	Payload  json.RawMessage `json:"payload"`
}

type frameMetadata struct {
	MessageID        string `json:"message_id"`
	MessageType      string `json:"message_type"`
	MessageTimestamp string `json:"message_timestamp"`
	SubscriptionType string `json:"subscription_type"`
}

// sessionPayload is the payload of session_welcome and session_reconnect.
type sessionPayload struct {
	Session struct {
		ID                      string `json:"id"`
		Status                  string `json:"status"`
		KeepaliveTimeoutSeconds int    `json:"keepalive_timeout_seconds"`
		ReconnectURL            string `json:"reconnect_url"`
	} `json:"session"`
}

// notificationPayload is the payload of notification and revocation frames.
type notificationPayload struct {
	Subscription struct {
		ID     string `json:"id"`
		Type   string `json:"type"`
		Status string `json:"status"`
	} `json:"subscription"`
	Event json.RawMessage `json:"event"`
}

// chatMessageEvent is the channel.chat.message notification event body.
type chatMessageEvent struct {
	BroadcasterUserID    string `json:"broadcaster_user_id"`
	BroadcasterUserLogin string `json:"broadcaster_user_login"`
	ChatterUserID        string `json:"chatter_user_id"`
	ChatterUserLogin     string `json:"chatter_user_login"`
	MessageID            string `json:"message_id"`
	Message              struct {
		Text      string `json:"text"`
		Fragments []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"fragments"`
	} `json:"message"`
}

func decodeFrame(data []byte) (*frame, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("malformed eventsub frame: %w", err)
	}
	if f.Metadata.MessageType == "" {
		return nil, fmt.Errorf("eventsub frame missing message_type")
	}
	return &f, nil
}

func (f *frame) sessionPayload() (*sessionPayload, error) {
	var p sessionPayload
	if err := json.Unmarshal(f.Payload, &p); err != nil {
		return nil, fmt.Errorf("malformed %s payload: %w", f.Metadata.MessageType, err)
	}
	return &p, nil
}

func (f *frame) notificationPayload() (*notificationPayload, error) {
	var p notificationPayload
	if err := json.Unmarshal(f.Payload, &p); err != nil {
		return nil, fmt.Errorf("malformed %s payload: %w", f.Metadata.MessageType, err)
	}
	return &p, nil
}

func (p *notificationPayload) chatEvent() (domain.ChatEvent, error) {
	var ev chatMessageEvent
	if err := json.Unmarshal(p.Event, &ev); err != nil {
		return domain.ChatEvent{}, fmt.Errorf("malformed chat message event: %w", err)
	}
	return domain.ChatEvent{
		BroadcasterID:    ev.BroadcasterUserID,
		BroadcasterLogin: ev.BroadcasterUserLogin,
		ChatterID:        ev.ChatterUserID,
		ChatterLogin:     ev.ChatterUserLogin,
		MessageID:        ev.MessageID,
		Text:             ev.plainText(),
	}, nil
}

// plainText flattens the message fragments, falling back to the raw text
// field when no fragments are present. Emote fragments keep their textual
// form so commands like !echo reproduce the message faithfully.
func (ev *chatMessageEvent) plainText() string {
	if len(ev.Message.Fragments) == 0 {
		return ev.Message.Text
	}
	var sb strings.Builder
	for _, frag := range ev.Message.Fragments {
		sb.WriteString(frag.Text)
	}
	return sb.String()
}
