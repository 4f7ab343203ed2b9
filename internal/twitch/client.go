package twitch

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/Effex-D/twitch-bot/internal/domain"
	"github.com/nicklaw5/helix/v2"
)

const chatMessageSubType = "channel.chat.message"

// User is a resolved Twitch account.
type User struct {
	ID    string
	Login string
}

// Client wraps a helix client authenticated with the bot's user token.
type Client struct {
	client *helix.Client
}

// ClientOptions configures the Helix client. APIBaseURL is overridable for
// tests and defaults to the real Helix endpoint when empty.
type ClientOptions struct {
	ClientID        string
	UserAccessToken string
	APIBaseURL      string
}

func NewClient(opts ClientOptions) (*Client, error) {
	helixOpts := &helix.Options{
		ClientID:        opts.ClientID,
		UserAccessToken: opts.UserAccessToken,
	}
	if opts.APIBaseURL != "" {
		helixOpts.APIBaseURL = opts.APIBaseURL
	}

	client, err := helix.NewClient(helixOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create helix client: %w", err)
	}

	return &Client{client: client}, nil
}

// ResolveUsers maps logins to user IDs. Every requested login must exist;
// a missing login is a configuration error, not something to retry.
func (c *Client) ResolveUsers(logins []string) (map[string]User, error) {
	resp, err := c.client.GetUsers(&helix.UsersParams{Logins: logins})
	if err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, classifyResponse(resp.StatusCode, resp.Error, resp.ErrorMessage)
	}

	users := make(map[string]User, len(resp.Data.Users))
	for _, u := range resp.Data.Users {
		login := strings.ToLower(u.Login)
		users[login] = User{ID: u.ID, Login: login}
	}

	var missing []string
	for _, login := range logins {
		if _, ok := users[strings.ToLower(login)]; !ok {
			missing = append(missing, login)
		}
	}
	if len(missing) > 0 {
		return nil, &domain.APIError{
			Class:      domain.ClassPermanent,
			StatusCode: http.StatusOK,
			Err:        fmt.Errorf("logins not found: %s", strings.Join(missing, ", ")),
		}
	}

	return users, nil
}

// CreateChatSubscription registers a channel.chat.message subscription for
// one broadcaster on the given websocket session.
func (c *Client) CreateChatSubscription(broadcasterID, botUserID, sessionID string) (string, error) {
	resp, err := c.client.CreateEventSubSubscription(&helix.EventSubSubscription{
		Type:    chatMessageSubType,
		Version: "1",
		Condition: helix.EventSubCondition{
			BroadcasterUserID: broadcasterID,
			UserID:            botUserID,
		},
		Transport: helix.EventSubTransport{
			Method:    "websocket",
			SessionID: sessionID,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create eventsub subscription: %w", err)
	}

	if resp.StatusCode != http.StatusAccepted {
		return "", classifyResponse(resp.StatusCode, resp.Error, resp.ErrorMessage)
	}

	if len(resp.Data.EventSubSubscriptions) == 0 {
		return "", &domain.APIError{
			Class:      domain.ClassTransient,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("no subscription returned"),
		}
	}

	return resp.Data.EventSubSubscriptions[0].ID, nil
}

// SendChatMessage posts a chat message, optionally as a threaded reply.
func (c *Client) SendChatMessage(broadcasterID, senderID, message, replyParentMessageID string) error {
	resp, err := c.client.SendChatMessage(&helix.SendChatMessageParams{
		BroadcasterID:        broadcasterID,
		SenderID:             senderID,
		Message:              message,
		ReplyParentMessageID: replyParentMessageID,
	})
	if err != nil {
		return fmt.Errorf("failed to send chat message: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return classifyResponse(resp.StatusCode, resp.Error, resp.ErrorMessage)
	}

	return nil
}

// classifyResponse maps a Helix status code onto the retry taxonomy.
func classifyResponse(statusCode int, errName, errMessage string) *domain.APIError {
	class := domain.ClassPermanent
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		class = domain.ClassPermanentAuth
	case statusCode == http.StatusTooManyRequests:
		class = domain.ClassRateLimited
	case statusCode >= http.StatusInternalServerError:
		class = domain.ClassTransient
	}

	return &domain.APIError{
		Class:      class,
		StatusCode: statusCode,
		Err:        fmt.Errorf("%s: %s", errName, errMessage),
	}
}
