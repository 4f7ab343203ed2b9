package twitch

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Effex-D/twitch-bot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(ClientOptions{
		ClientID:        "client-id",
		UserAccessToken: "token",
		APIBaseURL:      srv.URL,
	})
	require.NoError(t, err)
	return client
}

func TestResolveUsers(t *testing.T) {
	t.Run("resolves all logins", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/users", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"data": [
				{"id": "123", "login": "streamer"},
				{"id": "789", "login": "botaccount"}
			]}`))
		})

		users, err := client.ResolveUsers([]string{"streamer", "botaccount"})
		require.NoError(t, err)
		assert.Equal(t, User{ID: "123", Login: "streamer"}, users["streamer"])
		assert.Equal(t, User{ID: "789", Login: "botaccount"}, users["botaccount"])
	})

	t.Run("missing login is permanent", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"data": [{"id": "123", "login": "streamer"}]}`))
		})

		_, err := client.ResolveUsers([]string{"streamer", "ghost"})
		require.Error(t, err)
		assert.Equal(t, domain.ClassPermanent, domain.Classify(err))
		assert.ErrorContains(t, err, "ghost")
	})

	t.Run("unauthorized is permanent auth", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error": "Unauthorized", "status": 401, "message": "invalid access token"}`))
		})

		_, err := client.ResolveUsers([]string{"streamer"})
		require.Error(t, err)
		assert.Equal(t, domain.ClassPermanentAuth, domain.Classify(err))
	})
}

func TestCreateChatSubscription(t *testing.T) {
	t.Run("returns subscription id", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/eventsub/subscriptions", r.URL.Path)
			assert.Equal(t, http.MethodPost, r.Method)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusAccepted)
			w.Write([]byte(`{"data": [{
				"id": "sub-abc",
				"type": "channel.chat.message",
				"status": "enabled"
			}], "total": 1}`))
		})

		subID, err := client.CreateChatSubscription("123", "789", "session-1")
		require.NoError(t, err)
		assert.Equal(t, "sub-abc", subID)
	})

	t.Run("forbidden is permanent auth", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"error": "Forbidden", "status": 403, "message": "missing scope user:read:chat"}`))
		})

		_, err := client.CreateChatSubscription("123", "789", "session-1")
		require.Error(t, err)
		assert.Equal(t, domain.ClassPermanentAuth, domain.Classify(err))
	})

	t.Run("server error is transient", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error": "Internal Server Error", "status": 500, "message": ""}`))
		})

		_, err := client.CreateChatSubscription("123", "789", "session-1")
		require.Error(t, err)
		assert.Equal(t, domain.ClassTransient, domain.Classify(err))
	})
}

func TestSendChatMessage(t *testing.T) {
	t.Run("sends threaded reply", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/chat/messages", r.URL.Path)
			assert.Equal(t, http.MethodPost, r.Method)
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"data": [{"message_id": "out-1", "is_sent": true}]}`))
		})

		err := client.SendChatMessage("123", "789", "Hey there!", "msg-1")
		assert.NoError(t, err)
	})

	t.Run("rate limited maps to rate limit class", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error": "Too Many Requests", "status": 429, "message": "rate limited"}`))
		})

		err := client.SendChatMessage("123", "789", "hi", "")
		require.Error(t, err)
		assert.Equal(t, domain.ClassRateLimited, domain.Classify(err))
	})
}

func TestClassifyResponse(t *testing.T) {
	tests := []struct {
		status int
		want   domain.ErrorClass
	}{
		{http.StatusUnauthorized, domain.ClassPermanentAuth},
		{http.StatusForbidden, domain.ClassPermanentAuth},
		{http.StatusTooManyRequests, domain.ClassRateLimited},
		{http.StatusInternalServerError, domain.ClassTransient},
		{http.StatusBadGateway, domain.ClassTransient},
		{http.StatusBadRequest, domain.ClassPermanent},
		{http.StatusConflict, domain.ClassPermanent},
	}

	for _, tt := range tests {
		apiErr := classifyResponse(tt.status, "err", "msg")
		assert.Equal(t, tt.want, apiErr.Class, "status %d", tt.status)
		assert.Equal(t, tt.status, apiErr.StatusCode)
	}
}
