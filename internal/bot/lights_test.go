package bot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLightsClientSetColour(t *testing.T) {
	t.Run("posts both spellings", func(t *testing.T) {
		var got map[string]string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/set_colour", r.URL.Path)
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		}))
		defer srv.Close()

		lc := NewLightsClient(srv.URL + "/")
		err := lc.SetColour(context.Background(), "teal")

		require.NoError(t, err)
		assert.Equal(t, map[string]string{"colour": "teal", "color": "teal"}, got)
	})

	t.Run("surfaces server errors", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "unknown colour", http.StatusBadRequest)
		}))
		defer srv.Close()

		lc := NewLightsClient(srv.URL)
		err := lc.SetColour(context.Background(), "nope")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "400")
	})
}
