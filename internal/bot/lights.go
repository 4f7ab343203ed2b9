package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const lightsTimeout = 3 * time.Second

// LightsClient talks to the local lights HTTP API. The colour value is
// passed through untouched; the server handles names, hex and casing.
type LightsClient struct {
	baseURL string
	client  *http.Client
}

func NewLightsClient(baseURL string) *LightsClient {
	return &LightsClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: lightsTimeout},
	}
}

// SetColour posts the raw value under both spellings so the server can
// accept either schema.
func (lc *LightsClient) SetColour(ctx context.Context, value string) error {
	payload, err := json.Marshal(map[string]string{"colour": value, "color": value})
	if err != nil {
		return fmt.Errorf("failed to encode lights payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, lc.baseURL+"/set_colour", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build lights request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := lc.client.Do(req)
	if err != nil {
		return fmt.Errorf("lights request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 120))
		return fmt.Errorf("lights API returned HTTP %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
