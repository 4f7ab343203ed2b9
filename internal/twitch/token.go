package twitch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Effex-D/twitch-bot/internal/domain"
)

const defaultValidateURL = "https://id.twitch.tv/oauth2/validate"

// TokenInfo describes a validated user access token.
type TokenInfo struct {
	UserID    string
	Login     string
	ClientID  string
	ExpiresIn time.Duration
	Scopes    []string
}

// TokenValidator checks a user access token against the Twitch ID service.
type TokenValidator struct {
	token       string
	validateURL string // configurable for testing
	client      *http.Client
}

func NewTokenValidator(token string) *TokenValidator {
	return &TokenValidator{
		token:       token,
		validateURL: defaultValidateURL,
		client:      &http.Client{Timeout: 10 * time.Second},
	}
}

// Validate returns the token's identity, or domain.ErrAuthRevoked when the
// ID service rejects it. A rejected token is fatal for the process.
func (tv *TokenValidator) Validate(ctx context.Context) (*TokenInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tv.validateURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build validate request: %w", err)
	}
	req.Header.Set("Authorization", "OAuth "+tv.token)

	resp, err := tv.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token validation request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read validate response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("%w: %s", domain.ErrAuthRevoked, string(body))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token validation returned status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		ClientID  string   `json:"client_id"`
		Login     string   `json:"login"`
		UserID    string   `json:"user_id"`
		Scopes    []string `json:"scopes"`
		ExpiresIn int      `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse validate response: %w", err)
	}

	return &TokenInfo{
		UserID:    result.UserID,
		Login:     result.Login,
		ClientID:  result.ClientID,
		ExpiresIn: time.Duration(result.ExpiresIn) * time.Second,
		Scopes:    result.Scopes,
	}, nil
}
