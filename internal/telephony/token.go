package telephony

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var ErrEmptyToken = errors.New("token endpoint returned an empty token")

// Token is the access token the device registers with.
type Token struct {
	Token    string `json:"token"`
	Identity string `json:"identity"`
}

type TokenClient struct {
	endpoint   string
	httpClient *http.Client
}

func NewTokenClient(endpoint string) *TokenClient {
	return &TokenClient{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Fetch requests a token for identity. It does not retry.
func (c *TokenClient) Fetch(ctx context.Context, identity string) (Token, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return Token{}, fmt.Errorf("parse token url: %w", err)
	}
	q := u.Query()
	q.Set("identity", identity)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Token{}, fmt.Errorf("build token request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Token{}, fmt.Errorf("request token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Token{}, fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tok Token
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return Token{}, fmt.Errorf("decode token response: %w", err)
	}
	if strings.TrimSpace(tok.Token) == "" {
		return Token{}, ErrEmptyToken
	}
	return tok, nil
}
