package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// RemoteVerifier validates tokens by fetching the user from the auth server.
type RemoteVerifier struct {
	userURL string
	anonKey string
	base    *http.Client
}

func NewRemoteVerifier(cfg Config) (*RemoteVerifier, error) {
	if cfg.SupabaseURL == "" {
		return nil, ErrMissingAuthURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RemoteVerifier{
		userURL: strings.TrimRight(cfg.SupabaseURL, "/") + "/auth/v1/user",
		anonKey: cfg.SupabaseAnonKey,
		base:    &http.Client{Timeout: timeout},
	}, nil
}

type remoteUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func (v *RemoteVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, fmt.Errorf("%w: %w", ErrUnauthorized, ErrMissingToken)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, v.base)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.userURL, nil)
	if err != nil {
		return Identity{}, errors.Join(ErrAuthServer, err)
	}
	if v.anonKey != "" {
		req.Header.Set("apikey", v.anonKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return Identity{}, errors.Join(ErrAuthServer, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Identity{}, fmt.Errorf("%w: %w", ErrUnauthorized, ErrInvalidToken)
	case resp.StatusCode != http.StatusOK:
		return Identity{}, fmt.Errorf("%w: status %d", ErrAuthServer, resp.StatusCode)
	}

	var u remoteUser
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return Identity{}, errors.Join(ErrAuthServer, err)
	}
	return newIdentity(u.ID, u.Email)
}
