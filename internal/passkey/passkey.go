// Package passkey talks to the external passwordless credential provider.
// This service never handles WebAuthn ceremonies itself; it only consumes
// the provider's verification results and credential inventory.
package passkey

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// VerifiedSignIn is the provider's answer to a sign-in or re-auth proof.
// UserID is the account id the credential belongs to; callers must compare
// it against their own notion of the current user.
type VerifiedSignIn struct {
	Success bool   `json:"success"`
	UserID  string `json:"userId"`
}

// Credential describes a registered passkey as reported by the provider.
type Credential struct {
	Descriptor struct {
		ID string `json:"id"`
	} `json:"descriptor"`
	UserID    string    `json:"userId"`
	Device    string    `json:"device"`
	CreatedAt time.Time `json:"createdAt"`
}

// Verifier is the capability the auth core depends on. Handlers receive it
// injected so tests can substitute a double; there is no package-level
// client state.
type Verifier interface {
	VerifySignIn(ctx context.Context, verifyToken string) (VerifiedSignIn, error)
	ListCredentials(ctx context.Context, userID string) ([]Credential, error)
	DeleteCredential(ctx context.Context, credentialID string) error
}

// Client is the HTTP implementation of Verifier against a
// passwordless.dev-style REST API. Request timeouts surface as errors, never
// as an implicit allow.
type Client struct {
	BaseURL   string
	APISecret string
	HTTP      *http.Client
}

// NewClient builds a Client with the given request timeout.
func NewClient(baseURL, apiSecret string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL:   baseURL,
		APISecret: apiSecret,
		HTTP:      &http.Client{Timeout: timeout},
	}
}

// VerifySignIn exchanges a client-obtained verify token for the provider's
// verdict.
func (c *Client) VerifySignIn(ctx context.Context, verifyToken string) (VerifiedSignIn, error) {
	var out VerifiedSignIn
	err := c.post(ctx, "/signin/verify", map[string]string{"token": verifyToken}, &out)
	if err != nil {
		return VerifiedSignIn{}, err
	}
	return out, nil
}

// ListCredentials returns the passkey credentials registered for the account.
func (c *Client) ListCredentials(ctx context.Context, userID string) ([]Credential, error) {
	endpoint := "/credentials/list?userId=" + url.QueryEscape(userID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("ApiSecret", c.APISecret)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider status %d", resp.StatusCode)
	}

	var out struct {
		Values []Credential `json:"values"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out.Values, nil
}

// DeleteCredential removes a credential on the provider side.
func (c *Client) DeleteCredential(ctx context.Context, credentialID string) error {
	return c.post(ctx, "/credentials/delete", map[string]string{"credentialId": credentialID}, nil)
}

func (c *Client) post(ctx context.Context, endpoint string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("ApiSecret", c.APISecret)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("provider request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("provider status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
