package emcid

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TokenExchangeError is returned when the provider rejects the
// code-for-token exchange. Description carries the provider's
// error_description when present.
type TokenExchangeError struct {
	Code        string
	Description string
}

func (e *TokenExchangeError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("emcid: token exchange failed: %s: %s", e.Code, e.Description)
	}
	return fmt.Sprintf("emcid: token exchange failed: %s", e.Code)
}

// IdentityFetchError is returned when the infocard request fails on
// transport or produces an unreadable document.
type IdentityFetchError struct {
	Err error
}

func (e *IdentityFetchError) Error() string {
	return fmt.Sprintf("emcid: identity fetch failed: %v", e.Err)
}

func (e *IdentityFetchError) Unwrap() error { return e.Err }

// Client performs the two outbound calls of the login exchange against a
// Provider. TLS certificate validation is strict by default; the insecure
// mode exists only because some self-hosted EmercoinID servers still run
// with self-signed certificates and must be switched on explicitly.
type Client struct {
	provider   *Provider
	httpClient *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the HTTP client used for provider calls.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets the timeout for both provider calls.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithInsecureTLS disables TLS certificate validation for provider calls.
// This weakens the certificate-backed identity guarantee the whole flow
// rests on; every construction with this option is logged as a warning.
func WithInsecureTLS() ClientOption {
	return func(c *Client) {
		slog.Warn("emcid: TLS certificate validation DISABLED for provider calls; use only against a trusted self-hosted server")
		c.httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
}

// NewClient creates a provider client with a bounded 10 second timeout.
func NewClient(provider *Provider, opts ...ClientOption) *Client {
	c := &Client{
		provider:   provider,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Provider returns the provider configuration the client talks to.
func (c *Client) Provider() *Provider {
	return c.provider
}

// tokenResponse mirrors the provider's token endpoint body.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	Error       string `json:"error,omitempty"`
	ErrorDesc   string `json:"error_description,omitempty"`
}

// ExchangeCode exchanges an authorization code for an access token.
// Any transport failure, non-JSON body or provider-reported error comes
// back as a *TokenExchangeError.
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI string) (string, error) {
	form := url.Values{}
	form.Set("code", code)
	form.Set("client_id", c.provider.ClientID)
	form.Set("client_secret", c.provider.ClientSecret)
	form.Set("grant_type", "authorization_code")
	form.Set("redirect_uri", redirectURI)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.provider.TokenPageURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", &TokenExchangeError{Code: "request_failed", Description: err.Error()}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=utf-8")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &TokenExchangeError{Code: "transport_error", Description: err.Error()}
	}
	defer resp.Body.Close()

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", &TokenExchangeError{Code: "invalid_response", Description: err.Error()}
	}

	if tr.Error != "" {
		return "", &TokenExchangeError{Code: tr.Error, Description: tr.ErrorDesc}
	}
	if tr.AccessToken == "" {
		return "", &TokenExchangeError{Code: "invalid_response", Description: "no access_token in response"}
	}

	slog.Info("emcid token exchange successful", "token_page", c.provider.TokenPageURL)
	return tr.AccessToken, nil
}

// FetchIdentity retrieves the infocard bound to the access token and
// extracts the verified identity. The certificate serial is lower-cased;
// its absence fails with ErrInvalidIdentity.
func (c *Client) FetchIdentity(ctx context.Context, accessToken string) (Identity, error) {
	infocardURL := strings.TrimRight(c.provider.InfocardURL, "/") + "/" + accessToken

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, infocardURL, nil)
	if err != nil {
		return Identity{}, &IdentityFetchError{Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Identity{}, &IdentityFetchError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Identity{}, &IdentityFetchError{Err: err}
	}

	var info infocardResponse
	if err := json.Unmarshal(body, &info); err != nil {
		return Identity{}, &IdentityFetchError{Err: fmt.Errorf("decoding infocard: %w", err)}
	}

	if info.Serial == "" {
		return Identity{}, ErrInvalidIdentity
	}

	identity := Identity{
		ProviderUserID: strings.ToLower(info.Serial),
		Email:          info.Infocard.Email,
		FirstName:      info.Infocard.FirstName,
		LastName:       info.Infocard.LastName,
		Alias:          info.Infocard.Alias,
	}

	slog.Info("emcid identity fetched", "provider_user_id", identity.ProviderUserID)
	return identity, nil
}
