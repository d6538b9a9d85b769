// Package emcid implements the client side of the EmercoinID OAuth-style
// login exchange: building the authorization URL, exchanging an
// authorization code for an access token and fetching the identity
// infocard bound to that token.
package emcid

import (
	"errors"
	"fmt"
	"net/url"
)

// ErrNotConfigured is returned when any of the provider credentials or
// endpoints is missing.
var ErrNotConfigured = errors.New("emcid: provider is not fully configured")

// Provider holds the EmercoinID application credentials and server
// endpoints configured by the site administrator.
type Provider struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	AuthPageURL  string `json:"auth_page"`
	TokenPageURL string `json:"token_page"`
	InfocardURL  string `json:"infocard"`
}

// Validate checks that the provider is fully configured. The login flow
// refuses to start until all five settings are present.
func (p *Provider) Validate() error {
	if p.ClientID == "" || p.ClientSecret == "" || p.AuthPageURL == "" || p.TokenPageURL == "" || p.InfocardURL == "" {
		return ErrNotConfigured
	}
	if _, err := url.Parse(p.AuthPageURL); err != nil {
		return fmt.Errorf("invalid auth page URL: %w", err)
	}
	if _, err := url.Parse(p.TokenPageURL); err != nil {
		return fmt.Errorf("invalid token page URL: %w", err)
	}
	if _, err := url.Parse(p.InfocardURL); err != nil {
		return fmt.Errorf("invalid infocard URL: %w", err)
	}
	return nil
}

// BuildAuthURL builds the provider authorization URL the visitor is
// redirected to. redirectURI is this application's return endpoint,
// registered with the provider.
func (p *Provider) BuildAuthURL(redirectURI string) (string, error) {
	authURL, err := url.Parse(p.AuthPageURL)
	if err != nil {
		return "", fmt.Errorf("invalid auth page URL: %w", err)
	}

	params := url.Values{}
	params.Set("client_id", p.ClientID)
	params.Set("redirect_uri", redirectURI)
	params.Set("response_type", "code")

	authURL.RawQuery = params.Encode()
	return authURL.String(), nil
}
