package config

import (
	"github.com/emercoin/emcid-login/pkg/emcid"
)

// ProviderConfig contains the EmercoinID provider settings.
// Fields have no env tags - populate manually or use NewProviderConfigFromEnv() for standard env var names.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string

	// AuthPageURL is the provider page the user is redirected to for
	// certificate authentication
	AuthPageURL string

	// TokenPageURL is the endpoint the authorization code is exchanged at
	TokenPageURL string

	// InfocardURL is the endpoint the identity infocard is fetched from
	InfocardURL string

	// InsecureTLS disables certificate verification on provider calls.
	// For self-hosted providers with self-signed certificates only.
	InsecureTLS bool
}

// NewProviderConfigFromEnv loads ProviderConfig from standard environment variables.
//
// Environment variables:
//   - EMCID_CLIENT_ID: OAuth client ID registered with the provider
//   - EMCID_CLIENT_SECRET: OAuth client secret
//   - EMCID_AUTH_PAGE_URL: Provider authorization page URL
//   - EMCID_TOKEN_PAGE_URL: Provider token exchange URL
//   - EMCID_INFOCARD_URL: Provider infocard endpoint URL
//   - EMCID_INSECURE_TLS: Skip TLS verification on provider calls (default: false)
func NewProviderConfigFromEnv() ProviderConfig {
	return ProviderConfig{
		ClientID:     GetEnv("EMCID_CLIENT_ID"),
		ClientSecret: GetEnv("EMCID_CLIENT_SECRET"),
		AuthPageURL:  GetEnv("EMCID_AUTH_PAGE_URL"),
		TokenPageURL: GetEnv("EMCID_TOKEN_PAGE_URL"),
		InfocardURL:  GetEnv("EMCID_INFOCARD_URL"),
		InsecureTLS:  GetEnvBool("EMCID_INSECURE_TLS", false),
	}
}

// IsConfigured returns true if every provider setting needed for the
// login flow is present
func (c *ProviderConfig) IsConfigured() bool {
	return c.ClientID != "" && c.ClientSecret != "" &&
		c.AuthPageURL != "" && c.TokenPageURL != "" && c.InfocardURL != ""
}

// Provider converts the config into the client's provider settings
func (c *ProviderConfig) Provider() emcid.Provider {
	return emcid.Provider{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		AuthPageURL:  c.AuthPageURL,
		TokenPageURL: c.TokenPageURL,
		InfocardURL:  c.InfocardURL,
	}
}
