package emcid

import "errors"

// ErrInvalidIdentity is returned when the infocard carries no certificate
// serial. A missing serial is a hard failure, not a degraded identity.
var ErrInvalidIdentity = errors.New("emcid: infocard has no certificate serial")

// Identity is the verified identity returned by a successful infocard
// fetch. ProviderUserID is the lower-cased serial number of the user's
// X.509 certificate and uniquely identifies the real-world identity.
// The remaining attributes are optional and empty when absent.
type Identity struct {
	ProviderUserID string
	Email          string
	FirstName      string
	LastName       string
	Alias          string
}

// infocardResponse mirrors the provider's infocard document.
type infocardResponse struct {
	Serial   string `json:"SSL_CLIENT_M_SERIAL"`
	Infocard struct {
		Email     string `json:"Email"`
		FirstName string `json:"FirstName"`
		LastName  string `json:"LastName"`
		Alias     string `json:"Alias"`
	} `json:"infocard"`
}
