// Package audit provides middleware for auditing login flow requests
package audit

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/jwtauth/v5"
)

// Config holds the configuration for the audit middleware
type Config struct {
	// Source identifies the emitting service in audit records
	Source string
	// Logger receives the audit records; slog.Default() when nil
	Logger *slog.Logger
}

// Middleware emits an audit record for every request passing through it
type Middleware struct {
	config Config
}

// NewMiddleware creates a new audit middleware instance
func NewMiddleware(config Config) *Middleware {
	if config.Source == "" {
		config.Source = "emcid-login"
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Middleware{
		config: config,
	}
}

// Event captures one audited login flow request
type Event struct {
	Subject   string
	URI       string
	Method    string
	Timestamp time.Time
}

// LoginAuditMiddleware audits requests to the login flow endpoints.
// The subject is the authenticated account id when the request carries
// a valid session token; anonymous requests (the login round trip
// itself) are audited without one.
func (m *Middleware) LoginAuditMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		event := Event{
			URI:       r.RequestURI,
			Method:    r.Method,
			Timestamp: time.Now(),
		}

		if _, claims, err := jwtauth.FromContext(r.Context()); err == nil {
			if sub, ok := claims["sub"].(string); ok {
				event.Subject = sub
			}
		}

		m.config.Logger.Info("audit",
			"source", m.config.Source,
			"subject", event.Subject,
			"method", event.Method,
			"uri", event.URI,
			"timestamp", event.Timestamp.Format(time.RFC3339),
		)

		next.ServeHTTP(w, r)
	})
}
