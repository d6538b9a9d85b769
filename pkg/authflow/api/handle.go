// Package api exposes the login flow over HTTP.
package api

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/emercoin/emcid-login/pkg/authflow"
	"github.com/emercoin/emcid-login/pkg/sessiondata"
	"github.com/emercoin/emcid-login/pkg/token"
)

// SessionCookieName is the cookie carrying the anonymous session id
// that ties the outbound redirect to the provider callback.
const SessionCookieName = "emcid_sid"

// Handle serves the login flow endpoints.
type Handle struct {
	flow     *authflow.Service
	sessions sessiondata.Manager
	cookies  *token.CookieSetter
	expiry   time.Duration
}

// NewHandle creates the HTTP handler for the login flow.
func NewHandle(flow *authflow.Service, sessions sessiondata.Manager, cookies *token.CookieSetter) *Handle {
	return &Handle{
		flow:     flow,
		sessions: sessions,
		cookies:  cookies,
		expiry:   token.DefaultExpiry,
	}
}

// Routes mounts the flow endpoints on the router.
func (h *Handle) Routes(r chi.Router) {
	r.Get("/login", h.InitiateLogin)
	r.Get("/login/return", h.CompleteLogin)
	r.Get("/logout", h.Logout)
}

// InitiateLogin redirects the user to the provider's authorization
// page, recording the optional post_login_path query parameter first.
func (h *Handle) InitiateLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := h.session(w, r)

	returnTo := r.URL.Query().Get("post_login_path")
	authURL, err := h.flow.InitiateLogin(ctx, sess, returnTo)
	if err != nil {
		slog.Error("Failed to initiate provider login", "err", err)
		h.redirectWithError(w, r, "/login", "configuration_invalid", authflow.MsgNotConfigured)
		return
	}

	http.Redirect(w, r, authURL, http.StatusFound)
}

// CompleteLogin handles the provider callback and redirects the user
// according to the flow's terminal outcome.
func (h *Handle) CompleteLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := h.session(w, r)

	q := r.URL.Query()
	outcome := h.flow.CompleteLogin(ctx, sess, authflow.CallbackParams{
		Code:             q.Get("code"),
		State:            q.Get("state"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
	})

	if !outcome.Authorized {
		h.redirectWithError(w, r, outcome.RedirectURL, "login_failed", outcome.Message)
		return
	}

	h.cookies.SetCookie(w, outcome.Token, time.Now().Add(h.expiry))

	target := outcome.RedirectURL
	if outcome.Message != "" {
		target = appendQuery(target, url.Values{"notice": {outcome.Message}})
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// Logout drops the session data and clears the session token cookie.
func (h *Handle) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		h.sessions.For(cookie.Value).Delete(sessiondata.AccessTokenKey)
		h.sessions.For(cookie.Value).Delete(sessiondata.SessionTokenKey)
	}
	h.cookies.ClearCookie(w)

	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]string{"status": "logged_out"})
}

// session returns the store for the request's session, minting a new
// session id cookie when none is present.
func (h *Handle) session(w http.ResponseWriter, r *http.Request) sessiondata.Store {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return h.sessions.For(cookie.Value)
	}

	sessionID := uuid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return h.sessions.For(sessionID)
}

func (h *Handle) redirectWithError(w http.ResponseWriter, r *http.Request, target, code, description string) {
	target = appendQuery(target, url.Values{
		"error":             {code},
		"error_description": {description},
	})
	http.Redirect(w, r, target, http.StatusFound)
}

func appendQuery(target string, values url.Values) string {
	sep := "?"
	if u, err := url.Parse(target); err == nil && u.RawQuery != "" {
		sep = "&"
	}
	return target + sep + values.Encode()
}
