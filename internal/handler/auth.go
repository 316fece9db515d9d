package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/rs/xid"

	"github.com/sakif/bookburst/internal/apperror"
	"github.com/sakif/bookburst/internal/auth"
	"github.com/sakif/bookburst/internal/model"
	"github.com/sakif/bookburst/internal/route"
	"github.com/sakif/bookburst/internal/service"
)

// MinPasswordLength is the sign-up form's password rule.
const MinPasswordLength = 8

const stateCookieName = "oauth_state"

// AuthHandler exposes the session lifecycle over HTTP.
//
// HANDLER RESPONSIBILITIES:
//   - HandleSignup / HandleLogin / HandleLogout → the three auth transitions
//   - HandleMe / HandleUpdateUsername         → the signed-in identity
//   - HandleGitHubLogin / HandleGitHubCallback → optional GitHub sign-in
//
// The browser holds a JWT cookie whose subject is the identity id. The
// session itself lives in SessionService; the cookie only proves who is
// asking.
type AuthHandler struct {
	sessions *service.SessionService
	tokens   *auth.TokenService
	github   *auth.GitHubProvider // nil when GitHub sign-in is not configured
	logger   *slog.Logger
}

// NewAuthHandler creates an AuthHandler. github may be nil.
func NewAuthHandler(
	sessions *service.SessionService,
	tokens *auth.TokenService,
	github *auth.GitHubProvider,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		sessions: sessions,
		tokens:   tokens,
		github:   github,
		logger:   logger,
	}
}

// UserResponse carries the active identity.
type UserResponse struct {
	User     model.Identity `json:"user"`
	Message  string         `json:"message,omitempty"`
	Redirect string         `json:"redirect,omitempty"`
}

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type usernameRequest struct {
	Username string `json:"username"`
}

// HandleSignup creates an account. It does not sign the caller in.
//
// HTTP: POST /api/auth/signup
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if len(req.Password) < MinPasswordLength {
		writeError(w, h.logger, apperror.ValidationFailed("password", "Password must be at least 8 characters"))
		return
	}

	identity, err := h.sessions.Signup(r.Context(), req.Email, req.Password, req.Username)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, UserResponse{
		User:    identity,
		Message: "Account created successfully! Please log in.",
	})
}

// HandleLogin checks the credentials, activates the session and issues the
// token cookie.
//
// HTTP: POST /api/auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	identity, err := h.sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.setToken(w, identity.ID); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, UserResponse{User: identity})
}

// HandleLogout ends the session and deletes the token cookie.
// Logging out twice is fine.
//
// HTTP: POST /api/auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx, target := route.WithTarget(r.Context())
	if err := h.sessions.Logout(ctx); err != nil {
		writeError(w, h.logger, err)
		return
	}

	clearCookie(w, auth.CookieName)
	writeJSON(w, http.StatusOK, ActionResponse{
		Message:  "Logged out successfully",
		Redirect: target.Path(),
	})
}

// HandleMe returns the signed-in identity.
//
// HTTP: GET /api/me
// Auth: Required
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.sessions.Current()
	if !ok {
		writeError(w, h.logger, apperror.Unauthorized("You must be logged in"))
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{User: identity})
}

// HandleUpdateUsername renames the signed-in identity.
//
// HTTP: PUT /api/me/username
// Auth: Required
func (h *AuthHandler) HandleUpdateUsername(w http.ResponseWriter, r *http.Request) {
	var req usernameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	ctx, target := route.WithTarget(r.Context())
	if err := h.sessions.UpdateUsername(ctx, req.Username); err != nil {
		writeError(w, h.logger, err)
		return
	}

	// A logout can land between RequireAuth and the rename.
	identity, ok := h.sessions.Current()
	if !ok {
		writeError(w, h.logger, apperror.Unauthorized("You must be logged in"))
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{User: identity, Redirect: target.Path()})
}

// HandleGitHubLogin redirects the browser to GitHub's authorization page.
//
// HTTP: GET /auth/github/login
//
// CSRF PROTECTION VIA STATE:
// A random state goes into a short-lived HttpOnly cookie and into the
// authorization URL. The callback only proceeds when the two match.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes GitHub sign-in.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for the account's primary verified email
//  3. Activate the identity registered under that email
//  4. Issue the token cookie and send the browser to the bookshelf
//
// GitHub never creates identities. An email with no account lands back on
// the auth page.
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" {
		h.logger.Warn("auth callback: missing state cookie")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}
	if r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("auth callback: state mismatch",
			slog.String("expected", stateCookie.Value),
			slog.String("got", r.URL.Query().Get("state")),
		)
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	// single-use
	clearCookie(w, stateCookieName)

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", errParam))
		http.Redirect(w, r, authPageWithError("denied"), http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	email, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: GitHub exchange failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusBadGateway)
		return
	}

	identity, err := h.sessions.LoginVerifiedEmail(r.Context(), email)
	if errors.Is(err, apperror.ErrInvalidCredentials) {
		h.logger.Info("auth callback: no account for GitHub email")
		http.Redirect(w, r, authPageWithError("unknown_account"), http.StatusSeeOther)
		return
	}
	if err != nil {
		h.logger.Error("auth callback: login failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	if err := h.setToken(w, identity.ID); err != nil {
		h.logger.Error("auth callback: token generation failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, route.Bookshelf, http.StatusSeeOther)
}

// setToken issues the JWT cookie for identityID.
//
// HttpOnly keeps it away from scripts; SameSite=Lax keeps it off cross-site
// POSTs. Secure is left off so the server works over plain HTTP locally.
func (h *AuthHandler) setToken(w http.ResponseWriter, identityID string) error {
	token, err := h.tokens.Issue(identityID)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token.Value,
		Path:     "/",
		Expires:  token.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func authPageWithError(reason string) string {
	return route.Auth + "?" + url.Values{"error": {reason}}.Encode()
}
