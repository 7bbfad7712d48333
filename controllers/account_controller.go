package controllers

import (
	"errors"
	"net/http"

	"gitea.com/go-chi/session"
	"github.com/go-chi/chi/v5"

	"github.com/nkjm/line-login/authenticator"
	"github.com/nkjm/line-login/models"
	"github.com/nkjm/line-login/repositories"
	"github.com/nkjm/line-login/userctx"
)

// AccountController exposes the logged-in user's profile and token
// management endpoints on top of the LINE APIs
type AccountController struct {
	provider *authenticator.LINEProvider
	audit    repositories.AuditRepository
}

// NewAccountController creates a new account controller
func NewAccountController(provider *authenticator.LINEProvider, audit repositories.AuditRepository) *AccountController {
	return &AccountController{provider: provider, audit: audit}
}

// Routes returns the account routes. All of them expect RequireAuth to
// have run.
func (ac *AccountController) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", ac.Show)
	r.Get("/token", ac.TokenStatus)
	r.Post("/token/refresh", ac.RefreshToken)
	r.Post("/token/revoke", ac.RevokeToken)
	return r
}

// Show renders the user's profile, friendship status and recent activity
func (ac *AccountController) Show(w http.ResponseWriter, r *http.Request) {
	accessToken, ok := tokenFromSession(r)
	if !ok {
		http.Error(w, "no access token in session", http.StatusUnauthorized)
		return
	}

	profile, err := ac.provider.GetProfile(r.Context(), accessToken)
	if err != nil {
		writeAPIError(w, err)
		return
	}

	friend, err := ac.provider.GetFriendshipStatus(r.Context(), accessToken)
	if err != nil {
		writeAPIError(w, err)
		return
	}

	var recent []models.AuditEvent
	if ac.audit != nil {
		recent, err = ac.audit.RecentByUser(userctx.GetUserID(r.Context()), 10)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}

	writeJSON(w, map[string]interface{}{
		"profile":         profile,
		"friend_flag":     friend,
		"recent_activity": recent,
	})
}

// TokenStatus reports the access token's remaining scope and lifetime
func (ac *AccountController) TokenStatus(w http.ResponseWriter, r *http.Request) {
	accessToken, ok := tokenFromSession(r)
	if !ok {
		http.Error(w, "no access token in session", http.StatusUnauthorized)
		return
	}

	result, err := ac.provider.VerifyAccessToken(r.Context(), accessToken)
	if err != nil {
		writeAPIError(w, err)
		return
	}

	writeJSON(w, result)
}

// RefreshToken exchanges the session's refresh token for a fresh token set
func (ac *AccountController) RefreshToken(w http.ResponseWriter, r *http.Request) {
	sess := session.GetSession(r)
	refreshToken, _ := sess.Get(RefreshTokenSessionKey).(string)
	if refreshToken == "" {
		http.Error(w, "no refresh token in session", http.StatusUnauthorized)
		return
	}

	token, err := ac.provider.Refresh(r.Context(), refreshToken)
	if err != nil {
		writeAPIError(w, err)
		return
	}

	sess.Set(AccessTokenSessionKey, token.AccessToken)
	sess.Set(RefreshTokenSessionKey, token.RefreshToken)

	writeJSON(w, map[string]interface{}{
		"token_type": token.TokenType,
		"expires_in": token.ExpiresIn,
	})
}

// RevokeToken invalidates the access token at the provider and ends the
// login session
func (ac *AccountController) RevokeToken(w http.ResponseWriter, r *http.Request) {
	accessToken, ok := tokenFromSession(r)
	if !ok {
		http.Error(w, "no access token in session", http.StatusUnauthorized)
		return
	}

	if err := ac.provider.Revoke(r.Context(), accessToken); err != nil {
		writeAPIError(w, err)
		return
	}

	sess := session.GetSession(r)
	sess.Delete(UserIDSessionKey)
	sess.Delete(DisplayNameSessionKey)
	sess.Delete(AccessTokenSessionKey)
	sess.Delete(RefreshTokenSessionKey)

	w.WriteHeader(http.StatusNoContent)
}

// tokenFromSession returns the session's access token
func tokenFromSession(r *http.Request) (string, bool) {
	sess := session.GetSession(r)
	accessToken, _ := sess.Get(AccessTokenSessionKey).(string)
	return accessToken, accessToken != ""
}

// writeAPIError maps provider errors to HTTP responses, passing the LINE
// status through for API-level rejections
func writeAPIError(w http.ResponseWriter, err error) {
	var apiErr *authenticator.APIError
	if errors.As(err, &apiErr) {
		http.Error(w, apiErr.Status, apiErr.StatusCode)
		return
	}
	http.Error(w, err.Error(), http.StatusBadGateway)
}
