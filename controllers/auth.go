package controllers

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"

	"gitea.com/go-chi/session"
	"github.com/go-chi/chi/v5"

	"github.com/nkjm/line-login/authenticator"
	"github.com/nkjm/line-login/models"
	"github.com/nkjm/line-login/repositories"
)

// Session keys used by the login flow
const (
	StateSessionKey        = "line_login_state"
	NonceSessionKey        = "line_login_nonce"
	UserIDSessionKey       = "user_id"
	DisplayNameSessionKey  = "user_display_name"
	AccessTokenSessionKey  = "access_token"
	RefreshTokenSessionKey = "refresh_token"
)

// Flow errors routed to the failure handler
var (
	// ErrAuthorizationFailed means the provider returned no authorization
	// code: the user denied consent or the provider reported an error.
	ErrAuthorizationFailed = errors.New("authorization failed")

	// ErrStateMismatch means the callback's state did not match the one
	// stored for this session, which indicates CSRF or a replayed callback.
	ErrStateMismatch = errors.New("state mismatch")

	// ErrVerificationFailed covers every identity-token failure:
	// signature, algorithm, audience, issuer, expiry.
	ErrVerificationFailed = errors.New("id token verification failed")

	// ErrNonceMismatch is an ErrVerificationFailed whose token carried a
	// valid signature but the wrong nonce, i.e. a replayed identity token.
	ErrNonceMismatch = fmt.Errorf("%w: nonce mismatch", ErrVerificationFailed)
)

// LoginResult is delivered to the success handler after a completed callback
type LoginResult struct {
	Token *authenticator.Token

	// FriendshipStatusChanged reports the informational callback flag of
	// the same name. It never affects control flow.
	FriendshipStatusChanged bool
}

// SuccessHandler receives the resolved token (with verified claims when
// identity-token verification ran) at the end of a callback.
type SuccessHandler func(w http.ResponseWriter, r *http.Request, result *LoginResult)

// FailureHandler receives any flow, transport or verification error.
type FailureHandler func(w http.ResponseWriter, r *http.Request, err error)

// sessionData is the slice of the session store the flow needs
type sessionData interface {
	Set(key, value interface{}) error
	Get(key interface{}) interface{}
	Delete(key interface{}) error
}

// AuthController owns the authorization flow for one provider
// configuration. Routes are mounted per instance so differently-configured
// controllers coexist in one application.
type AuthController struct {
	Provider authenticator.Provider

	// OnSuccess and OnFailure are the caller's completion handlers. A nil
	// OnSuccess stores the user in the session and redirects to "/"; a nil
	// OnFailure surfaces the error as a plain HTTP error rather than
	// swallowing it.
	OnSuccess SuccessHandler
	OnFailure FailureHandler

	// SkipIDTokenVerification disables identity-token verification and the
	// nonce check. Verification runs by default.
	SkipIDTokenVerification bool

	// Audit, when set, records completed logins
	Audit repositories.AuditRepository
}

// NewAuthController creates a flow controller for the given provider
func NewAuthController(provider authenticator.Provider) *AuthController {
	return &AuthController{Provider: provider}
}

// Routes returns the login and callback routes for this controller
func (ac *AuthController) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/login", ac.Login)
	r.Get("/callback", ac.Callback)
	r.Get("/logout", ac.Logout)
	return r
}

// Login initiates the authorization flow: it stores a fresh state and
// nonce in the session and redirects to the provider's authorization page.
func (ac *AuthController) Login(w http.ResponseWriter, r *http.Request) {
	state := authenticator.GenerateToken()
	nonce := authenticator.GenerateToken()

	// Save both in the session to validate in the callback
	sess := session.GetSession(r)
	sess.Set(StateSessionKey, state)
	sess.Set(NonceSessionKey, nonce)

	http.Redirect(w, r, ac.Provider.GetAuthURL(state, nonce), http.StatusTemporaryRedirect)
}

// Callback handles the redirect back from the provider
func (ac *AuthController) Callback(w http.ResponseWriter, r *http.Request) {
	sess := session.GetSession(r)

	result, err := ac.resolveCallback(r.Context(), sess, r.URL.Query())
	if err != nil {
		ac.fail(w, r, err)
		return
	}
	ac.succeed(w, r, sess, result)
}

// resolveCallback runs the callback pipeline: code presence, constant-time
// state check, code exchange, optional identity-token verification with a
// constant-time nonce check. The stored state and nonce are single-use:
// they are deleted once the pipeline resolves past the state check, so a
// replayed callback fails the state check on the emptied session. An
// exchange aborted by request cancellation keeps them, letting the user
// retry the same callback.
func (ac *AuthController) resolveCallback(ctx context.Context, sess sessionData, query url.Values) (_ *LoginResult, retErr error) {
	code := query.Get("code")
	if code == "" {
		return nil, ErrAuthorizationFailed
	}

	storedState, _ := sess.Get(StateSessionKey).(string)
	if storedState == "" || subtle.ConstantTimeCompare([]byte(storedState), []byte(query.Get("state"))) != 1 {
		return nil, ErrStateMismatch
	}

	defer func() {
		if errors.Is(retErr, context.Canceled) || errors.Is(retErr, context.DeadlineExceeded) {
			return
		}
		sess.Delete(StateSessionKey)
		sess.Delete(NonceSessionKey)
	}()

	token, err := ac.Provider.ExchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if !ac.SkipIDTokenVerification && token.IDToken != "" {
		claims, err := ac.Provider.GetClaims(ctx, token)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
		}

		storedNonce, _ := sess.Get(NonceSessionKey).(string)
		if subtle.ConstantTimeCompare([]byte(storedNonce), []byte(claims.Nonce())) != 1 {
			return nil, ErrNonceMismatch
		}

		// Replace the raw identity token with its verified claims
		token.Claims = claims
		token.IDToken = ""
	}

	return &LoginResult{
		Token:                   token,
		FriendshipStatusChanged: query.Get("friendship_status_changed") == "true",
	}, nil
}

// Logout clears the login session
func (ac *AuthController) Logout(w http.ResponseWriter, r *http.Request) {
	sess := session.GetSession(r)

	if ac.Audit != nil {
		if userID, ok := sess.Get(UserIDSessionKey).(string); ok && userID != "" {
			event := &models.AuditEvent{
				UserID:    userID,
				Action:    models.ActionLogout,
				Path:      r.URL.Path,
				UserAgent: r.UserAgent(),
				IPAddress: clientIP(r),
			}
			go func() {
				if err := ac.Audit.Create(event); err != nil {
					log.Printf("Failed to create audit event: %v", err)
				}
			}()
		}
	}

	sess.Delete(UserIDSessionKey)
	sess.Delete(DisplayNameSessionKey)
	sess.Delete(AccessTokenSessionKey)
	sess.Delete(RefreshTokenSessionKey)

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (ac *AuthController) succeed(w http.ResponseWriter, r *http.Request, sess sessionData, result *LoginResult) {
	if ac.Audit != nil {
		userID := ""
		if result.Token.Claims != nil {
			userID = result.Token.Claims.Subject()
		}
		event := &models.AuditEvent{
			UserID:    userID,
			Action:    models.ActionLogin,
			Path:      r.URL.Path,
			UserAgent: r.UserAgent(),
			IPAddress: clientIP(r),
		}
		// Log asynchronously to avoid blocking the callback
		go func() {
			if err := ac.Audit.Create(event); err != nil {
				log.Printf("Failed to create audit event: %v", err)
			}
		}()
	}

	if ac.OnSuccess != nil {
		ac.OnSuccess(w, r, result)
		return
	}

	// Default: store the login in the session and return home
	if result.Token.Claims != nil {
		sess.Set(UserIDSessionKey, result.Token.Claims.Subject())
		sess.Set(DisplayNameSessionKey, result.Token.Claims.DisplayName())
	}
	sess.Set(AccessTokenSessionKey, result.Token.AccessToken)
	if result.Token.RefreshToken != "" {
		sess.Set(RefreshTokenSessionKey, result.Token.RefreshToken)
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (ac *AuthController) fail(w http.ResponseWriter, r *http.Request, err error) {
	if ac.OnFailure != nil {
		ac.OnFailure(w, r, err)
		return
	}

	// No failure handler supplied: surface the error instead of
	// swallowing it
	var apiErr *authenticator.APIError
	switch {
	case errors.Is(err, ErrStateMismatch):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &apiErr):
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		http.Error(w, err.Error(), http.StatusUnauthorized)
	}
}

// clientIP extracts the client address, preferring proxy headers
func clientIP(r *http.Request) string {
	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded != "" {
		// Take first IP if multiple
		ips := strings.Split(forwarded, ",")
		return strings.TrimSpace(ips[0])
	}

	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}
