package middleware

import (
	"net/http"

	"gitea.com/go-chi/session"

	"github.com/nkjm/line-login/controllers"
	"github.com/nkjm/line-login/userctx"
)

// RequireAuth ensures the user has completed a login flow.
// If not authenticated, redirects to the login route.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := session.GetSession(r)
		userID, _ := sess.Get(controllers.UserIDSessionKey).(string)

		if userID == "" {
			http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
			return
		}

		// Add user identity to request context for use in handlers
		ctx := userctx.SetUserID(r.Context(), userID)
		if name, ok := sess.Get(controllers.DisplayNameSessionKey).(string); ok {
			ctx = userctx.SetDisplayName(ctx, name)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
