package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/nkjm/line-login/authenticator"
	"github.com/nkjm/line-login/repositories"
)

// writeJSON renders a JSON response body
func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response: "+err.Error(), http.StatusInternalServerError)
	}
}

// Controllers holds all controller instances
type Controllers struct {
	Auth    *AuthController
	Account *AccountController
}

// NewControllers creates and initializes all controller instances
func NewControllers(provider *authenticator.LINEProvider, repos *repositories.Repositories) *Controllers {
	auth := NewAuthController(provider)
	auth.SkipIDTokenVerification = provider.Config().SkipIDTokenVerification
	auth.Audit = repos.Audit

	return &Controllers{
		Auth:    auth,
		Account: NewAccountController(provider, repos.Audit),
	}
}
