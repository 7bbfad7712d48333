package authenticator

import (
	"context"
)

// Claims represents user claims from a verified identity token
type Claims map[string]interface{}

// Subject returns the stable user identifier ("sub" claim)
func (c Claims) Subject() string {
	sub, _ := c["sub"].(string)
	return sub
}

// Nonce returns the replay nonce embedded in the identity token
func (c Claims) Nonce() string {
	nonce, _ := c["nonce"].(string)
	return nonce
}

// DisplayName returns the user's display name ("name" claim)
func (c Claims) DisplayName() string {
	name, _ := c["name"].(string)
	return name
}

// Token represents tokens issued by a provider's token endpoint
type Token struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	Scope        string `json:"scope,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`

	// Claims holds the decoded identity token payload once it has been
	// verified. The raw IDToken string is cleared at that point so callers
	// never see an unverified token alongside trusted claims.
	Claims Claims `json:"-"`
}

// Provider interface abstracts OAuth provider operations
type Provider interface {
	GetAuthURL(state string, nonce string) string
	ExchangeCode(ctx context.Context, code string) (*Token, error)
	GetClaims(ctx context.Context, token *Token) (Claims, error)
}
