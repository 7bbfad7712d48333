package authenticator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Default LINE platform endpoints. AuthBaseURL hosts the browser-facing
// authorization page; APIBaseURL hosts the token and data endpoints.
const (
	DefaultAuthBaseURL = "https://access.line.me"
	DefaultAPIBaseURL  = "https://api.line.me"

	defaultScope       = "profile openid"
	defaultHTTPTimeout = 10 * time.Second
)

// BotPrompt controls how the consent screen offers adding the channel's
// bot account as a friend during login.
type BotPrompt string

// Supported bot_prompt values
const (
	BotPromptNormal     BotPrompt = "normal"
	BotPromptAggressive BotPrompt = "aggressive"
)

// LINEConfig holds LINE Login channel configuration
type LINEConfig struct {
	ChannelID     string
	ChannelSecret string
	CallbackURL   string

	// Scope is the space-separated permission set requested at
	// authorization time. Defaults to "profile openid".
	Scope string

	// Prompt, when non-empty, is forwarded as the prompt parameter of the
	// authorization request (e.g. "consent").
	Prompt string

	// BotPrompt defaults to BotPromptNormal.
	BotPrompt BotPrompt

	// SkipIDTokenVerification disables identity-token verification in the
	// callback flow. Verification is on by default.
	SkipIDTokenVerification bool

	// AuthBaseURL and APIBaseURL override the platform endpoints, which
	// tests point at a local server. Production code leaves them empty.
	AuthBaseURL string
	APIBaseURL  string

	// HTTPClient overrides the client used for token endpoint calls. The
	// default client carries a 10 second timeout so a stuck exchange
	// cannot block a user's login indefinitely.
	HTTPClient *http.Client
}

// APIError reports a non-200 response from a LINE endpoint. The provider's
// status message, not the response body, is the identifying detail.
type APIError struct {
	StatusCode int
	Status     string
}

func (e *APIError) Error() string {
	return e.Status
}

// LINEProvider implements the Provider interface for LINE Login
type LINEProvider struct {
	config LINEConfig
	client *http.Client
}

// NewLINEProvider creates a new LINE Login provider with the given configuration
func NewLINEProvider(cfg LINEConfig) (*LINEProvider, error) {
	// Validate required configuration
	if cfg.ChannelID == "" {
		return nil, errors.New("channel ID is required")
	}
	if cfg.ChannelSecret == "" {
		return nil, errors.New("channel secret is required")
	}
	if cfg.CallbackURL == "" {
		return nil, errors.New("callback URL is required")
	}

	if cfg.Scope == "" {
		cfg.Scope = defaultScope
	}
	if cfg.BotPrompt == "" {
		cfg.BotPrompt = BotPromptNormal
	}
	if cfg.BotPrompt != BotPromptNormal && cfg.BotPrompt != BotPromptAggressive {
		return nil, fmt.Errorf("invalid bot prompt %q", cfg.BotPrompt)
	}
	if cfg.AuthBaseURL == "" {
		cfg.AuthBaseURL = DefaultAuthBaseURL
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = DefaultAPIBaseURL
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}

	return &LINEProvider{
		config: cfg,
		client: client,
	}, nil
}

// ParseLINEOptions builds a LINEConfig from a loosely-typed option map,
// the shape configuration files and env loaders tend to hand over. Every
// key must be one of the recognized option names; an unknown key is a
// construction error, as is a missing required key.
func ParseLINEOptions(opts map[string]interface{}) (LINEConfig, error) {
	var cfg LINEConfig

	for key, value := range opts {
		switch key {
		case "channel_id":
			cfg.ChannelID, _ = value.(string)
		case "channel_secret":
			cfg.ChannelSecret, _ = value.(string)
		case "callback_url":
			cfg.CallbackURL, _ = value.(string)
		case "scope":
			cfg.Scope, _ = value.(string)
		case "prompt":
			cfg.Prompt, _ = value.(string)
		case "bot_prompt":
			s, _ := value.(string)
			cfg.BotPrompt = BotPrompt(s)
		case "verify_id_token":
			verify, ok := value.(bool)
			if !ok {
				return LINEConfig{}, fmt.Errorf("option %q must be a boolean", key)
			}
			cfg.SkipIDTokenVerification = !verify
		default:
			return LINEConfig{}, fmt.Errorf("unrecognized option %q", key)
		}
	}

	if cfg.ChannelID == "" {
		return LINEConfig{}, errors.New(`missing required option "channel_id"`)
	}
	if cfg.ChannelSecret == "" {
		return LINEConfig{}, errors.New(`missing required option "channel_secret"`)
	}
	if cfg.CallbackURL == "" {
		return LINEConfig{}, errors.New(`missing required option "callback_url"`)
	}

	return cfg, nil
}

// Config returns the provider configuration
func (p *LINEProvider) Config() LINEConfig {
	return p.config
}

// GetAuthURL returns the authorization URL for LINE Login. The nonce is
// included whether or not identity-token verification is enabled; it is
// harmless without verification and keeps the URL shape consistent.
func (p *LINEProvider) GetAuthURL(state string, nonce string) string {
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", p.config.ChannelID)
	q.Set("redirect_uri", p.config.CallbackURL)
	q.Set("scope", p.config.Scope)
	q.Set("bot_prompt", string(p.config.BotPrompt))
	q.Set("state", state)
	if p.config.Prompt != "" {
		q.Set("prompt", p.config.Prompt)
	}
	if nonce != "" {
		q.Set("nonce", nonce)
	}
	return p.config.AuthBaseURL + "/oauth2/v2.1/authorize?" + q.Encode()
}

// ExchangeCode exchanges an authorization code for tokens. Authorization
// codes are single-use at the provider: after a definitive rejection the
// same code must not be retried.
func (p *LINEProvider) ExchangeCode(ctx context.Context, code string) (*Token, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", p.config.CallbackURL)
	form.Set("client_id", p.config.ChannelID)
	form.Set("client_secret", p.config.ChannelSecret)

	token := &Token{}
	if err := p.postForm(ctx, "/oauth2/v2.1/token", form, token); err != nil {
		return nil, err
	}
	return token, nil
}

// Refresh exchanges a refresh token for a fresh token set. The provider
// may omit a new refresh token, in which case the one passed in is kept
// on the returned token.
func (p *LINEProvider) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", p.config.ChannelID)
	form.Set("client_secret", p.config.ChannelSecret)

	token := &Token{}
	if err := p.postForm(ctx, "/oauth2/v2.1/token", form, token); err != nil {
		return nil, err
	}
	if token.RefreshToken == "" {
		token.RefreshToken = refreshToken
	}
	return token, nil
}

// TokenVerifyResult is the payload of the access-token verify endpoint
type TokenVerifyResult struct {
	Scope     string `json:"scope"`
	ClientID  string `json:"client_id"`
	ExpiresIn int64  `json:"expires_in"`
}

// VerifyAccessToken checks an access token's validity with the provider
// and returns its remaining scope and lifetime
func (p *LINEProvider) VerifyAccessToken(ctx context.Context, accessToken string) (*TokenVerifyResult, error) {
	endpoint := p.config.APIBaseURL + "/oauth2/v2.1/verify?access_token=" + url.QueryEscape(accessToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	result := &TokenVerifyResult{}
	if err := p.do(req, result); err != nil {
		return nil, err
	}
	return result, nil
}

// Revoke invalidates an access token at the provider. Success is signaled
// purely by status 200; the response body is ignored.
func (p *LINEProvider) Revoke(ctx context.Context, accessToken string) error {
	form := url.Values{}
	form.Set("access_token", accessToken)
	form.Set("client_id", p.config.ChannelID)
	form.Set("client_secret", p.config.ChannelSecret)

	return p.postForm(ctx, "/oauth2/v2.1/revoke", form, nil)
}

// Profile represents a LINE user profile
type Profile struct {
	UserID        string `json:"userId"`
	DisplayName   string `json:"displayName"`
	PictureURL    string `json:"pictureUrl,omitempty"`
	StatusMessage string `json:"statusMessage,omitempty"`
}

// GetProfile fetches the user profile for an access token
func (p *LINEProvider) GetProfile(ctx context.Context, accessToken string) (*Profile, error) {
	profile := &Profile{}
	if err := p.getWithBearer(ctx, "/v2/profile", accessToken, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// GetFriendshipStatus reports whether the user has friended the channel's
// bot account
func (p *LINEProvider) GetFriendshipStatus(ctx context.Context, accessToken string) (bool, error) {
	var status struct {
		FriendFlag bool `json:"friendFlag"`
	}
	if err := p.getWithBearer(ctx, "/friendship/v1/status", accessToken, &status); err != nil {
		return false, err
	}
	return status.FriendFlag, nil
}

// GetClaims verifies the identity token carried by a token response and
// returns its decoded claims
func (p *LINEProvider) GetClaims(_ context.Context, token *Token) (Claims, error) {
	if token.IDToken == "" {
		return nil, errors.New("no id_token in token")
	}
	return VerifyIDToken(token.IDToken, p.config.ChannelSecret, p.config.ChannelID, LINEIssuer)
}

// postForm POSTs a form-encoded request to an API endpoint and decodes a
// 200 response into out (out may be nil for endpoints with no payload).
func (p *LINEProvider) postForm(ctx context.Context, path string, form url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.APIBaseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return p.do(req, out)
}

// getWithBearer GETs an API endpoint with bearer authentication
func (p *LINEProvider) getWithBearer(ctx context.Context, path string, accessToken string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.APIBaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	return p.do(req, out)
}

func (p *LINEProvider) do(req *http.Request, out interface{}) error {
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Status: resp.Status}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
