package authenticator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T, baseURL string) *LINEProvider {
	t.Helper()
	provider, err := NewLINEProvider(LINEConfig{
		ChannelID:     testChannelID,
		ChannelSecret: testChannelSecret,
		CallbackURL:   "https://example.com/callback",
		AuthBaseURL:   baseURL,
		APIBaseURL:    baseURL,
	})
	require.NoError(t, err)
	return provider
}

func TestNewLINEProviderValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     LINEConfig
		wantErr string
	}{
		{
			name:    "missing channel ID",
			cfg:     LINEConfig{ChannelSecret: "secret", CallbackURL: "https://example.com/cb"},
			wantErr: "channel ID is required",
		},
		{
			name:    "missing channel secret",
			cfg:     LINEConfig{ChannelID: "123", CallbackURL: "https://example.com/cb"},
			wantErr: "channel secret is required",
		},
		{
			name:    "missing callback URL",
			cfg:     LINEConfig{ChannelID: "123", ChannelSecret: "secret"},
			wantErr: "callback URL is required",
		},
		{
			name: "invalid bot prompt",
			cfg: LINEConfig{
				ChannelID: "123", ChannelSecret: "secret", CallbackURL: "https://example.com/cb",
				BotPrompt: "shouty",
			},
			wantErr: `invalid bot prompt "shouty"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLINEProvider(tt.cfg)
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestNewLINEProviderDefaults(t *testing.T) {
	provider, err := NewLINEProvider(LINEConfig{
		ChannelID:     "123",
		ChannelSecret: "secret",
		CallbackURL:   "https://example.com/cb",
	})
	require.NoError(t, err)

	cfg := provider.Config()
	assert.Equal(t, "profile openid", cfg.Scope)
	assert.Equal(t, BotPromptNormal, cfg.BotPrompt)
	assert.False(t, cfg.SkipIDTokenVerification)
}

func TestParseLINEOptions(t *testing.T) {
	cfg, err := ParseLINEOptions(map[string]interface{}{
		"channel_id":      "123",
		"channel_secret":  "secret",
		"callback_url":    "https://example.com/cb",
		"scope":           "openid email",
		"prompt":          "consent",
		"bot_prompt":      "aggressive",
		"verify_id_token": false,
	})
	require.NoError(t, err)

	assert.Equal(t, "123", cfg.ChannelID)
	assert.Equal(t, "openid email", cfg.Scope)
	assert.Equal(t, "consent", cfg.Prompt)
	assert.Equal(t, BotPromptAggressive, cfg.BotPrompt)
	assert.True(t, cfg.SkipIDTokenVerification)
}

func TestParseLINEOptionsUnknownKey(t *testing.T) {
	_, err := ParseLINEOptions(map[string]interface{}{
		"channel_id":     "123",
		"channel_secret": "secret",
		"callback_url":   "https://example.com/cb",
		"channel_token":  "oops",
	})
	require.Error(t, err)
	assert.Equal(t, `unrecognized option "channel_token"`, err.Error())
}

func TestParseLINEOptionsMissingRequiredKey(t *testing.T) {
	_, err := ParseLINEOptions(map[string]interface{}{
		"channel_id":   "123",
		"callback_url": "https://example.com/cb",
	})
	require.Error(t, err)
	assert.Equal(t, `missing required option "channel_secret"`, err.Error())
}

func TestParseLINEOptionsVerifyIDTokenType(t *testing.T) {
	_, err := ParseLINEOptions(map[string]interface{}{
		"channel_id":      "123",
		"channel_secret":  "secret",
		"callback_url":    "https://example.com/cb",
		"verify_id_token": "yes",
	})
	require.Error(t, err)
	assert.Equal(t, `option "verify_id_token" must be a boolean`, err.Error())
}

func TestGetAuthURL(t *testing.T) {
	provider, err := NewLINEProvider(LINEConfig{
		ChannelID:     testChannelID,
		ChannelSecret: testChannelSecret,
		CallbackURL:   "https://example.com/callback?from=app",
		Prompt:        "consent",
		BotPrompt:     BotPromptAggressive,
	})
	require.NoError(t, err)

	authURL, err := url.Parse(provider.GetAuthURL("the-state", "the-nonce"))
	require.NoError(t, err)

	assert.Equal(t, "access.line.me", authURL.Host)
	assert.Equal(t, "/oauth2/v2.1/authorize", authURL.Path)

	q := authURL.Query()
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, testChannelID, q.Get("client_id"))
	assert.Equal(t, "https://example.com/callback?from=app", q.Get("redirect_uri"))
	assert.Equal(t, "profile openid", q.Get("scope"))
	assert.Equal(t, "aggressive", q.Get("bot_prompt"))
	assert.Equal(t, "the-state", q.Get("state"))
	assert.Equal(t, "consent", q.Get("prompt"))
	assert.Equal(t, "the-nonce", q.Get("nonce"))
}

func TestGetAuthURLOmitsEmptyPrompt(t *testing.T) {
	provider := newTestProvider(t, DefaultAPIBaseURL)

	authURL, err := url.Parse(provider.GetAuthURL("the-state", "the-nonce"))
	require.NoError(t, err)

	_, hasPrompt := authURL.Query()["prompt"]
	assert.False(t, hasPrompt)
}

func TestExchangeCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/oauth2/v2.1/token", r.URL.Path)
		require.NoError(t, r.ParseForm())

		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "the-code", r.PostForm.Get("code"))
		assert.Equal(t, "https://example.com/callback", r.PostForm.Get("redirect_uri"))
		assert.Equal(t, testChannelID, r.PostForm.Get("client_id"))
		assert.Equal(t, testChannelSecret, r.PostForm.Get("client_secret"))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "the-access-token",
			"refresh_token": "the-refresh-token",
			"id_token":      "the-id-token",
			"token_type":    "Bearer",
			"scope":         "profile openid",
			"expires_in":    2592000,
		})
	}))
	defer server.Close()

	provider := newTestProvider(t, server.URL)

	token, err := provider.ExchangeCode(context.Background(), "the-code")
	require.NoError(t, err)

	assert.Equal(t, "the-access-token", token.AccessToken)
	assert.Equal(t, "the-refresh-token", token.RefreshToken)
	assert.Equal(t, "the-id-token", token.IDToken)
	assert.Equal(t, "Bearer", token.TokenType)
	assert.Equal(t, int64(2592000), token.ExpiresIn)
}

func TestExchangeCodeProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	provider := newTestProvider(t, server.URL)

	_, err := provider.ExchangeCode(context.Background(), "used-code")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	// The status message, not the body, identifies the failure
	assert.Equal(t, "400 Bad Request", apiErr.Error())
}

func TestRefresh(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "old-refresh-token", r.PostForm.Get("refresh_token"))
		assert.Equal(t, testChannelID, r.PostForm.Get("client_id"))
		assert.Equal(t, testChannelSecret, r.PostForm.Get("client_secret"))

		// No refresh_token in the response
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "new-access-token",
			"token_type":   "Bearer",
			"expires_in":   2592000,
		})
	}))
	defer server.Close()

	provider := newTestProvider(t, server.URL)

	token, err := provider.Refresh(context.Background(), "old-refresh-token")
	require.NoError(t, err)

	assert.Equal(t, "new-access-token", token.AccessToken)
	// The prior refresh token is retained when the provider omits a new one
	assert.Equal(t, "old-refresh-token", token.RefreshToken)
}

func TestVerifyAccessToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/oauth2/v2.1/verify", r.URL.Path)
		assert.Equal(t, "the-access-token", r.URL.Query().Get("access_token"))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"scope":      "profile",
			"client_id":  testChannelID,
			"expires_in": 3600,
		})
	}))
	defer server.Close()

	provider := newTestProvider(t, server.URL)

	result, err := provider.VerifyAccessToken(context.Background(), "the-access-token")
	require.NoError(t, err)

	assert.Equal(t, "profile", result.Scope)
	assert.Equal(t, testChannelID, result.ClientID)
	assert.Equal(t, int64(3600), result.ExpiresIn)
}

func TestRevoke(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/oauth2/v2.1/revoke", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "the-access-token", r.PostForm.Get("access_token"))
		assert.Equal(t, testChannelID, r.PostForm.Get("client_id"))
		assert.Equal(t, testChannelSecret, r.PostForm.Get("client_secret"))
		// Success is status 200 with an empty body
	}))
	defer server.Close()

	provider := newTestProvider(t, server.URL)

	assert.NoError(t, provider.Revoke(context.Background(), "the-access-token"))
}

func TestRevokeProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	provider := newTestProvider(t, server.URL)

	err := provider.Revoke(context.Background(), "bad-token")
	require.Error(t, err)
	assert.Equal(t, "401 Unauthorized", err.Error())
}

func TestGetProfile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/profile", r.URL.Path)
		assert.Equal(t, "Bearer the-access-token", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"userId":        "U1234567890abcdef",
			"displayName":   "Test User",
			"pictureUrl":    "https://profile.line-scdn.net/pic",
			"statusMessage": "hello",
		})
	}))
	defer server.Close()

	provider := newTestProvider(t, server.URL)

	profile, err := provider.GetProfile(context.Background(), "the-access-token")
	require.NoError(t, err)

	assert.Equal(t, "U1234567890abcdef", profile.UserID)
	assert.Equal(t, "Test User", profile.DisplayName)
	assert.Equal(t, "https://profile.line-scdn.net/pic", profile.PictureURL)
	assert.Equal(t, "hello", profile.StatusMessage)
}

func TestGetFriendshipStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/friendship/v1/status", r.URL.Path)
		assert.Equal(t, "Bearer the-access-token", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode(map[string]bool{"friendFlag": true})
	}))
	defer server.Close()

	provider := newTestProvider(t, server.URL)

	friend, err := provider.GetFriendshipStatus(context.Background(), "the-access-token")
	require.NoError(t, err)
	assert.True(t, friend)
}

func TestLINEProviderGetClaims(t *testing.T) {
	provider := newTestProvider(t, DefaultAPIBaseURL)

	token := &Token{IDToken: mintIDToken(t, testChannelSecret, defaultIDTokenClaims())}
	claims, err := provider.GetClaims(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "U1234567890abcdef", claims.Subject())

	_, err = provider.GetClaims(context.Background(), &Token{})
	assert.Error(t, err)
}
