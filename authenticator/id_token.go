package authenticator

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// LINEIssuer is the fixed "iss" claim value of identity tokens issued by
// the LINE platform.
const LINEIssuer = "https://access.line.me"

// VerifyIDToken validates a compact identity token and returns its claims.
// The signature is checked under the channel secret with the signing
// algorithm pinned to HS256; a token declaring any other algorithm
// ("none" included) is rejected regardless of its contents. The issuer,
// audience and expiry claims are validated here. The nonce claim is NOT
// checked here: the expected nonce is session-scoped and belongs to the
// caller handling the authorization callback.
func VerifyIDToken(rawIDToken, channelSecret, expectedAudience, expectedIssuer string) (Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(expectedIssuer),
		jwt.WithAudience(expectedAudience),
		jwt.WithExpirationRequired(),
	)

	claims := jwt.MapClaims{}
	token, err := parser.ParseWithClaims(rawIDToken, claims, func(_ *jwt.Token) (interface{}, error) {
		return []byte(channelSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("id token verification failed: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("id token verification failed: token invalid")
	}

	return Claims(claims), nil
}
