package authenticator

import (
	"crypto/rand"
	"encoding/hex"
)

// tokenEntropyBytes is the number of random bytes behind each generated
// token: 20 bytes is 160 bits of entropy.
const tokenEntropyBytes = 20

// GenerateToken returns a fresh opaque token for use as the CSRF state or
// the replay nonce. Tokens are hex-encoded output of the system's secure
// randomness source and are never predictable. An exhausted entropy source
// is an unrecoverable environment failure, so it panics rather than
// returning an error every caller would have to treat as fatal anyway.
func GenerateToken() string {
	b := make([]byte, tokenEntropyBytes)
	if _, err := rand.Read(b); err != nil {
		panic("authenticator: reading system randomness: " + err.Error())
	}
	return hex.EncodeToString(b)
}
