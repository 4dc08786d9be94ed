package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"

	"brokergate/internal/errors"
)

// randomTokenLength is the number of random bytes behind each state and
// code verifier, comfortably above the 128-bit minimum.
const randomTokenLength = 32

// Begin generates the one-shot material for a new authorization attempt:
// a CSRF state, a PKCE code verifier, and its S256 challenge. Only the
// challenge travels in the authorization URL; the verifier is held back
// until the token exchange.
func Begin() (state, codeVerifier, codeChallenge string, err error) {
	state, err = randomToken()
	if err != nil {
		return "", "", "", err
	}

	codeVerifier, err = randomToken()
	if err != nil {
		return "", "", "", err
	}

	hash := sha256.Sum256([]byte(codeVerifier))
	codeChallenge = base64.RawURLEncoding.EncodeToString(hash[:])

	return state, codeVerifier, codeChallenge, nil
}

// ChallengeS256 computes the S256 challenge for a verifier. The callback
// side of the exchange recomputes it to check what the client presented.
func ChallengeS256(codeVerifier string) string {
	hash := sha256.Sum256([]byte(codeVerifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

func randomToken() (string, error) {
	bytes := make([]byte, randomTokenLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", errors.Wrapf(errors.ErrEntropyUnavailable, "reading %d random bytes failed with %v", randomTokenLength, err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}
