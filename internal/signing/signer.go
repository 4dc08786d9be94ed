// Package signing signs and verifies the JWTs this project mints for
// itself: the browser session cookie and the simulator's access tokens.
// Brokerage-issued tokens are opaque here and never pass through it.
package signing

import (
	"github.com/golang-jwt/jwt/v5"

	"brokergate/internal/errors"
)

// Signer creates signed JWTs from claims and supplies the verification
// key for parsing them back.
type Signer interface {
	// Sign creates a signed JWT from claims.
	Sign(claims jwt.MapClaims) (string, error)

	// Keyfunc returns the verification key for a parsed token header,
	// rejecting tokens signed with an unexpected method. It satisfies
	// the keyfunc parameter of jwt.Parse.
	Keyfunc(token *jwt.Token) (any, error)
}

// HMACSigner implements Signer using symmetric HMAC-SHA256.
type HMACSigner struct {
	secret []byte
}

var _ Signer = (*HMACSigner)(nil)

// NewHMACSigner creates an HMAC signer over the given secret.
func NewHMACSigner(secret []byte) *HMACSigner {
	return &HMACSigner{secret: secret}
}

func (h *HMACSigner) Sign(claims jwt.MapClaims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.secret)
	if err != nil {
		return "", errors.Wrapf(err, "[HMACSigner Sign] signing failed")
	}
	return signed, nil
}

func (h *HMACSigner) Keyfunc(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, errors.Wrapf(errors.ErrUnsupported, "unexpected signing method %v", token.Header["alg"])
	}
	return h.secret, nil
}
