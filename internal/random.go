// Package internal holds the random-material helpers shared by the engine
// and the HTTP boundary.
package internal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"math/big"
	"strings"
)

const stateTokenSize = 24

// NewOTP generates a numeric one-time code of the given length using
// crypto/rand, one digit at a time so every position is uniform.
func NewOTP(digits int) (string, error) {
	if digits < 6 || digits > 10 {
		return "", errors.New("invalid otp digits")
	}

	var b strings.Builder
	b.Grow(digits)

	max := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}

	return b.String(), nil
}

// NewStateToken generates an unguessable base64url token for OAuth state
// round-trips.
func NewStateToken() (string, error) {
	var raw [stateTokenSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}
