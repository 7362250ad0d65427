package utils

import (
	"crypto/rand"
	"math/big"
)

const (
	SessionIDLength   = 10
	sessionIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// NewSessionID returns a random identifier of SessionIDLength characters
// drawn from [A-Z0-9].
func NewSessionID() (string, error) {
	max := big.NewInt(int64(len(sessionIDAlphabet)))
	b := make([]byte, SessionIDLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = sessionIDAlphabet[n.Int64()]
	}
	return string(b), nil
}

// IsSessionID reports whether s has the shape produced by NewSessionID.
func IsSessionID(s string) bool {
	if len(s) != SessionIDLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= 'A' && c <= 'Z') && !(c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}
