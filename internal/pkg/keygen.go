package pkg

import (
	"crypto/rand"
	"math/big"

	"github.com/google/uuid"
)

const (
	sessionKeyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	sessionKeyLength   = 6
)

// GenerateSessionKey - generates a short shareable session code. Collisions
// are possible and accepted; keys are not a security property.
func GenerateSessionKey() string {
	key := make([]byte, sessionKeyLength)
	for i := range key {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(sessionKeyAlphabet))))
		if err != nil {
			return ""
		}
		key[i] = sessionKeyAlphabet[n.Int64()]
	}

	return string(key)
}

// GenerateClientID - generates a unique identifier for a connected client.
func GenerateClientID() string {
	return uuid.NewString()
}
