package common

import (
	"crypto/rand"
	"fmt"
)

// randRead is a test seam for crypto/rand.Read.
var randRead = rand.Read

// GenerateRandByteArray returns size bytes read from crypto/rand. It fails
// only when the system entropy source does.
func GenerateRandByteArray(size int) ([]byte, error) {
	b := make([]byte, size)
	if _, err := randRead(b); err != nil {
		return nil, fmt.Errorf("read random bytes: %w", err)
	}
	return b, nil
}

// WipeByteArray overwrites the contents of the provided byte slice with zeros.
// It is used to drop plaintext passwords from memory after hashing.
//
// If the slice is nil, the function does nothing.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
