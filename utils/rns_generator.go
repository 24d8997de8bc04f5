package utils

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
)

const rnsCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateRNS returns a random alphanumeric string of length n.
// Used as the collision suffix of upload keys.
func GenerateRNS(n int) (string, error) {
	if n <= 0 {
		return "", errors.New("RNS length must be positive")
	}

	byteArray := make([]byte, n)
	if _, err := rand.Read(byteArray); err != nil {
		return "", err
	}

	var rnsBuilder strings.Builder
	rnsBuilder.Grow(n)
	for _, b := range byteArray {
		rnsBuilder.WriteByte(rnsCharset[int(b)%len(rnsCharset)])
	}
	return rnsBuilder.String(), nil
}

// GenerateRandomHex returns 2n hex characters from n random bytes.
func GenerateRandomHex(n int) (string, error) {
	bytes := make([]byte, n)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
