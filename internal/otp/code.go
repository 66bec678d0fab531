// Package otp generates and compares one-time passcodes.
package otp

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"io"
)

// ErrInvalidLength is returned when a code length outside 1..32 is requested.
var ErrInvalidLength = errors.New("otp: invalid code length")

// reader is the randomness source; crypto/rand unless replaced in tests.
var reader io.Reader = rand.Reader

// GenerateCode returns a numeric code of exactly length digits (leading zeros kept).
// Each digit is uniform over 0-9: random bytes >= 250 are rejected to avoid modulo bias.
func GenerateCode(length int) (string, error) {
	if length <= 0 || length > 32 {
		return "", ErrInvalidLength
	}
	out := make([]byte, 0, length)
	buf := make([]byte, length)
	for len(out) < length {
		if _, err := io.ReadFull(reader, buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= 250 {
				continue
			}
			out = append(out, '0'+b%10)
			if len(out) == length {
				break
			}
		}
	}
	return string(out), nil
}

// HashCode returns a SHA-256 hash of the code string, hex-encoded.
func HashCode(code string) string {
	h := sha256.Sum256([]byte(code))
	return hex.EncodeToString(h[:])
}

// CodeEqual performs constant-time comparison of the provided code's hash with the stored hash.
func CodeEqual(providedCode, storedHash string) bool {
	if providedCode == "" {
		return false
	}
	providedHash := HashCode(providedCode)
	return subtle.ConstantTimeCompare([]byte(providedHash), []byte(storedHash)) == 1
}
