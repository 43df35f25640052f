package auth

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// refreshTokenBytes is the entropy of a refresh token.
const refreshTokenBytes = 32

func randomToken() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// TokenHasher derives the stored form of a refresh token: a BLAKE2b-256 MAC keyed
// with a server-side pepper.
type TokenHasher struct {
	key []byte
}

// NewTokenHasher builds a hasher for pepper. Peppers longer than the 64-byte BLAKE2b
// key limit are compressed first.
func NewTokenHasher(pepper string) *TokenHasher {
	key := []byte(pepper)
	if len(key) > blake2b.Size {
		sum := blake2b.Sum512(key)
		key = sum[:]
	}
	return &TokenHasher{key: key}
}

// Hash returns the hex-encoded MAC of token.
func (h *TokenHasher) Hash(token string) string {
	mac, err := blake2b.New256(h.key)
	if err != nil {
		// Unreachable: the key length is bounded in NewTokenHasher.
		panic(err)
	}
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}
