package crypto

import (
	"crypto/rand"
	"encoding/base64"
)

// NewSecret returns n random bytes encoded as unpadded base64url.
func NewSecret(n int) (string, error) {
	if n <= 0 {
		n = 32
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
