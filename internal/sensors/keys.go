package sensors

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const keyPrefix = "cdk_"

// newDeviceKey returns a random plaintext key and its bcrypt hash.
func newDeviceKey() (plain, hash string, err error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generating device key: %w", err)
	}
	plain = keyPrefix + hex.EncodeToString(buf)

	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", "", fmt.Errorf("hashing device key: %w", err)
	}
	return plain, string(hashed), nil
}

func keyMatches(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
