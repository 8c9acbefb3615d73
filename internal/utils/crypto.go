// internal/utils/crypto.go
package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
)

// encryptedPrefix marks values produced by EncryptSecret
const encryptedPrefix = "enc:v1:"

// deriveKey stretches an arbitrary passphrase to an AES-256 key
func deriveKey(passphrase string) []byte {
	sum := sha256.Sum256([]byte(passphrase))
	return sum[:]
}

func newGCM(passphrase string) (cipher.AEAD, error) {
	block, err := aes.NewCipher(deriveKey(passphrase))
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// EncryptSecret seals plaintext with AES-GCM and returns a prefixed base64 string.
// An empty plaintext stays empty.
func EncryptSecret(plaintext, passphrase string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	gcm, err := newGCM(passphrase)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return encryptedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// IsEncryptedSecret reports whether value was produced by EncryptSecret
func IsEncryptedSecret(value string) bool {
	return strings.HasPrefix(value, encryptedPrefix)
}

// DecryptSecret reverses EncryptSecret. Values without the prefix are
// returned unchanged so plaintext files keep loading.
func DecryptSecret(value, passphrase string) (string, error) {
	if !IsEncryptedSecret(value) {
		return value, nil
	}
	if passphrase == "" {
		return "", fmt.Errorf("secret is encrypted but no key is configured")
	}

	sealed, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, encryptedPrefix))
	if err != nil {
		return "", err
	}

	gcm, err := newGCM(passphrase)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(sealed) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
