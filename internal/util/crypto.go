package util

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
)

// MinHashIterations is the lowest PBKDF2 iteration count accepted at signup.
const MinHashIterations = 100_000

// Argon2id parameters for the storage hash.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
)

const saltLen = 16

// HashPassword derives the storage hash for a password using the two-stage
// pipeline: PBKDF2-SHA256 with the account's iteration count, then Argon2id
// over the stretched key. A fresh random salt is generated per call and
// shared by both stages. Salt and hash are returned base64 encoded.
func HashPassword(password string, iterations int) (hash, salt string, err error) {
	if password == "" {
		return "", "", fmt.Errorf("password is empty")
	}
	if iterations < MinHashIterations {
		return "", "", fmt.Errorf("iterations below minimum %d", MinHashIterations)
	}

	rawSalt := make([]byte, saltLen)
	if _, err := rand.Read(rawSalt); err != nil {
		return "", "", fmt.Errorf("generate salt: %w", err)
	}

	key := deriveStorageKey([]byte(password), rawSalt, iterations)

	return base64.RawStdEncoding.EncodeToString(key),
		base64.RawStdEncoding.EncodeToString(rawSalt), nil
}

// CheckPassword recomputes the two-stage pipeline against the stored salt and
// iteration count and compares in constant time.
func CheckPassword(password, storedHash, storedSalt string, iterations int) bool {
	if password == "" || storedHash == "" || storedSalt == "" || iterations <= 0 {
		return false
	}

	rawSalt, err := base64.RawStdEncoding.DecodeString(storedSalt)
	if err != nil {
		return false
	}
	expected, err := base64.RawStdEncoding.DecodeString(storedHash)
	if err != nil {
		return false
	}

	key := deriveStorageKey([]byte(password), rawSalt, iterations)

	return subtle.ConstantTimeCompare(key, expected) == 1
}

func deriveStorageKey(password, salt []byte, iterations int) []byte {
	stretched := pbkdf2.Key(password, salt, iterations, 32, sha256.New)
	return argon2.IDKey(stretched, salt, argonTime, argonMemory, argonThreads, argonKeyLen)
}

// ----------------- AES-256-GCM secret encryption at rest -----------------

// deriveKey always produces a 32-byte key regardless of configured length.
func deriveKey(keyStr string) []byte {
	sum := sha256.Sum256([]byte(keyStr))
	return sum[:]
}

// EncryptSecret encrypts a secret string with AES-256-GCM for storage,
// returning base64(nonce+ciphertext).
func EncryptSecret(keyStr, plaintext string) (string, error) {
	if keyStr == "" {
		return "", fmt.Errorf("encryption key not configured")
	}

	block, err := aes.NewCipher(deriveKey(keyStr))
	if err != nil {
		return "", fmt.Errorf("new cipher: %w", err)
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("new gcm: %w", err)
	}

	nonce := make([]byte, aesgcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}

	ciphertext := aesgcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// DecryptSecret reverses EncryptSecret.
func DecryptSecret(keyStr, encoded string) (string, error) {
	if keyStr == "" {
		return "", fmt.Errorf("encryption key not configured")
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode secret: %w", err)
	}

	block, err := aes.NewCipher(deriveKey(keyStr))
	if err != nil {
		return "", fmt.Errorf("new cipher: %w", err)
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("new gcm: %w", err)
	}

	ns := aesgcm.NonceSize()
	if len(data) < ns {
		return "", fmt.Errorf("cipher too short")
	}
	nonce, ciphertext := data[:ns], data[ns:]

	plaintext, err := aesgcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return string(plaintext), nil
}
